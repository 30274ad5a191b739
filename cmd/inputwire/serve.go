package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/inputwire/internal/errors"
	"github.com/vango-dev/inputwire/pkg/capture"
	"github.com/vango-dev/inputwire/pkg/command"
	"github.com/vango-dev/inputwire/pkg/netinput"
	"github.com/vango-dev/inputwire/pkg/telemetry"
	"github.com/vango-dev/inputwire/pkg/transport"
)

func serveCmd() *cobra.Command {
	var (
		addr   string
		window int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept input connections",
		Long: `Start the input server.

Clients connect over websocket to server.path and stream input windows.
Every new input is logged at debug level; with capture enabled the raw
packets are archived to S3.

Examples:
  inputwire serve
  inputwire serve --addr=:7777 --window=16
  inputwire serve -c prod.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if window > 0 {
				cfg.Window.Size = window
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := slog.Default().With("component", "serve")

			var (
				metrics  *telemetry.Metrics
				gatherer prometheus.Gatherer
			)
			metricsPath := ""
			if cfg.Metrics.Enabled {
				reg := prometheus.NewRegistry()
				reg.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
				metrics = telemetry.NewMetrics(
					telemetry.WithRegistry(reg),
					telemetry.WithNamespace(cfg.Metrics.Namespace),
				)
				gatherer = reg
				metricsPath = cfg.Metrics.Path
			}

			var tracer *telemetry.Tracer
			if cfg.Tracing.Enabled {
				tp, err := telemetry.InitTracer(ctx, telemetry.ExporterConfig{
					ServiceName: "inputwire",
					Endpoint:    cfg.Tracing.Endpoint,
					Insecure:    cfg.Tracing.Insecure,
				})
				if err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					tp.Shutdown(shutdownCtx)
				}()
				tracer = telemetry.NewTracer(telemetry.WithTracerName(cfg.Tracing.TracerName))
			}

			hc := transport.HandlerConfig[command.Command]{
				WindowSize:  cfg.Window.Size,
				ReadTimeout: cfg.ReadTimeout(),
				MaxPacket:   cfg.Server.MaxPacket,
				OnInput: func(conn string, id netinput.InputID, c *command.Command) {
					logger.Debug("input", "conn", conn, "id", id, "command", c.String())
				},
			}

			if cfg.Capture.Enabled {
				client, err := capture.NewS3Client(ctx, cfg.Capture.Region, cfg.Capture.Endpoint)
				if err != nil {
					return errors.New("E161").Wrap(err)
				}
				archive := capture.NewArchive(client,
					capture.Config{
						Bucket:         cfg.Capture.Bucket,
						Prefix:         cfg.Capture.Prefix,
						SegmentPackets: cfg.Capture.SegmentPackets,
					},
					capture.WithMetrics(metrics),
				)
				defer func() {
					flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					if err := archive.Close(flushCtx); err != nil {
						printError(errors.New("E160").Wrap(err))
					}
				}()
				hc.Recorder = archive
			}

			handler := transport.NewHandler[command.Command](hc,
				transport.WithMetrics(metrics),
				transport.WithTracer(tracer),
			)
			router := transport.NewRouter(handler, transport.RouterConfig{
				InputPath:   cfg.Server.Path,
				MetricsPath: metricsPath,
				Gatherer:    gatherer,
			})

			success("Listening on %s%s (window %d)", cfg.Server.Addr, cfg.Server.Path, cfg.Window.Size)
			if metricsPath != "" {
				info("metrics at %s", metricsPath)
			}

			srv := &transport.Server{Addr: cfg.Server.Addr, Handler: router}
			if err := srv.Run(ctx); err != nil {
				return errors.FromError(err, "E141")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from inputwire.json)")
	cmd.Flags().IntVarP(&window, "window", "w", 0, "Window size (default from inputwire.json)")

	return cmd
}
