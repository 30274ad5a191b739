package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/inputwire/internal/errors"
	"github.com/vango-dev/inputwire/pkg/capture"
)

func captureCmd() *cobra.Command {
	var (
		window int
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "capture <file | s3://bucket/key>",
		Short: "Decode a captured segment",
		Long: `Decode a capture segment written by 'inputwire serve' with capture
enabled, and inspect every packet in it.

Examples:
  inputwire capture segment.iwc
  inputwire capture s3://replays/captures/2026/10/17/083005.250-000007.iwc --limit=10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if window > 0 {
				cfg.Window.Size = window
			}

			var entries []capture.Entry
			if bucket, key, ok := parseS3URL(args[0]); ok {
				ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
				defer cancel()
				client, cerr := capture.NewS3Client(ctx, cfg.Capture.Region, cfg.Capture.Endpoint)
				if cerr != nil {
					return errors.New("E161").Wrap(cerr)
				}
				entries, err = capture.Download(ctx, client, bucket, key)
			} else {
				var data []byte
				data, err = os.ReadFile(args[0])
				if err != nil {
					return errors.New("E122").Wrap(err)
				}
				entries, err = capture.DecodeSegment(data)
			}
			if err != nil {
				if len(entries) == 0 {
					return errors.New("E122").Wrap(err)
				}
				printError(errors.New("E122").WithDetail(fmt.Sprintf("showing the %d entries before the error", len(entries))).Wrap(err))
			}

			failed := replaySegment(os.Stdout, entries, cfg.Window.Size, limit)
			info("%d packets, %d failed to decode", len(entries), failed)
			return nil
		},
	}

	cmd.Flags().IntVarP(&window, "window", "w", 0, "Window size (default from inputwire.json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many packets (0 = all)")

	return cmd
}

// replaySegment inspects each entry and returns how many failed to decode.
func replaySegment(w io.Writer, entries []capture.Entry, size, limit int) int {
	failed := 0
	for i, e := range entries {
		if limit > 0 && i >= limit {
			break
		}
		fmt.Fprintf(w, "\n#%d  %s\n", i, e.ReceivedAt.UTC().Format(time.RFC3339Nano))
		if err := inspectPacket(w, e.Packet, size); err != nil {
			fmt.Fprintf(w, "  %v\n", err)
			failed++
		}
	}
	return failed
}

// parseS3URL splits s3://bucket/key.
func parseS3URL(s string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(s, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, ok = strings.Cut(rest, "/")
	return bucket, key, ok && bucket != "" && key != ""
}
