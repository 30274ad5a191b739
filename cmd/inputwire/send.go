package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/inputwire/internal/errors"
	"github.com/vango-dev/inputwire/pkg/command"
	"github.com/vango-dev/inputwire/pkg/serialize"
	"github.com/vango-dev/inputwire/pkg/transport"
)

func sendCmd() *cobra.Command {
	var (
		url    string
		rate   int
		count  int
		window int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Stream synthetic input to a server",
		Long: `Connect to an input server and send one synthetic command per tick.

With --dry-run nothing is sent: each command is printed as record hex,
ready for 'inputwire inspect --record'.

Examples:
  inputwire send
  inputwire send --url=ws://game.local:7777/input --rate=60 --count=600
  inputwire send --dry-run --count=5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				if count == 0 {
					count = 10
				}
				return dumpCommands(os.Stdout, count)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if window > 0 {
				cfg.Window.Size = window
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if url == "" {
				url = "ws://" + dialHost(cfg.Server.Addr) + cfg.Server.Path
			}
			if rate < 1 {
				return errors.Newf(errors.CategoryCLI, "--rate must be at least 1")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := transport.Dial[command.Command](ctx, url, cfg.Window.Size, nil)
			if err != nil {
				return errors.New("E140").WithDetail(url).Wrap(err)
			}
			defer s.Close()

			ackErr := make(chan error, 1)
			go func() {
				ackErr <- s.ReadAcks(ctx)
			}()

			success("Sending to %s at %d Hz (window %d)", url, rate, cfg.Window.Size)

			ticker := time.NewTicker(time.Second / time.Duration(rate))
			defer ticker.Stop()

		loop:
			for step := 0; count == 0 || step < count; step++ {
				select {
				case <-ctx.Done():
					break loop
				case err := <-ackErr:
					if ctx.Err() != nil {
						break loop
					}
					return errors.FromError(err, "E142")
				case <-ticker.C:
				}
				if _, err := s.Send(ctx, syntheticCommand(step)); err != nil {
					return errors.FromError(err, "E142")
				}
			}

			// Give the last acks a moment to arrive.
			time.Sleep(100 * time.Millisecond)
			info("sent %d, acked %d", s.Newest(), s.Acked())
			return nil
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "Server websocket URL (default from inputwire.json)")
	cmd.Flags().IntVarP(&rate, "rate", "r", 30, "Commands per second")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Commands to send (0 = until interrupted)")
	cmd.Flags().IntVarP(&window, "window", "w", 0, "Window size (default from inputwire.json)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the commands as hex instead of sending them")

	return cmd
}

// dialHost turns a listen address into one a client can dial.
func dialHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// dumpCommands writes the first count synthetic commands as record hex,
// marking each one that repeats its predecessor.
func dumpCommands(w io.Writer, count int) error {
	var prev command.Command
	for step := 0; step < count; step++ {
		c := syntheticCommand(step)
		data, err := serialize.Marshal(&c)
		if err != nil {
			return err
		}
		mark := ""
		if step > 0 && c.Equal(prev) {
			mark = "  (repeat)"
		}
		fmt.Fprintf(w, "%4d  %s%s\n", step, hex.EncodeToString(data), mark)
		prev = c
	}
	return nil
}

// syntheticCommand is a deterministic input for step: the player walks in
// a slow circle, jumps every second and fires in bursts.
func syntheticCommand(step int) command.Command {
	c := command.Command{
		Forward: 127,
		Strafe:  int8(64 * math.Sin(float64(step)/20)),
		Yaw:     float32(step % 360),
		Pitch:   -5,
	}
	if step%30 == 0 {
		c.Press(command.ButtonJump)
	}
	if (step/10)%3 == 0 {
		c.Press(command.ButtonPrimary)
	}
	c.Crouch = (step/60)%2 == 1
	return c
}
