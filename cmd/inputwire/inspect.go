package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/inputwire/internal/errors"
	"github.com/vango-dev/inputwire/pkg/command"
	"github.com/vango-dev/inputwire/pkg/delta"
	"github.com/vango-dev/inputwire/pkg/netinput"
	"github.com/vango-dev/inputwire/pkg/serialize"
	"github.com/vango-dev/inputwire/pkg/transport"
)

func inspectCmd() *cobra.Command {
	var (
		window int
		record bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <hex>",
		Short: "Decode an input packet",
		Long: `Decode an input packet given as hex and print every slot with its
input id and the fields that changed against the slot before it.

The packet is the payload of an input frame: the newest input id
followed by the window. With --record the hex is a single command
record, as printed by 'inputwire send --dry-run'.

Examples:
  inputwire inspect 0000000300000001...
  inputwire inspect --window=4 "00 00 00 03 ..."
  inputwire inspect --record 7f0000000000c0a000000005000000000000000000`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if window > 0 {
				cfg.Window.Size = window
			}

			data, err := parseHex(strings.Join(args, ""))
			if err != nil {
				return err
			}
			if record {
				return inspectRecord(os.Stdout, data)
			}
			return inspectPacket(os.Stdout, data, cfg.Window.Size)
		},
	}

	cmd.Flags().IntVarP(&window, "window", "w", 0, "Window size (default from inputwire.json)")
	cmd.Flags().BoolVarP(&record, "record", "r", false, "Decode a single command record instead of a packet")

	return cmd
}

// parseHex decodes s, ignoring whitespace and an optional 0x prefix.
func parseHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.New("E120").Wrap(err)
	}
	return data, nil
}

// inspectPacket decodes one packet for a window of size slots and writes
// a table of its slots to w.
func inspectPacket(w io.Writer, data []byte, size int) error {
	win := netinput.NewWindow[command.Command](size, nil)
	newest, err := transport.DecodePacket(win, data)
	if err != nil {
		return errors.New("E121").
			WithDetail(fmt.Sprintf("%d bytes, window %d, %d slots decoded", len(data), size, win.LastDecoded()+1)).
			Wrap(err)
	}

	fmt.Fprintf(w, "newest input  %d\n", newest)
	fmt.Fprintf(w, "watermark     %d\n", win.PreviousInputID())
	fmt.Fprintf(w, "size          %d bytes\n", len(data))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tID\tCHANGED\tCOMMAND")
	for i := 0; i < win.Len(); i++ {
		id := "-"
		if sid := transport.SlotID(newest, size, i); sid > 0 {
			id = fmt.Sprint(sid)
		}

		changed := "full"
		if i > 0 {
			names, err := changedFields(win.Element(i-1), win.Element(i))
			if err != nil {
				return err
			}
			changed = "none"
			if len(names) > 0 {
				changed = strings.Join(names, ",")
			}
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, id, changed, win.Element(i))
	}
	return tw.Flush()
}

// inspectRecord decodes one command record and writes it to w.
func inspectRecord(w io.Writer, data []byte) error {
	var c command.Command
	if err := serialize.Unmarshal(data, &c); err != nil {
		return errors.New("E123").
			WithDetail(fmt.Sprintf("%d bytes", len(data))).
			Wrap(err)
	}
	names, err := serialize.Fields(&c)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "fields   %s\n", strings.Join(names, ","))
	fmt.Fprintf(w, "command  %s\n", c)
	return nil
}

// changedFields names the fields of cur that differ from prev.
func changedFields(prev, cur *command.Command) ([]string, error) {
	d, err := delta.Create(prev, cur)
	if err != nil {
		return nil, err
	}
	return delta.ChangedFields(d, cur)
}
