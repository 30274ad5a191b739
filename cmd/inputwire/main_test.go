package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/inputwire/internal/config"
	"github.com/vango-dev/inputwire/internal/errors"
	"github.com/vango-dev/inputwire/pkg/capture"
	"github.com/vango-dev/inputwire/pkg/command"
	"github.com/vango-dev/inputwire/pkg/netinput"
	"github.com/vango-dev/inputwire/pkg/transport"
)

func testPacket(t *testing.T) []byte {
	t.Helper()
	w := netinput.NewWindow[command.Command](4, nil)
	for i := 0; i < 4; i++ {
		w.Advance(syntheticCommand(i))
	}
	w.SetPreviousInputID(2)
	data, err := transport.EncodePacket(w, 4, 0)
	if err != nil {
		t.Fatalf("EncodePacket() error = %v", err)
	}
	return data
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{"00ff10", []byte{0x00, 0xff, 0x10}, false},
		{"0x00 FF\n10", []byte{0x00, 0xff, 0x10}, false},
		{"0g", nil, true},
		{"abc", nil, true},
	}
	for _, tt := range tests {
		got, err := parseHex(tt.in)
		if tt.wantErr {
			if !errors.Is(err, "E120") {
				t.Errorf("parseHex(%q) error = %v; want E120", tt.in, err)
			}
			continue
		}
		if err != nil || !bytes.Equal(got, tt.want) {
			t.Errorf("parseHex(%q) = %x, %v; want %x", tt.in, got, err, tt.want)
		}
	}
}

func TestInspectPacket(t *testing.T) {
	var out bytes.Buffer
	if err := inspectPacket(&out, testPacket(t), 4); err != nil {
		t.Fatalf("inspectPacket() error = %v", err)
	}

	text := out.String()
	for _, want := range []string{"newest input  4", "watermark     2", "full", "strafe"} {
		if !strings.Contains(text, want) {
			t.Errorf("inspectPacket() output missing %q:\n%s", want, text)
		}
	}
	// Header plus three summary lines plus four slots.
	if lines := strings.Count(text, "\n"); lines != 8 {
		t.Errorf("inspectPacket() wrote %d lines; want 8:\n%s", lines, text)
	}
}

func TestInspectPacketErrors(t *testing.T) {
	data := testPacket(t)

	err := inspectPacket(&bytes.Buffer{}, data[:len(data)-2], 4)
	if !errors.Is(err, "E121") {
		t.Errorf("inspectPacket(truncated) error = %v; want E121", err)
	}

	err = inspectPacket(&bytes.Buffer{}, data, 3)
	if !errors.Is(err, "E121") {
		t.Errorf("inspectPacket(wrong window) error = %v; want E121", err)
	}
}

func TestReplaySegment(t *testing.T) {
	good := testPacket(t)
	entries := []capture.Entry{
		{ReceivedAt: time.Unix(10, 0), Packet: good},
		{ReceivedAt: time.Unix(11, 0), Packet: good[:3]},
		{ReceivedAt: time.Unix(12, 0), Packet: good},
	}

	var out bytes.Buffer
	if failed := replaySegment(&out, entries, 4, 0); failed != 1 {
		t.Errorf("replaySegment() failed = %d; want 1", failed)
	}
	if !strings.Contains(out.String(), "#2") {
		t.Errorf("replaySegment() skipped entries:\n%s", out.String())
	}

	out.Reset()
	replaySegment(&out, entries, 4, 1)
	if strings.Contains(out.String(), "#1") {
		t.Errorf("replaySegment(limit 1) printed a second entry:\n%s", out.String())
	}
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		in     string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://replays/captures/a.iwc", "replays", "captures/a.iwc", true},
		{"s3://replays", "", "", false},
		{"s3:///key", "", "", false},
		{"segment.iwc", "", "", false},
	}
	for _, tt := range tests {
		bucket, key, ok := parseS3URL(tt.in)
		if ok != tt.ok || (ok && (bucket != tt.bucket || key != tt.key)) {
			t.Errorf("parseS3URL(%q) = %q, %q, %v; want %q, %q, %v", tt.in, bucket, key, ok, tt.bucket, tt.key, tt.ok)
		}
	}
}

func TestDialHost(t *testing.T) {
	if got := dialHost(":7777"); got != "localhost:7777" {
		t.Errorf("dialHost(\":7777\") = %q", got)
	}
	if got := dialHost("10.0.0.2:7777"); got != "10.0.0.2:7777" {
		t.Errorf("dialHost(\"10.0.0.2:7777\") = %q", got)
	}
}

func TestSyntheticCommand(t *testing.T) {
	if !syntheticCommand(42).Equal(syntheticCommand(42)) {
		t.Error("syntheticCommand is not deterministic")
	}
	c := syntheticCommand(0)
	if !c.Pressed(command.ButtonJump | command.ButtonPrimary) {
		t.Errorf("syntheticCommand(0).Buttons = %016b; want jump and primary", c.Buttons)
	}
	if syntheticCommand(1).Pressed(command.ButtonJump) {
		t.Error("syntheticCommand(1) jumps")
	}
}

func TestDumpCommands(t *testing.T) {
	var out bytes.Buffer
	if err := dumpCommands(&out, 3); err != nil {
		t.Fatalf("dumpCommands() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("dumpCommands(3) wrote %d lines:\n%s", len(lines), out.String())
	}
	// forward 127, pitch -5, jump|primary.
	want := "7f0000000000c0a000000005000000000000000000"
	if got := strings.Fields(lines[0])[1]; got != want {
		t.Errorf("step 0 = %s; want %s", got, want)
	}
	if strings.Contains(out.String(), "(repeat)") {
		t.Errorf("dumpCommands() marked a changing command as repeat:\n%s", out.String())
	}
}

func TestInspectRecord(t *testing.T) {
	data, err := hex.DecodeString("7f0000000000c0a000000005000000000000000000")
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := inspectRecord(&out, data); err != nil {
		t.Fatalf("inspectRecord() error = %v", err)
	}
	for _, want := range []string{"forward,strafe,yaw,pitch,buttons,crouch,target", "forward=127", "buttons=0x05"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("inspectRecord() output missing %q:\n%s", want, out.String())
		}
	}

	if err := inspectRecord(&bytes.Buffer{}, data[:10]); !errors.Is(err, "E123") {
		t.Errorf("inspectRecord(short) error = %v; want E123", err)
	}
	if err := inspectRecord(&bytes.Buffer{}, append(data, 0)); !errors.Is(err, "E123") {
		t.Errorf("inspectRecord(trailing) error = %v; want E123", err)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	path, err := writeDefaultConfig(dir, 16, false)
	if err != nil {
		t.Fatalf("writeDefaultConfig() error = %v", err)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile(%s) error = %v", path, err)
	}
	if cfg.Window.Size != 16 {
		t.Errorf("Window.Size = %d; want 16", cfg.Window.Size)
	}

	if _, err := writeDefaultConfig(dir, 0, false); !errors.Is(err, "E106") {
		t.Errorf("writeDefaultConfig(existing) error = %v; want E106", err)
	}
	if _, err := writeDefaultConfig(dir, 0, true); err != nil {
		t.Errorf("writeDefaultConfig(force) error = %v", err)
	}
	if _, err := writeDefaultConfig(t.TempDir(), config.MaxWindowSize+1, false); !errors.Is(err, "E102") {
		t.Errorf("writeDefaultConfig(window too large) error = %v; want E102", err)
	}
}
