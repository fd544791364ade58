package cmd_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Alia5/jctool/internal/cmd"
	"github.com/Alia5/jctool/internal/log"
	"github.com/Alia5/jctool/ircam"
	"github.com/Alia5/jctool/joycon"
	"github.com/Alia5/jctool/rumble"
	"github.com/Alia5/jctool/spi"
	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"
)

// run parses args like the jctool binary and runs the selected command.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli cmd.CLI
	parser, err := kong.New(&cli, kong.Name("jctool"), kong.Exit(func(int) { t.Fatalf("unexpected exit for %v", args) }))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	kctx.BindTo(context.Background(), (*context.Context)(nil))
	kctx.Bind(slog.New(slog.DiscardHandler))
	kctx.BindTo(log.NewRaw(nil), (*log.RawLogger)(nil))
	kctx.Bind(&cmd.Output{Writer: &buf})
	err = kctx.Run()
	return buf.String(), err
}

func writeImage(t *testing.T, patch func(img []byte)) string {
	t.Helper()
	img := bytes.Repeat([]byte{0xFF}, spi.FlashSize)
	if patch != nil {
		patch(img)
	}
	path := filepath.Join(t.TempDir(), "flash.bin")
	require.NoError(t, os.WriteFile(path, img, 0o644))
	return path
}

func TestCodecCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"rumble encode neutral", []string{"rumble", "encode"}, "00 01 40 40 00 01 40 40\n"},
		{"rumble decode idle", []string{"rumble", "decode", "00014040"}, "high 320.00 Hz @ 0.00, low 160.00 Hz @ 0.00\n"},
		{"stick encode center", []string{"stick", "encode", "0x800", "0x800"}, "00 08 80\n"},
		{"stick decode center", []string{"stick", "decode", "00:08:80"}, "x=2048 (0x800) y=2048 (0x800)\n"},
		{"spi read packet", []string{"subcmd", "encode-spi", "--offset", "0x6000", "--length", "16"}, "01 00 00 01 40 40 00 01 40 40 10 00 60 00 00 10\n"},
		{"spi read packet sequence", []string{"subcmd", "encode-spi", "--offset", "0x6000", "--length", "16", "--sequence", "3"}, "01 03 00 01 40 40 00 01 40 40 10 00 60 00 00 10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCodecCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"rumble decode length", []string{"rumble", "decode", "000140"}},
		{"stick encode range", []string{"stick", "encode", "4096", "0"}},
		{"stick decode length", []string{"stick", "decode", "0008"}},
		{"bad hex", []string{"stick", "decode", "zz"}},
		{"spi length and write", []string{"subcmd", "encode-spi", "--offset", "0x8000", "--length", "1", "--write", "00"}},
		{"subcmd unknown", []string{"subcmd", "decode", "7E00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestSubcmdDecode(t *testing.T) {
	out, err := run(t, "subcmd", "decode", "10 00 60 00 00 10")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "SPIRead "), out)

	out, err = run(t, "subcmd", "decode", "--packet", "01 05 00 01 40 40 00 01 40 40 10 00 60 00 00 10")
	require.NoError(t, err)
	assert.Contains(t, out, "cmd 0x01 seq 5\n")
	assert.Contains(t, out, "SPIRead")
}

func TestParseHex(t *testing.T) {
	for _, in := range []string{"b2a1", "0xB2A1", "B2 A1", "b2:a1"} {
		b, err := cmd.ParseHex(in)
		require.NoError(t, err, in)
		assert.Equal(t, []byte{0xB2, 0xA1}, b, in)
	}
	_, err := cmd.ParseHex("abc")
	assert.Error(t, err)
}

func TestIRBuild(t *testing.T) {
	out, err := run(t, "ir", "build", "--resolution", "160x120")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Len(t, strings.Fields(lines[0]), ircam.ConfigSize)

	out, err = run(t, "ir", "build", "--registers")
	require.NoError(t, err)
	assert.Greater(t, strings.Count(out, "\n"), 1)

	_, err = run(t, "ir", "build", "--exposure-us", "700")
	assert.Error(t, err)
}

func TestIRBuildFromFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"ir.yaml": "resolution: 80x60\nexposure_us: 300\n",
		"ir.toml": "resolution = \"80x60\"\nexposure_us = 300\n",
		"ir.json": `{"resolution": "80x60", "exposure_us": 300}`,
	}
	want, err := run(t, "ir", "build", "--resolution", "80x60", "--exposure-us", "300")
	require.NoError(t, err)

	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			got, err := run(t, "ir", "build", "--from", path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestIRBuildFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ir.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resolution: 80x60\nexposure_us: 300\n"), 0o644))

	want, err := run(t, "ir", "build", "--resolution", "80x60", "--exposure-us", "200")
	require.NoError(t, err)
	got, err := run(t, "ir", "build", "--from", path, "--exposure-us", "200")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	fileOnly, err := run(t, "ir", "build", "--from", path)
	require.NoError(t, err)
	assert.NotEqual(t, want, fileOnly)
}

func TestIRBuildApply(t *testing.T) {
	_, err := run(t, "ir", "build", "--apply", "--device.report-size", "64")
	require.NoError(t, err)
}

func TestSPIReadWrite(t *testing.T) {
	path := writeImage(t, func(img []byte) {
		copy(img[spi.AddrSerial:], "XBW12345678901\x00\x00")
	})

	out, err := run(t, "spi", "read", "0x6000", "3", "--device.image", path)
	require.NoError(t, err)
	assert.Equal(t, "XBW", out)

	out, err = run(t, "spi", "write", "0x8010", "--data", "B2A1 00 08 80", "--device.image", path, "--chunk-size", "2")
	require.NoError(t, err)
	assert.Equal(t, "wrote 5 bytes at 0x08010\n", out)

	img, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xB2, 0xA1, 0x00, 0x08, 0x80}, img[0x8010:0x8015])

	out, err = run(t, "spi", "read", "0x8010", "5", "--device.image", path)
	require.NoError(t, err)
	assert.Equal(t, "\xB2\xA1\x00\x08\x80", out)
}

func TestSPIWriteProtected(t *testing.T) {
	path := writeImage(t, nil)
	_, err := run(t, "spi", "write", "0x6000", "--data", "00", "--device.image", path)
	assert.ErrorIs(t, err, cmd.ErrProtectedArea)

	_, err = run(t, "spi", "write", "0x6000", "--data", "00", "--device.image", path, "--yes")
	require.NoError(t, err)
	img, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), img[0x6000])
}

func TestSPIReadOutFile(t *testing.T) {
	path := writeImage(t, func(img []byte) { img[0x6050] = 0x0A })
	dest := filepath.Join(t.TempDir(), "colors.bin")
	out, err := run(t, "spi", "read", "0x6050", "2", "--device.image", path, "--out", dest)
	require.NoError(t, err)
	assert.Empty(t, out)
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0A, 0xFF}, b)
}

func TestSPIDump(t *testing.T) {
	if testing.Short() {
		t.Skip("dumps the whole flash")
	}
	path := writeImage(t, nil)
	dest := filepath.Join(t.TempDir(), "dump.bin")
	out, err := run(t, "spi", "dump", dest, "--device.image", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, dest+" blake2b-256 "), out)

	want, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestInfo(t *testing.T) {
	path := writeImage(t, func(img []byte) {
		copy(img[spi.AddrSerial:], "XCW70012345678\x00\x00")
		copy(img[spi.AddrColors:], []byte{0x32, 0x32, 0x32, 0xFF, 0xFF, 0xFF, 0x0A, 0xB9, 0xE6, 0xFF, 0x3C, 0x28})
	})
	out, err := run(t, "info", "--device.image", path)
	require.NoError(t, err)
	assert.Contains(t, out, "type:     Pro Controller\n")
	assert.Contains(t, out, "firmware: 4.21\n")
	assert.Contains(t, out, "serial:   XCW70012345678\n")
	assert.Contains(t, out, "body:     #323232\n")
	assert.Contains(t, out, "grips:    #0AB9E6 #FF3C28\n")
	assert.Contains(t, out, "left stick factory:")
	assert.Contains(t, out, "right stick params:")
	assert.NotContains(t, out, "stick user:")
}

func TestConfigInit(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "serve.yaml")
	out, err := run(t, "config", "init", "serve", "--format", "yaml", "--output", dest)
	require.NoError(t, err)
	assert.Equal(t, "wrote "+dest+"\n", out)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{
		"addr":               ":3243",
		"handshake_timeout":  "5s",
		"connection_timeout": "30s",
	}, got["bridge"])
	device, ok := got["device"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 49, device["report_size"])

	_, err = run(t, "config", "init", "serve", "--format", "yaml", "--output", dest)
	assert.ErrorIs(t, err, cmd.ErrConfigExists)
	_, err = run(t, "config", "init", "serve", "--format", "yaml", "--output", dest, "--force")
	assert.NoError(t, err)
}

func TestConfigInitIRLoadsBack(t *testing.T) {
	dir := t.TempDir()
	for _, format := range []string{"json", "yaml", "toml"} {
		dest := filepath.Join(dir, "ir."+format)
		_, err := run(t, "config", "init", "ir", "--format", format, "--output", dest)
		require.NoError(t, err, format)
		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Contains(t, string(data), "exposure_us", format)
		assert.Contains(t, string(data), "report_size", format)
	}
}

func TestServeKeyFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "cfg", "jctool.key.txt")
	logger := slog.New(slog.DiscardHandler)

	serve := func() *cmd.Serve {
		s := &cmd.Serve{KeyFile: keyFile}
		s.Bridge.Addr = "127.0.0.1:0"
		s.Device.ReportSize = 49
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		require.NoError(t, s.Run(ctx, logger, log.NewRaw(nil)))
		return s
	}

	first := serve()
	key, err := os.ReadFile(keyFile)
	require.NoError(t, err)
	assert.Regexp(t, "^[0-9A-Za-z]{16}$", string(key))
	assert.Equal(t, string(key), first.Bridge.Password)

	second := serve()
	assert.Equal(t, first.Bridge.Password, second.Bridge.Password)
}

func TestStatus(t *testing.T) {
	out, err := run(t, "status")
	require.NoError(t, err)
	assert.Equal(t, "battery:     3900 mV (66%)\ntemperature: 35.0 C\n", out)
}

func TestSubcmdSend(t *testing.T) {
	out, err := run(t, "subcmd", "send", "30 0F")
	require.NoError(t, err)
	assert.Equal(t, "ack 0x80 id 0x30\n\n", out)

	out, err = run(t, "subcmd", "send", "50")
	require.NoError(t, err)
	assert.Equal(t, "ack 0xD0 id 0x50\n18 06\n", out)

	out, err = run(t, "subcmd", "send", "7E 01")
	assert.ErrorIs(t, err, joycon.ErrNack)
	assert.Equal(t, "ack 0x00 id 0x7E\n\n", out)
}

func TestRumblePlay(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"tune.yaml": "steps:\n  - tone_hz: 440\n    amp: 0.5\n    ms: 1\n  - left:\n      low_freq: 100\n      low_amp: 0.2\n    ms: 2\nloop_end: 1\nloop_times: 2\n",
		"tune.toml": "loop_end = 1\nloop_times = 2\n[[steps]]\ntone_hz = 440.0\namp = 0.5\nms = 1\n[[steps]]\nms = 2\n[steps.left]\nlow_freq = 100.0\nlow_amp = 0.2\n",
		"tune.json": `{"steps": [{"tone_hz": 440, "amp": 0.5, "ms": 1}, {"left": {"low_freq": 100, "low_amp": 0.2}, "ms": 2}], "loop_end": 1, "loop_times": 2}`,
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			steps, err := cmd.LoadPattern(path)
			require.NoError(t, err)
			require.Len(t, steps, 4)
			assert.Equal(t, rumble.Tone(440, 0.5, time.Millisecond), steps[0])
			assert.Equal(t, steps[0], steps[2])
			assert.InDelta(t, 100, steps[3].Left.LowFreq, 0.001)
			assert.Equal(t, rumble.Neutral, steps[3].Right)

			out, err := run(t, "rumble", "play", path)
			require.NoError(t, err)
			assert.Equal(t, "played 4 steps in 5ms\n", out)
		})
	}
}

func TestRumblePlayInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty.json":    `{"steps": []}`,
		"badloop.json":  `{"steps": [{"ms": 1}], "loop_start": 0, "loop_end": 3, "loop_times": 1}`,
		"negative.json": `{"steps": [{"ms": -1}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := run(t, "rumble", "play", path)
			assert.ErrorIs(t, err, rumble.ErrInvalidPattern)
		})
	}
}
