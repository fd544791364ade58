// Package cmd holds the kong command tree of the jctool binary.
package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Alia5/jctool/bridge"
	"github.com/Alia5/jctool/emulator"
	"github.com/Alia5/jctool/joycon"
	"github.com/alecthomas/kong"
	"golang.org/x/term"
)

// CLI is the root command.
type CLI struct {
	ConfigFile string    `name:"config" help:"Config file (json, yaml or toml)" env:"JCTOOL_CONFIG"`
	Log        LogConfig `embed:"" prefix:"log."`

	Rumble RumbleCmd     `cmd:"" help:"Encode, decode or send HD rumble codes"`
	Stick  StickCmd      `cmd:"" help:"Encode or decode 12-bit stick samples"`
	Subcmd SubcmdCmd     `cmd:"" help:"Encode or decode subcommand payloads"`
	IR     IRCmd         `cmd:"" name:"ir" help:"IR camera configuration"`
	SPI    SPICmd        `cmd:"" name:"spi" help:"Read and write SPI flash"`
	Info   InfoCmd       `cmd:"" help:"Show device info, serial, colors and stick calibration"`
	Status StatusCmd     `cmd:"" help:"Show battery voltage and temperature"`
	Serve  Serve         `cmd:"" help:"Expose a controller over the encrypted bridge"`
	Config ConfigCommand `cmd:"" help:"Configuration helpers"`
}

type LogConfig struct {
	Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"JCTOOL_LOG_LEVEL"`
	Format  string `help:"Console log format" enum:"text,json" default:"text" env:"JCTOOL_LOG_FORMAT"`
	File    string `help:"Also write logs to this file" env:"JCTOOL_LOG_FILE"`
	RawFile string `help:"Write raw report dumps to this file" env:"JCTOOL_LOG_RAW_FILE"`
}

// Output is where commands print their results.
type Output struct {
	io.Writer
	// Terminal is set when Writer is an interactive terminal.
	Terminal bool
}

// Stdout returns an Output for os.Stdout.
func Stdout() *Output {
	return &Output{Writer: os.Stdout, Terminal: term.IsTerminal(int(os.Stdout.Fd()))}
}

// DeviceFlags select the controller a command talks to. Without an image or
// remote, a blank emulated controller is used.
type DeviceFlags struct {
	Image      string        `help:"Emulate a controller backed by this 512 KiB SPI flash image" type:"existingfile" env:"JCTOOL_DEVICE_IMAGE"`
	Remote     string        `help:"Connect to a bridge server at this address" env:"JCTOOL_DEVICE_REMOTE"`
	Password   string        `help:"Bridge password" env:"JCTOOL_DEVICE_PASSWORD"`
	ReportSize int           `help:"Output report size of the emulated controller" default:"49" env:"JCTOOL_DEVICE_REPORT_SIZE"`
	Timeout    time.Duration `help:"Per-exchange timeout for remote devices" default:"5s" env:"JCTOOL_DEVICE_TIMEOUT"`
}

// Open returns the selected transport. The closer is non-nil for remote
// devices.
func (d DeviceFlags) Open(ctx context.Context, logger *slog.Logger) (joycon.Transport, io.Closer, error) {
	if d.Remote != "" {
		c, err := bridge.Dial(ctx, d.Remote, d.Password, &bridge.ClientConfig{
			DialTimeout:     d.Timeout,
			ExchangeTimeout: d.Timeout,
			Logger:          logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to %s: %w", d.Remote, err)
		}
		return c, c, nil
	}

	var image []byte
	if d.Image != "" {
		b, err := os.ReadFile(d.Image)
		if err != nil {
			return nil, nil, err
		}
		image = b
	}
	emu, err := emulator.New(image, emulator.WithReportSize(d.ReportSize), emulator.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("using emulated controller", "image", d.Image)
	return emu, nil, nil
}

// Persist writes an emulated controller's flash back to Image. It does
// nothing for remote devices or when no image was given.
func (d DeviceFlags) Persist(t joycon.Transport) error {
	emu, ok := t.(*emulator.Controller)
	if !ok || d.Image == "" {
		return nil
	}
	return os.WriteFile(d.Image, emu.Flash(), 0o644)
}

// HexBytes decodes a hex argument; spaces, colons and a 0x prefix are ignored.
type HexBytes []byte

func (h *HexBytes) Decode(ctx *kong.DecodeContext) error {
	var s string
	if err := ctx.Scan.PopValueInto("hex", &s); err != nil {
		return err
	}
	b, err := ParseHex(s)
	if err != nil {
		return err
	}
	*h = b
	return nil
}

func ParseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "\t", "", "\n", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}

// Number accepts decimal or 0x-prefixed hex.
type Number uint32

func (n *Number) Decode(ctx *kong.DecodeContext) error {
	var s string
	if err := ctx.Scan.PopValueInto("number", &s); err != nil {
		return err
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*n = Number(v)
	return nil
}

func hexString(b []byte) string {
	return fmt.Sprintf("% X", b)
}
