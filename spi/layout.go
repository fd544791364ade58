package spi

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"io"

	"github.com/Alia5/jctool/stick"
	"golang.org/x/crypto/blake2b"
)

// FlashSize is the size of the controller's SPI flash.
const FlashSize = 0x80000

// Known flash locations.
const (
	AddrSerial = 0x6000
	SerialSize = 16

	AddrColors = 0x6050
	ColorsSize = 12

	AddrFactoryLeftStick  = 0x603D
	AddrFactoryRightStick = 0x6046

	AddrLeftStickParams  = 0x6086
	AddrRightStickParams = 0x6098

	AddrUserLeftStick  = 0x8010
	AddrUserRightStick = 0x801B
)

// UserCalMagic marks a user calibration slot that holds data.
var UserCalMagic = [2]byte{0xB2, 0xA1}

// Side selects the left or right stick.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Colors are the body, button and grip colors stored in flash.
type Colors struct {
	Body      color.RGBA
	Buttons   color.RGBA
	LeftGrip  color.RGBA
	RightGrip color.RGBA
}

// ReadSerial returns the serial number. Controllers without one store 0xFF
// bytes and yield an empty string.
func (a *Accessor) ReadSerial(ctx context.Context) (string, error) {
	b, err := a.Read(ctx, AddrSerial, SerialSize)
	if err != nil {
		return "", fmt.Errorf("read serial: %w", err)
	}
	if b[0] >= 0x80 {
		return "", nil
	}
	return string(bytes.TrimRight(b, "\x00")), nil
}

func (a *Accessor) ReadColors(ctx context.Context) (Colors, error) {
	b, err := a.Read(ctx, AddrColors, ColorsSize)
	if err != nil {
		return Colors{}, fmt.Errorf("read colors: %w", err)
	}
	rgb := func(p []byte) color.RGBA { return color.RGBA{R: p[0], G: p[1], B: p[2], A: 0xFF} }
	return Colors{
		Body:      rgb(b[0:3]),
		Buttons:   rgb(b[3:6]),
		LeftGrip:  rgb(b[6:9]),
		RightGrip: rgb(b[9:12]),
	}, nil
}

// ReadFactoryStickCalibration returns the factory calibration for one stick.
func (a *Accessor) ReadFactoryStickCalibration(ctx context.Context, side Side) (stick.Calibration, error) {
	addr := uint32(AddrFactoryLeftStick)
	if side == Right {
		addr = AddrFactoryRightStick
	}
	b, err := a.Read(ctx, addr, stick.CalibrationSize)
	if err != nil {
		return stick.Calibration{}, fmt.Errorf("read %s factory calibration: %w", side, err)
	}
	return parseCalibration(side, b)
}

// ReadUserStickCalibration returns the user calibration for one stick. ok is
// false when the slot does not carry UserCalMagic.
func (a *Accessor) ReadUserStickCalibration(ctx context.Context, side Side) (cal stick.Calibration, ok bool, err error) {
	addr := uint32(AddrUserLeftStick)
	if side == Right {
		addr = AddrUserRightStick
	}
	b, err := a.Read(ctx, addr, uint16(len(UserCalMagic))+stick.CalibrationSize)
	if err != nil {
		return stick.Calibration{}, false, fmt.Errorf("read %s user calibration: %w", side, err)
	}
	if b[0] != UserCalMagic[0] || b[1] != UserCalMagic[1] {
		return stick.Calibration{}, false, nil
	}
	cal, err = parseCalibration(side, b[len(UserCalMagic):])
	if err != nil {
		return stick.Calibration{}, false, err
	}
	return cal, true, nil
}

func (a *Accessor) ReadStickParams(ctx context.Context, side Side) (stick.Params, error) {
	addr := uint32(AddrLeftStickParams)
	if side == Right {
		addr = AddrRightStickParams
	}
	b, err := a.Read(ctx, addr, stick.ParamsSize)
	if err != nil {
		return stick.Params{}, fmt.Errorf("read %s stick params: %w", side, err)
	}
	return stick.ParseParams(b)
}

func parseCalibration(side Side, b []byte) (stick.Calibration, error) {
	if side == Right {
		return stick.ParseRightCalibration(b)
	}
	return stick.ParseLeftCalibration(b)
}

// Dump copies the whole flash to w and returns the BLAKE2b-256 digest of the
// bytes written. Progress is reported against FlashSize.
func (a *Accessor) Dump(ctx context.Context, w io.Writer) ([blake2b.Size256]byte, error) {
	var sum [blake2b.Size256]byte
	h, err := blake2b.New256(nil)
	if err != nil {
		return sum, err
	}
	out := io.MultiWriter(w, h)

	for off := 0; off < FlashSize; {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("dump cancelled at 0x%05X: %w", off, err)
		}
		n := min(FlashSize-off, a.config.chunkSize)
		chunk, err := a.readChunk(ctx, uint32(off), n)
		if err != nil {
			return sum, fmt.Errorf("dump: %w", err)
		}
		if _, err := out.Write(chunk); err != nil {
			return sum, fmt.Errorf("dump write: %w", err)
		}
		off += n
		a.reportProgress(uint32(off-n), off, FlashSize)
	}

	copy(sum[:], h.Sum(nil))
	a.config.logger.Info("spi dump complete", "bytes", FlashSize, "blake2b", fmt.Sprintf("%x", sum[:8]))
	return sum, nil
}
