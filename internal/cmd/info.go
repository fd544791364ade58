package cmd

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"

	"github.com/Alia5/jctool/internal/log"
	"github.com/Alia5/jctool/joycon"
	"github.com/Alia5/jctool/spi"
	"github.com/Alia5/jctool/stick"
)

type InfoCmd struct {
	Device DeviceFlags `embed:"" prefix:"device."`
}

func (c *InfoCmd) Run(ctx context.Context, logger *slog.Logger, raw log.RawLogger, out *Output) error {
	t, closer, err := c.Device.Open(ctx, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	s := joycon.NewSession(t, logger, raw)

	info, err := s.DeviceInfo(ctx)
	if err != nil {
		return err
	}
	acc, err := spi.New(s, spi.WithLogger(logger))
	if err != nil {
		return err
	}
	serial, err := acc.ReadSerial(ctx)
	if err != nil {
		return err
	}
	if serial == "" {
		serial = "(none)"
	}

	p := &printer{w: out}
	p.printf("type:     %s\n", info.Type)
	p.printf("firmware: %d.%02X\n", info.FirmwareMajor, info.FirmwareMinor)
	p.printf("mac:      %s\n", info.MAC)
	p.printf("serial:   %s\n", serial)

	if info.ColorsInSPI {
		colors, err := acc.ReadColors(ctx)
		if err != nil {
			return err
		}
		p.printf("body:     %s\n", rgb(colors.Body))
		p.printf("buttons:  %s\n", rgb(colors.Buttons))
		if info.Type == joycon.TypePro {
			p.printf("grips:    %s %s\n", rgb(colors.LeftGrip), rgb(colors.RightGrip))
		}
	}

	for _, side := range sidesFor(info.Type) {
		factory, err := acc.ReadFactoryStickCalibration(ctx, side)
		if err != nil {
			return err
		}
		params, err := acc.ReadStickParams(ctx, side)
		if err != nil {
			return err
		}
		p.printf("%s stick factory: %s\n", side, calString(factory))
		user, ok, err := acc.ReadUserStickCalibration(ctx, side)
		if err != nil {
			return err
		}
		if ok {
			p.printf("%s stick user:    %s\n", side, calString(user))
		}
		p.printf("%s stick params:  dead zone %d, range ratio %d\n", side, params.DeadZone, params.RangeRatio)
	}
	return p.err
}

func sidesFor(t joycon.ControllerType) []spi.Side {
	switch t {
	case joycon.TypeLeftJoyCon:
		return []spi.Side{spi.Left}
	case joycon.TypeRightJoyCon:
		return []spi.Side{spi.Right}
	default:
		return []spi.Side{spi.Left, spi.Right}
	}
}

func rgb(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func calString(c stick.Calibration) string {
	return fmt.Sprintf("x %d -%d/+%d, y %d -%d/+%d",
		c.X.Center, c.X.MinBelow, c.X.MaxAbove, c.Y.Center, c.Y.MinBelow, c.Y.MaxAbove)
}

// printer keeps the first write error.
type printer struct {
	w   *Output
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
