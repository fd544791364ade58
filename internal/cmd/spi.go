package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Alia5/jctool/internal/log"
	"github.com/Alia5/jctool/joycon"
	"github.com/Alia5/jctool/spi"
)

type SPICmd struct {
	Read  SPIRead  `cmd:"" help:"Read a flash region"`
	Write SPIWrite `cmd:"" help:"Write a flash region"`
	Dump  SPIDump  `cmd:"" help:"Dump the whole flash to a file"`
}

// SPIFlags are shared by the SPI commands.
type SPIFlags struct {
	Device    DeviceFlags `embed:"" prefix:"device."`
	ChunkSize int         `help:"Bytes per SPI subcommand (1..29)" default:"29" env:"JCTOOL_SPI_CHUNK_SIZE"`
}

// spiTarget is an opened device with an SPI accessor on top.
type spiTarget struct {
	*spi.Accessor
	transport joycon.Transport
	closer    io.Closer
}

func (t spiTarget) Close() {
	if t.closer != nil {
		_ = t.closer.Close()
	}
}

func (f SPIFlags) open(ctx context.Context, logger *slog.Logger, raw log.RawLogger, opts ...spi.Option) (spiTarget, error) {
	t, closer, err := f.Device.Open(ctx, logger)
	if err != nil {
		return spiTarget{}, err
	}
	target := spiTarget{transport: t, closer: closer}
	opts = append([]spi.Option{spi.WithChunkSize(f.ChunkSize), spi.WithLogger(logger)}, opts...)
	target.Accessor, err = spi.New(joycon.NewSession(t, logger, raw), opts...)
	if err != nil {
		target.Close()
		return spiTarget{}, err
	}
	return target, nil
}

type SPIRead struct {
	Flags SPIFlags `embed:""`

	Offset Number `arg:"" help:"Flash offset"`
	Length Number `arg:"" help:"Byte count (max 65535)"`
	Out    string `help:"Write raw bytes to this file instead of stdout"`
}

func (r *SPIRead) Run(ctx context.Context, logger *slog.Logger, raw log.RawLogger, out *Output) error {
	if r.Length > 0xFFFF {
		return fmt.Errorf("length %d exceeds 65535", r.Length)
	}
	acc, err := r.Flags.open(ctx, logger, raw)
	if err != nil {
		return err
	}
	defer acc.Close()

	data, err := acc.Read(ctx, uint32(r.Offset), uint16(r.Length))
	if err != nil {
		return err
	}
	switch {
	case r.Out != "":
		return os.WriteFile(r.Out, data, 0o644)
	case out.Terminal:
		return hexDump(out, uint32(r.Offset), data)
	default:
		_, err = out.Write(data)
		return err
	}
}

// hexDump prints 16 bytes per line prefixed with the flash address.
func hexDump(w io.Writer, base uint32, data []byte) error {
	for i := 0; i < len(data); i += 16 {
		end := min(i+16, len(data))
		if _, err := fmt.Fprintf(w, "%05X: %s\n", base+uint32(i), hexString(data[i:end])); err != nil {
			return err
		}
	}
	return nil
}

type SPIWrite struct {
	Flags SPIFlags `embed:""`

	Offset Number   `arg:"" help:"Flash offset"`
	Data   HexBytes `help:"Bytes to write" xor:"source"`
	In     string   `help:"Read bytes from this file" type:"existingfile" xor:"source"`
	Yes    bool     `help:"Allow writes outside the user calibration area (0x8000-0x9FFF)"`
}

const (
	userAreaStart = 0x8000
	userAreaEnd   = 0xA000
)

var ErrProtectedArea = errors.New("write outside the user calibration area; pass --yes to force")

func (w *SPIWrite) Run(ctx context.Context, logger *slog.Logger, raw log.RawLogger, out *Output) error {
	data := []byte(w.Data)
	if w.In != "" {
		b, err := os.ReadFile(w.In)
		if err != nil {
			return err
		}
		data = b
	}
	if len(data) == 0 {
		return errors.New("nothing to write; use --data or --in")
	}
	end := uint64(w.Offset) + uint64(len(data))
	if end > spi.FlashSize {
		return fmt.Errorf("write of %d bytes at 0x%05X exceeds flash size", len(data), uint32(w.Offset))
	}
	if !w.Yes && (w.Offset < userAreaStart || end > userAreaEnd) {
		return ErrProtectedArea
	}

	acc, err := w.Flags.open(ctx, logger, raw)
	if err != nil {
		return err
	}
	defer acc.Close()

	werr := acc.Write(ctx, uint32(w.Offset), data)
	var pwe *spi.PartialWriteError
	if errors.As(werr, &pwe) {
		logger.Error("flash left partially written", "offset", fmt.Sprintf("0x%05X", pwe.Offset), "committed", pwe.Committed)
	}
	// Committed chunks are persisted even when a later chunk failed.
	if err := w.Flags.Device.Persist(acc.transport); err != nil {
		return errors.Join(werr, err)
	}
	if werr != nil {
		return werr
	}
	_, err = fmt.Fprintf(out, "wrote %d bytes at 0x%05X\n", len(data), uint32(w.Offset))
	return err
}

type SPIDump struct {
	Flags SPIFlags `embed:""`

	Out string `arg:"" help:"Destination file"`
}

func (d *SPIDump) Run(ctx context.Context, logger *slog.Logger, raw log.RawLogger, out *Output) error {
	var last int
	progress := spi.WithProgress(func(p spi.Progress) {
		pct := p.Done * 100 / p.Total
		if pct/10 != last/10 {
			logger.Info("dumping flash", "percent", pct)
		}
		last = pct
	})
	acc, err := d.Flags.open(ctx, logger, raw, progress)
	if err != nil {
		return err
	}
	defer acc.Close()

	f, err := os.Create(d.Out)
	if err != nil {
		return err
	}
	sum, err := acc.Dump(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s blake2b-256 %x\n", d.Out, sum)
	return err
}
