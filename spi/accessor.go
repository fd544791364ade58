// Package spi implements chunked access to the controller's SPI flash on top
// of the SPI read/write subcommands.
package spi

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/Alia5/jctool/protocol"
)

// Subcommander sends one subcommand and returns the controller's reply.
// Retries and timeouts belong to the implementation.
type Subcommander interface {
	Subcommand(ctx context.Context, sc protocol.Subcommand) (protocol.Reply, error)
}

// Accessor reads and writes SPI flash in chunks that fit one subcommand.
type Accessor struct {
	sc     Subcommander
	config config
}

// New creates an Accessor. It fails with protocol.ErrInvalidChunkSize when
// WithChunkSize is outside [1, protocol.MaxSPIChunk].
func New(sc Subcommander, opts ...Option) (*Accessor, error) {
	if sc == nil {
		return nil, fmt.Errorf("spi: nil subcommander")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Accessor{sc: sc, config: cfg}, nil
}

// ChunkSize returns the configured maximum bytes per subcommand.
func (a *Accessor) ChunkSize() int { return a.config.chunkSize }

// Read reads length bytes starting at offset. One SPI read subcommand is
// issued per chunk, in ascending offset order.
func (a *Accessor) Read(ctx context.Context, offset uint32, length uint16) ([]byte, error) {
	total := int(length)
	out := make([]byte, 0, total)

	for len(out) < total {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("spi read cancelled: %w", err)
		}
		off := offset + uint32(len(out))
		n := min(total-len(out), a.config.chunkSize)

		chunk, err := a.readChunk(ctx, off, n)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		a.reportProgress(off, len(out), total)
	}

	a.config.logger.Debug("spi read", "offset", fmt.Sprintf("0x%05X", offset), "length", total)
	return out, nil
}

func (a *Accessor) readChunk(ctx context.Context, off uint32, n int) ([]byte, error) {
	reply, err := a.sc.Subcommand(ctx, protocol.NewSPIRead(off, uint8(n)))
	if err != nil {
		return nil, fmt.Errorf("spi read at 0x%05X: %w", off, err)
	}
	if reply.ID != protocol.SubcmdSPIRead {
		return nil, fmt.Errorf("%w: reply to %s at 0x%05X", ErrReplyMismatch, reply.ID, off)
	}

	// Reply data echoes offset and size before the flash bytes.
	const hdr = 5
	if len(reply.Data) < hdr {
		return nil, &ShortReadError{Offset: off, Requested: n, Got: 0}
	}
	if echo := binary.LittleEndian.Uint32(reply.Data[0:4]); echo != off {
		return nil, fmt.Errorf("%w: requested 0x%05X, reply for 0x%05X", ErrReplyMismatch, off, echo)
	}
	got := min(int(reply.Data[4]), len(reply.Data)-hdr)
	if got < n {
		return nil, &ShortReadError{Offset: off, Requested: n, Got: got}
	}
	return append([]byte(nil), reply.Data[hdr:hdr+n]...), nil
}

// Write writes data starting at offset. The transfer is not atomic: when a
// chunk fails, the chunks before it stay committed and the returned
// *PartialWriteError reports how many bytes were written.
func (a *Accessor) Write(ctx context.Context, offset uint32, data []byte) error {
	written := 0
	for written < len(data) {
		off := offset + uint32(written)
		if err := ctx.Err(); err != nil {
			return &PartialWriteError{Offset: off, Committed: written, Err: err}
		}
		n := min(len(data)-written, a.config.chunkSize)

		if err := a.writeChunk(ctx, off, data[written:written+n]); err != nil {
			a.config.logger.Warn("spi write chunk failed",
				"offset", fmt.Sprintf("0x%05X", off),
				"committed", written,
				"error", err)
			return &PartialWriteError{Offset: off, Committed: written, Err: err}
		}
		written += n
		a.reportProgress(off, written, len(data))
	}

	a.config.logger.Debug("spi write", "offset", fmt.Sprintf("0x%05X", offset), "length", len(data))
	return nil
}

func (a *Accessor) writeChunk(ctx context.Context, off uint32, chunk []byte) error {
	reply, err := a.sc.Subcommand(ctx, protocol.NewSPIWrite(off, chunk))
	if err != nil {
		return err
	}
	if reply.ID != protocol.SubcmdSPIWrite {
		return fmt.Errorf("%w: reply to %s", ErrReplyMismatch, reply.ID)
	}
	if !reply.Ack() {
		return fmt.Errorf("write not acknowledged (ack 0x%02X)", reply.AckByte)
	}
	if len(reply.Data) > 0 && reply.Data[0] != 0 {
		return fmt.Errorf("write rejected with status 0x%02X", reply.Data[0])
	}
	return nil
}

func (a *Accessor) reportProgress(off uint32, done, total int) {
	if a.config.progress != nil {
		a.config.progress(Progress{Offset: off, Done: done, Total: total})
	}
}
