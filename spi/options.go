package spi

import (
	"fmt"
	"log/slog"

	"github.com/Alia5/jctool/protocol"
)

// Progress is reported after every chunk.
type Progress struct {
	Offset uint32
	Done   int
	Total  int
}

// ProgressCallback receives transfer progress.
type ProgressCallback func(Progress)

type config struct {
	chunkSize int
	logger    *slog.Logger
	progress  ProgressCallback
}

func defaultConfig() config {
	return config{
		chunkSize: protocol.MaxSPIChunk,
		logger:    slog.New(slog.DiscardHandler),
	}
}

func (c config) validate() error {
	if c.chunkSize < 1 || c.chunkSize > protocol.MaxSPIChunk {
		return fmt.Errorf("%w: chunk size %d outside [1, %d]", protocol.ErrInvalidChunkSize, c.chunkSize, protocol.MaxSPIChunk)
	}
	return nil
}

// Option configures an Accessor.
type Option func(*config)

// WithChunkSize sets the largest number of bytes per SPI subcommand.
func WithChunkSize(n int) Option {
	return func(c *config) {
		c.chunkSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProgress sets a callback invoked after every transferred chunk.
func WithProgress(cb ProgressCallback) Option {
	return func(c *config) {
		c.progress = cb
	}
}
