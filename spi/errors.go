package spi

import (
	"errors"
	"fmt"
)

var (
	ErrShortRead     = errors.New("short read")
	ErrPartialWrite  = errors.New("partial write")
	ErrReplyMismatch = errors.New("spi reply mismatch")
)

// ShortReadError reports a chunk whose reply carried fewer bytes than requested.
type ShortReadError struct {
	Offset    uint32
	Requested int
	Got       int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("%s at 0x%05X: requested %d bytes, got %d", ErrShortRead, e.Offset, e.Requested, e.Got)
}

func (e *ShortReadError) Unwrap() error { return ErrShortRead }

// PartialWriteError reports the chunk that failed. Chunks before it are
// already committed to flash.
type PartialWriteError struct {
	Offset    uint32
	Committed int
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s at 0x%05X after %d committed bytes: %v", ErrPartialWrite, e.Offset, e.Committed, e.Err)
}

func (e *PartialWriteError) Unwrap() []error { return []error{ErrPartialWrite, e.Err} }
