package protocol

import "errors"

var (
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrInvalidChunkSize     = errors.New("invalid chunk size")
	ErrTooManyRegisterPairs = errors.New("too many register pairs")
	ErrUnknownSubcommand    = errors.New("unknown subcommand")
	ErrMCUChecksum          = errors.New("mcu checksum mismatch")
	ErrUnexpectedReport     = errors.New("unexpected report id")
)
