package protocol

import (
	"fmt"
	"io"
)

// Framer builds output reports and owns the 4-bit packet sequence of one
// controller session.
//
// Framer is not safe for concurrent use; callers issuing commands from
// several goroutines must serialize access.
type Framer struct {
	seq           uint8
	maxReportSize int
}

// NewFramer creates a Framer for a transport with the given report size.
// A size <= HeaderSize selects DefaultMaxReportSize.
func NewFramer(maxReportSize int) *Framer {
	if maxReportSize <= HeaderSize {
		maxReportSize = DefaultMaxReportSize
	}
	return &Framer{maxReportSize: maxReportSize}
}

// MaxPayload is the largest payload Frame accepts.
func (f *Framer) MaxPayload() int {
	return f.maxReportSize - HeaderSize
}

// NextSequence returns the current sequence value and advances it modulo 16.
func (f *Framer) NextSequence() uint8 {
	s := f.seq
	f.seq = (f.seq + 1) & SequenceMask
	return s
}

// Frame assembles a command packet:
//
//	[CMD][SEQ][RUMBLE_L(4)][RUMBLE_R(4)][PAYLOAD...]
//
// The sequence is only consumed when the packet is valid.
func (f *Framer) Frame(cmd byte, rumbleLeft, rumbleRight [4]byte, payload []byte) ([]byte, error) {
	if len(payload) > f.MaxPayload() {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(payload), f.MaxPayload())
	}

	pkt := make([]byte, 0, HeaderSize+len(payload))
	pkt = append(pkt, cmd, f.NextSequence())
	pkt = append(pkt, rumbleLeft[:]...)
	pkt = append(pkt, rumbleRight[:]...)
	pkt = append(pkt, payload...)
	return pkt, nil
}

// FrameSubcommand encodes sc and frames it as the packet payload.
func (f *Framer) FrameSubcommand(cmd byte, rumbleLeft, rumbleRight [4]byte, sc Subcommand) ([]byte, error) {
	payload, err := EncodeSubcommand(sc)
	if err != nil {
		return nil, err
	}
	return f.Frame(cmd, rumbleLeft, rumbleRight, payload)
}

// ParseResponseSequence returns the sequence nibble echoed in a response report.
func ParseResponseSequence(report []byte) (uint8, error) {
	if len(report) <= OffsetSequence {
		return 0, io.ErrUnexpectedEOF
	}
	return report[OffsetSequence] & SequenceMask, nil
}
