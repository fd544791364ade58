package protocol

import (
	"fmt"
	"io"
)

// Reply is a parsed 0x21 subcommand reply report.
type Reply struct {
	Timer      uint8
	Battery    uint8 // high nibble: level/charging, low nibble: connection info
	Buttons    [3]byte
	LeftStick  [3]byte
	RightStick [3]byte
	Vibrator   uint8
	AckByte    uint8
	ID         SubcommandID
	Data       []byte
}

// Ack reports whether the controller accepted the subcommand.
func (r Reply) Ack() bool {
	return r.AckByte&AckMask != 0
}

// ParseReply decodes a subcommand reply report. Data aliases report.
func ParseReply(report []byte) (Reply, error) {
	if len(report) < ReplyOffsetData {
		return Reply{}, io.ErrUnexpectedEOF
	}
	if report[0] != ReportSubcommandReply {
		return Reply{}, fmt.Errorf("%w: 0x%02X", ErrUnexpectedReport, report[0])
	}

	r := Reply{
		Timer:    report[ReplyOffsetTimer],
		Battery:  report[ReplyOffsetBattery],
		Vibrator: report[ReplyOffsetVibrator],
		AckByte:  report[ReplyOffsetAck],
		ID:       SubcommandID(report[ReplyOffsetSubcommandID]),
		Data:     report[ReplyOffsetData:],
	}
	copy(r.Buttons[:], report[ReplyOffsetButtons:ReplyOffsetButtons+3])
	copy(r.LeftStick[:], report[ReplyOffsetLeftStick:ReplyOffsetLeftStick+3])
	copy(r.RightStick[:], report[ReplyOffsetRightStick:ReplyOffsetRightStick+3])
	return r, nil
}

// BuildReply encodes a reply report; used by emulated devices.
func BuildReply(timer uint8, ack uint8, id SubcommandID, data []byte) []byte {
	b := make([]byte, ReplyOffsetData+len(data))
	b[0] = ReportSubcommandReply
	b[ReplyOffsetTimer] = timer
	b[ReplyOffsetBattery] = 0x8E
	b[ReplyOffsetVibrator] = 0x80
	b[ReplyOffsetAck] = ack
	b[ReplyOffsetSubcommandID] = byte(id)
	copy(b[ReplyOffsetData:], data)
	return b
}
