package joycon

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Alia5/jctool/protocol"
	"github.com/Alia5/jctool/stick"
)

// Buttons packs the three button bytes: right in bits 0-7, shared in 8-15,
// left in 16-23.
type Buttons uint32

const (
	ButtonY  Buttons = 1 << 0
	ButtonX  Buttons = 1 << 1
	ButtonB  Buttons = 1 << 2
	ButtonA  Buttons = 1 << 3
	ButtonRS Buttons = 1 << 4 // SR on the right Joy-Con
	ButtonRL Buttons = 1 << 5 // SL on the right Joy-Con
	ButtonR  Buttons = 1 << 6
	ButtonZR Buttons = 1 << 7

	ButtonMinus        Buttons = 1 << 8
	ButtonPlus         Buttons = 1 << 9
	ButtonRStick       Buttons = 1 << 10
	ButtonLStick       Buttons = 1 << 11
	ButtonHome         Buttons = 1 << 12
	ButtonCapture      Buttons = 1 << 13
	ButtonChargingGrip Buttons = 1 << 15

	ButtonDown  Buttons = 1 << 16
	ButtonUp    Buttons = 1 << 17
	ButtonRight Buttons = 1 << 18
	ButtonLeft  Buttons = 1 << 19
	ButtonLS    Buttons = 1 << 20 // SR on the left Joy-Con
	ButtonLL    Buttons = 1 << 21 // SL on the left Joy-Con
	ButtonL     Buttons = 1 << 22
	ButtonZL    Buttons = 1 << 23
)

// Has reports whether every bit of b is set.
func (bs Buttons) Has(b Buttons) bool { return bs&b == b }

// StickSample is one raw 12-bit stick reading.
type StickSample struct {
	X, Y uint16
}

// IMUSample is one accelerometer + gyroscope frame in raw sensor units.
type IMUSample struct {
	Accel [3]int16
	Gyro  [3]int16
}

// InputReport is the common header of the standard input reports, plus the
// IMU frames of a full report.
type InputReport struct {
	ID         uint8
	Timer      uint8
	Battery    uint8 // 0..8, even values; 8 is full
	Charging   bool
	Connection uint8
	Buttons    Buttons
	LeftStick  StickSample
	RightStick StickSample
	Vibrator   uint8
	IMU        []IMUSample
}

const (
	inputHeaderSize = 13
	imuOffset       = 13
	imuFrameSize    = 12
	imuFrames       = 3
)

// ParseInputReport decodes a 0x21, 0x30 or 0x31 input report. IMU frames are
// only decoded from 0x30/0x31 reports long enough to carry them.
func ParseInputReport(report []byte) (InputReport, error) {
	if len(report) < inputHeaderSize {
		return InputReport{}, io.ErrUnexpectedEOF
	}
	switch report[0] {
	case protocol.ReportSubcommandReply, protocol.ReportStandardFull, protocol.ReportNFCIR:
	default:
		return InputReport{}, fmt.Errorf("%w: 0x%02X", protocol.ErrUnexpectedReport, report[0])
	}

	bat := report[protocol.ReplyOffsetBattery]
	r := InputReport{
		ID:         report[0],
		Timer:      report[protocol.ReplyOffsetTimer],
		Battery:    bat >> 5 << 1,
		Charging:   bat&0x10 != 0,
		Connection: bat & 0x0F,
		Buttons: Buttons(report[protocol.ReplyOffsetButtons]) |
			Buttons(report[protocol.ReplyOffsetButtons+1])<<8 |
			Buttons(report[protocol.ReplyOffsetButtons+2])<<16,
		Vibrator: report[protocol.ReplyOffsetVibrator],
	}
	r.LeftStick = decodeStick(report[protocol.ReplyOffsetLeftStick:])
	r.RightStick = decodeStick(report[protocol.ReplyOffsetRightStick:])

	if r.ID != protocol.ReportSubcommandReply && len(report) >= imuOffset+imuFrames*imuFrameSize {
		r.IMU = make([]IMUSample, imuFrames)
		for i := range r.IMU {
			f := report[imuOffset+i*imuFrameSize:]
			for axis := 0; axis < 3; axis++ {
				r.IMU[i].Accel[axis] = int16(binary.LittleEndian.Uint16(f[axis*2:]))
				r.IMU[i].Gyro[axis] = int16(binary.LittleEndian.Uint16(f[6+axis*2:]))
			}
		}
	}
	return r, nil
}

func decodeStick(b []byte) StickSample {
	x, y := stick.Decode([3]byte{b[0], b[1], b[2]})
	return StickSample{X: x, Y: y}
}
