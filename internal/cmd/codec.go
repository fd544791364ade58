package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Alia5/jctool/internal/log"
	"github.com/Alia5/jctool/joycon"
	"github.com/Alia5/jctool/protocol"
	"github.com/Alia5/jctool/rumble"
	"github.com/Alia5/jctool/stick"
)

type RumbleCmd struct {
	Encode RumbleEncode `cmd:"" help:"Print the 8 rumble bytes for a left/right sample"`
	Decode RumbleDecode `cmd:"" help:"Decode 4 or 8 rumble bytes"`
	Send   RumbleSend   `cmd:"" help:"Send a rumble-only packet to a device"`
	Play   RumblePlay   `cmd:"" help:"Play a rumble pattern file on a device"`
}

// MotorFlags describe one motor's sample.
type MotorFlags struct {
	HighFreq float64 `help:"High band frequency (Hz)" default:"320"`
	HighAmp  float64 `help:"High band amplitude (0..1)" default:"0"`
	LowFreq  float64 `help:"Low band frequency (Hz)" default:"160"`
	LowAmp   float64 `help:"Low band amplitude (0..1)" default:"0"`
}

func (m MotorFlags) Sample() rumble.Sample {
	return rumble.Sample{HighFreq: m.HighFreq, HighAmp: m.HighAmp, LowFreq: m.LowFreq, LowAmp: m.LowAmp}
}

type RumbleEncode struct {
	Left  MotorFlags `embed:"" prefix:"left."`
	Right MotorFlags `embed:"" prefix:"right."`
}

func (r *RumbleEncode) Run(out *Output) error {
	b := rumble.EncodeReport(r.Left.Sample(), r.Right.Sample())
	_, err := fmt.Fprintln(out, hexString(b[:]))
	return err
}

type RumbleDecode struct {
	Code HexBytes `arg:"" help:"4 bytes (one motor) or 8 bytes (left then right)"`
}

func (r *RumbleDecode) Run(out *Output) error {
	if len(r.Code) != 4 && len(r.Code) != 8 {
		return fmt.Errorf("rumble code must be 4 or 8 bytes, got %d", len(r.Code))
	}
	for i := 0; i < len(r.Code); i += 4 {
		s := rumble.Decode([4]byte(r.Code[i : i+4]))
		if _, err := fmt.Fprintf(out, "high %.2f Hz @ %.2f, low %.2f Hz @ %.2f\n", s.HighFreq, s.HighAmp, s.LowFreq, s.LowAmp); err != nil {
			return err
		}
	}
	return nil
}

type RumbleSend struct {
	Device DeviceFlags `embed:"" prefix:"device."`
	Left   MotorFlags  `embed:"" prefix:"left."`
	Right  MotorFlags  `embed:"" prefix:"right."`
}

func (r *RumbleSend) Run(ctx context.Context, logger *slog.Logger, raw log.RawLogger, out *Output) error {
	t, closer, err := r.Device.Open(ctx, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	s := joycon.NewSession(t, logger, raw)
	if err := s.EnableVibration(ctx, true); err != nil {
		return err
	}
	in, err := s.Rumble(ctx, r.Left.Sample(), r.Right.Sample())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "sent; device timer %d, battery %d\n", in.Timer, in.Battery)
	return err
}

type StickCmd struct {
	Decode StickDecode `cmd:"" help:"Decode a 3-byte stick sample"`
	Encode StickEncode `cmd:"" help:"Encode two 12-bit axis values"`
}

type StickDecode struct {
	Sample HexBytes `arg:"" help:"3 bytes, or a multiple of 3 for calibration blocks"`
}

func (s *StickDecode) Run(out *Output) error {
	values, err := stick.DecodeParams(s.Sample)
	if err != nil {
		return err
	}
	for i := 0; i < len(values); i += 2 {
		if _, err := fmt.Fprintf(out, "x=%d (0x%03X) y=%d (0x%03X)\n", values[i], values[i], values[i+1], values[i+1]); err != nil {
			return err
		}
	}
	return nil
}

type StickEncode struct {
	X Number `arg:"" help:"X axis (0..4095)"`
	Y Number `arg:"" help:"Y axis (0..4095)"`
}

func (s *StickEncode) Run(out *Output) error {
	if s.X > 0xFFFF || s.Y > 0xFFFF {
		return stick.ErrAxisOutOfRange
	}
	b, err := stick.Encode(uint16(s.X), uint16(s.Y))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hexString(b[:]))
	return err
}

type SubcmdCmd struct {
	Decode    SubcmdDecode    `cmd:"" help:"Decode a subcommand payload or a full command packet"`
	EncodeSPI SubcmdEncodeSPI `cmd:"" name:"encode-spi" help:"Frame an SPI read or write command packet"`
	Send      SubcmdSend      `cmd:"" help:"Send a raw subcommand to a device and print the reply"`
}

type SubcmdDecode struct {
	Payload HexBytes `arg:"" help:"Tag byte and body, or a 0x01 command packet with --packet"`
	Packet  bool     `help:"Input is a full command packet (header is skipped)"`
}

func (s *SubcmdDecode) Run(out *Output) error {
	payload := []byte(s.Payload)
	if s.Packet {
		seq, err := protocol.ParseResponseSequence(payload)
		if err != nil {
			return err
		}
		if len(payload) < protocol.HeaderSize {
			return fmt.Errorf("packet shorter than %d byte header", protocol.HeaderSize)
		}
		if _, err := fmt.Fprintf(out, "cmd 0x%02X seq %d\n", payload[protocol.OffsetCmd], seq); err != nil {
			return err
		}
		payload = payload[protocol.OffsetPayload:]
	}
	sc, err := protocol.DecodeSubcommand(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s %+v\n", sc.ID(), sc)
	return err
}

type SubcmdEncodeSPI struct {
	Offset   Number   `help:"Flash offset" required:""`
	Length   uint8    `help:"Bytes to read (1..29)"`
	Write    HexBytes `help:"Bytes to write instead of reading"`
	Sequence uint8    `help:"Packet sequence number (0..15)"`
}

func (s *SubcmdEncodeSPI) Run(out *Output) error {
	var sc protocol.SPIAccess
	switch {
	case len(s.Write) > 0 && s.Length != 0:
		return errors.New("--length and --write are mutually exclusive")
	case len(s.Write) > 0:
		sc = protocol.NewSPIWrite(uint32(s.Offset), s.Write)
	default:
		sc = protocol.NewSPIRead(uint32(s.Offset), s.Length)
	}
	if len(s.Write) > protocol.MaxSPIChunk {
		return fmt.Errorf("%w: %d bytes, max %d", protocol.ErrInvalidChunkSize, len(s.Write), protocol.MaxSPIChunk)
	}

	f := protocol.NewFramer(protocol.DefaultMaxReportSize)
	for i := uint8(0); i < s.Sequence&protocol.SequenceMask; i++ {
		f.NextSequence()
	}
	pkt, err := f.FrameSubcommand(protocol.CmdRumbleSubcommand, rumble.IdleCode, rumble.IdleCode, sc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hexString(pkt))
	return err
}
