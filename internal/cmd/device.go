package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Alia5/jctool/internal/log"
	"github.com/Alia5/jctool/joycon"
	"github.com/Alia5/jctool/rumble"
)

type StatusCmd struct {
	Device DeviceFlags `embed:"" prefix:"device."`
}

func (c *StatusCmd) Run(ctx context.Context, logger *slog.Logger, raw log.RawLogger, out *Output) error {
	t, closer, err := c.Device.Open(ctx, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	s := joycon.NewSession(t, logger, raw)

	bat, err := s.BatteryVoltage(ctx)
	if err != nil {
		return err
	}
	temp, err := s.Temperature(ctx)
	if err != nil {
		return err
	}
	p := &printer{w: out}
	p.printf("battery:     %.0f mV (%d%%)\n", bat.MilliVolts(), bat.Percent())
	p.printf("temperature: %.1f C\n", temp)
	return p.err
}

type SubcmdSend struct {
	Device  DeviceFlags `embed:"" prefix:"device."`
	Payload HexBytes    `arg:"" help:"Subcommand id followed by its arguments"`
}

func (c *SubcmdSend) Run(ctx context.Context, logger *slog.Logger, raw log.RawLogger, out *Output) error {
	t, closer, err := c.Device.Open(ctx, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	s := joycon.NewSession(t, logger, raw)

	reply, err := s.SubcommandRaw(ctx, c.Payload)
	if err != nil && !errors.Is(err, joycon.ErrNack) {
		return err
	}
	p := &printer{w: out}
	p.printf("ack 0x%02X id 0x%02X\n", reply.AckByte, uint8(reply.ID))
	p.printf("%s\n", hexString(trimZeros(reply.Data)))
	return errors.Join(err, p.err)
}

// trimZeros drops the zero padding after the last data byte.
func trimZeros(b []byte) []byte {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return b[:n]
}

// MotorFile is one motor's sample in a rumble pattern file. Omitted
// fields keep the neutral sample's value.
type MotorFile struct {
	HighFreq *float64 `json:"high_freq" yaml:"high_freq" toml:"high_freq"`
	HighAmp  *float64 `json:"high_amp" yaml:"high_amp" toml:"high_amp"`
	LowFreq  *float64 `json:"low_freq" yaml:"low_freq" toml:"low_freq"`
	LowAmp   *float64 `json:"low_amp" yaml:"low_amp" toml:"low_amp"`
}

func (m *MotorFile) sample() rumble.Sample {
	s := rumble.Neutral
	if m == nil {
		return s
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&s.HighFreq, m.HighFreq)
	set(&s.HighAmp, m.HighAmp)
	set(&s.LowFreq, m.LowFreq)
	set(&s.LowAmp, m.LowAmp)
	return s
}

// StepFile is one step of a rumble pattern file: either a tone played on
// both motors or explicit per-motor samples.
type StepFile struct {
	Left   *MotorFile `json:"left" yaml:"left" toml:"left"`
	Right  *MotorFile `json:"right" yaml:"right" toml:"right"`
	ToneHz float64    `json:"tone_hz" yaml:"tone_hz" toml:"tone_hz"`
	Amp    float64    `json:"amp" yaml:"amp" toml:"amp"`
	Ms     int        `json:"ms" yaml:"ms" toml:"ms"`
}

// PatternFile is the file form of a rumble.Pattern.
type PatternFile struct {
	Steps      []StepFile `json:"steps" yaml:"steps" toml:"steps"`
	LoopStart  int        `json:"loop_start" yaml:"loop_start" toml:"loop_start"`
	LoopEnd    int        `json:"loop_end" yaml:"loop_end" toml:"loop_end"`
	LoopTimes  int        `json:"loop_times" yaml:"loop_times" toml:"loop_times"`
	LoopWaitMs int        `json:"loop_wait_ms" yaml:"loop_wait_ms" toml:"loop_wait_ms"`
}

func (f PatternFile) Pattern() rumble.Pattern {
	p := rumble.Pattern{
		Steps:     make([]rumble.Step, 0, len(f.Steps)),
		LoopStart: f.LoopStart,
		LoopEnd:   f.LoopEnd,
		LoopTimes: f.LoopTimes,
		LoopWait:  time.Duration(f.LoopWaitMs) * time.Millisecond,
	}
	for _, st := range f.Steps {
		d := time.Duration(st.Ms) * time.Millisecond
		if st.ToneHz > 0 {
			p.Steps = append(p.Steps, rumble.Tone(st.ToneHz, st.Amp, d))
			continue
		}
		p.Steps = append(p.Steps, rumble.Step{Left: st.Left.sample(), Right: st.Right.sample(), Duration: d})
	}
	return p
}

// LoadPattern reads a rumble pattern from a json, yaml or toml file and
// expands its loop.
func LoadPattern(path string) ([]rumble.Step, error) {
	var f PatternFile
	if err := decodeFile(path, &f); err != nil {
		return nil, err
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("%w: %s has no steps", rumble.ErrInvalidPattern, path)
	}
	return f.Pattern().Expand()
}

type RumblePlay struct {
	Device DeviceFlags `embed:"" prefix:"device."`
	File   string      `arg:"" help:"Pattern file (json, yaml or toml)" type:"existingfile"`
}

func (r *RumblePlay) Run(ctx context.Context, logger *slog.Logger, raw log.RawLogger, out *Output) error {
	steps, err := LoadPattern(r.File)
	if err != nil {
		return err
	}
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
	logger.Info("playing rumble pattern", "file", r.File, "steps", len(steps))
	if err := s.PlayRumble(ctx, steps); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "played %d steps in %s\n", len(steps), rumble.TotalDuration(steps))
	return err
}
