package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/Alia5/jctool/internal/log"
	"github.com/Alia5/jctool/ircam"
	"github.com/Alia5/jctool/joycon"
	"github.com/Alia5/jctool/protocol"
	"github.com/alecthomas/kong"
)

type IRCmd struct {
	Build IRBuild `cmd:"" help:"Validate and pack an IR sensor configuration"`
}

var resolutions = map[string]uint8{
	"320x240": ircam.Resolution320x240,
	"160x120": ircam.Resolution160x120,
	"80x60":   ircam.Resolution80x60,
	"40x30":   ircam.Resolution40x30,
}

// IRSettings is the file and flag representation of an IR configuration.
type IRSettings struct {
	Resolution      string `json:"resolution" yaml:"resolution" toml:"resolution" help:"Sensor resolution" enum:"320x240,160x120,80x60,40x30" default:"320x240"`
	ExposureUs      uint32 `json:"exposure_us" yaml:"exposure_us" toml:"exposure_us" help:"Exposure time in microseconds (max 600)" default:"200"`
	LEDs            uint8  `json:"leds" yaml:"leds" toml:"leds" name:"leds" help:"LED control bits" default:"0"`
	IntensityWide   uint8  `json:"intensity_wide" yaml:"intensity_wide" toml:"intensity_wide" help:"Intensity of LEDs 1/2" default:"15"`
	IntensityNarrow uint8  `json:"intensity_narrow" yaml:"intensity_narrow" toml:"intensity_narrow" help:"Intensity of LEDs 3/4" default:"16"`
	DigitalGain     uint8  `json:"digital_gain" yaml:"digital_gain" toml:"digital_gain" help:"Digital gain (1..255)" default:"1"`
	LightFilter     bool   `json:"light_filter" yaml:"light_filter" toml:"light_filter" help:"External light filter" default:"true" negatable:""`
	BufferUpdate    uint8  `json:"buffer_update" yaml:"buffer_update" toml:"buffer_update" help:"Buffer update interval" default:"50"`
	HandMode        uint8  `json:"hand_mode" yaml:"hand_mode" toml:"hand_mode" help:"Hand analysis mode (0..5)" default:"0"`
	HandThreshold   uint8  `json:"hand_threshold" yaml:"hand_threshold" toml:"hand_threshold" help:"Hand analysis threshold" default:"25"`
	Denoise         bool   `json:"denoise" yaml:"denoise" toml:"denoise" help:"Enable denoise" default:"true" negatable:""`
	DenoiseEdge     uint8  `json:"denoise_edge" yaml:"denoise_edge" toml:"denoise_edge" help:"Denoise edge smoothing" default:"35"`
	DenoiseColor    uint8  `json:"denoise_color" yaml:"denoise_color" toml:"denoise_color" help:"Denoise color interpolation" default:"68"`
	Flip            bool   `json:"flip" yaml:"flip" toml:"flip" help:"Rotate the image 180 degrees"`
}

// Config converts the settings into an ircam.Config. Validation happens in
// Build.
func (s IRSettings) Config() (ircam.Config, error) {
	res, ok := resolutions[s.Resolution]
	if !ok {
		return ircam.Config{}, &ircam.FieldError{Field: "resolution", Reason: fmt.Sprintf("unknown resolution %q", s.Resolution)}
	}
	cfg := ircam.Config{
		Resolution:            res,
		Exposure:              ircam.ExposureFromMicros(s.ExposureUs),
		LEDs:                  s.LEDs,
		LEDIntensity:          ircam.LEDIntensity{Wide: s.IntensityWide, Narrow: s.IntensityNarrow},
		DigitalGain:           s.DigitalGain,
		ExLightFilter:         ircam.ExLightFilterOff,
		BufferUpdateTime:      uint16(s.BufferUpdate),
		HandAnalysisMode:      s.HandMode,
		HandAnalysisThreshold: s.HandThreshold,
		Denoise:               ircam.SubBytes{EdgeSmoothing: s.DenoiseEdge, ColorInterpolation: s.DenoiseColor},
		Flip:                  ircam.FlipNormal,
	}
	if s.LightFilter {
		cfg.ExLightFilter = ircam.ExLightFilterOn
	}
	if s.Denoise {
		cfg.Denoise.Enable = 1
	}
	if s.Flip {
		cfg.Flip = ircam.FlipRotated
	}
	return cfg, nil
}

// LoadIRSettings reads settings from a json, yaml or toml file, starting
// from base so that omitted keys keep their values.
func LoadIRSettings(path string, base IRSettings) (IRSettings, error) {
	s := base
	if err := decodeFile(path, &s); err != nil {
		return base, err
	}
	return s, nil
}

type IRBuild struct {
	Settings IRSettings `embed:""`

	From      string      `help:"Load settings from a json, yaml or toml file" type:"existingfile"`
	Registers bool        `help:"Also print the MCU register write subcommands"`
	Apply     bool        `help:"Send the configuration to a device"`
	Fragments uint8       `help:"Image transfer fragment count used with --apply" default:"63"`
	Device    DeviceFlags `embed:"" prefix:"device."`
}

func (b *IRBuild) Run(kctx *kong.Context, ctx context.Context, logger *slog.Logger, raw log.RawLogger, out *Output) error {
	settings, err := b.resolve(kctx)
	if err != nil {
		return err
	}
	cfg, err := settings.Config()
	if err != nil {
		return err
	}
	packed, err := cfg.Build()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out, hexString(packed[:])); err != nil {
		return err
	}

	if b.Registers {
		batches, err := cfg.RegisterWrites()
		if err != nil {
			return err
		}
		for _, batch := range batches {
			enc, err := protocol.EncodeSubcommand(batch)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(out, hexString(enc)); err != nil {
				return err
			}
		}
	}

	if !b.Apply {
		return nil
	}
	t, closer, err := b.Device.Open(ctx, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	s := joycon.NewSession(t, logger, raw)
	if err := s.SetMCUState(ctx, true); err != nil {
		return err
	}
	return s.ConfigureIR(ctx, protocol.IRModeImageTransfer, b.Fragments, cfg)
}

// resolve returns the flag settings, or the --from file with the flags
// given on the command line applied over it.
func (b *IRBuild) resolve(kctx *kong.Context) (IRSettings, error) {
	if b.From == "" {
		return b.Settings, nil
	}
	s, err := LoadIRSettings(b.From, b.Settings)
	if err != nil {
		return b.Settings, err
	}
	flags := reflect.ValueOf(&b.Settings).Elem()
	merged := reflect.ValueOf(&s).Elem()
	for _, p := range kctx.Path {
		if p.Flag == nil || !p.Flag.Target.CanAddr() {
			continue
		}
		addr := p.Flag.Target.UnsafeAddr()
		for i := range flags.NumField() {
			if flags.Field(i).UnsafeAddr() == addr {
				merged.Field(i).Set(flags.Field(i))
			}
		}
	}
	return s, nil
}
