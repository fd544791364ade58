// Package ircam validates and packs the IR camera configuration block and
// derives the MCU register writes that apply it.
package ircam

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ConfigSize is the packed size of a Config.
const ConfigSize = 21

// Resolution register values.
const (
	Resolution320x240 = 0x00
	Resolution160x120 = 0x50
	Resolution80x60   = 0x64
	Resolution40x30   = 0x69
)

// LED register bits.
const (
	LEDFlashlight    = 0x01
	LEDDisableWide   = 0x10 // leds 1/2
	LEDDisableNarrow = 0x20 // leds 3/4
	LEDStrobe        = 0x80

	ledMask = LEDFlashlight | LEDDisableWide | LEDDisableNarrow | LEDStrobe
)

const (
	ExLightFilterOff = 0x00
	ExLightFilterOn  = 0x03

	FlipNormal  = 0x00
	FlipRotated = 0x02

	// MaxExposure is 600us expressed in sensor exposure units.
	MaxExposure = 600 * exposureUnitsPerMilli / 1000

	exposureUnitsPerMilli = 31200

	MaxHandAnalysisMode = 0x05
)

var ErrInvalidIrConfigField = errors.New("invalid IR config field")

// FieldError names the field that failed validation.
type FieldError struct {
	Field  string
	Value  uint32
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s = 0x%X (%s)", ErrInvalidIrConfigField, e.Field, e.Value, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidIrConfigField }

// LEDIntensity packs into a u16: leds 1/2 in the high byte, leds 3/4 in the low byte.
type LEDIntensity struct {
	Wide   uint8
	Narrow uint8
}

// SubBytes is the three-byte packing used by the custom register and denoise
// fields: enable<<16 | edgeSmoothing<<8 | colorInterpolation.
type SubBytes struct {
	Enable             uint8
	EdgeSmoothing      uint8
	ColorInterpolation uint8
}

// Config is the IR sensor configuration.
type Config struct {
	Resolution            uint8
	Exposure              uint16
	LEDs                  uint8
	LEDIntensity          LEDIntensity
	DigitalGain           uint8
	ExLightFilter         uint8
	CustomRegister        SubBytes
	BufferUpdateTime      uint16
	HandAnalysisMode      uint8
	HandAnalysisThreshold uint8
	Denoise               SubBytes
	Flip                  uint8
}

// DefaultConfig matches the controller's power-on image transfer setup.
func DefaultConfig() Config {
	return Config{
		Resolution:            Resolution320x240,
		Exposure:              ExposureFromMicros(200),
		LEDIntensity:          LEDIntensity{Wide: 0x0F, Narrow: 0x10},
		DigitalGain:           0x01,
		ExLightFilter:         ExLightFilterOn,
		BufferUpdateTime:      0x32,
		HandAnalysisThreshold: 0x19,
		Denoise:               SubBytes{Enable: 1, EdgeSmoothing: 0x23, ColorInterpolation: 0x44},
		Flip:                  FlipNormal,
	}
}

// ExposureFromMicros converts microseconds into exposure register units.
func ExposureFromMicros(us uint32) uint16 {
	v := uint64(us) * exposureUnitsPerMilli / 1000
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

// Packed returns the u32 wire value.
func (s SubBytes) Packed() uint32 {
	return uint32(s.Enable)<<16 | uint32(s.EdgeSmoothing)<<8 | uint32(s.ColorInterpolation)
}

// Packed returns the u16 wire value.
func (l LEDIntensity) Packed() uint16 {
	return uint16(l.Wide)<<8 | uint16(l.Narrow)
}

func unpackSubBytes(v uint32) SubBytes {
	return SubBytes{Enable: uint8(v >> 16), EdgeSmoothing: uint8(v >> 8), ColorInterpolation: uint8(v)}
}

// Validate checks every field against its legal range.
func (c Config) Validate() error {
	switch c.Resolution {
	case Resolution320x240, Resolution160x120, Resolution80x60, Resolution40x30:
	default:
		return &FieldError{Field: "resolution", Value: uint32(c.Resolution), Reason: "unsupported resolution register"}
	}
	if c.Exposure > MaxExposure {
		return &FieldError{Field: "exposure", Value: uint32(c.Exposure), Reason: fmt.Sprintf("max 0x%X", MaxExposure)}
	}
	if c.LEDs&^ledMask != 0 {
		return &FieldError{Field: "leds", Value: uint32(c.LEDs), Reason: "unknown led bits"}
	}
	if c.DigitalGain == 0 {
		return &FieldError{Field: "digital_gain", Value: 0, Reason: "must be at least 1"}
	}
	if c.ExLightFilter != ExLightFilterOff && c.ExLightFilter != ExLightFilterOn {
		return &FieldError{Field: "ex_light_filter", Value: uint32(c.ExLightFilter), Reason: "must be 0x00 or 0x03"}
	}
	if c.CustomRegister.Enable > 1 {
		return &FieldError{Field: "custom_register.enable", Value: uint32(c.CustomRegister.Enable), Reason: "must be 0 or 1"}
	}
	if c.BufferUpdateTime > 0xFF {
		return &FieldError{Field: "buffer_update_time", Value: uint32(c.BufferUpdateTime), Reason: "register is 8 bits"}
	}
	if c.HandAnalysisMode > MaxHandAnalysisMode {
		return &FieldError{Field: "hand_analysis_mode", Value: uint32(c.HandAnalysisMode), Reason: fmt.Sprintf("max %d", MaxHandAnalysisMode)}
	}
	if c.Denoise.Enable > 1 {
		return &FieldError{Field: "denoise.enable", Value: uint32(c.Denoise.Enable), Reason: "must be 0 or 1"}
	}
	if c.Flip != FlipNormal && c.Flip != FlipRotated {
		return &FieldError{Field: "flip", Value: uint32(c.Flip), Reason: "must be 0 or 2"}
	}
	return nil
}

// Build validates c and packs it into the wire layout. Nothing is returned
// when validation fails.
func (c Config) Build() ([ConfigSize]byte, error) {
	var b [ConfigSize]byte
	if err := c.Validate(); err != nil {
		return b, err
	}
	b[0] = c.Resolution
	binary.LittleEndian.PutUint16(b[1:3], c.Exposure)
	b[3] = c.LEDs
	binary.LittleEndian.PutUint16(b[4:6], c.LEDIntensity.Packed())
	b[6] = c.DigitalGain
	b[7] = c.ExLightFilter
	binary.LittleEndian.PutUint32(b[8:12], c.CustomRegister.Packed())
	binary.LittleEndian.PutUint16(b[12:14], c.BufferUpdateTime)
	b[14] = c.HandAnalysisMode
	b[15] = c.HandAnalysisThreshold
	binary.LittleEndian.PutUint32(b[16:20], c.Denoise.Packed())
	b[20] = c.Flip
	return b, nil
}

// Parse unpacks and validates a packed configuration.
func Parse(b []byte) (Config, error) {
	if len(b) < ConfigSize {
		return Config{}, io.ErrUnexpectedEOF
	}
	intensity := binary.LittleEndian.Uint16(b[4:6])
	custom := binary.LittleEndian.Uint32(b[8:12])
	denoise := binary.LittleEndian.Uint32(b[16:20])
	if custom > 0xFFFFFF {
		return Config{}, &FieldError{Field: "custom_register", Value: custom, Reason: "top byte must be zero"}
	}
	if denoise > 0xFFFFFF {
		return Config{}, &FieldError{Field: "denoise", Value: denoise, Reason: "top byte must be zero"}
	}
	c := Config{
		Resolution:            b[0],
		Exposure:              binary.LittleEndian.Uint16(b[1:3]),
		LEDs:                  b[3],
		LEDIntensity:          LEDIntensity{Wide: uint8(intensity >> 8), Narrow: uint8(intensity)},
		DigitalGain:           b[6],
		ExLightFilter:         b[7],
		CustomRegister:        unpackSubBytes(custom),
		BufferUpdateTime:      binary.LittleEndian.Uint16(b[12:14]),
		HandAnalysisMode:      b[14],
		HandAnalysisThreshold: b[15],
		Denoise:               unpackSubBytes(denoise),
		Flip:                  b[20],
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
