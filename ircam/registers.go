package ircam

import "github.com/Alia5/jctool/protocol"

// MCU register addresses, little-endian page/register pairs as sent on the wire.
const (
	RegResolution      = 0x2E00
	RegExposureLSB     = 0x3001
	RegExposureMSB     = 0x3101
	RegMaxExposure     = 0x3201
	RegLEDs            = 0x1000
	RegDigitalGainLSB  = 0x2E01
	RegDigitalGainMSB  = 0x2F01
	RegExLightFilter   = 0x0E00
	RegWhitePixelStats = 0x4301
	RegIntensityWide   = 0x1100
	RegIntensityNarrow = 0x1200
	RegFlip            = 0x2D00
	RegDenoiseEnable   = 0x6701
	RegDenoiseEdge     = 0x6801
	RegDenoiseColor    = 0x6901
	RegBufferUpdate    = 0x0400
	RegFinalize        = 0x0700
)

// RegisterWrites returns the two MCU register batches that apply c. The
// second batch ends with the finalize register.
func (c Config) RegisterWrites() ([2]protocol.MCURegisterWrite, error) {
	if err := c.Validate(); err != nil {
		return [2]protocol.MCURegisterWrite{}, err
	}

	first := protocol.NewMCURegisterWrite(
		protocol.Register{Address: RegResolution, Value: c.Resolution},
		protocol.Register{Address: RegExposureLSB, Value: uint8(c.Exposure)},
		protocol.Register{Address: RegExposureMSB, Value: uint8(c.Exposure >> 8)},
		protocol.Register{Address: RegMaxExposure, Value: 0x00},
		protocol.Register{Address: RegLEDs, Value: c.LEDs},
		protocol.Register{Address: RegDigitalGainLSB, Value: (c.DigitalGain & 0x0F) << 4},
		protocol.Register{Address: RegDigitalGainMSB, Value: (c.DigitalGain & 0xF0) >> 4},
		protocol.Register{Address: RegExLightFilter, Value: c.ExLightFilter},
		protocol.Register{Address: RegWhitePixelStats, Value: 0xC8},
	)
	second := protocol.NewMCURegisterWrite(
		protocol.Register{Address: RegIntensityWide, Value: c.LEDIntensity.Wide},
		protocol.Register{Address: RegIntensityNarrow, Value: c.LEDIntensity.Narrow},
		protocol.Register{Address: RegFlip, Value: c.Flip},
		protocol.Register{Address: RegDenoiseEnable, Value: c.Denoise.Enable},
		protocol.Register{Address: RegDenoiseEdge, Value: c.Denoise.EdgeSmoothing},
		protocol.Register{Address: RegDenoiseColor, Value: c.Denoise.ColorInterpolation},
		protocol.Register{Address: RegBufferUpdate, Value: uint8(c.BufferUpdateTime)},
		protocol.Register{Address: RegFinalize, Value: 0x01},
	)
	return [2]protocol.MCURegisterWrite{first, second}, nil
}
