package rumble

// Band limits in Hz.
const (
	HighFreqMin = 81.75
	HighFreqMax = 1252.57
	LowFreqMin  = 40.87
	LowFreqMax  = 626.28
)

// Actuator safety ceilings. Codes above these damage the linear resonant actuators.
const (
	HighAmpCeiling = 0xC8
	LowAmpCeiling  = 0x72

	// LowAmpFloor is the low band code for zero amplitude.
	LowAmpFloor = 0x40
)

const (
	// Frequency code window: enc = round(log2(f/10) * 32).
	highFreqEncMin = 0x61
	highFreqEncMax = 0xDF
	highFreqBase   = 0x60
	lowFreqEncMin  = 0x41
	lowFreqEncMax  = 0xBF
	lowFreqBase    = 0x40

	// AmpSteps is the number of linear amplitude steps between 0.0 and 1.0.
	AmpSteps = 100

	highFreqExtBit = 0x01
	lowAmpHalfBit  = 0x80
)

// Neutral is the no-vibration sample (320 Hz / 160 Hz, zero amplitude).
var Neutral = Sample{HighFreq: 320, LowFreq: 160}

// IdleCode is the per-motor wire code for Neutral. All-zero bytes are not a
// valid idle state.
var IdleCode = [4]byte{0x00, 0x01, 0x40, 0x40}
