// Package rumble quantizes HD rumble samples into the 4-byte per-motor wire
// format.
//
// Byte layout:
//
//	0: high band frequency, low 8 bits
//	1: high band amplitude (even, <= 0xC8) | high band frequency bit 8
//	2: low band frequency (7 bits) | intermediate low amplitude step (MSB)
//	3: low band amplitude (0x40..0x72)
package rumble

import "math"

// Sample is the rumble intent for one motor.
type Sample struct {
	HighFreq float64 // Hz
	HighAmp  float64 // 0.0..1.0
	LowFreq  float64 // Hz
	LowAmp   float64 // 0.0..1.0
}

// Codes holds the device codes of one motor before they are packed.
type Codes struct {
	HighFreq uint16 // 9 bits, multiple of 4
	HighAmp  uint8
	LowFreq  uint8 // 7 bits
	LowAmp   uint8
	// LowAmpHalf selects the half step above LowAmp.
	LowAmpHalf bool
}

// Encode quantizes both motors. Out of range frequencies and amplitudes are
// clamped.
func Encode(left, right Sample) (l, r [4]byte) {
	return Pack(Quantize(left)), Pack(Quantize(right))
}

// EncodeReport returns both motors as the 8 rumble bytes of a command packet.
func EncodeReport(left, right Sample) [8]byte {
	var out [8]byte
	l, r := Encode(left, right)
	copy(out[:4], l[:])
	copy(out[4:], r[:])
	return out
}

// Quantize converts a sample into device codes.
func Quantize(s Sample) Codes {
	hf := freqCode(clamp(s.HighFreq, HighFreqMin, HighFreqMax), highFreqEncMin, highFreqEncMax)
	lf := freqCode(clamp(s.LowFreq, LowFreqMin, LowFreqMax), lowFreqEncMin, lowFreqEncMax)
	hs := ampStep(s.HighAmp)
	ls := ampStep(s.LowAmp)
	return Codes{
		HighFreq:   uint16(hf-highFreqBase) * 4,
		HighAmp:    uint8(hs * 2),
		LowFreq:    uint8(lf - lowFreqBase),
		LowAmp:     uint8(LowAmpFloor + ls/2),
		LowAmpHalf: ls%2 == 1,
	}
}

// Pack lays codes out on the wire. The amplitude ceilings are applied here
// regardless of how the codes were produced.
func Pack(c Codes) [4]byte {
	highAmp := c.HighAmp
	if highAmp > HighAmpCeiling {
		highAmp = HighAmpCeiling
	}
	lowAmp := c.LowAmp
	half := c.LowAmpHalf
	if lowAmp >= LowAmpCeiling {
		lowAmp = LowAmpCeiling
		half = false
	}

	var b [4]byte
	b[0] = uint8(c.HighFreq & 0xFF)
	b[1] = highAmp&^highFreqExtBit | uint8(c.HighFreq>>8)&highFreqExtBit
	b[2] = c.LowFreq & 0x7F
	if half {
		b[2] |= lowAmpHalfBit
	}
	b[3] = lowAmp
	return b
}

// Unpack splits a wire code back into device codes.
func Unpack(b [4]byte) Codes {
	return Codes{
		HighFreq:   uint16(b[0]) | uint16(b[1]&highFreqExtBit)<<8,
		HighAmp:    b[1] &^ highFreqExtBit,
		LowFreq:    b[2] & 0x7F,
		LowAmp:     b[3],
		LowAmpHalf: b[2]&lowAmpHalfBit != 0,
	}
}

// Decode converts a wire code back into a sample, up to quantization error.
func Decode(b [4]byte) Sample {
	c := Unpack(b)
	lowStep := 0
	if c.LowAmp > LowAmpFloor {
		lowStep = int(c.LowAmp-LowAmpFloor) * 2
	}
	if c.LowAmpHalf {
		lowStep++
	}
	return Sample{
		HighFreq: codeFreq(int(c.HighFreq/4) + highFreqBase),
		HighAmp:  float64(c.HighAmp/2) / AmpSteps,
		LowFreq:  codeFreq(int(c.LowFreq) + lowFreqBase),
		LowAmp:   float64(lowStep) / AmpSteps,
	}
}

// freqCode maps Hz to the exponential code space, 32 codes per octave.
func freqCode(hz float64, min, max int) int {
	enc := int(math.Round(math.Log2(hz/10) * 32))
	if enc < min {
		return min
	}
	if enc > max {
		return max
	}
	return enc
}

func codeFreq(enc int) float64 {
	return 10 * math.Exp2(float64(enc)/32)
}

func ampStep(a float64) int {
	return int(math.Round(clamp(a, 0, 1) * AmpSteps))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
