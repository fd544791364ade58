// Package stick packs and unpacks the 12-bit analog stick samples used in
// input reports and in the SPI flash calibration blocks.
package stick

import (
	"errors"
	"fmt"
	"math"
)

const (
	// AxisMax is the largest value a 12-bit axis can hold.
	AxisMax = 0x0FFF

	// GroupSize is the number of wire bytes for one axis pair.
	GroupSize = 3
)

var ErrAxisOutOfRange = errors.New("axis value out of range")

// Decode unpacks two 12-bit values from a 3-byte group.
func Decode(raw [3]byte) (x, y uint16) {
	x = uint16(raw[0]) | uint16(raw[1]&0x0F)<<8
	y = uint16(raw[1]>>4) | uint16(raw[2])<<4
	return x, y
}

// Encode packs two 12-bit values into a 3-byte group.
func Encode(x, y uint16) ([3]byte, error) {
	if x > AxisMax {
		return [3]byte{}, fmt.Errorf("%w: x=%d", ErrAxisOutOfRange, x)
	}
	if y > AxisMax {
		return [3]byte{}, fmt.Errorf("%w: y=%d", ErrAxisOutOfRange, y)
	}
	return [3]byte{
		uint8(x & 0xFF),
		uint8(x>>8) | uint8(y&0x0F)<<4,
		uint8(y >> 4),
	}, nil
}

// DecodeParams unpacks a sequence of 3-byte groups into axis values, two per
// group. len(b) must be a multiple of GroupSize.
func DecodeParams(b []byte) ([]uint16, error) {
	if len(b)%GroupSize != 0 {
		return nil, fmt.Errorf("stick params: %d bytes is not a multiple of %d", len(b), GroupSize)
	}
	out := make([]uint16, 0, len(b)/GroupSize*2)
	for i := 0; i < len(b); i += GroupSize {
		x, y := Decode([3]byte{b[i], b[i+1], b[i+2]})
		out = append(out, x, y)
	}
	return out, nil
}

// EncodeParams is the inverse of DecodeParams. len(values) must be even.
func EncodeParams(values []uint16) ([]byte, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("stick params: odd value count %d", len(values))
	}
	out := make([]byte, 0, len(values)/2*GroupSize)
	for i := 0; i < len(values); i += 2 {
		g, err := Encode(values[i], values[i+1])
		if err != nil {
			return nil, fmt.Errorf("stick params pair %d: %w", i/2, err)
		}
		out = append(out, g[:]...)
	}
	return out, nil
}

// CenterSigned converts a raw reading into a signed value around baseline,
// saturating at the int16 limits.
func CenterSigned(raw, baseline uint16) int16 {
	return clampI16(int32(raw) - int32(baseline))
}

func clampI16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
