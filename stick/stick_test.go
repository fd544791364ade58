package stick_test

import (
	"math"
	"testing"

	"github.com/Alia5/jctool/stick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEncode(t *testing.T) {
	cases := []struct {
		name string
		raw  [3]byte
		x, y uint16
	}{
		{"zero", [3]byte{0x00, 0x00, 0x00}, 0, 0},
		{"max", [3]byte{0xFF, 0xFF, 0xFF}, 0xFFF, 0xFFF},
		{"center", [3]byte{0x00, 0x08, 0x80}, 0x800, 0x800},
		{"mixed", [3]byte{0x23, 0x61, 0x45}, 0x123, 0x456},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, y := stick.Decode(tc.raw)
			assert.Equal(t, tc.x, x)
			assert.Equal(t, tc.y, y)

			raw, err := stick.Encode(tc.x, tc.y)
			require.NoError(t, err)
			assert.Equal(t, tc.raw, raw)
		})
	}
}

func TestRoundTripAllPairs(t *testing.T) {
	if testing.Short() {
		t.Skip("exhaustive 12-bit sweep")
	}
	for x := uint16(0); x <= stick.AxisMax; x++ {
		for y := uint16(0); y <= stick.AxisMax; y++ {
			raw, err := stick.Encode(x, y)
			if err != nil {
				t.Fatalf("encode(%d, %d): %v", x, y, err)
			}
			gx, gy := stick.Decode(raw)
			if gx != x || gy != y {
				t.Fatalf("decode(encode(%d, %d)) = (%d, %d)", x, y, gx, gy)
			}
		}
	}
}

func TestEncodeAxisOutOfRange(t *testing.T) {
	_, err := stick.Encode(0x1000, 0)
	assert.ErrorIs(t, err, stick.ErrAxisOutOfRange)
	_, err = stick.Encode(0, 0xFFFF)
	assert.ErrorIs(t, err, stick.ErrAxisOutOfRange)
}

func TestParams(t *testing.T) {
	values := []uint16{0x123, 0x456, 0x800, 0x7FF, 0x000, 0xFFF}
	b, err := stick.EncodeParams(values)
	require.NoError(t, err)
	require.Len(t, b, 9)

	got, err := stick.DecodeParams(b)
	require.NoError(t, err)
	assert.Equal(t, values, got)

	_, err = stick.DecodeParams(make([]byte, 4))
	assert.Error(t, err)
	_, err = stick.EncodeParams([]uint16{1, 2, 3})
	assert.Error(t, err)
	_, err = stick.EncodeParams([]uint16{1, 0x1000})
	assert.ErrorIs(t, err, stick.ErrAxisOutOfRange)
}

func TestCenterSigned(t *testing.T) {
	assert.Equal(t, int16(0), stick.CenterSigned(0x8000, 0x8000))
	assert.Equal(t, int16(math.MaxInt16), stick.CenterSigned(0xFFFF, 0x8000))
	assert.Equal(t, int16(math.MaxInt16), stick.CenterSigned(0xFFFF, 0x0000))
	assert.Equal(t, int16(math.MinInt16), stick.CenterSigned(0x0000, 0xFFFF))
	assert.Equal(t, int16(-0x100), stick.CenterSigned(0x700, 0x800))
}

func TestCalibrationLayouts(t *testing.T) {
	cal := stick.Calibration{
		X: stick.Axis{Center: 0x7F0, MinBelow: 0x5A0, MaxAbove: 0x610},
		Y: stick.Axis{Center: 0x810, MinBelow: 0x590, MaxAbove: 0x620},
	}

	left, err := cal.EncodeLeft()
	require.NoError(t, err)
	right, err := cal.EncodeRight()
	require.NoError(t, err)
	assert.NotEqual(t, left, right)

	gotLeft, err := stick.ParseLeftCalibration(left)
	require.NoError(t, err)
	assert.Equal(t, cal, gotLeft)

	gotRight, err := stick.ParseRightCalibration(right)
	require.NoError(t, err)
	assert.Equal(t, cal, gotRight)

	// Left block starts with max-above, right block with center.
	x, y := stick.Decode([3]byte{left[0], left[1], left[2]})
	assert.Equal(t, []uint16{0x610, 0x620}, []uint16{x, y})
	x, y = stick.Decode([3]byte{right[0], right[1], right[2]})
	assert.Equal(t, []uint16{0x7F0, 0x810}, []uint16{x, y})

	_, err = stick.ParseLeftCalibration(left[:8])
	assert.Error(t, err)
}

func TestParseParams(t *testing.T) {
	b, err := stick.EncodeParams([]uint16{0x0F, 0x00, 0xAE, 0xE6, 0x000, 0x000, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	p, err := stick.ParseParams(b)
	require.NoError(t, err)
	assert.Equal(t, stick.Params{DeadZone: 0xAE, RangeRatio: 0xE6}, p)
}

func TestNormalize(t *testing.T) {
	cal := stick.DefaultCalibration

	x, y := cal.Normalize(0x800, 0x800, 0)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)

	x, y = cal.Normalize(0x800+0x600, 0x800-0x600, 0)
	assert.InDelta(t, 1.0, x, 1e-9)
	assert.InDelta(t, -1.0, y, 1e-9)

	x, _ = cal.Normalize(0xFFF, 0x800, 0)
	assert.Equal(t, 1.0, x, "saturates past calibrated range")

	x, _ = cal.Normalize(0x800+0x50, 0x800, 0xAE)
	assert.Equal(t, 0.0, x, "inside dead zone")

	x, _ = cal.Normalize(0x800+0x300, 0x800, 0)
	assert.InDelta(t, 0.5, x, 1e-9)
}
