package stick

import "fmt"

const (
	// CalibrationSize is the length of one stick calibration block in SPI flash.
	CalibrationSize = 9
	// ParamsSize is the length of one stick parameter block in SPI flash.
	ParamsSize = 18
)

// Axis holds the calibration of a single axis.
type Axis struct {
	Center   uint16
	MinBelow uint16
	MaxAbove uint16
}

// Calibration describes one analog stick.
type Calibration struct {
	X, Y Axis
}

// Params holds the device stick parameters relevant for normalization.
type Params struct {
	DeadZone   uint16
	RangeRatio uint16
}

// DefaultCalibration is used by the controller when the flash holds no data.
var DefaultCalibration = Calibration{
	X: Axis{Center: 0x800, MinBelow: 0x600, MaxAbove: 0x600},
	Y: Axis{Center: 0x800, MinBelow: 0x600, MaxAbove: 0x600},
}

// ParseLeftCalibration decodes the left stick block:
// max-above (x,y), center (x,y), min-below (x,y).
func ParseLeftCalibration(b []byte) (Calibration, error) {
	v, err := decodeBlock(b, CalibrationSize)
	if err != nil {
		return Calibration{}, fmt.Errorf("left calibration: %w", err)
	}
	return Calibration{
		X: Axis{MaxAbove: v[0], Center: v[2], MinBelow: v[4]},
		Y: Axis{MaxAbove: v[1], Center: v[3], MinBelow: v[5]},
	}, nil
}

// ParseRightCalibration decodes the right stick block:
// center (x,y), min-below (x,y), max-above (x,y).
func ParseRightCalibration(b []byte) (Calibration, error) {
	v, err := decodeBlock(b, CalibrationSize)
	if err != nil {
		return Calibration{}, fmt.Errorf("right calibration: %w", err)
	}
	return Calibration{
		X: Axis{Center: v[0], MinBelow: v[2], MaxAbove: v[4]},
		Y: Axis{Center: v[1], MinBelow: v[3], MaxAbove: v[5]},
	}, nil
}

// EncodeLeft is the inverse of ParseLeftCalibration.
func (c Calibration) EncodeLeft() ([]byte, error) {
	return EncodeParams([]uint16{c.X.MaxAbove, c.Y.MaxAbove, c.X.Center, c.Y.Center, c.X.MinBelow, c.Y.MinBelow})
}

// EncodeRight is the inverse of ParseRightCalibration.
func (c Calibration) EncodeRight() ([]byte, error) {
	return EncodeParams([]uint16{c.X.Center, c.Y.Center, c.X.MinBelow, c.Y.MinBelow, c.X.MaxAbove, c.Y.MaxAbove})
}

// ParseParams decodes an 18-byte stick parameter block.
func ParseParams(b []byte) (Params, error) {
	v, err := decodeBlock(b, ParamsSize)
	if err != nil {
		return Params{}, fmt.Errorf("stick params: %w", err)
	}
	return Params{DeadZone: v[2], RangeRatio: v[3]}, nil
}

// Normalize maps raw axis readings into [-1, 1]. Readings within deadZone of
// the center map to 0.
func (c Calibration) Normalize(x, y, deadZone uint16) (float64, float64) {
	return c.X.normalize(x, deadZone), c.Y.normalize(y, deadZone)
}

func (a Axis) normalize(raw, deadZone uint16) float64 {
	d := int32(raw) - int32(a.Center)
	if d > -int32(deadZone) && d < int32(deadZone) {
		return 0
	}
	var v float64
	switch {
	case d > 0 && a.MaxAbove != 0:
		v = float64(d) / float64(a.MaxAbove)
	case d < 0 && a.MinBelow != 0:
		v = float64(d) / float64(a.MinBelow)
	}
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func decodeBlock(b []byte, size int) ([]uint16, error) {
	if len(b) < size {
		return nil, fmt.Errorf("need %d bytes, got %d", size, len(b))
	}
	return DecodeParams(b[:size])
}
