package rumble_test

import (
	"testing"
	"time"

	"github.com/Alia5/jctool/rumble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(freq float64, ms int) rumble.Step {
	return rumble.Tone(freq, 0.5, time.Duration(ms)*time.Millisecond)
}

func TestPatternExpand(t *testing.T) {
	a, b, c := step(100, 10), step(200, 20), step(300, 30)
	pause := rumble.Step{Left: rumble.Neutral, Right: rumble.Neutral, Duration: 5 * time.Millisecond}

	cases := []struct {
		name    string
		pattern rumble.Pattern
		want    []rumble.Step
	}{
		{"no loop", rumble.Pattern{Steps: []rumble.Step{a, b, c}}, []rumble.Step{a, b, c}},
		{
			"loop middle twice with wait",
			rumble.Pattern{Steps: []rumble.Step{a, b, c}, LoopStart: 1, LoopEnd: 2, LoopTimes: 2, LoopWait: 5 * time.Millisecond},
			[]rumble.Step{a, b, pause, b, pause, b, c},
		},
		{
			"loop everything without wait",
			rumble.Pattern{Steps: []rumble.Step{a, b}, LoopStart: 0, LoopEnd: 2, LoopTimes: 1},
			[]rumble.Step{a, b, a, b},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.pattern.Expand()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPatternExpandInvalid(t *testing.T) {
	a := step(100, 10)
	cases := []struct {
		name    string
		pattern rumble.Pattern
	}{
		{"negative duration", rumble.Pattern{Steps: []rumble.Step{{Duration: -1}}}},
		{"negative loop count", rumble.Pattern{Steps: []rumble.Step{a}, LoopTimes: -1}},
		{"empty loop", rumble.Pattern{Steps: []rumble.Step{a}, LoopStart: 1, LoopEnd: 1, LoopTimes: 1}},
		{"loop past end", rumble.Pattern{Steps: []rumble.Step{a}, LoopEnd: 2, LoopTimes: 1}},
		{"negative wait", rumble.Pattern{Steps: []rumble.Step{a}, LoopEnd: 1, LoopTimes: 1, LoopWait: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.pattern.Expand()
			assert.ErrorIs(t, err, rumble.ErrInvalidPattern)
		})
	}
}

func TestTone(t *testing.T) {
	high := rumble.Tone(440, 0.8, time.Second)
	assert.Equal(t, 440.0, high.Left.HighFreq)
	assert.Equal(t, 0.8, high.Left.HighAmp)
	assert.Zero(t, high.Left.LowAmp)
	assert.Equal(t, high.Left, high.Right)

	low := rumble.Tone(60, 0.3, time.Second)
	assert.Equal(t, 60.0, low.Left.LowFreq)
	assert.Equal(t, 0.3, low.Left.LowAmp)
	assert.Zero(t, low.Left.HighAmp)
}

func TestTotalDuration(t *testing.T) {
	assert.Equal(t, 60*time.Millisecond, rumble.TotalDuration([]rumble.Step{step(100, 10), step(100, 20), step(100, 30)}))
}
