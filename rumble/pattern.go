package rumble

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidPattern = errors.New("invalid rumble pattern")

// Step holds one sample on both motors for Duration.
type Step struct {
	Left, Right Sample
	Duration    time.Duration
}

// Pattern is a step sequence with an optional loop. After Steps[LoopEnd-1]
// has played, playback pauses for LoopWait and jumps back to LoopStart,
// LoopTimes times, before continuing with the remaining steps.
type Pattern struct {
	Steps     []Step
	LoopStart int
	LoopEnd   int
	LoopTimes int
	LoopWait  time.Duration
}

// Tone plays freq at amp on both motors, using the high band when freq is in
// its range and the low band otherwise.
func Tone(freq, amp float64, d time.Duration) Step {
	s := Neutral
	if freq >= HighFreqMin {
		s.HighFreq, s.HighAmp = freq, amp
	} else {
		s.LowFreq, s.LowAmp = freq, amp
	}
	return Step{Left: s, Right: s, Duration: d}
}

// Expand validates p and flattens the loop into a plain step list.
func (p Pattern) Expand() ([]Step, error) {
	for i, st := range p.Steps {
		if st.Duration < 0 {
			return nil, fmt.Errorf("%w: step %d has negative duration", ErrInvalidPattern, i)
		}
	}
	switch {
	case p.LoopTimes < 0:
		return nil, fmt.Errorf("%w: negative loop count %d", ErrInvalidPattern, p.LoopTimes)
	case p.LoopTimes == 0:
		return append([]Step(nil), p.Steps...), nil
	case p.LoopStart < 0 || p.LoopStart >= p.LoopEnd || p.LoopEnd > len(p.Steps):
		return nil, fmt.Errorf("%w: loop [%d, %d) outside %d steps", ErrInvalidPattern, p.LoopStart, p.LoopEnd, len(p.Steps))
	case p.LoopWait < 0:
		return nil, fmt.Errorf("%w: negative loop wait", ErrInvalidPattern)
	}

	body := p.Steps[p.LoopStart:p.LoopEnd]
	out := make([]Step, 0, len(p.Steps)+p.LoopTimes*(len(body)+1))
	out = append(out, p.Steps[:p.LoopEnd]...)
	for range p.LoopTimes {
		if p.LoopWait > 0 {
			out = append(out, Step{Left: Neutral, Right: Neutral, Duration: p.LoopWait})
		}
		out = append(out, body...)
	}
	return append(out, p.Steps[p.LoopEnd:]...), nil
}

// TotalDuration sums the step durations.
func TotalDuration(steps []Step) time.Duration {
	var d time.Duration
	for _, st := range steps {
		d += st.Duration
	}
	return d
}
