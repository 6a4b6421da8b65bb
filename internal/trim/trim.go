// Package trim models the two-handle time range used to cut a segment
// out of a video.
package trim

import (
	"fmt"
	"math"

	"github.com/clipforge/clipforge/internal/backend"
)

// Step is the handle granularity in seconds.
const Step = 0.1

// Handle identifies one end of the range.
type Handle int

const (
	HandleStart Handle = iota
	HandleEnd
)

// Display shows the selected range and previews the media at a time.
type Display interface {
	ShowRange(start, end, duration string)
	Seek(seconds float64)
}

// Selector is a two-handle range over [0, duration]. Handles never cross.
type Selector struct {
	duration float64
	start    float64
	end      float64
	display  Display
}

// NewSelector creates a selector spanning the whole media. A duration of
// zero or less means the length is unknown and the upper bound is open.
func NewSelector(duration float64, display Display) *Selector {
	if duration <= 0 || math.IsNaN(duration) {
		duration = math.Inf(1)
	}
	s := &Selector{duration: duration, display: display}
	if !math.IsInf(duration, 1) {
		s.end = duration
	}
	return s
}

// Duration returns the media length, +Inf when unknown.
func (s *Selector) Duration() float64 {
	return s.duration
}

// Range returns the current handle positions.
func (s *Selector) Range() (start, end float64) {
	return s.start, s.end
}

// Move places a handle, snapping to Step and clamping to the media bounds
// and the other handle. It returns the applied position.
func (s *Selector) Move(h Handle, value float64) float64 {
	v := snap(value)
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	if v > s.duration {
		v = s.duration
	}

	switch h {
	case HandleStart:
		if v > s.end {
			v = s.end
		}
		s.start = v
	default:
		if v < s.start {
			v = s.start
		}
		s.end = v
	}

	if s.display != nil {
		s.display.ShowRange(FormatClock(s.start), FormatClock(s.end), FormatClock(s.end-s.start))
		s.display.Seek(v)
	}
	return v
}

// Set moves both handles, ordering the moves so the old position of one
// handle does not clamp the other.
func (s *Selector) Set(start, end float64) {
	if start > s.end {
		s.Move(HandleEnd, end)
		s.Move(HandleStart, start)
		return
	}
	s.Move(HandleStart, start)
	s.Move(HandleEnd, end)
}

// Validate checks a range before it is submitted.
func Validate(start, end, duration float64) error {
	if math.IsNaN(start) || math.IsNaN(end) {
		return backend.Invalid(backend.ErrInvalidRange, "Invalid time values.")
	}
	if end <= start {
		return backend.Invalid(backend.ErrInvalidRange, "End time must be greater than start time.")
	}
	if start < 0 {
		return backend.Invalid(backend.ErrInvalidRange, "Start time must not be negative.")
	}
	if duration > 0 && end > duration+Step/2 {
		return backend.Invalid(backend.ErrInvalidRange,
			fmt.Sprintf("End time must not exceed the video length (%s).", FormatClock(duration)))
	}
	return nil
}

// FormatClock renders whole seconds as m:ss.
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	if math.IsInf(seconds, 1) {
		return "--:--"
	}
	total := int64(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func snap(v float64) float64 {
	return math.Round(v/Step) / math.Round(1/Step)
}
