package interval

import (
	"fmt"
	"math"

	"voiceclip/internal/services"
)

// Interval is a half-open span of media time in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// New constructs a validated interval.
func New(start, end float64) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate enforces start >= 0 and end > start.
func (iv Interval) Validate() error {
	switch {
	case math.IsNaN(iv.Start) || math.IsNaN(iv.End) || math.IsInf(iv.Start, 0) || math.IsInf(iv.End, 0):
		return services.Wrap(services.ErrPolicyViolation, "interval", "validate", fmt.Sprintf("non-finite bounds %v", iv), nil)
	case iv.Start < 0:
		return services.Wrap(services.ErrPolicyViolation, "interval", "validate", fmt.Sprintf("start %.3f is negative", iv.Start), nil)
	case iv.End <= iv.Start:
		return services.Wrap(services.ErrPolicyViolation, "interval", "validate", fmt.Sprintf("end %.3f is not after start %.3f", iv.End, iv.Start), nil)
	}
	return nil
}

// Duration returns End - Start.
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

// Shift moves both bounds by offset seconds.
func (iv Interval) Shift(offset float64) Interval {
	return Interval{Start: iv.Start + offset, End: iv.End + offset}
}

// Overlaps reports whether the two half-open intervals share any time.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// String renders the interval in the timestamp file notation.
func (iv Interval) String() string {
	return FormatClock(iv.Start) + " " + Arrow + " " + FormatClock(iv.End)
}

// Total sums the durations of the given intervals.
func Total(intervals []Interval) float64 {
	var total float64
	for _, iv := range intervals {
		total += iv.Duration()
	}
	return total
}
