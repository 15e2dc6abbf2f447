package detection

import (
	"slices"

	"voiceclip/internal/interval"
)

// DefaultSimilarityThreshold is the minimum score that marks a window as the
// target speaker.
const DefaultSimilarityThreshold = 0.95

// Segment is a merged span of qualifying windows.
type Segment struct {
	interval.Interval
	FirstWindow int `json:"first_window"`
	LastWindow  int `json:"last_window"`
}

// ConsolidateOptions tunes Consolidate.
type ConsolidateOptions struct {
	// Threshold is the minimum qualifying score. Nil selects
	// DefaultSimilarityThreshold; any explicit value, zero included, is used
	// as given.
	Threshold             *float64
	MinConsecutiveWindows int
	WindowSeconds         float64
	// GapTolerance lets a run bridge up to this many non-qualifying windows.
	// Zero merges only strictly adjacent windows.
	GapTolerance int
}

func (o ConsolidateOptions) withDefaults() ConsolidateOptions {
	if o.Threshold == nil {
		o.Threshold = new(float64(DefaultSimilarityThreshold))
	}
	if o.MinConsecutiveWindows < 1 {
		o.MinConsecutiveWindows = 1
	}
	if o.WindowSeconds <= 0 {
		o.WindowSeconds = DefaultWindowSeconds
	}
	if o.GapTolerance < 0 {
		o.GapTolerance = 0
	}
	return o
}

// Consolidate merges qualifying window indices into runs and returns the runs
// long enough to keep, sorted and non-overlapping. Input order does not
// matter.
func Consolidate(scores []Score, opts ConsolidateOptions) []Segment {
	opts = opts.withDefaults()
	threshold := *opts.Threshold

	indices := make([]int, 0, len(scores))
	for _, s := range scores {
		if s.Value >= threshold {
			indices = append(indices, s.Window)
		}
	}
	if len(indices) == 0 {
		return []Segment{}
	}
	slices.Sort(indices)
	indices = slices.Compact(indices)

	segments := make([]Segment, 0)
	emit := func(first, last int) {
		if last-first+1 < opts.MinConsecutiveWindows {
			return
		}
		segments = append(segments, Segment{
			Interval: interval.Interval{
				Start: float64(first) * opts.WindowSeconds,
				End:   float64(last+1) * opts.WindowSeconds,
			},
			FirstWindow: first,
			LastWindow:  last,
		})
	}

	first, last := indices[0], indices[0]
	for _, idx := range indices[1:] {
		if idx-last-1 <= opts.GapTolerance {
			last = idx
			continue
		}
		emit(first, last)
		first, last = idx, idx
	}
	emit(first, last)
	return segments
}

// Intervals strips window provenance from segments.
func Intervals(segments []Segment) []interval.Interval {
	out := make([]interval.Interval, len(segments))
	for i, seg := range segments {
		out[i] = seg.Interval
	}
	return out
}
