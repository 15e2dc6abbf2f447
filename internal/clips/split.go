package clips

import (
	"fmt"
	"log/slog"

	"voiceclip/internal/interval"
	"voiceclip/internal/logging"
	"voiceclip/internal/services"
)

// tolerance absorbs float drift when comparing accumulated offsets.
const tolerance = 1e-9

// Clip is one output span numbered from 1 in emission order.
type Clip struct {
	interval.Interval
	Index int `json:"index"`
	// Absorbed marks a final slice that swallowed a sub-minimum remainder.
	Absorbed bool `json:"absorbed,omitempty"`
}

// Splitter applies a Policy and logs the fate of each segment.
type Splitter struct {
	Policy Policy
	Logger *slog.Logger
}

// Split applies policy with no logging.
func Split(segments []interval.Interval, policy Policy) ([]Clip, error) {
	return Splitter{Policy: policy}.Split(segments)
}

// Split converts speech segments into clips. Segments within Max are kept
// whole when they reach Min; longer segments are cut into Target slices from
// their start.
func (s Splitter) Split(segments []interval.Interval) ([]Clip, error) {
	p := s.Policy
	if err := p.Validate(); err != nil {
		return nil, err
	}
	logger := s.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	for i, seg := range segments {
		if err := seg.Validate(); err != nil {
			return nil, services.Wrap(services.ErrPolicyViolation, "clips", "split", fmt.Sprintf("segment %d", i), err)
		}
	}

	clips := make([]Clip, 0, len(segments))
	emit := func(iv interval.Interval, absorbed bool) {
		clips = append(clips, Clip{Interval: iv, Index: len(clips) + 1, Absorbed: absorbed})
	}

	for i, seg := range segments {
		duration := seg.Duration()
		if duration <= p.Max+tolerance {
			if duration >= p.Min-tolerance {
				emit(seg, false)
			} else {
				logger.Debug("segment dropped",
					logging.Args(append(logging.DecisionAttrs("clip_keep", "dropped", "shorter than minimum"),
						logging.Int("segment", i),
						logging.Seconds("duration", duration),
					)...)...)
			}
			continue
		}

		for k := 0; ; k++ {
			start := seg.Start + float64(k)*p.Target
			if start >= seg.End-tolerance {
				break
			}
			end := min(start+p.Target, seg.End)
			absorbed := false
			if p.absorbs(seg.End - end) {
				end = seg.End
				absorbed = true
			}
			if end-start < p.Min-tolerance {
				logger.Debug("tail slice dropped",
					logging.Args(append(logging.DecisionAttrs("clip_keep", "dropped", "tail shorter than minimum"),
						logging.Int("segment", i),
						logging.Seconds("duration", end-start),
					)...)...)
				break
			}
			emit(interval.Interval{Start: start, End: end}, absorbed)
			if absorbed || end >= seg.End {
				break
			}
		}
	}

	logger.Info("clips planned",
		logging.Int("segments", len(segments)),
		logging.Int("clips", len(clips)),
		logging.Seconds("total", Total(clips)),
	)
	return clips, nil
}

// Intervals strips clip numbering.
func Intervals(clips []Clip) []interval.Interval {
	out := make([]interval.Interval, len(clips))
	for i, c := range clips {
		out[i] = c.Interval
	}
	return out
}

// Total sums clip durations.
func Total(clips []Clip) float64 {
	return interval.Total(Intervals(clips))
}
