package detection

import (
	"cmp"
	"context"
	"slices"

	"voiceclip/internal/audio"
	"voiceclip/internal/config"
	"voiceclip/internal/interval"
	"voiceclip/internal/voiceprint"
)

// Options bundles the scan and consolidation settings for Detect.
type Options struct {
	Score       ScoreOptions
	Consolidate ConsolidateOptions
	// TopMatches is how many of the best windows to keep for diagnostics.
	TopMatches int
}

// OptionsFromConfig maps the [detection] section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	d := cfg.Detection
	return Options{
		Score: ScoreOptions{
			WindowSeconds:    d.WindowSeconds,
			SilenceThreshold: new(d.SilenceThreshold),
		},
		Consolidate: ConsolidateOptions{
			Threshold:             new(d.SimilarityThreshold),
			MinConsecutiveWindows: d.MinConsecutiveWindows,
			WindowSeconds:         d.WindowSeconds,
			GapTolerance:          d.GapToleranceWindows,
		},
		TopMatches: d.TopMatches,
	}
}

// Report is the outcome of detecting the reference speaker in one timeline.
type Report struct {
	Duration        float64   `json:"duration"`
	Stats           ScanStats `json:"stats"`
	Segments        []Segment `json:"segments"`
	MatchedDuration float64   `json:"matched_duration"`
	Top             []Score   `json:"top,omitempty"`
}

// Intervals returns the matched spans.
func (r Report) Intervals() []interval.Interval {
	return Intervals(r.Segments)
}

// Detect scores the timeline and consolidates qualifying windows into segments.
func Detect(ctx context.Context, timeline audio.Timeline, ref voiceprint.Reference, embedder voiceprint.Embedder, opts Options) (Report, error) {
	if opts.Consolidate.WindowSeconds <= 0 {
		opts.Consolidate.WindowSeconds = opts.Score.WindowSeconds
	}
	scores, stats, err := ScoreWindows(ctx, timeline, ref, embedder, opts.Score)
	report := Report{Duration: timeline.Duration(), Stats: stats}
	if err != nil {
		return report, err
	}
	report.Segments = Consolidate(scores, opts.Consolidate)
	report.MatchedDuration = interval.Total(report.Intervals())
	report.Top = TopMatches(scores, opts.TopMatches)
	return report, nil
}

// TopMatches returns the n highest scores, best first. Ties keep window order.
func TopMatches(scores []Score, n int) []Score {
	if n <= 0 || len(scores) == 0 {
		return nil
	}
	sorted := slices.Clone(scores)
	slices.SortStableFunc(sorted, func(a, b Score) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Window, b.Window)
	})
	return sorted[:min(n, len(sorted))]
}
