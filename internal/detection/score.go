package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"voiceclip/internal/audio"
	"voiceclip/internal/logging"
	"voiceclip/internal/services"
	"voiceclip/internal/voiceprint"
)

// Defaults for the window scan.
const (
	DefaultWindowSeconds    = 3.0
	DefaultSilenceThreshold = 0.005
)

// Score is the similarity of one analysis window to the reference.
// The window covers [Window*wd, (Window+1)*wd) seconds.
type Score struct {
	Window int     `json:"window"`
	Value  float64 `json:"value"`
}

// ScanStats counts how each window of a scan was handled.
type ScanStats struct {
	Windows int `json:"windows"`
	Silent  int `json:"silent"`
	Failed  int `json:"failed"`
	Scored  int `json:"scored"`
}

// ScoreOptions tunes ScoreWindows.
type ScoreOptions struct {
	WindowSeconds float64
	// SilenceThreshold is the peak amplitude below which a window is skipped.
	// Nil selects DefaultSilenceThreshold; zero disables the gate.
	SilenceThreshold *float64
	Logger           *slog.Logger
}

func (o ScoreOptions) withDefaults() ScoreOptions {
	if o.WindowSeconds <= 0 {
		o.WindowSeconds = DefaultWindowSeconds
	}
	if o.SilenceThreshold == nil {
		o.SilenceThreshold = new(float64(DefaultSilenceThreshold))
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}

// WindowSamples converts a window length to a whole number of samples.
func WindowSamples(windowSeconds float64, sampleRate int) (int, error) {
	if sampleRate <= 0 {
		return 0, services.Wrap(services.ErrPolicyViolation, "detection", "window size",
			fmt.Sprintf("sample rate %d must be positive", sampleRate), nil)
	}
	exact := windowSeconds * float64(sampleRate)
	n := math.Round(exact)
	if n < 1 || math.Abs(exact-n) > 1e-6 {
		return 0, services.Wrap(services.ErrPolicyViolation, "detection", "window size",
			fmt.Sprintf("window of %gs at %d Hz is not a whole number of samples", windowSeconds, sampleRate), nil)
	}
	return int(n), nil
}

// ScoreWindows cuts the timeline into contiguous non-overlapping windows and
// scores each non-silent one against the reference. Windows quieter than the
// silence threshold produce no score. A window whose embedding fails is
// skipped and counted in ScanStats.Failed. Only a cancelled context or an
// embedder reporting voiceprint.ErrUnavailable ends the scan.
func ScoreWindows(ctx context.Context, timeline audio.Timeline, ref voiceprint.Reference, embedder voiceprint.Embedder, opts ScoreOptions) ([]Score, ScanStats, error) {
	opts = opts.withDefaults()
	logger := opts.Logger
	silence := *opts.SilenceThreshold

	size, err := WindowSamples(opts.WindowSeconds, timeline.SampleRate)
	if err != nil {
		return nil, ScanStats{}, err
	}
	stats := ScanStats{Windows: len(timeline.Samples) / size}
	scores := make([]Score, 0, stats.Windows)
	sampler := logging.NewProgressSampler(10)

	for idx := 0; idx < stats.Windows; idx++ {
		if err := ctx.Err(); err != nil {
			return scores, stats, err
		}
		window := timeline.Samples[idx*size : (idx+1)*size]
		if audio.PeakAmplitude(window) < silence {
			stats.Silent++
			reportProgress(logger, sampler, idx+1, stats)
			continue
		}
		embedding, err := embedder.Embed(ctx, window, timeline.SampleRate)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return scores, stats, ctxErr
			}
			if errors.Is(err, voiceprint.ErrUnavailable) {
				return scores, stats, fmt.Errorf("embed window %d: %w", idx, err)
			}
			stats.Failed++
			logger.Debug("window embedding failed",
				logging.Int("window", idx),
				logging.Seconds("offset", float64(idx)*opts.WindowSeconds),
				logging.Error(err),
			)
			reportProgress(logger, sampler, idx+1, stats)
			continue
		}
		scores = append(scores, Score{Window: idx, Value: ref.Similarity(embedding)})
		stats.Scored++
		reportProgress(logger, sampler, idx+1, stats)
	}

	logger.Info("window scan complete",
		logging.Int("windows", stats.Windows),
		logging.Int("scored", stats.Scored),
		logging.Int("silent", stats.Silent),
		logging.Int("failed", stats.Failed),
	)
	return scores, stats, nil
}

func reportProgress(logger *slog.Logger, sampler *logging.ProgressSampler, done int, stats ScanStats) {
	if !sampler.ShouldLog(done, stats.Windows) {
		return
	}
	logger.Info("window scan progress",
		logging.Float64("percent", sampler.Percent()),
		logging.Int("done", done),
		logging.Int("windows", stats.Windows),
	)
}
