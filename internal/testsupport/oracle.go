package testsupport

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"voiceclip/internal/audio"
	"voiceclip/internal/services"
	"voiceclip/internal/voiceprint"
)

// TestSampleRate keeps fake timelines small.
const TestSampleRate = 100

// UnitReference matches LevelEmbedder embeddings so that a window's level is
// its similarity.
func UnitReference() voiceprint.Reference {
	return voiceprint.Reference{Model: "test", Dimension: 2, Vector: []float32{1, 0}}
}

// LevelTimeline builds consecutive windows of windowSeconds at constant levels.
// A zero level yields a silent window.
func LevelTimeline(windowSeconds float64, levels ...float32) audio.Timeline {
	per := int(windowSeconds * TestSampleRate)
	samples := make([]float32, 0, per*len(levels))
	for _, level := range levels {
		for range per {
			samples = append(samples, level)
		}
	}
	return audio.Timeline{Samples: samples, SampleRate: TestSampleRate}
}

// LevelEmbedder embeds a window as a unit vector whose cosine against
// UnitReference equals the window's first sample.
type LevelEmbedder struct {
	calls  atomic.Int64
	closed atomic.Bool
}

func (e *LevelEmbedder) Embed(ctx context.Context, samples []float32, _ int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.calls.Add(1)
	level := math.Max(-1, math.Min(1, float64(samples[0])))
	return []float32{float32(level), float32(math.Sqrt(1 - level*level))}, nil
}

func (e *LevelEmbedder) Close() error {
	e.closed.Store(true)
	return nil
}

// Calls reports how many windows were embedded.
func (e *LevelEmbedder) Calls() int { return int(e.calls.Load()) }

// Closed reports whether Close was called.
func (e *LevelEmbedder) Closed() bool { return e.closed.Load() }

// EmbedderPool hands out LevelEmbedders and remembers them for assertions.
type EmbedderPool struct {
	mu      sync.Mutex
	handles []*LevelEmbedder
}

// Factory returns a voiceprint.Factory backed by the pool.
func (p *EmbedderPool) Factory() voiceprint.Factory {
	return func(context.Context) (voiceprint.Embedder, error) {
		e := &LevelEmbedder{}
		p.mu.Lock()
		p.handles = append(p.handles, e)
		p.mu.Unlock()
		return e, nil
	}
}

// Handles returns every embedder opened so far.
func (p *EmbedderPool) Handles() []*LevelEmbedder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*LevelEmbedder(nil), p.handles...)
}

// MapDecoder serves fixed timelines by source path.
type MapDecoder struct {
	Timelines map[string]audio.Timeline
	// Hook runs before each decode, inside the task's scratch directory.
	Hook func(ctx context.Context, source, workDir string) error
}

func (d *MapDecoder) Decode(ctx context.Context, source, workDir string) (audio.Timeline, error) {
	if d.Hook != nil {
		if err := d.Hook(ctx, source, workDir); err != nil {
			return audio.Timeline{}, err
		}
	}
	tl, ok := d.Timelines[source]
	if !ok {
		return audio.Timeline{}, services.Wrap(services.ErrNotFound, "decode", "lookup", source, nil)
	}
	return tl, nil
}
