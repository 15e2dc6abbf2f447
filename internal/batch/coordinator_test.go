package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voiceclip/internal/audio"
	"voiceclip/internal/detection"
	"voiceclip/internal/interval"
	"voiceclip/internal/testsupport"
	"voiceclip/internal/voiceprint"
)

func newCoordinator(t *testing.T, timelines map[string]audio.Timeline) (*Coordinator, *testsupport.EmbedderPool) {
	t.Helper()
	refPath := filepath.Join(t.TempDir(), "reference.json")
	if err := voiceprint.SaveReference(refPath, testsupport.UnitReference()); err != nil {
		t.Fatal(err)
	}
	pool := &testsupport.EmbedderPool{}
	c := &Coordinator{
		Workers:     2,
		TaskTimeout: 5 * time.Second,
		WorkDir:     t.TempDir(),
		Embedders:   pool.Factory(),
		References:  FileReferenceLoader(refPath),
		Decoder:     &testsupport.MapDecoder{Timelines: timelines},
		Detection: detection.Options{
			Score:       detection.ScoreOptions{WindowSeconds: 3},
			Consolidate: detection.ConsolidateOptions{Threshold: new(0.95)},
		},
		RunID: "run-1",
	}
	return c, pool
}

func TestRunIsolatesMissingReference(t *testing.T) {
	tl := testsupport.LevelTimeline(3, 0.97, 0.96, 0.1, 0.98)
	c, pool := newCoordinator(t, map[string]audio.Timeline{"a.mp4": tl, "b.mp4": tl, "c.mp4": tl})
	sources := []Source{
		{ID: "a.mp4", Path: "a.mp4"},
		{ID: "b.mp4", Path: "b.mp4", ReferencePath: filepath.Join(t.TempDir(), "absent.json")},
		{ID: "c.mp4", Path: "c.mp4"},
	}

	results := c.Run(context.Background(), sources)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	SortBySource(results)
	if results[1].Status != StatusError || !strings.Contains(results[1].Error, "missing reference") {
		t.Fatalf("expected b.mp4 to fail with missing reference, got %+v", results[1])
	}
	for _, i := range []int{0, 2} {
		r := results[i]
		if r.Status != StatusSuccess {
			t.Fatalf("source %s failed: %s", r.SourceID, r.Error)
		}
		if !slices.Equal(detection.Intervals(r.Segments), []interval.Interval{{Start: 0, End: 6}, {Start: 9, End: 12}}) {
			t.Fatalf("unexpected segments for %s: %+v", r.SourceID, r.Segments)
		}
		if r.MatchedDuration != 9 || r.TotalDuration != 12 {
			t.Fatalf("unexpected durations %+v", r)
		}
	}
	handles := pool.Handles()
	if len(handles) != 2 {
		t.Fatalf("expected an embedder per successful task, got %d", len(handles))
	}
	for _, h := range handles {
		if !h.Closed() {
			t.Fatal("embedder handle left open")
		}
	}

	summary := Summarize(results)
	if summary.Succeeded != 2 || summary.Failed != 1 || summary.MatchedDuration != 18 || summary.Segments != 4 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunBoundsConcurrencyAndCleansScratch(t *testing.T) {
	timelines := map[string]audio.Timeline{}
	var sources []Source
	for _, name := range []string{"1", "2", "3", "4", "5", "6"} {
		timelines[name] = testsupport.LevelTimeline(3, 0.99)
		sources = append(sources, Source{ID: name, Path: name})
	}
	c, _ := newCoordinator(t, timelines)

	var active, peak atomic.Int32
	var dirs sync.Map
	c.Decoder = &testsupport.MapDecoder{
		Timelines: timelines,
		Hook: func(_ context.Context, source, workDir string) error {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			dirs.Store(source, workDir)
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
			return nil
		},
	}

	var observed atomic.Int32
	c.OnResult = func(Result) { observed.Add(1) }
	results := c.Run(context.Background(), sources)
	if len(results) != len(sources) || observed.Load() != int32(len(sources)) {
		t.Fatalf("results=%d observed=%d", len(results), observed.Load())
	}
	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", peak.Load())
	}
	dirs.Range(func(_, value any) bool {
		if _, err := os.Stat(value.(string)); !os.IsNotExist(err) {
			t.Fatalf("scratch dir %s not removed", value)
		}
		return true
	})
}

func TestRunReportsTimeout(t *testing.T) {
	c, _ := newCoordinator(t, map[string]audio.Timeline{"slow": testsupport.LevelTimeline(3, 0.99)})
	c.TaskTimeout = 20 * time.Millisecond
	c.Decoder = &testsupport.MapDecoder{Hook: func(ctx context.Context, _, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	results := c.Run(context.Background(), []Source{{ID: "slow", Path: "slow"}})
	if results[0].Status != StatusError || !strings.HasPrefix(results[0].Error, "timeout after") {
		t.Fatalf("expected timeout result, got %+v", results[0])
	}
}

type panickingDecoder struct{}

func (panickingDecoder) Decode(context.Context, string, string) (audio.Timeline, error) {
	panic("decoder exploded")
}

func TestRunRecoversPanics(t *testing.T) {
	c, _ := newCoordinator(t, nil)
	c.Decoder = panickingDecoder{}
	results := c.Run(context.Background(), []Source{{ID: "x", Path: "x"}, {ID: "y", Path: "y"}})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Status != StatusError || !strings.Contains(r.Error, "decoder exploded") {
			t.Fatalf("expected recovered panic, got %+v", r)
		}
	}
}

func TestRunEmbedderFactoryFailure(t *testing.T) {
	c, _ := newCoordinator(t, map[string]audio.Timeline{"a": testsupport.LevelTimeline(3, 0.99)})
	c.Embedders = func(context.Context) (voiceprint.Embedder, error) {
		return nil, errors.New("uvx not installed")
	}
	results := c.Run(context.Background(), []Source{{ID: "a", Path: "a"}})
	if results[0].Status != StatusError || results[0].Error != "uvx not installed" {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestRunMisconfiguredCoordinator(t *testing.T) {
	c := &Coordinator{}
	results := c.Run(context.Background(), []Source{{ID: "a", Path: "a"}})
	if len(results) != 1 || results[0].Status != StatusError {
		t.Fatalf("expected configuration error result, got %+v", results)
	}
}
