package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"voiceclip/internal/audio"
	"voiceclip/internal/config"
	"voiceclip/internal/interval"
	"voiceclip/internal/notifications"
	"voiceclip/internal/shorts"
	"voiceclip/internal/subtitles"
	"voiceclip/internal/testsupport"
)

type cliTestEnv struct {
	cfg         *config.Config
	configPath  string
	baseDir     string
	pool        *testsupport.EmbedderPool
	decoder     *testsupport.MapDecoder
	transcriber *fakeTranscriber
	renderer    *fakeRenderer
	notifier    *fakeNotifier
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	opts = append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:         cfg,
		configPath:  configPath,
		baseDir:     base,
		pool:        &testsupport.EmbedderPool{},
		decoder:     &testsupport.MapDecoder{Timelines: map[string]audio.Timeline{}},
		transcriber: &fakeTranscriber{},
		renderer:    &fakeRenderer{},
		notifier:    &fakeNotifier{},
	}
}

// addSource writes a placeholder media file and registers its timeline.
func (e *cliTestEnv) addSource(t *testing.T, name string, timeline audio.Timeline) string {
	t.Helper()
	path := filepath.Join(e.baseDir, "media", name)
	testsupport.WriteFile(t, path, 64)
	e.decoder.Timelines[path] = timeline
	return path
}

func (e *cliTestEnv) commandContext() *commandContext {
	ctx := newCommandContext()
	ctx.embedders = e.pool.Factory()
	ctx.decoder = e.decoder
	ctx.transcriber = e.transcriber
	ctx.renderer = e.renderer
	ctx.notifier = e.notifier
	return ctx
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommandWithContext(env.commandContext())
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nwork_dir = %q\noutput_dir = %q\nlog_dir = %q\nstate_dir = %q\nreference_path = %q\n\n[detection]\nwindow_seconds = 3.0\n\n[logging]\nlevel = \"error\"\n",
		cfg.Paths.WorkDir,
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		cfg.Paths.StateDir,
		cfg.Paths.ReferencePath,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeTimestamps(t *testing.T, path string, spans ...interval.Interval) {
	t.Helper()
	if err := interval.WriteTimestampFile(path, "Segments", spans); err != nil {
		t.Fatalf("write timestamps: %v", err)
	}
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}

// fakeTranscriber returns one word per second of the clip.
type fakeTranscriber struct {
	mu    sync.Mutex
	calls []interval.Interval
}

func (f *fakeTranscriber) TranscribeWords(_ context.Context, _ string, clip interval.Interval) ([]subtitles.Word, error) {
	f.mu.Lock()
	f.calls = append(f.calls, clip)
	f.mu.Unlock()
	var words []subtitles.Word
	for i := 0; i < int(clip.Duration()); i++ {
		words = append(words, subtitles.Word{Start: float64(i), End: float64(i) + 0.8, Text: fmt.Sprintf("word%d", i)})
	}
	return words, nil
}

// fakeRenderer writes a placeholder output for each job.
type fakeRenderer struct {
	mu   sync.Mutex
	jobs []shorts.RenderJob
}

func (f *fakeRenderer) Render(_ context.Context, job shorts.RenderJob) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	return os.WriteFile(job.Output, []byte("video"), 0o644)
}

func (f *fakeRenderer) Jobs() []shorts.RenderJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]shorts.RenderJob(nil), f.jobs...)
}

type fakeNotifier struct {
	mu      sync.Mutex
	batches []notifications.BatchNotice
	shorts  []notifications.ShortsNotice
	tests   int
}

func (f *fakeNotifier) NotifyBatchCompleted(_ context.Context, notice notifications.BatchNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, notice)
	return nil
}

func (f *fakeNotifier) NotifyShortsCompleted(_ context.Context, notice notifications.ShortsNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shorts = append(f.shorts, notice)
	return nil
}

func (f *fakeNotifier) NotifyError(context.Context, error, string) error { return nil }

func (f *fakeNotifier) TestNotification(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tests++
	return nil
}
