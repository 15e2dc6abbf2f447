package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voiceclip/internal/clips"
	"voiceclip/internal/interval"
	"voiceclip/internal/shorts"
	"voiceclip/internal/store"
	"voiceclip/internal/testsupport"
	"voiceclip/internal/voiceprint"
)

func TestDetectWritesTimestampsAndHistory(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithReference(1, 0))
	source := env.addSource(t, "talk.wav", testsupport.LevelTimeline(3, 0.99, 0.99, 0.2, 0, 0.99))

	out, _, err := runCLI(t, env, "detect", source)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	requireContains(t, out, "Best window: #0")

	target := filepath.Join(env.cfg.Paths.OutputDir, "talk_timestamps.txt")
	spans, skipped, err := interval.ReadTimestampFile(target)
	if err != nil {
		t.Fatalf("read timestamps: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("unexpected skipped lines: %v", skipped)
	}
	want := []interval.Interval{{Start: 0, End: 6}, {Start: 12, End: 15}}
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %v", len(want), spans)
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Fatalf("span %d = %v, want %v", i, spans[i], want[i])
		}
	}
	for _, h := range env.pool.Handles() {
		if !h.Closed() {
			t.Fatal("embedder handle left open")
		}
	}

	out, _, err = runCLI(t, env, "history", "list", "--json")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var runs []store.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Kind != store.KindDetect || runs[0].Succeeded != 1 {
		t.Fatalf("unexpected history: %+v", runs)
	}
	if runs[0].MatchedDuration != 9 {
		t.Fatalf("matched duration = %v, want 9", runs[0].MatchedDuration)
	}
}

func TestDetectMissingReferenceFails(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.addSource(t, "talk.wav", testsupport.LevelTimeline(3, 0.99))

	if _, _, err := runCLI(t, env, "detect", source); err == nil {
		t.Fatal("expected detect to fail without a reference")
	}
	if len(env.pool.Handles()) != 0 {
		t.Fatal("embedder should not be opened without a reference")
	}
}

func TestBatchIsolatesFailingSources(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithReference(1, 0))
	good := env.addSource(t, "a.wav", testsupport.LevelTimeline(3, 0.99, 0.99))
	bad := filepath.Join(env.baseDir, "media", "b.wav")
	testsupport.WriteFile(t, bad, 64)

	out, _, err := runCLI(t, env, "batch", "--skip-preflight", "--workers", "2", good, bad)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	requireContains(t, out, "2 sources, 1 succeeded, 1 failed")
	requireContains(t, out, "Top sources: a.wav")
	if len(env.notifier.batches) != 1 || env.notifier.batches[0].Failed != 1 {
		t.Fatalf("unexpected batch notifications: %+v", env.notifier.batches)
	}

	reports, err := filepath.Glob(filepath.Join(env.cfg.Paths.OutputDir, "batch_*.json"))
	if err != nil || len(reports) != 1 {
		t.Fatalf("expected one json report, got %v (%v)", reports, err)
	}
	runLogs, err := filepath.Glob(filepath.Join(env.cfg.Paths.LogDir, "runs", "*.log"))
	if err != nil || len(runLogs) != 1 {
		t.Fatalf("expected one run log, got %v (%v)", runLogs, err)
	}
	requireContains(t, out, "Run log: "+runLogs[0])

	out, _, err = runCLI(t, env, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "batch")
}

func TestBatchFailsWhenEverySourceFails(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithReference(1, 0))
	dir := filepath.Join(env.baseDir, "media")
	testsupport.WriteFile(t, filepath.Join(dir, "x.mp4"), 16)
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), 16)

	out, _, err := runCLI(t, env, "batch", "--skip-preflight", dir)
	if err == nil || !strings.Contains(err.Error(), "all 1 sources failed") {
		t.Fatalf("expected all-failed error, got %v", err)
	}
	if strings.Contains(out, "notes.txt") {
		t.Fatalf("unaccepted extension was processed:\n%s", out)
	}
}

func TestClipsSplitsTimestampFile(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "segments.txt")
	writeTimestamps(t, input,
		interval.Interval{Start: 0, End: 70},
		interval.Interval{Start: 120, End: 122},
	)

	out, _, err := runCLI(t, env, "clips", input, "--json")
	if err != nil {
		t.Fatalf("clips: %v", err)
	}
	var got []clips.Clip
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode clips: %v\n%s", err, out)
	}
	want := []interval.Interval{{Start: 0, End: 30}, {Start: 30, End: 60}, {Start: 60, End: 70}}
	if len(got) != len(want) {
		t.Fatalf("expected %d clips, got %+v", len(want), got)
	}
	for i := range want {
		if got[i].Interval != want[i] || got[i].Index != i+1 {
			t.Fatalf("clip %d = %+v, want %v", i, got[i], want[i])
		}
	}

	output := filepath.Join(env.baseDir, "clips.txt")
	if _, _, err := runCLI(t, env, "clips", input, "--max", "80", "--target", "40", "-o", output); err != nil {
		t.Fatalf("clips with overrides: %v", err)
	}
	spans, _, err := interval.ReadTimestampFile(output)
	if err != nil {
		t.Fatalf("read clips output: %v", err)
	}
	if len(spans) != 1 || spans[0] != (interval.Interval{Start: 0, End: 70}) {
		t.Fatalf("expected the 70s segment kept whole, got %v", spans)
	}
}

func TestClipsRejectsInvalidPolicy(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "segments.txt")
	writeTimestamps(t, input, interval.Interval{Start: 0, End: 10})

	if _, _, err := runCLI(t, env, "clips", input, "--min", "40"); err == nil {
		t.Fatal("expected policy violation for min above target")
	}
}

func TestSubtitlesFromWordsFile(t *testing.T) {
	env := setupCLITestEnv(t)
	wordsPath := filepath.Join(env.baseDir, "clip.json")
	payload := `{"segments":[{"start":0,"end":3,"words":[
		{"word":"one","start":0.0,"end":0.4},
		{"word":"two","start":0.5,"end":0.9},
		{"word":"three","start":1.0,"end":1.4},
		{"word":"four","start":1.5,"end":1.9},
		{"word":"five","start":2.0,"end":2.6}]}]}`
	if err := os.WriteFile(wordsPath, []byte(payload), 0o644); err != nil {
		t.Fatalf("write words: %v", err)
	}
	target := filepath.Join(env.baseDir, "clip.srt")

	out, _, err := runCLI(t, env, "subtitles", "--words", wordsPath, "--format", "srt", "-o", target)
	if err != nil {
		t.Fatalf("subtitles: %v", err)
	}
	requireContains(t, out, "Wrote 2 subtitle events from 5 words")

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	requireContains(t, string(data), "one two three four")
	requireContains(t, string(data), "00:00:02,000 --> 00:00:02,600")
}

func TestSubtitlesTranscribesSpan(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.addSource(t, "talk.mp4", testsupport.LevelTimeline(3, 0.5))

	out, _, err := runCLI(t, env, "subtitles", source, "--start", "00:00:10", "--end", "18")
	if err != nil {
		t.Fatalf("subtitles: %v", err)
	}
	requireContains(t, out, "from 8 words")
	if len(env.transcriber.calls) != 1 || env.transcriber.calls[0] != (interval.Interval{Start: 10, End: 18}) {
		t.Fatalf("unexpected transcription calls: %v", env.transcriber.calls)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.OutputDir, "talk_10s-18s.ass")); err != nil {
		t.Fatalf("expected ass output: %v", err)
	}

	if _, _, err := runCLI(t, env, "subtitles", source, "--start", "00:00:10"); err == nil {
		t.Fatal("expected error without --end")
	}
}

func TestShortsFromTimestamps(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.addSource(t, "show.mp4", testsupport.LevelTimeline(3, 0.5))
	input := filepath.Join(env.baseDir, "segments.txt")
	writeTimestamps(t, input, interval.Interval{Start: 100, End: 161})

	out, _, err := runCLI(t, env, "shorts", source, "--skip-preflight", "--timestamps", input, "--vertical", "--title", "Guest")
	if err != nil {
		t.Fatalf("shorts: %v", err)
	}
	requireContains(t, out, "Rendered 2 of 2 clips")

	jobs := env.renderer.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 render jobs, got %d", len(jobs))
	}
	for _, job := range jobs {
		if !job.Vertical || job.Title != "Guest" || job.SubtitlePath == "" {
			t.Fatalf("unexpected job: %+v", job)
		}
	}
	if jobs[0].Clip != (interval.Interval{Start: 100, End: 130}) || jobs[1].Clip != (interval.Interval{Start: 130, End: 161}) {
		t.Fatalf("unexpected clips: %v, %v", jobs[0].Clip, jobs[1].Clip)
	}

	manifest, err := shorts.LoadManifest(shorts.ManifestPath(filepath.Join(env.cfg.Paths.OutputDir, "shorts"), source))
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if manifest.Succeeded() != 2 || !manifest.Clips[1].Absorbed {
		t.Fatalf("unexpected manifest: %+v", manifest.Clips)
	}
	if len(env.notifier.shorts) != 1 || env.notifier.shorts[0].Rendered != 2 {
		t.Fatalf("unexpected shorts notifications: %+v", env.notifier.shorts)
	}

	out, _, err = runCLI(t, env, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "shorts")
}

func TestShortsDetectsWithoutTimestamps(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithReference(1, 0))
	levels := make([]float32, 0, 24)
	for range 24 {
		levels = append(levels, 0.99)
	}
	source := env.addSource(t, "show.mp4", testsupport.LevelTimeline(3, levels...))

	out, _, err := runCLI(t, env, "shorts", source, "--skip-preflight", "--no-subtitles")
	if err != nil {
		t.Fatalf("shorts: %v", err)
	}
	requireContains(t, out, "Detected 1 segments")
	requireContains(t, out, "Rendered 3 of 3 clips")
	if len(env.transcriber.calls) != 0 {
		t.Fatal("transcriber must not run with --no-subtitles")
	}
	for _, job := range env.renderer.Jobs() {
		if job.SubtitlePath != "" {
			t.Fatalf("unexpected subtitles for %+v", job)
		}
	}
}

func TestEnrollBuildsReference(t *testing.T) {
	env := setupCLITestEnv(t)
	first := env.addSource(t, "sample1.wav", testsupport.LevelTimeline(3, 0.6))
	second := env.addSource(t, "sample2.wav", testsupport.LevelTimeline(3, 0.8))
	broken := filepath.Join(env.baseDir, "media", "broken.wav")
	testsupport.WriteFile(t, broken, 8)

	out, _, err := runCLI(t, env, "enroll", first, second, broken)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	requireContains(t, out, "Enrolled 2 sample(s)")
	requireContains(t, out, "Skipped: broken.wav")

	ref, err := voiceprint.LoadReference(env.cfg.Paths.ReferencePath)
	if err != nil {
		t.Fatalf("load reference: %v", err)
	}
	if len(ref.Sources) != 2 || ref.Dimension != 2 {
		t.Fatalf("unexpected reference: %+v", ref)
	}
	if ref.Model != voiceprint.FastEmbeddingModel {
		t.Fatalf("model = %q", ref.Model)
	}

	if _, _, err := runCLI(t, env, "enroll", first); err == nil {
		t.Fatal("expected enroll to refuse replacing an existing reference")
	}
	if _, _, err := runCLI(t, env, "enroll", "--overwrite", first); err != nil {
		t.Fatalf("enroll --overwrite: %v", err)
	}
}

func TestHistoryShowPruneAndClear(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithReference(1, 0))
	source := env.addSource(t, "talk.wav", testsupport.LevelTimeline(3, 0.99))
	if _, _, err := runCLI(t, env, "detect", source); err != nil {
		t.Fatalf("detect: %v", err)
	}

	out, _, err := runCLI(t, env, "history", "list", "--json")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var runs []store.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil || len(runs) != 1 {
		t.Fatalf("decode runs: %v (%d)", err, len(runs))
	}

	out, _, err = runCLI(t, env, "history", "show", runs[0].ID[:8])
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "talk.wav")
	requireContains(t, out, runs[0].ID)

	if _, _, err := runCLI(t, env, "history", "show", "does-not-exist"); err == nil {
		t.Fatal("expected error for unknown run")
	}

	out, _, err = runCLI(t, env, "history", "prune", "--older-than", "1h")
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	requireContains(t, out, "Removed 0 run(s)")

	if _, _, err := runCLI(t, env, "history", "clear"); err != nil {
		t.Fatalf("history clear: %v", err)
	}
	out, _, err = runCLI(t, env, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestDoctorReportsMissingReference(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "doctor", "--notify")
	if err == nil {
		t.Fatal("expected doctor to fail without a reference")
	}
	requireContains(t, out, "Reference fingerprint")
	requireContains(t, out, "FAIL")
	requireContains(t, out, "ffmpeg")
	requireContains(t, out, "Test notification sent")
	if env.notifier.tests != 1 {
		t.Fatalf("expected one test notification, got %d", env.notifier.tests)
	}
}

func TestLogsFiltersByRun(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.cfg.Paths.LogDir, "voiceclip.log")
	testsupport.WriteFile(t, path, 1)
	content := "INFO batch starting run_id=abc\nINFO batch starting run_id=def\nWARN source failed run_id=abc\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, env, "logs", "--run", "abc", "-n", "5")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "def") || strings.Count(out, "run_id=abc") != 2 {
		t.Fatalf("unexpected logs output:\n%s", out)
	}
}
