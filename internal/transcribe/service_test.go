package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"voiceclip/internal/interval"
	"voiceclip/internal/services"
	"voiceclip/internal/subtitles"
)

type recordingExtractor struct {
	spans []interval.Interval
	err   error
}

func (r *recordingExtractor) ExtractClip(_ context.Context, _ string, span interval.Interval, dest string) error {
	r.spans = append(r.spans, span)
	if r.err != nil {
		return r.err
	}
	return os.WriteFile(dest, []byte("RIFF"), 0o644)
}

const sampleJSON = `{"segments":[
 {"text":"hello there","start":0.1,"end":0.9,"words":[
  {"word":"hello","start":0.1,"end":0.4,"score":0.9},
  {"word":"there","start":0.5,"end":0.9}
 ]},
 {"text":"in 2024","start":1.0,"end":1.8,"words":[
  {"word":"in","start":1.0,"end":1.2},
  {"word":"2024"},
  {"word":" "}
 ]}
]}`

func fakeWhisperX(t *testing.T, got *[]string) services.CommandRunner {
	t.Helper()
	return func(_ context.Context, name string, args ...string) error {
		if name != UVXCommand {
			t.Fatalf("unexpected command %q", name)
		}
		*got = args
		outDir := args[slices.Index(args, "--output_dir")+1]
		return os.WriteFile(filepath.Join(outDir, "clip.json"), []byte(sampleJSON), 0o644)
	}
}

func TestTranscribeWords(t *testing.T) {
	work := t.TempDir()
	extractor := &recordingExtractor{}
	svc := NewService(Config{Variant: Precise, Language: "french", WorkDir: work}, extractor, nil)
	var args []string
	svc.WithCommandRunner(fakeWhisperX(t, &args))

	clip := interval.Interval{Start: 30, End: 45}
	words, err := svc.TranscribeWords(context.Background(), "/media/show.mp4", clip)
	if err != nil {
		t.Fatalf("TranscribeWords: %v", err)
	}
	want := []subtitles.Word{
		{Start: 0.1, End: 0.4, Text: "hello"},
		{Start: 0.5, End: 0.9, Text: "there"},
		{Start: 1.0, End: 1.2, Text: "in"},
		{Start: 1.2, End: 1.2, Text: "2024"},
	}
	if !slices.Equal(words, want) {
		t.Fatalf("words = %+v", words)
	}
	if len(extractor.spans) != 1 || extractor.spans[0] != clip {
		t.Fatalf("extractor spans = %+v", extractor.spans)
	}
	if args[slices.Index(args, "--model")+1] != PreciseModel {
		t.Fatalf("expected precise model, args=%v", args)
	}
	if args[slices.Index(args, "--language")+1] != "fr" {
		t.Fatalf("expected normalized language, args=%v", args)
	}
	entries, _ := os.ReadDir(work)
	if len(entries) != 0 {
		t.Fatalf("scratch dir not cleaned: %v", entries)
	}
}

func TestTranscribeWordsErrors(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()}, &recordingExtractor{}, nil)
	svc.WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("exit status 1: CUDA out of memory")
	})
	_, err := svc.TranscribeWords(context.Background(), "a.mp4", interval.Interval{Start: 0, End: 5})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}

	if _, err := svc.TranscribeWords(context.Background(), "a.mp4", interval.Interval{Start: 5, End: 5}); !errors.Is(err, services.ErrPolicyViolation) {
		t.Fatalf("expected ErrPolicyViolation for empty clip, got %v", err)
	}

	failing := NewService(Config{WorkDir: t.TempDir()}, &recordingExtractor{err: errors.New("no audio stream")}, nil)
	if _, err := failing.TranscribeWords(context.Background(), "a.mp4", interval.Interval{Start: 0, End: 5}); err == nil || !strings.Contains(err.Error(), "no audio stream") {
		t.Fatalf("expected extractor error, got %v", err)
	}
}

func TestBuildArgs(t *testing.T) {
	svc := NewService(Config{Variant: Fast, VADMethod: VADMethodPyannote, HFToken: "hf_x"}, &recordingExtractor{}, nil)
	args := svc.buildArgs("clip.wav", "/out")
	for _, want := range []string{"whisperx", "clip.wav", FastModel, "--hf_token", "hf_x", CPUDevice, CPUComputeType} {
		if !slices.Contains(args, want) {
			t.Fatalf("args missing %q: %v", want, args)
		}
	}
	if slices.Contains(args, "--language") {
		t.Fatalf("language should be omitted when unset: %v", args)
	}

	gpu := NewService(Config{CUDAEnabled: true}, &recordingExtractor{}, nil).buildArgs("clip.wav", "/out")
	if gpu[1] != CUDAIndexURL || !slices.Contains(gpu, CUDADevice) || slices.Contains(gpu, "--hf_token") {
		t.Fatalf("unexpected gpu args: %v", gpu)
	}
}

func TestLoadWordsMissingFile(t *testing.T) {
	if _, err := LoadWords(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Fatal("expected error for missing output")
	}
}
