package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"voiceclip/internal/interval"
	"voiceclip/internal/services"
)

func sine(seconds float64, rate int, amplitude float32) Timeline {
	n := int(seconds * float64(rate))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = amplitude * float32(math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return Timeline{Samples: samples, SampleRate: rate}
}

func TestTimelineDurationAndRange(t *testing.T) {
	tl := Timeline{Samples: make([]float32, 48000), SampleRate: 16000}
	if got := tl.Duration(); got != 3 {
		t.Fatalf("duration = %v, want 3", got)
	}
	if got := len(tl.Range(1, 2)); got != 16000 {
		t.Fatalf("range length = %d, want 16000", got)
	}
	if got := len(tl.Range(2.5, 10)); got != 8000 {
		t.Fatalf("clamped range length = %d, want 8000", got)
	}
	if got := tl.Range(2, 1); got != nil {
		t.Fatalf("inverted range should be nil, got %d samples", len(got))
	}
	if (Timeline{}).Duration() != 0 {
		t.Fatal("zero timeline should have zero duration")
	}
}

func TestPeakAmplitude(t *testing.T) {
	if got := PeakAmplitude([]float32{0.1, -0.4, 0.3}); math.Abs(got-0.4) > 1e-6 {
		t.Fatalf("peak = %v, want 0.4", got)
	}
	if PeakAmplitude(nil) != 0 {
		t.Fatal("empty input should have zero peak")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	original := sine(0.5, 16000, 0.5)
	if err := SaveWAV(path, original); err != nil {
		t.Fatalf("SaveWAV: %v", err)
	}
	decoded, err := LoadWAV(path)
	if err != nil {
		t.Fatalf("LoadWAV: %v", err)
	}
	if decoded.SampleRate != 16000 {
		t.Fatalf("sample rate = %d", decoded.SampleRate)
	}
	if len(decoded.Samples) != len(original.Samples) {
		t.Fatalf("samples = %d, want %d", len(decoded.Samples), len(original.Samples))
	}
	for i := range original.Samples {
		if diff := math.Abs(float64(decoded.Samples[i] - original.Samples[i])); diff > 1e-3 {
			t.Fatalf("sample %d differs by %v", i, diff)
		}
	}
}

func TestLoadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("definitely not riff data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWAV(path); err == nil {
		t.Fatal("expected error for non-wav input")
	}
}

func TestExtractArgs(t *testing.T) {
	args := ExtractArgs("in.mp4", nil, 16000, "out.wav")
	want := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", "in.mp4", "-map", "0:a:0", "-vn", "-sn", "-dn", "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le", "out.wav"}
	if !slices.Equal(args, want) {
		t.Fatalf("args = %v", args)
	}

	span := interval.Interval{Start: 12.5, End: 20}
	args = ExtractArgs("in.mp4", &span, 16000, "clip.wav")
	if !slices.Contains(args, "-ss") || args[slices.Index(args, "-ss")+1] != "12.500" {
		t.Fatalf("missing seek: %v", args)
	}
	if args[slices.Index(args, "-t")+1] != "7.500" {
		t.Fatalf("unexpected duration: %v", args)
	}
}

func TestFFmpegDecoderDecodesExtractedWAV(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "episode.mkv")
	if err := os.WriteFile(source, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	var gotBinary string
	decoder := &FFmpegDecoder{
		Binary:     "/opt/ffmpeg",
		SampleRate: 16000,
		Runner: func(_ context.Context, name string, args ...string) error {
			gotBinary = name
			return SaveWAV(args[len(args)-1], sine(1, 16000, 0.25))
		},
	}
	work := filepath.Join(dir, "work")
	tl, err := decoder.Decode(context.Background(), source, work)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotBinary != "/opt/ffmpeg" {
		t.Fatalf("binary = %q", gotBinary)
	}
	if math.Abs(tl.Duration()-1) > 1e-9 {
		t.Fatalf("duration = %v", tl.Duration())
	}
	if _, err := os.Stat(filepath.Join(work, "episode.wav")); err != nil {
		t.Fatalf("expected extracted wav in work dir: %v", err)
	}
}

func TestFFmpegDecoderErrors(t *testing.T) {
	decoder := &FFmpegDecoder{Runner: func(context.Context, string, ...string) error {
		return errors.New("exit status 1")
	}}
	_, err := decoder.Decode(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), t.TempDir())
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	source := filepath.Join(t.TempDir(), "a.mp4")
	if err := os.WriteFile(source, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = decoder.Decode(context.Background(), source, t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestNewTaskDirCleanup(t *testing.T) {
	parent := t.TempDir()
	dir, cleanup, err := NewTaskDir(parent, "task")
	if err != nil {
		t.Fatalf("NewTaskDir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scratch.wav"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cleanup()
	cleanup()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected task dir removed, stat err=%v", err)
	}
}
