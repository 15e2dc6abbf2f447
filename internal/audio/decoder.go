package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voiceclip/internal/fileutil"
	"voiceclip/internal/interval"
	"voiceclip/internal/services"
)

// Decoder turns a media file into a mono timeline. workDir is scratch space
// owned by the caller and removed after the task finishes.
type Decoder interface {
	Decode(ctx context.Context, source, workDir string) (Timeline, error)
}

// FFmpegDecoder extracts mono PCM with ffmpeg and decodes the resulting WAV.
type FFmpegDecoder struct {
	Binary     string
	SampleRate int
	Runner     services.CommandRunner
}

// NewFFmpegDecoder constructs a decoder using the given ffmpeg binary.
func NewFFmpegDecoder(binary string, sampleRate int) *FFmpegDecoder {
	return &FFmpegDecoder{Binary: binary, SampleRate: sampleRate}
}

// Decode extracts the first audio stream of source into workDir and loads it.
func (d *FFmpegDecoder) Decode(ctx context.Context, source, workDir string) (Timeline, error) {
	if strings.TrimSpace(source) == "" {
		return Timeline{}, services.Wrap(services.ErrValidation, "decode", "extract audio", "source path required", nil)
	}
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Timeline{}, services.Wrap(services.ErrNotFound, "decode", "stat source", source, err)
		}
		return Timeline{}, fmt.Errorf("stat source: %w", err)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Timeline{}, fmt.Errorf("ensure work dir: %w", err)
	}
	dest := filepath.Join(workDir, fileutil.BaseName(source)+".wav")
	args := ExtractArgs(source, nil, d.sampleRate(), dest)
	if err := d.run(ctx, args...); err != nil {
		return Timeline{}, services.Wrap(services.ErrExternalTool, "decode", "ffmpeg", filepath.Base(source), err)
	}
	timeline, err := LoadWAV(dest)
	if err != nil {
		return Timeline{}, services.Wrap(services.ErrExternalTool, "decode", "load wav", filepath.Base(dest), err)
	}
	return timeline, nil
}

// ExtractClip writes the audio of span within source to dest as mono PCM WAV.
func (d *FFmpegDecoder) ExtractClip(ctx context.Context, source string, span interval.Interval, dest string) error {
	if err := span.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("ensure clip dir: %w", err)
	}
	if err := d.run(ctx, ExtractArgs(source, &span, d.sampleRate(), dest)...); err != nil {
		return services.Wrap(services.ErrExternalTool, "decode", "ffmpeg extract clip", span.String(), err)
	}
	return nil
}

// ExtractArgs builds the ffmpeg arguments for a mono PCM extraction. A nil
// span extracts the whole stream.
func ExtractArgs(source string, span *interval.Interval, sampleRate int, dest string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if span != nil {
		args = append(args,
			"-ss", strconv.FormatFloat(span.Start, 'f', 3, 64),
			"-t", strconv.FormatFloat(span.Duration(), 'f', 3, 64),
		)
	}
	args = append(args,
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		dest,
	)
	return args
}

func (d *FFmpegDecoder) sampleRate() int {
	if d.SampleRate > 0 {
		return d.SampleRate
	}
	return DefaultSampleRate
}

func (d *FFmpegDecoder) run(ctx context.Context, args ...string) error {
	binary := d.Binary
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	runner := d.Runner
	if runner == nil {
		runner = services.RunCommand
	}
	return runner(ctx, binary, args...)
}
