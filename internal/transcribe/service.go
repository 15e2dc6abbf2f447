package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"voiceclip/internal/audio"
	"voiceclip/internal/interval"
	langpkg "voiceclip/internal/language"
	"voiceclip/internal/logging"
	"voiceclip/internal/services"
	"voiceclip/internal/subtitles"
)

// Transcriber returns word timestamps for one clip of a source, relative to
// the clip start.
type Transcriber interface {
	TranscribeWords(ctx context.Context, source string, clip interval.Interval) ([]subtitles.Word, error)
}

// ClipExtractor writes the audio of a clip to a WAV file.
type ClipExtractor interface {
	ExtractClip(ctx context.Context, source string, span interval.Interval, dest string) error
}

// Service runs WhisperX through uvx. Calls are serialized so a single GPU is
// never shared between two transcriptions.
type Service struct {
	mu            sync.Mutex
	cfg           Config
	extractor     ClipExtractor
	commandRunner services.CommandRunner
	logger        *slog.Logger
}

// NewService creates a WhisperX service. extractor defaults to ffmpeg.
func NewService(cfg Config, extractor ClipExtractor, logger *slog.Logger) *Service {
	if extractor == nil {
		extractor = audio.NewFFmpegDecoder("", audio.DefaultSampleRate)
	}
	return &Service{
		cfg:       cfg,
		extractor: extractor,
		logger:    logging.NewComponentLogger(logger, "transcribe"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner services.CommandRunner) {
	s.commandRunner = runner
}

// Model returns the configured WhisperX model.
func (s *Service) Model() string {
	return ModelFor(s.cfg.Variant)
}

// TranscribeWords extracts the clip audio, runs WhisperX on it, and returns the
// aligned words. Timestamps start at zero for the clip start.
func (s *Service) TranscribeWords(ctx context.Context, source string, clip interval.Interval) ([]subtitles.Word, error) {
	if err := clip.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	workDir, cleanup, err := audio.NewTaskDir(s.cfg.WorkDir, "transcribe")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	clipPath := filepath.Join(workDir, "clip.wav")
	if err := s.extractor.ExtractClip(ctx, source, clip, clipPath); err != nil {
		return nil, err
	}
	args := s.buildArgs(clipPath, workDir)
	s.logger.Debug("whisperx starting",
		logging.String("model", s.Model()),
		logging.String("clip", clip.String()),
	)
	if err := s.run(ctx, UVXCommand, args...); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", clip.String(), err)
	}
	words, err := LoadWords(filepath.Join(workDir, "clip.json"))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "read whisperx output", clip.String(), err)
	}
	s.logger.Debug("whisperx finished", logging.Int("words", len(words)))
	return words, nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	return services.RunCommand(ctx, name, args...)
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 32)
	if s.cfg.CUDAEnabled {
		args = append(args, "--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}
	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}
	if lang := langpkg.ToISO2(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

type whisperXWord struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

type whisperXSegment struct {
	Text  string         `json:"text"`
	Start float64        `json:"start"`
	End   float64        `json:"end"`
	Words []whisperXWord `json:"words"`
}

type whisperXPayload struct {
	Segments []whisperXSegment `json:"segments"`
}

// LoadWords reads word timings from a WhisperX JSON file. Words that WhisperX
// could not align (digits, symbols) inherit the previous word's end, or the
// segment start for the first word.
func LoadWords(jsonPath string) ([]subtitles.Word, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	var words []subtitles.Word
	for _, seg := range payload.Segments {
		cursor := seg.Start
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			start, end := cursor, cursor
			if w.Start != nil {
				start = *w.Start
			}
			if w.End != nil {
				end = *w.End
			} else {
				end = start
			}
			words = append(words, subtitles.Word{Start: start, End: end, Text: text})
			cursor = end
		}
	}
	return words, nil
}
