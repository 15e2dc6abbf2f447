package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir       string `toml:"work_dir"`
	OutputDir     string `toml:"output_dir"`
	LogDir        string `toml:"log_dir"`
	StateDir      string `toml:"state_dir"`
	ReferencePath string `toml:"reference_path"`
}

// Detection tunes the window scan and segment consolidation.
type Detection struct {
	WindowSeconds         float64 `toml:"window_seconds"`
	SilenceThreshold      float64 `toml:"silence_threshold"`
	SimilarityThreshold   float64 `toml:"similarity_threshold"`
	MinConsecutiveWindows int     `toml:"min_consecutive_windows"`
	GapToleranceWindows   int     `toml:"gap_tolerance_windows"`
	SampleRate            int     `toml:"sample_rate"`
	TopMatches            int     `toml:"top_matches"`
}

// Clips holds the clip length policy.
type Clips struct {
	MinSeconds    float64 `toml:"min_seconds"`
	MaxSeconds    float64 `toml:"max_seconds"`
	TargetSeconds float64 `toml:"target_seconds"`
	// AbsorbMode is "below" (remainder < min is absorbed) or "at_or_below"
	// (remainder <= min is absorbed).
	AbsorbMode string `toml:"absorb_mode"`
}

// Subtitles controls word grouping and subtitle output.
type Subtitles struct {
	WordsPerGroup  int     `toml:"words_per_group"`
	MinWordSeconds float64 `toml:"min_word_seconds"`
	Format         string  `toml:"format"`
	Uppercase      bool    `toml:"uppercase"`
	HighlightWords bool    `toml:"highlight_words"`
	Font           string  `toml:"font"`
	FontSize       int     `toml:"font_size"`
	Position       string  `toml:"position"`
}

// Embedding configures the speaker embedding oracle.
type Embedding struct {
	Variant     string `toml:"variant"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	HFToken     string `toml:"hf_token"`
}

// Transcription configures the word-level transcription oracle.
type Transcription struct {
	Variant     string `toml:"variant"`
	Language    string `toml:"language"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
}

// Batch controls the multi-file worker pool.
type Batch struct {
	Workers            int      `toml:"workers"`
	TaskTimeoutSeconds int      `toml:"task_timeout_seconds"`
	Extensions         []string `toml:"extensions"`
}

// Render controls clip extraction through ffmpeg.
type Render struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	Vertical       bool   `toml:"vertical"`
	Preset         string `toml:"preset"`
	CRF            int    `toml:"crf"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications configures ntfy delivery. An empty topic disables it.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for voiceclip.
//
// Configuration sections by subsystem:
//   - Paths: working, output, log and state directories plus the reference fingerprint
//   - Detection: window scan and consolidation thresholds
//   - Clips: min/max/target clip policy
//   - Subtitles: word grouping and subtitle styling
//   - Embedding / Transcription: oracle variants and runtime flags
//   - Batch: worker pool size and per-file timeout
//   - Render: ffmpeg clip extraction
//   - Notifications: ntfy topic for run completion messages
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Detection     Detection     `toml:"detection"`
	Clips         Clips         `toml:"clips"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Embedding     Embedding     `toml:"embedding"`
	Transcription Transcription `toml:"transcription"`
	Batch         Batch         `toml:"batch"`
	Render        Render        `toml:"render"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working, output, log and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for decode and render.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Render.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// StateDBPath returns the run history database location.
func (c *Config) StateDBPath() string {
	return filepath.Join(c.Paths.StateDir, "voiceclip.db")
}

// ModelDir caches downloaded speaker embedding models between runs.
func (c *Config) ModelDir() string {
	return filepath.Join(c.Paths.StateDir, "models")
}

// LockPath returns the workspace lock file that serializes batch and shorts runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "voiceclip.lock")
}

// AcceptsExtension reports whether name carries one of the configured batch
// input extensions.
func (c *Config) AcceptsExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range c.Batch.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
