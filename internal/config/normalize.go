package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeClips()
	c.normalizeSubtitles()
	c.normalizeOracles()
	c.normalizeBatch()
	c.normalizeRender()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.ReferencePath) == "" {
		c.Paths.ReferencePath = firstEnv("VOICECLIP_REFERENCE")
	}
	fields := []struct {
		key   string
		value *string
	}{
		{"paths.work_dir", &c.Paths.WorkDir},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.reference_path", &c.Paths.ReferencePath},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeClips() {
	c.Clips.AbsorbMode = strings.ToLower(strings.TrimSpace(c.Clips.AbsorbMode))
	if c.Clips.AbsorbMode == "" {
		c.Clips.AbsorbMode = AbsorbBelow
	}
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.Format = strings.ToLower(strings.TrimSpace(c.Subtitles.Format))
	if c.Subtitles.Format == "" {
		c.Subtitles.Format = defaultSubtitleFormat
	}
	c.Subtitles.Position = strings.ToLower(strings.TrimSpace(c.Subtitles.Position))
	if c.Subtitles.Position == "" {
		c.Subtitles.Position = defaultPosition
	}
	c.Subtitles.Font = strings.TrimSpace(c.Subtitles.Font)
	if c.Subtitles.Font == "" {
		c.Subtitles.Font = defaultFont
	}
	if c.Subtitles.FontSize <= 0 {
		c.Subtitles.FontSize = defaultFontSize
	}
}

func (c *Config) normalizeOracles() {
	c.Embedding.Variant = strings.ToLower(strings.TrimSpace(c.Embedding.Variant))
	if c.Embedding.Variant == "" {
		c.Embedding.Variant = defaultVariantFast
	}
	c.Embedding.HFToken = strings.TrimSpace(c.Embedding.HFToken)
	if c.Embedding.HFToken == "" {
		c.Embedding.HFToken = firstEnv("HUGGING_FACE_HUB_TOKEN", "HF_TOKEN")
	}

	c.Transcription.Variant = strings.ToLower(strings.TrimSpace(c.Transcription.Variant))
	if c.Transcription.Variant == "" {
		c.Transcription.Variant = defaultVariantPrecise
	}
	c.Transcription.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.VADMethod))
	if c.Transcription.VADMethod == "" {
		c.Transcription.VADMethod = defaultVADMethod
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
}

func (c *Config) normalizeBatch() {
	if len(c.Batch.Extensions) == 0 {
		c.Batch.Extensions = append([]string(nil), defaultExtensions...)
		return
	}
	exts := make([]string, 0, len(c.Batch.Extensions))
	seen := make(map[string]struct{}, len(c.Batch.Extensions))
	for _, ext := range c.Batch.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultExtensions...)
	}
	c.Batch.Extensions = exts
}

func (c *Config) normalizeRender() {
	c.Render.FFmpegBinary = strings.TrimSpace(c.Render.FFmpegBinary)
	if c.Render.FFmpegBinary == "" {
		c.Render.FFmpegBinary = defaultFFmpegBinary
	}
	c.Render.Preset = strings.TrimSpace(c.Render.Preset)
	if c.Render.Preset == "" {
		c.Render.Preset = defaultRenderPreset
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = firstEnv("VOICECLIP_NTFY_TOPIC")
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// firstEnv returns the first non-empty value among the named variables.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
