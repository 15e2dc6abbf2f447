package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateDetection,
		c.validateClips,
		c.validateSubtitles,
		c.validateOracles,
		c.validateBatch,
		c.validateRender,
		c.validateNotifications,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateDetection() error {
	d := c.Detection
	if d.WindowSeconds <= 0 {
		return errors.New("detection.window_seconds must be positive")
	}
	if d.SampleRate <= 0 {
		return errors.New("detection.sample_rate must be positive")
	}
	samples := d.WindowSeconds * float64(d.SampleRate)
	if math.Abs(samples-math.Round(samples)) > 1e-6 {
		return fmt.Errorf("detection.window_seconds (%g) times detection.sample_rate (%d) must be a whole number of samples", d.WindowSeconds, d.SampleRate)
	}
	if d.SilenceThreshold < 0 || d.SilenceThreshold >= 1 {
		return errors.New("detection.silence_threshold must be in [0, 1)")
	}
	if d.SimilarityThreshold < -1 || d.SimilarityThreshold > 1 {
		return errors.New("detection.similarity_threshold must be between -1 and 1")
	}
	if d.MinConsecutiveWindows < 1 {
		return errors.New("detection.min_consecutive_windows must be >= 1")
	}
	if d.GapToleranceWindows < 0 {
		return errors.New("detection.gap_tolerance_windows must be >= 0")
	}
	if d.TopMatches < 0 {
		return errors.New("detection.top_matches must be >= 0")
	}
	return nil
}

func (c *Config) validateClips() error {
	p := c.Clips
	if p.MinSeconds <= 0 || p.MaxSeconds <= 0 || p.TargetSeconds <= 0 {
		return errors.New("clips.min_seconds, clips.max_seconds and clips.target_seconds must be positive")
	}
	if p.MinSeconds > p.TargetSeconds {
		return errors.New("clips.min_seconds must not exceed clips.target_seconds")
	}
	if p.TargetSeconds > p.MaxSeconds {
		return errors.New("clips.target_seconds must not exceed clips.max_seconds")
	}
	switch p.AbsorbMode {
	case AbsorbBelow, AbsorbAtOrBelow:
	default:
		return fmt.Errorf("clips.absorb_mode must be %q or %q, got %q", AbsorbBelow, AbsorbAtOrBelow, p.AbsorbMode)
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	s := c.Subtitles
	if s.WordsPerGroup < 1 {
		return errors.New("subtitles.words_per_group must be >= 1")
	}
	if s.MinWordSeconds < 0 {
		return errors.New("subtitles.min_word_seconds must be >= 0")
	}
	switch s.Format {
	case "srt", "ass":
	default:
		return fmt.Errorf("subtitles.format must be srt or ass, got %q", s.Format)
	}
	switch s.Position {
	case "top", "center", "bottom":
	default:
		return fmt.Errorf("subtitles.position must be top, center or bottom, got %q", s.Position)
	}
	return nil
}

func (c *Config) validateOracles() error {
	if err := validateVariant("embedding.variant", c.Embedding.Variant); err != nil {
		return err
	}
	if err := validateVariant("transcription.variant", c.Transcription.Variant); err != nil {
		return err
	}
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.vad_method must be silero or pyannote, got %q", c.Transcription.VADMethod)
	}
	return nil
}

func validateVariant(key, value string) error {
	switch value {
	case defaultVariantFast, defaultVariantPrecise:
		return nil
	default:
		return fmt.Errorf("%s must be fast or precise, got %q", key, value)
	}
}

func (c *Config) validateBatch() error {
	if c.Batch.Workers < 1 {
		return errors.New("batch.workers must be >= 1")
	}
	if c.Batch.TaskTimeoutSeconds <= 0 {
		return errors.New("batch.task_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.CRF < 0 || c.Render.CRF > 51 {
		return errors.New("render.crf must be between 0 and 51")
	}
	if c.Render.TimeoutSeconds <= 0 {
		return errors.New("render.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	return nil
}
