package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"voiceclip/internal/audio"
	"voiceclip/internal/config"
	"voiceclip/internal/logging"
	"voiceclip/internal/notifications"
	"voiceclip/internal/render"
	"voiceclip/internal/shorts"
	"voiceclip/internal/transcribe"
	"voiceclip/internal/voiceprint"
)

// commandContext carries flag values and lazily built collaborators shared
// by subcommands. The oracle and tool fields stay nil in production and are
// filled in by tests.
type commandContext struct {
	configFlag   string
	logLevelFlag string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	embedders   voiceprint.Factory
	decoder     audio.Decoder
	transcriber transcribe.Transcriber
	renderer    shorts.Renderer
	notifier    notifications.Service
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if level := strings.TrimSpace(c.logLevelFlag); level != "" {
			cfg.Logging.Level = level
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// setup returns the loaded config and logger for a command.
func (c *commandContext) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func (c *commandContext) embedderFactory(cfg *config.Config) (voiceprint.Factory, error) {
	if c.embedders != nil {
		return c.embedders, nil
	}
	variant, err := voiceprint.ParseVariant(cfg.Embedding.Variant)
	if err != nil {
		return nil, err
	}
	return voiceprint.NewScriptFactory(voiceprint.ScriptConfig{
		Variant:     variant,
		CUDAEnabled: cfg.Embedding.CUDAEnabled,
		HFToken:     cfg.Embedding.HFToken,
		ModelDir:    cfg.ModelDir(),
	}), nil
}

func (c *commandContext) audioDecoder(cfg *config.Config) audio.Decoder {
	if c.decoder != nil {
		return c.decoder
	}
	return audio.NewFFmpegDecoder(cfg.FFmpegBinary(), cfg.Detection.SampleRate)
}

func (c *commandContext) wordTranscriber(cfg *config.Config, logger *slog.Logger) (transcribe.Transcriber, error) {
	if c.transcriber != nil {
		return c.transcriber, nil
	}
	tcfg, err := transcribe.ConfigFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	extractor := audio.NewFFmpegDecoder(cfg.FFmpegBinary(), audio.DefaultSampleRate)
	return transcribe.NewService(tcfg, extractor, logger), nil
}

func (c *commandContext) clipRenderer(cfg *config.Config, logger *slog.Logger) shorts.Renderer {
	if c.renderer != nil {
		return c.renderer
	}
	return render.NewFFmpeg(cfg, logger)
}

func (c *commandContext) notifications(cfg *config.Config) notifications.Service {
	if c.notifier != nil {
		return c.notifier
	}
	return notifications.NewService(cfg)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
