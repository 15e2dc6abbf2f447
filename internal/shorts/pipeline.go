package shorts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voiceclip/internal/clips"
	"voiceclip/internal/config"
	"voiceclip/internal/fileutil"
	"voiceclip/internal/interval"
	"voiceclip/internal/logging"
	"voiceclip/internal/render"
	"voiceclip/internal/services"
	"voiceclip/internal/subtitles"
	"voiceclip/internal/textutil"
	"voiceclip/internal/transcribe"
)

// RenderJob describes one clip handed to a Renderer.
type RenderJob = render.Job

// Renderer produces the final video for a clip.
type Renderer interface {
	Render(ctx context.Context, job RenderJob) error
}

// Options configure a shorts run.
type Options struct {
	OutputDir string
	Policy    clips.Policy
	Subtitles subtitles.Settings
	// SkipSubtitles renders clips without transcription or subtitle files.
	SkipSubtitles bool
	Vertical      bool
	Title         string
}

// OptionsFromConfig maps the [clips], [subtitles], [render] and [paths]
// sections.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	policy, err := clips.PolicyFromConfig(cfg)
	if err != nil {
		return Options{}, err
	}
	settings, err := subtitles.SettingsFromConfig(cfg)
	if err != nil {
		return Options{}, services.Wrap(services.ErrConfiguration, "shorts", "subtitle settings", err.Error(), err)
	}
	return Options{
		OutputDir: filepath.Join(cfg.Paths.OutputDir, "shorts"),
		Policy:    policy,
		Subtitles: settings,
		Vertical:  cfg.Render.Vertical,
	}, nil
}

// Pipeline assembles shorts from one source.
type Pipeline struct {
	Transcriber transcribe.Transcriber
	Renderer    Renderer
	Options     Options
	Logger      *slog.Logger
}

// Run splits segments into clips and renders each one. The returned manifest
// lists every clip, including failed ones; the error is non-nil only when the
// run could not start or was cancelled.
func (p *Pipeline) Run(ctx context.Context, source string, segments []interval.Interval) (Manifest, error) {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.Logger, "shorts"))
	started := time.Now()
	manifest := Manifest{
		Source:    source,
		CreatedAt: started.UTC(),
		Policy:    policySummary(p.Options.Policy),
	}

	if p.Renderer == nil {
		return manifest, services.Wrap(services.ErrConfiguration, "shorts", "run", "renderer is required", nil)
	}
	if !p.Options.SkipSubtitles && p.Transcriber == nil {
		return manifest, services.Wrap(services.ErrConfiguration, "shorts", "run", "transcriber is required when subtitles are enabled", nil)
	}
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return manifest, services.Wrap(services.ErrNotFound, "shorts", "stat source", source, err)
		}
		return manifest, fmt.Errorf("stat source: %w", err)
	}
	if err := os.MkdirAll(p.Options.OutputDir, 0o755); err != nil {
		return manifest, fmt.Errorf("ensure output dir: %w", err)
	}

	splitter := clips.Splitter{Policy: p.Options.Policy, Logger: logger}
	clipList, err := splitter.Split(segments)
	if err != nil {
		return manifest, err
	}
	logger.Info("shorts planned",
		logging.String("source", filepath.Base(source)),
		logging.Int("segments", len(segments)),
		logging.Int("clips", len(clipList)),
		logging.Seconds("clip_total", clips.Total(clipList)),
	)

	name := textutil.SanitizeFileName(fileutil.BaseName(source))
	for i, clip := range clipList {
		if err := ctx.Err(); err != nil {
			manifest.Elapsed = time.Since(started)
			return manifest, err
		}
		entry := p.renderClip(ctx, logger, source, name, i+1, len(clipList), clip)
		manifest.Clips = append(manifest.Clips, entry)
		if entry.Error != "" && ctx.Err() != nil {
			manifest.Elapsed = time.Since(started)
			return manifest, ctx.Err()
		}
	}
	manifest.Elapsed = time.Since(started)

	manifestPath := ManifestPath(p.Options.OutputDir, source)
	if err := manifest.Save(manifestPath); err != nil {
		return manifest, err
	}
	logger.Info("shorts finished",
		logging.String("manifest", manifestPath),
		logging.Int("rendered", manifest.Succeeded()),
		logging.Int("failed", manifest.Failed()),
		logging.Duration("elapsed", manifest.Elapsed),
	)
	return manifest, nil
}

func (p *Pipeline) renderClip(ctx context.Context, logger *slog.Logger, source, name string, number, total int, clip clips.Clip) ClipEntry {
	stem := ClipStem(name, number, clip.Interval)
	entry := ClipEntry{
		Number:   number,
		Start:    clip.Start,
		End:      clip.End,
		Absorbed: clip.Absorbed,
		Output:   filepath.Join(p.Options.OutputDir, stem+".mp4"),
	}
	clipLogger := logger.With(
		logging.Int("clip", number),
		logging.Int("clips", total),
		logging.String("span", clip.String()),
	)

	fail := func(err error) ClipEntry {
		entry.Error = services.Reason(err)
		entry.Output = ""
		logging.WarnWithContext(clipLogger, "short failed", "short_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the clip logs and rerun shorts for this source"),
			logging.String(logging.FieldImpact, "clip skipped"),
		)
		return entry
	}

	job := RenderJob{
		Source:   source,
		Clip:     clip.Interval,
		Output:   entry.Output,
		Vertical: p.Options.Vertical,
		Title:    p.Options.Title,
	}

	if !p.Options.SkipSubtitles {
		words, err := p.Transcriber.TranscribeWords(ctx, source, clip.Interval)
		if err != nil {
			return fail(err)
		}
		groups := p.Options.Subtitles.Build(words)
		entry.Words = len(words)
		entry.Groups = len(groups)
		if len(groups) > 0 {
			subPath := filepath.Join(p.Options.OutputDir, stem+p.Options.Subtitles.Format.Ext())
			if err := p.Options.Subtitles.WriteFile(subPath, groups); err != nil {
				return fail(fmt.Errorf("write subtitles: %w", err))
			}
			entry.Subtitles = subPath
			job.SubtitlePath = subPath
		}
	}

	if err := p.Renderer.Render(ctx, job); err != nil {
		return fail(err)
	}
	clipLogger.Info("short rendered", logging.String("output", filepath.Base(entry.Output)))
	return entry
}

// ClipStem names a short: short_<name>_<NNN>_<start>s-<end>s with whole
// seconds truncated.
func ClipStem(name string, number int, span interval.Interval) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "clip"
	}
	return fmt.Sprintf("short_%s_%03d_%ds-%ds", name, number, int(span.Start), int(span.End))
}

func policySummary(p clips.Policy) string {
	return fmt.Sprintf("min=%gs max=%gs target=%gs absorb=%s", p.Min, p.Max, p.Target, p.Absorb)
}
