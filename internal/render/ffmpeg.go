package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voiceclip/internal/config"
	"voiceclip/internal/interval"
	"voiceclip/internal/logging"
	"voiceclip/internal/services"
	"voiceclip/internal/textutil"
)

// Encoding defaults for burned-in output.
const (
	DefaultPreset       = "fast"
	DefaultCRF          = 23
	DefaultAudioBitrate = "192k"
	VerticalWidth       = 1080
	VerticalHeight      = 1920
)

// Job describes one clip to render.
type Job struct {
	Source string
	Clip   interval.Interval
	// SubtitlePath is an ASS or SRT file with timestamps local to the clip.
	SubtitlePath string
	Output       string
	Vertical     bool
	// Title is drawn over the top of the frame when set.
	Title string
}

// FFmpeg renders jobs by invoking the ffmpeg binary.
type FFmpeg struct {
	Binary  string
	Preset  string
	CRF     int
	Timeout time.Duration
	Runner  services.CommandRunner
	Logger  *slog.Logger
}

// NewFFmpeg builds a renderer from the render configuration.
func NewFFmpeg(cfg *config.Config, logger *slog.Logger) *FFmpeg {
	r := &FFmpeg{Binary: "ffmpeg", Preset: DefaultPreset, CRF: DefaultCRF}
	if cfg != nil {
		r.Binary = cfg.FFmpegBinary()
		if preset := strings.TrimSpace(cfg.Render.Preset); preset != "" {
			r.Preset = preset
		}
		if cfg.Render.CRF > 0 {
			r.CRF = cfg.Render.CRF
		}
		if cfg.Render.TimeoutSeconds > 0 {
			r.Timeout = time.Duration(cfg.Render.TimeoutSeconds) * time.Second
		}
	}
	r.Logger = logging.NewComponentLogger(logger, "render")
	return r
}

// Render writes job.Output.
func (r *FFmpeg) Render(ctx context.Context, job Job) error {
	if err := validateJob(job); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		return fmt.Errorf("ensure output dir: %w", err)
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := r.Args(job)
	logger := logging.WithContext(ctx, r.logger())
	logger.Debug("rendering clip",
		logging.String("output", job.Output),
		logging.String("clip", job.Clip.String()),
		logging.Bool("vertical", job.Vertical),
	)
	start := time.Now()
	if err := r.run(ctx, args...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "render", "ffmpeg", filepath.Base(job.Output), err)
		}
		return services.Wrap(services.ErrExternalTool, "render", "ffmpeg", filepath.Base(job.Output), err)
	}
	logger.Info("clip rendered",
		logging.String("output", job.Output),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Args builds the ffmpeg command line for job. Input seeking keeps subtitle
// timestamps aligned with the clip's local zero.
func (r *FFmpeg) Args(job Job) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", interval.FormatPrecise(job.Clip.Start),
		"-i", job.Source,
		"-t", strconv.FormatFloat(job.Clip.Duration(), 'f', 3, 64),
	}
	filters := Filters(job)
	if len(filters) == 0 {
		args = append(args, "-c", "copy")
	} else {
		args = append(args,
			"-vf", strings.Join(filters, ","),
			"-c:v", "libx264",
			"-preset", r.preset(),
			"-crf", strconv.Itoa(r.crf()),
			"-pix_fmt", "yuv420p",
			"-c:a", "aac",
			"-b:a", DefaultAudioBitrate,
		)
	}
	args = append(args, "-avoid_negative_ts", "make_zero", "-movflags", "+faststart", job.Output)
	return args
}

// Filters returns the video filter chain for job in application order:
// crop, subtitles, title.
func Filters(job Job) []string {
	var filters []string
	if job.Vertical {
		filters = append(filters,
			"crop=ih*9/16:ih",
			fmt.Sprintf("scale=%d:%d", VerticalWidth, VerticalHeight),
		)
	}
	if path := strings.TrimSpace(job.SubtitlePath); path != "" {
		escaped := textutil.EscapeFilterValue(path)
		if strings.EqualFold(filepath.Ext(path), ".ass") {
			filters = append(filters, "ass="+escaped)
		} else {
			filters = append(filters, "subtitles="+escaped)
		}
	}
	if title := strings.TrimSpace(job.Title); title != "" {
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':fontcolor=white:fontsize=h/24:borderw=3:bordercolor=black:x=(w-text_w)/2:y=h/12",
			textutil.DrawText(title),
		))
	}
	return filters
}

func validateJob(job Job) error {
	if strings.TrimSpace(job.Source) == "" {
		return services.Wrap(services.ErrValidation, "render", "validate job", "source path required", nil)
	}
	if strings.TrimSpace(job.Output) == "" {
		return services.Wrap(services.ErrValidation, "render", "validate job", "output path required", nil)
	}
	if err := job.Clip.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(job.Source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "render", "stat source", job.Source, err)
		}
		return fmt.Errorf("stat source: %w", err)
	}
	if job.SubtitlePath != "" {
		if _, err := os.Stat(job.SubtitlePath); err != nil {
			return services.Wrap(services.ErrNotFound, "render", "stat subtitles", job.SubtitlePath, err)
		}
	}
	return nil
}

func (r *FFmpeg) run(ctx context.Context, args ...string) error {
	runner := r.Runner
	if runner == nil {
		runner = services.RunCommand
	}
	binary := r.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	return runner(ctx, binary, args...)
}

func (r *FFmpeg) preset() string {
	if r.Preset == "" {
		return DefaultPreset
	}
	return r.Preset
}

func (r *FFmpeg) crf() int {
	if r.CRF <= 0 {
		return DefaultCRF
	}
	return r.CRF
}

func (r *FFmpeg) logger() *slog.Logger {
	if r.Logger == nil {
		return logging.NewNop()
	}
	return r.Logger
}
