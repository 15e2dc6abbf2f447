package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"voiceclip/internal/audio"
	"voiceclip/internal/detection"
	"voiceclip/internal/logging"
	"voiceclip/internal/services"
	"voiceclip/internal/voiceprint"
)

// Defaults for the worker pool.
const (
	DefaultWorkers     = 2
	DefaultTaskTimeout = 600 * time.Second
)

// Status is the outcome of one batch task.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Source is one input file.
type Source struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	// ReferencePath overrides the coordinator's reference fingerprint.
	ReferencePath string `json:"reference_path,omitempty"`
}

// Result is the outcome for one source. Every submitted source produces
// exactly one result.
type Result struct {
	SourceID        string              `json:"source_id"`
	Path            string              `json:"path"`
	Status          Status              `json:"status"`
	Segments        []detection.Segment `json:"segments"`
	TotalDuration   float64             `json:"total_duration"`
	MatchedDuration float64             `json:"matched_duration"`
	Stats           detection.ScanStats `json:"stats"`
	Top             []detection.Score   `json:"top,omitempty"`
	Error           string              `json:"error,omitempty"`
	Elapsed         time.Duration       `json:"elapsed"`
}

// ReferenceLoader returns the fingerprint to match for a source.
type ReferenceLoader func(ctx context.Context, src Source) (voiceprint.Reference, error)

// FileReferenceLoader loads src.ReferencePath, falling back to defaultPath.
func FileReferenceLoader(defaultPath string) ReferenceLoader {
	return func(_ context.Context, src Source) (voiceprint.Reference, error) {
		path := src.ReferencePath
		if path == "" {
			path = defaultPath
		}
		return voiceprint.LoadReference(path)
	}
}

// Coordinator runs detection over many sources with a bounded worker pool.
// A failing source never affects its siblings.
type Coordinator struct {
	Workers     int
	TaskTimeout time.Duration
	// WorkDir is the parent of per-task scratch directories.
	WorkDir    string
	Embedders  voiceprint.Factory
	References ReferenceLoader
	Decoder    audio.Decoder
	Detection  detection.Options
	RunID      string
	Logger     *slog.Logger
	// OnResult, when set, observes each result as it completes. Calls are
	// serialized.
	OnResult func(Result)
}

// Run processes every source and returns results in completion order.
func (c *Coordinator) Run(ctx context.Context, sources []Source) []Result {
	logger := logging.NewComponentLogger(c.Logger, "batch")
	if c.RunID != "" {
		ctx = services.WithRunID(ctx, c.RunID)
	}
	workers := c.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	logger.Info("batch starting",
		logging.String(logging.FieldRunID, c.RunID),
		logging.Int("sources", len(sources)),
		logging.Int("workers", workers),
		logging.Duration("task_timeout", c.timeout()),
	)

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(sources))
	)
	var g errgroup.Group
	g.SetLimit(workers)
	for _, src := range sources {
		g.Go(func() error {
			res := c.runTask(ctx, src, logger)
			mu.Lock()
			defer mu.Unlock()
			results = append(results, res)
			if c.OnResult != nil {
				c.OnResult(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(results)
	logger.Info("batch finished",
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Seconds("matched", summary.MatchedDuration),
	)
	return results
}

func (c *Coordinator) timeout() time.Duration {
	if c.TaskTimeout > 0 {
		return c.TaskTimeout
	}
	return DefaultTaskTimeout
}

func (c *Coordinator) runTask(parent context.Context, src Source, base *slog.Logger) (res Result) {
	started := time.Now()
	res = Result{SourceID: src.ID, Path: src.Path, Status: StatusError}

	ctx, cancel := context.WithTimeout(services.WithSourceID(parent, src.ID), c.timeout())
	defer cancel()
	logger := logging.WithContext(ctx, base)

	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusError
			res.Error = fmt.Sprintf("panic: %v", r)
			logging.ErrorWithContext(logger, "batch task panicked", "batch_task_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
		}
		res.Elapsed = time.Since(started)
	}()

	report, err := c.process(ctx, src, logger)
	res.Segments = report.Segments
	res.TotalDuration = report.Duration
	res.MatchedDuration = report.MatchedDuration
	res.Stats = report.Stats
	res.Top = report.Top
	if err != nil {
		res.Segments = nil
		res.MatchedDuration = 0
		res.Error = c.reason(parent, err)
		logging.WarnWithContext(logger, "source failed", "batch_task_failed",
			logging.String(logging.FieldErrorHint, res.Error),
			logging.String(logging.FieldImpact, "source skipped"),
			logging.Error(err),
		)
		return res
	}
	res.Status = StatusSuccess
	logger.Info("source analysed",
		logging.Int("segments", len(res.Segments)),
		logging.Seconds("duration", res.TotalDuration),
		logging.Seconds("matched", res.MatchedDuration),
	)
	return res
}

func (c *Coordinator) reason(parent context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Sprintf("timeout after %s", c.timeout())
	}
	return services.Reason(err)
}

func (c *Coordinator) process(ctx context.Context, src Source, logger *slog.Logger) (detection.Report, error) {
	if c.References == nil || c.Embedders == nil || c.Decoder == nil {
		return detection.Report{}, services.Wrap(services.ErrConfiguration, "batch", "setup", "coordinator missing reference loader, embedder factory or decoder", nil)
	}
	ctx = services.WithStage(ctx, "reference")
	ref, err := c.References(ctx, src)
	if err != nil {
		return detection.Report{}, err
	}

	workDir, cleanup, err := audio.NewTaskDir(c.WorkDir, "batch")
	if err != nil {
		return detection.Report{}, err
	}
	defer cleanup()

	ctx = services.WithStage(ctx, "decode")
	timeline, err := c.Decoder.Decode(ctx, src.Path, workDir)
	if err != nil {
		return detection.Report{}, err
	}

	ctx = services.WithStage(ctx, "embed")
	embedder, err := c.Embedders(ctx)
	if err != nil {
		return detection.Report{}, err
	}
	defer func() {
		if cerr := embedder.Close(); cerr != nil {
			logger.Debug("embedder close failed", logging.Error(cerr))
		}
	}()

	opts := c.Detection
	opts.Score.Logger = logger
	return detection.Detect(ctx, timeline, ref, embedder, opts)
}
