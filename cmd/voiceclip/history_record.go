package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"voiceclip/internal/batch"
	"voiceclip/internal/config"
	"voiceclip/internal/detection"
	"voiceclip/internal/interval"
	"voiceclip/internal/logging"
	"voiceclip/internal/services"
	"voiceclip/internal/shorts"
	"voiceclip/internal/store"
)

// withWorkspaceLock holds the state directory lock while fn runs.
func withWorkspaceLock(cfg *config.Config, fn func() error) error {
	lock, err := store.AcquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	return fn()
}

// recordRun stores a finished run. History is best effort: failures are
// logged and never fail the command.
func recordRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, run store.Run, entries []store.Entry) {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	st, err := store.Open(cfg)
	if err == nil {
		defer st.Close()
		err = st.RecordRun(context.WithoutCancel(ctx), run, entries)
	}
	if err != nil {
		logging.WarnWithContext(logger, "run history not recorded", "history_write_failed",
			logging.String(logging.FieldRunID, run.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run voiceclip history clear if the database schema changed"),
			logging.String(logging.FieldImpact, "run missing from voiceclip history"),
		)
	}
}

// openRunLog tees logger into <log_dir>/runs/<run id>.log at debug level.
// When the file cannot be opened the base logger is returned unchanged.
func openRunLog(cfg *config.Config, logger *slog.Logger, runID string) (*slog.Logger, string, func()) {
	path := filepath.Join(cfg.Paths.LogDir, "runs", runID+".log")
	handler, closer, err := logging.NewFileHandler(path, "debug")
	if err != nil {
		logging.WarnWithContext(logger, "run log not opened", "run_log_failed",
			logging.String(logging.FieldRunID, runID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that paths.log_dir is writable"),
		)
		return logger, "", func() {}
	}
	return logging.TeeLogger(logger, handler), path, func() { _ = closer.Close() }
}

// notify delivers a completion message. Failures are logged only.
func notify(logger *slog.Logger, send func() error) {
	if err := send(); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "no completion message sent"),
		)
	}
}

func batchEntries(results []batch.Result) []store.Entry {
	entries := make([]store.Entry, 0, len(results))
	for _, r := range results {
		entries = append(entries, store.Entry{
			SourceID:        r.SourceID,
			Path:            r.Path,
			Status:          string(r.Status),
			TotalDuration:   r.TotalDuration,
			MatchedDuration: r.MatchedDuration,
			Segments:        detection.Intervals(r.Segments),
			Error:           r.Error,
			Elapsed:         r.Elapsed,
		})
	}
	return entries
}

func detectEntry(source string, report detection.Report, outputs []string, err error, elapsed time.Duration) store.Entry {
	entry := store.Entry{
		SourceID: filepath.Base(source),
		Path:     source,
		Status:   store.StatusSuccess,
		Elapsed:  elapsed,
		Outputs:  outputs,
	}
	if err != nil {
		entry.Status = store.StatusError
		entry.Error = services.Reason(err)
		return entry
	}
	entry.TotalDuration = report.Duration
	entry.MatchedDuration = report.MatchedDuration
	entry.Segments = report.Intervals()
	return entry
}

func shortsEntry(source string, manifest shorts.Manifest, err error) store.Entry {
	entry := store.Entry{
		SourceID:        filepath.Base(source),
		Path:            source,
		Status:          store.StatusSuccess,
		MatchedDuration: manifest.RenderedDuration(),
		Outputs:         manifest.Outputs(),
		Elapsed:         manifest.Elapsed,
	}
	for _, c := range manifest.Clips {
		if c.Error == "" {
			entry.Segments = append(entry.Segments, interval.Interval{Start: c.Start, End: c.End})
		}
	}
	if err != nil {
		entry.Status = store.StatusError
		entry.Error = services.Reason(err)
	} else if manifest.Failed() > 0 && manifest.Succeeded() == 0 {
		entry.Status = store.StatusError
		entry.Error = manifest.Clips[0].Error
	}
	return entry
}
