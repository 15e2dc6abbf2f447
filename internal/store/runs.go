package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"voiceclip/internal/services"
)

const runColumns = "id, kind, started_at, finished_at, total, succeeded, failed, total_duration, matched_duration"

// RecordRun stores a finished run and its entries in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, entries []Entry) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("record run: id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	run = tally(run, entries)

	return retryOnBusy(ctx, func() error {
		return s.recordRunTx(ctx, run, entries)
	})
}

func (s *Store) recordRunTx(ctx context.Context, run Run, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		string(run.Kind),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Total,
		run.Succeeded,
		run.Failed,
		run.TotalDuration,
		run.MatchedDuration,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, entry := range entries {
		segments, err := marshalOptional(entry.Segments)
		if err != nil {
			return fmt.Errorf("marshal segments for %s: %w", entry.SourceID, err)
		}
		outputs, err := marshalOptional(entry.Outputs)
		if err != nil {
			return fmt.Errorf("marshal outputs for %s: %w", entry.SourceID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entries (
                run_id, source_id, path, status, total_duration, matched_duration,
                segments_json, outputs_json, error_message, elapsed_ms
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			entry.SourceID,
			nullableString(entry.Path),
			entry.Status,
			entry.TotalDuration,
			entry.MatchedDuration,
			segments,
			outputs,
			nullableString(entry.Error),
			entry.Elapsed.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert entry %s: %w", entry.SourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns
// every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a run by ID or a prefix of it. An unknown or ambiguous ID
// wraps services.ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, services.Wrap(services.ErrValidation, "history", "get run", "Run ID is required", nil)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id LIMIT 2`,
		id, stripLikeWildcards(id)+"%",
	)
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, fmt.Errorf("scan run: %w", err)
		}
		if run.ID == id {
			return run, nil
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(matches) {
	case 0:
		return Run{}, services.Wrap(services.ErrNotFound, "history", "get run", fmt.Sprintf("No run matches %q", id), nil)
	case 1:
		return matches[0], nil
	default:
		return Run{}, services.Wrap(services.ErrNotFound, "history", "get run", fmt.Sprintf("Run ID %q is ambiguous", id), nil)
	}
}

// Entries returns the entries of a run in insertion order.
func (s *Store) Entries(ctx context.Context, runID string) ([]Entry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, path, status, total_duration, matched_duration,
                segments_json, outputs_json, error_message, elapsed_ms
           FROM entries WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			path      sql.NullString
			segments  sql.NullString
			outputs   sql.NullString
			errMsg    sql.NullString
			elapsedMS int64
		)
		if err := rows.Scan(
			&entry.SourceID,
			&path,
			&entry.Status,
			&entry.TotalDuration,
			&entry.MatchedDuration,
			&segments,
			&outputs,
			&errMsg,
			&elapsedMS,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry.Path = path.String
		entry.Error = errMsg.String
		entry.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if segments.Valid {
			if err := json.Unmarshal([]byte(segments.String), &entry.Segments); err != nil {
				return nil, fmt.Errorf("decode segments for %s: %w", entry.SourceID, err)
			}
		}
		if outputs.Valid {
			if err := json.Unmarshal([]byte(outputs.String), &entry.Outputs); err != nil {
				return nil, fmt.Errorf("decode outputs for %s: %w", entry.SourceID, err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Prune deletes runs started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	stamp := cutoff.UTC().Format(time.RFC3339Nano)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		var err error
		removed, err = s.deleteRuns(ctx, `WHERE started_at < ?`, stamp)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return removed, nil
}

// Clear removes every run and entry.
func (s *Store) Clear(ctx context.Context) error {
	ctx = ensureContext(ctx)
	if err := retryOnBusy(ctx, func() error {
		_, err := s.deleteRuns(ctx, ``)
		return err
	}); err != nil {
		return fmt.Errorf("clear runs: %w", err)
	}
	return nil
}

// deleteRuns removes entries explicitly because foreign_keys is a
// per-connection pragma and the pool may hand out a fresh connection.
func (s *Store) deleteRuns(ctx context.Context, where string, args ...any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE run_id IN (SELECT id FROM runs `+where+`)`, args...); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs `+where, args...)
	if err != nil {
		return 0, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return removed, tx.Commit()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		kind        string
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&kind,
		&startedRaw,
		&finishedRaw,
		&run.Total,
		&run.Succeeded,
		&run.Failed,
		&run.TotalDuration,
		&run.MatchedDuration,
	); err != nil {
		return Run{}, err
	}
	run.Kind = Kind(kind)
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finished, err := parseTimeString(finishedRaw.String); err == nil {
		run.FinishedAt = finished
	}
	return run, nil
}

func marshalOptional[T any](values []T) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func stripLikeWildcards(value string) string {
	replacer := strings.NewReplacer(`%`, ``, `_`, ``)
	return replacer.Replace(value)
}
