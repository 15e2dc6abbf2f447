package store_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"voiceclip/internal/interval"
	"voiceclip/internal/services"
	"voiceclip/internal/store"
	"voiceclip/internal/testsupport"
)

func TestRecordRunRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := store.NewRun(store.KindBatch, started)
	run.FinishedAt = started.Add(90 * time.Second)
	entries := []store.Entry{
		{
			SourceID:        "a.wav",
			Path:            "/in/a.wav",
			Status:          store.StatusSuccess,
			TotalDuration:   120,
			MatchedDuration: 9,
			Segments:        []interval.Interval{{Start: 0, End: 6}, {Start: 9, End: 12}},
			Elapsed:         1500 * time.Millisecond,
		},
		{
			SourceID: "b.wav",
			Status:   store.StatusError,
			Error:    "reference fingerprint missing",
		},
	}
	if err := st.RecordRun(ctx, run, entries); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Kind != store.KindBatch || got.Total != 2 || got.Succeeded != 1 || got.Failed != 1 {
		t.Fatalf("unexpected run: %+v", got)
	}
	if got.TotalDuration != 120 || got.MatchedDuration != 9 {
		t.Fatalf("unexpected durations: %+v", got)
	}
	if got.Elapsed() != 90*time.Second {
		t.Fatalf("elapsed = %s", got.Elapsed())
	}

	stored, err := st.Entries(ctx, run.ID)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(stored))
	}
	if len(stored[0].Segments) != 2 || stored[0].Segments[1] != (interval.Interval{Start: 9, End: 12}) {
		t.Fatalf("segments not preserved: %+v", stored[0].Segments)
	}
	if stored[0].Elapsed != 1500*time.Millisecond || stored[0].Path != "/in/a.wav" {
		t.Fatalf("entry fields not preserved: %+v", stored[0])
	}
	if stored[1].Error != "reference fingerprint missing" || stored[1].Segments != nil {
		t.Fatalf("error entry not preserved: %+v", stored[1])
	}
}

func TestRecordRunRequiresID(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if err := st.RecordRun(context.Background(), store.Run{Kind: store.KindDetect}, nil); err == nil {
		t.Fatal("expected error for run without id")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		run := store.NewRun(store.KindDetect, base.Add(time.Duration(i)*time.Hour))
		if err := st.RecordRun(ctx, run, []store.Entry{{SourceID: "x", Status: store.StatusSuccess}}); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := st.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("unexpected order: %+v", runs)
	}

	all, err := st.ListRuns(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d (%v)", len(all), err)
	}
}

func TestGetRunByPrefix(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	run := store.NewRun(store.KindShorts, time.Now())
	if err := st.RecordRun(ctx, run, nil); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	got, err := st.GetRun(ctx, run.ID[:8])
	if err != nil {
		t.Fatalf("GetRun by prefix: %v", err)
	}
	if got.ID != run.ID {
		t.Fatalf("got %s, want %s", got.ID, run.ID)
	}

	if _, err := st.GetRun(ctx, "zzzz"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPruneAndClear(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	old := store.NewRun(store.KindBatch, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	fresh := store.NewRun(store.KindBatch, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	for _, run := range []store.Run{old, fresh} {
		if err := st.RecordRun(ctx, run, []store.Entry{{SourceID: "x", Status: store.StatusSuccess}}); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	removed, err := st.Prune(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned run, got %d", removed)
	}
	entries, err := st.Entries(ctx, old.ID)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected pruned entries to be removed, got %d entries", len(entries))
	}

	if err := st.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	runs, err := st.ListRuns(ctx, 0)
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected empty history, got %d (%v)", len(runs), err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	run := store.NewRun(store.KindDetect, time.Now())
	if err := st.RecordRun(context.Background(), run, nil); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetRun(context.Background(), run.ID); err != nil {
		t.Fatalf("run lost after reopen: %v", err)
	}
}

func TestAcquireLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := store.AcquireLock(cfg.LockPath())
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}

	if _, err := store.AcquireLock(cfg.LockPath()); !errors.Is(err, store.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := store.AcquireLock(cfg.LockPath())
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	_ = second.Release()
}

func TestRemoveDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.RemoveDatabase(cfg.StateDBPath()); err != nil {
		t.Fatalf("RemoveDatabase: %v", err)
	}
	if _, err := os.Stat(cfg.StateDBPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("database still present: %v", err)
	}
	if err := store.RemoveDatabase(cfg.StateDBPath()); err != nil {
		t.Fatalf("second RemoveDatabase should be a no-op: %v", err)
	}
}
