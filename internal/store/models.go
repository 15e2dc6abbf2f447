package store

import (
	"time"

	"github.com/google/uuid"

	"voiceclip/internal/interval"
)

// Kind names the command that produced a run.
type Kind string

const (
	KindDetect Kind = "detect"
	KindBatch  Kind = "batch"
	KindShorts Kind = "shorts"
)

// Entry statuses. They match batch result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Run is one recorded invocation. Counts and durations are derived from its
// entries when the run is recorded.
type Run struct {
	ID              string    `json:"id"`
	Kind            Kind      `json:"kind"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Total           int       `json:"total"`
	Succeeded       int       `json:"succeeded"`
	Failed          int       `json:"failed"`
	TotalDuration   float64   `json:"total_duration"`
	MatchedDuration float64   `json:"matched_duration"`
}

// Elapsed returns the wall time between start and finish.
func (r Run) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Entry is the outcome recorded for one source within a run.
type Entry struct {
	SourceID        string              `json:"source_id"`
	Path            string              `json:"path"`
	Status          string              `json:"status"`
	TotalDuration   float64             `json:"total_duration"`
	MatchedDuration float64             `json:"matched_duration"`
	Segments        []interval.Interval `json:"segments"`
	// Outputs lists files written for this source (clips, subtitles).
	Outputs []string      `json:"outputs,omitempty"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// NewRun returns a run with a fresh ID.
func NewRun(kind Kind, started time.Time) Run {
	return Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: started.UTC(),
	}
}

func tally(run Run, entries []Entry) Run {
	run.Total = len(entries)
	run.Succeeded = 0
	run.Failed = 0
	run.TotalDuration = 0
	run.MatchedDuration = 0
	for _, e := range entries {
		if e.Status == StatusSuccess {
			run.Succeeded++
		} else {
			run.Failed++
		}
		run.TotalDuration += e.TotalDuration
		run.MatchedDuration += e.MatchedDuration
	}
	return run
}
