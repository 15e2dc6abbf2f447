package preflight

import (
	"context"

	"voiceclip/internal/config"
)

// MinFreeBytes is the free space required in the work directory. Decoded
// 16 kHz mono audio needs about 115 MB per hour of input.
const MinFreeBytes = 1 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional checks are reported but never block a run.
	Optional bool
}

// Options select which checks RunAll includes.
type Options struct {
	// Reference requires the default reference fingerprint.
	Reference bool
	// Transcription requires uvx for WhisperX.
	Transcription bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result

	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, MinFreeBytes))

	for _, status := range CheckSystemDeps(ctx, cfg, opts.Transcription) {
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Detail:   depDetail(status.Command, status.Detail, status.Available),
			Optional: status.Optional,
		})
	}

	if opts.Reference {
		results = append(results, CheckReference(cfg.Paths.ReferencePath))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

func depDetail(command, detail string, available bool) string {
	if available {
		return command
	}
	return detail
}
