// Package logging assembles structured slog loggers and formatting helpers used
// across voiceclip.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code automatically
// tags log lines with source IDs, stages and run IDs. The package also
// provides a no-op logger for tests, a tee for per-run log files, and a
// progress sampler for long scans.
package logging
