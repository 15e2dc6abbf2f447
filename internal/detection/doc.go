// Package detection finds where the reference speaker talks in a timeline.
//
// ScoreWindows embeds fixed, non-overlapping windows and scores them against
// the reference fingerprint; Consolidate merges runs of qualifying windows
// into segments. Detect chains the two and adds diagnostics.
package detection
