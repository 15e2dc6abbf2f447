// Package store persists run history in SQLite and guards the state
// directory with a workspace lock.
//
// Every batch, detect and shorts invocation records one run row plus one
// entry per processed source so `voiceclip history` can list past results
// without re-reading report files. The lock serializes runs that share a
// state directory; a second process fails fast instead of waiting.
package store
