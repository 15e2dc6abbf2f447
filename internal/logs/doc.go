// Package logs reads the voiceclip log file for the `voiceclip logs` command.
//
// Last returns the final lines of the file with bounded memory, and Follow
// polls for appended lines until its context is cancelled. Both accept a
// Filter so callers can narrow output to one run or source.
package logs
