// Package transcribe produces word-level timestamps for clips with WhisperX.
//
// Each call extracts the clip to a scratch WAV, runs WhisperX via uvx with the
// model chosen by the configured variant, and reads the aligned words back
// from the JSON output.
package transcribe
