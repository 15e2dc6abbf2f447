// Package language normalizes the transcription language setting to the
// two-letter codes WhisperX expects.
package language
