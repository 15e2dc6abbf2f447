// Package audio decodes media into mono float timelines.
//
// Extraction shells out to ffmpeg (mono, 16 kHz, 16-bit PCM) and the resulting
// WAV is decoded with go-audio. The package also owns per-task scratch
// directories so every decode leaves nothing behind.
package audio
