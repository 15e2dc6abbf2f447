// Package shorts turns matched speech segments into short video clips.
//
// A run splits the segments with the clip policy, transcribes each clip,
// writes a subtitle file with clip-local timestamps and hands the clip to a
// Renderer. A failing clip is recorded in the manifest and the run moves on
// to the next one; only cancellation stops the run early.
package shorts
