// Package preflight provides readiness checks for the directories, tools and
// reference fingerprint that voiceclip depends on.
//
// These checks run in two contexts:
//   - batch and shorts call RunAll before starting and refuse to run when a
//     required check fails, so a doomed run never decodes hours of audio.
//   - the CLI "voiceclip doctor" command prints every check with its detail.
package preflight
