// Package textutil provides text helpers shared by the output writers.
//
// The primary use cases are:
//   - Sanitizing source names into filesystem-safe tokens for clip outputs
//   - Folding accents so overlay text renders with fonts lacking glyphs
//   - Escaping text for ffmpeg filter arguments
package textutil
