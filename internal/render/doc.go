// Package render cuts clips out of a source video with ffmpeg, burning in a
// subtitle track and optionally cropping to a 9:16 frame for shorts.
package render
