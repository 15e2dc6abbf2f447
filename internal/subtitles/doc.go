// Package subtitles groups word timestamps into short on-screen captions and
// writes them as SRT or ASS.
//
// GroupWords guarantees a minimum display time per word and that consecutive
// groups never overlap. Highlights expands groups into one window per word so
// an ASS renderer can colour the word being spoken.
package subtitles
