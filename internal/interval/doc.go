// Package interval defines the time span value shared by detection, clip
// splitting and subtitle grouping, together with the HH:MM:SS clock codec and
// the plain-text timestamp list that hands detected segments to the clip
// stage.
package interval
