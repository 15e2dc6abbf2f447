// Package clips turns speech segments into clip-sized spans under a
// min/max/target length policy.
package clips
