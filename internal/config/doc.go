// Package config loads, normalizes, and validates voiceclip configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// HF_TOKEN and VOICECLIP_REFERENCE. The Config type centralizes every knob the
// detection, clip, subtitle, batch and render stages need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
