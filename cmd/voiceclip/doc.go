// Package main hosts the voiceclip CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration, builds the logger and
// wires the internal packages together: detection over one file or a batch,
// clip planning from timestamp lists, subtitle generation, shorts assembly,
// reference enrollment, run history and environment checks.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
