// Package services defines shared utilities consumed by the detection, clip and
// batch pipelines and by the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp source IDs, stage names, run IDs and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (oracle, missing reference, policy violation, timeout).
//   - A CommandRunner abstraction that makes invocations of ffmpeg and uvx
//     testable.
package services
