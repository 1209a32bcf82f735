// Package services defines shared utilities consumed by the pipeline stages and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, owners, scene indexes, stage names,
//     and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures from the
//     oracle, Manim, and ffmpeg can be classified uniformly.
package services
