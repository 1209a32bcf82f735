// Package logging assembles structured slog loggers and formatting helpers used
// across clarifai.
//
// It owns the console/JSON handlers, fans records out to log files, and exposes
// context-aware helpers so pipeline code automatically tags log lines with job
// IDs, owners, scene indexes, and correlation IDs. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
