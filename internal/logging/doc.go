// Package logging assembles structured slog loggers and formatting helpers used
// across crosslink components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so orchestrator code can tag log
// lines with run IDs and task names automatically. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
