// Package logging assembles structured slog loggers for storyvox.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag log lines with run tokens, item positions, stages,
// and correlation IDs. A no-op logger is provided for tests and wiring code
// that cannot fail.
package logging
