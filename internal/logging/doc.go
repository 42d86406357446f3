// Package logging assembles the slog loggers used by screendescribe.
//
// It owns the console and JSON handlers, the in-memory StreamHub that backs
// the `logs` command, and context helpers that tag log lines with run IDs and
// workflow steps. NewNop returns a discarding logger for tests.
package logging
