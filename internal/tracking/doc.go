// Package tracking appends described activity to the time tracking file.
//
// Each entry is one line, "2006.01.02 15:04 description". Writes are
// serialized in-process with a mutex and across processes with an advisory
// lock on "<file>.lock", so a `run-once` next to a running daemon never
// interleaves partial lines.
package tracking
