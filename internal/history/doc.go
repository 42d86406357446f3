// Package history keeps an SQLite journal of finished workflow runs.
//
// The journal is an audit trail for the `history` command and status output.
// Nothing is resumed or retried from it after a restart.
package history
