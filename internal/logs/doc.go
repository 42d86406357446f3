// Package logs reads the daemon's JSON log files directly from disk.
//
// The CLI falls back to these helpers when the daemon is not running: Tail
// returns raw lines with bounded memory and optional follow polling, and
// ReadEvents decodes the newest entries into the same event shape the daemon
// serves over IPC.
package logs
