// Package main hosts the screendescribe CLI entrypoint and command graph.
//
// The Cobra command tree runs the workflow in-process (run-once), hosts the
// scheduled daemon in the foreground (run-scheduled), and translates the
// remaining commands into IPC calls against that daemon. Commands that can
// answer without a daemon (status, logs, history) fall back to local state.
package main
