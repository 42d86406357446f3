// Package status holds the in-memory application status shared by the
// scheduler, the orchestrator, and the IPC status endpoint.
package status
