// Package services defines helpers shared by the workflow steps and their
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, step names, and trigger sources
//     for logging and tracing.
//   - Structured error markers plus the Wrap helper so callers can classify
//     collaborator failures (retryable vs permanent) with errors.Is.
//
// Use these helpers when adding a new collaborator so error text and log
// fields stay uniform across the capture, inference, and tracking steps.
package services
