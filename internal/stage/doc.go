// Package stage holds the step names and health records shared by the
// workflow orchestrator and its collaborators.
package stage
