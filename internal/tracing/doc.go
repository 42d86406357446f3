// Package tracing installs the OpenTelemetry tracer provider used for
// workflow run and step spans.
//
// When tracing is disabled the global provider stays a noop, so
// instrumented code never needs to check whether export is configured.
package tracing
