// Package config loads, normalizes, and validates screendescribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCREENDESCRIBE_INFERENCE_API_KEY. The Config type centralizes every knob the
// daemon and CLI need: the schedule interval, the screenshot command, the
// inference endpoint, and where tracking entries and logs are written.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
