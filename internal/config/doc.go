// Package config loads, normalizes, and validates eventsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the EVENTSYNC_DATASET environment
// fallback. The Config type centralizes every knob the CLI needs so the
// dataset location, the dataset manager, and archive patterns are discovered
// in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
