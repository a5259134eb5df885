// Package config loads, normalizes, and validates reelsmith configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REELSMITH_API_TOKEN, AWS_REGION and KAFKA_BROKERS. The Config type
// centralizes the timing budget, canonical canvas, ffmpeg settings and
// directory layout so the CLI and service discover them in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
