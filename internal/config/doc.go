// Package config loads, normalizes, and validates storyvox configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REPLICATE_API_TOKEN and PORT. Always obtain settings through this package so
// downstream code receives absolute paths and clear validation errors.
package config
