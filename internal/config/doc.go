// Package config loads, normalizes, and validates crosslink configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY and CROSSLINK_API_TOKEN. The read-time title TTL and the
// scheduled-sync stale threshold are deliberately separate settings.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
