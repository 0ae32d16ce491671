// Package config loads, normalizes, and validates printlapse configuration.
//
// Files are TOML (decoded with go-toml/v2) and looked up at
// ~/.config/printlapse/config.toml, then ./printlapse.toml, unless a path is
// given explicitly. A handful of secrets and endpoints fall back to
// environment variables. Validation errors wrap services.ErrConfiguration.
package config
