// Package config loads and validates the application's YAML configuration:
// which ObjectStore backend to use, cache sizing, retry tuning, and the
// content pipeline's thumbnail/fingerprint settings.
//
// Configuration is loaded from a file via LoadFromFile, then overlaid with
// SHELFCLOUD_-prefixed environment variables via LoadFromEnv, mirroring the
// precedence order of the underlying yaml.v2-based config systems this was
// modeled on.
package config
