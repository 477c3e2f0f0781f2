// Package config loads application configuration from ACCESSGATE_-prefixed
// environment variables and validates it before the server starts.
package config
