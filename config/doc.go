// Package config loads pulse settings from a YAML file, an optional .env
// file and PULSE_* environment variables, in that order of precedence.
package config
