// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A Config is built once at startup and passed by pointer to each component;
// nothing in the ingester reads settings from package-level state.
package config
