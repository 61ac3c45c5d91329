// Package config loads, defaults, and validates the VoxBox TOML
// configuration. Directory paths derive from a single data_dir unless set
// explicitly, and secret values may be overlaid from the environment.
package config
