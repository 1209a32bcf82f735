// Package config loads, normalizes, and validates clarifai configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY. The Config type centralizes the output and scratch
// directories, the oracle connection, and the Manim/ffmpeg tool settings so
// the CLI and workflow discover everything in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical quality presets, and clear validation errors.
package config
