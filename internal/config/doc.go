// Package config loads the YAML configuration that wires the agent loop:
// completion backend, embedder, vector store, durable results store, tool
// registry, event publishing and logging. Missing fields receive defaults
// relative to the configuration file's directory, and a handful of secrets
// can be supplied through environment variables instead of the file.
package config
