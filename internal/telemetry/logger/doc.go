// Package logger provides structured logging for KVMesh.
//
// This package wraps log/slog for structured logging:
//
//   - JSON and text output formats
//   - Dynamic level adjustment via a shared LevelVar
//   - Level changes apply to every logger already handed out
//
// Usage:
//
//	log := logger.New(logger.Config{Level: "info", Format: "json"})
//	logger.SetLevel("debug")
package logger
