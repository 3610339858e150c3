// Package config defines the KVMesh configuration structure.
//
// This package holds the typed configuration tree loaded by
// confloader, with koanf tags for unmarshaling:
//
//   - server: listener address, timeouts, rate limit
//   - metrics: Prometheus endpoint toggle and address
//   - log: level and output format
//
// Default returns a configuration that runs out of the box; Verify
// rejects values that cannot produce a working server.
package config
