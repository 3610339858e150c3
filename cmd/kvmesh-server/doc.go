// Package main provides the entry point for kvmesh-server.
//
// The server is the KVMesh service process that provides:
//
//   - Redis RESP2 protocol over TCP for key-value access
//   - Optional Prometheus metrics endpoint
//   - Config file watching with live log level reload
//
// Usage:
//
//	kvmesh-server [flags]
//	kvmesh-server --config /path/to/config.yaml
//
// The server loads configuration, initializes the store and listeners,
// and runs until SIGINT or SIGTERM.
package main
