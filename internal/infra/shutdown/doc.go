// Package shutdown provides graceful shutdown for KVMesh.
//
// This package coordinates process termination:
//
//   - Signal handling (SIGINT, SIGTERM)
//   - Cleanup hook registration, run in reverse order
//   - Timeout-based forced shutdown
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown(srv.Shutdown)
//	if err := h.Wait(); err != nil { ... }
package shutdown
