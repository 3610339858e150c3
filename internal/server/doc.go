// Package server provides the RESP2 TCP server for KVMesh.
//
// This package implements the listener and per-connection loop:
//
//   - One goroutine per accepted connection
//   - Decode, dispatch, encode over the resp codec
//   - Static command table mapping requests onto the store
//   - Optional per-client-IP rate limiting
//
// Error handling follows Redis conventions: command errors are
// replied in-band and keep the connection open, a protocol violation
// closes the connection without a reply, and a limit violation gets
// one error reply before the close.
//
// Usage:
//
//	s := server.New(cfg, st, logger, metrics)
//	if err := s.Start(ctx); err != nil { ... }
//	defer s.Shutdown(ctx)
//
// Shutdown stops the listener, closes every open client socket so
// blocked reads unblock, and waits for the connection loops to exit.
package server
