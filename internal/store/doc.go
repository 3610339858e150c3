// Package store provides the in-memory keyspace for KVMesh.
//
// This package implements a concurrent, TTL-aware typed key-value
// store on top of the sharded map in pkg/cmap:
//
//   - String, hash, and list values, one kind per key
//   - Lazy expiration on access plus a periodic background sweep
//   - Per-key atomicity for compound read-modify-write operations
//   - Cross-key LMOVE serialized behind a store-wide move mutex
//
// Type mismatches surface as ErrWrongType; arithmetic on non-numeric
// content surfaces as ErrNotInteger or ErrOverflow.
//
// Usage:
//
//	s := store.New()
//	defer s.Close()
//	s.Set("k", []byte("v"), time.Minute, false, false)
//	val, ok := s.Get("k")
//
// Thread Safety:
//
// All Store methods are safe for concurrent use. The Hash and List
// value types are not; the Store only touches them under their key's
// shard lock.
package store
