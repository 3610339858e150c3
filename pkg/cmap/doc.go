// Package cmap provides a concurrent map implementation for KVMesh.
//
// This package implements a sharded concurrent map keyed by string:
//
//   - Sharding: Fixed shard count routed by murmur3
//   - Fine-grained Locking: Per-shard RWMutex for minimal contention
//   - Mutate: Per-key atomic read-modify-write under the shard lock
//   - Purge: Predicate sweep across all shards
//
// Usage:
//
//	m := cmap.New[*entry]()
//	m.Set("key", e)
//	m.Mutate("key", func(e *entry, ok bool) (*entry, bool) { ... })
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Has, View)
// use RLock, write operations (Set, Delete, Mutate, Purge) use Lock.
package cmap
