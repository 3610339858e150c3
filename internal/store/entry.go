package store

import (
	"errors"
	"time"
)

// Typed faults raised by store operations. The command layer maps these
// to protocol error text; the store itself stays protocol-agnostic.
var (
	// ErrWrongType is raised when an operation for one value kind is
	// applied to a key holding a different kind.
	ErrWrongType = errors.New("store: operation against a key holding the wrong kind of value")

	// ErrNotInteger is raised when a value that must be a base-10
	// integer is not one.
	ErrNotInteger = errors.New("store: value is not an integer")

	// ErrOverflow is raised when an increment would overflow int64.
	ErrOverflow = errors.New("store: increment or decrement would overflow")
)

// kind tags the variant held by an entry. A key holds exactly one kind
// at a time; wrong-type detection is a single tag comparison.
type kind uint8

const (
	kindString kind = iota
	kindHash
	kindList
)

// entry is one stored value with optional expiration. The zero
// expiresAt means the entry never expires. Entries are owned by the
// Store and only touched under the owning shard's lock.
type entry struct {
	kind      kind
	str       []byte
	hash      *Hash
	list      *List
	expiresAt time.Time
}

// expired is the single expiry predicate shared by lazy checks on
// access and the background sweep.
func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// live reports whether a looked-up entry is present and not expired.
func live(e *entry, ok bool, now time.Time) bool {
	return ok && !e.expired(now)
}

func newStringEntry(value []byte, ttl time.Duration, now time.Time) *entry {
	e := &entry{kind: kindString, str: cloneBytes(value)}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	return e
}

func newHashEntry() *entry {
	return &entry{kind: kindHash, hash: NewHash()}
}

func newListEntry() *entry {
	return &entry{kind: kindList, list: NewList()}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
