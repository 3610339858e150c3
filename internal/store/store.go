// Package store provides the concurrent, TTL-aware typed key-value
// store: a mapping from key to exactly one of string, hash, or list,
// with lazy expiration on access and a periodic background sweep.
//
// Every compound read-modify-write on a single key executes under that
// key's shard lock, so concurrent callers targeting the same key never
// interleave. Cross-key moves serialize against each other behind a
// store-wide move mutex.
package store

import (
	"sync"
	"time"

	"github.com/yndnr/kvmesh-go/pkg/cmap"
)

// sweepInterval is the period of the background expiration sweep.
const sweepInterval = 100 * time.Millisecond

// Store is a concurrent key-value store with typed values and TTLs.
// It is safe for use by multiple goroutines.
type Store struct {
	entries *cmap.Map[*entry]

	// moveMu serializes LMove calls against each other so a
	// two-key move appears atomic relative to other moves.
	moveMu sync.Mutex

	stopSweep chan struct{}
	closeOnce sync.Once

	onExpired func(removed int)
}

// Option configures the Store.
type Option func(*Store)

// WithExpirationHook registers a callback invoked with the number of
// keys removed by each background sweep pass. Used for metrics.
func WithExpirationHook(fn func(removed int)) Option {
	return func(s *Store) {
		s.onExpired = fn
	}
}

// New creates an empty Store and starts the background sweep goroutine.
// Callers must Close the store to release it.
func New(opts ...Option) *Store {
	s := &Store{
		entries:   cmap.New[*entry](),
		stopSweep: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop()
	return s
}

// Close stops the background sweep. It is idempotent.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stopSweep)
	})
}

// Len returns the number of keys currently held, including entries the
// sweep has not collected yet.
func (s *Store) Len() int {
	return s.entries.Count()
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

// removeExpired proactively purges expired keys so abandoned TTL'd
// entries do not accumulate between client reads. It shares the expiry
// predicate with the lazy on-access checks.
func (s *Store) removeExpired() {
	now := time.Now()
	removed := s.entries.Purge(func(_ string, e *entry) bool {
		return e.expired(now)
	})
	if removed > 0 && s.onExpired != nil {
		s.onExpired(removed)
	}
}

// ============================================================
// String operations
// ============================================================

// Set writes a string value. With nx set, it is a no-op when the key is
// present; with xx set, a no-op when the key is absent. Otherwise it
// overwrites any existing variant with a fresh string value and the
// given TTL; ttl <= 0 means no expiration, and a plain overwrite clears
// any prior TTL. Returns whether the write happened.
func (s *Store) Set(key string, value []byte, ttl time.Duration, nx, xx bool) bool {
	now := time.Now()
	var wrote bool

	s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
		present := live(e, ok, now)
		if nx && present {
			return e, true
		}
		if xx && !present {
			// Dropping a stale entry here also clears its TTL
			// bookkeeping.
			return nil, false
		}
		wrote = true
		return newStringEntry(value, ttl, now), true
	})

	return wrote
}

// Get returns a copy of the string content, or nil when the key is
// absent or expired. It faults with ErrWrongType when the key holds a
// hash or list.
func (s *Store) Get(key string) ([]byte, error) {
	now := time.Now()
	var out []byte
	var err error

	s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
		if !live(e, ok, now) {
			return nil, false
		}
		if e.kind != kindString {
			err = ErrWrongType
			return e, true
		}
		out = cloneBytes(e.str)
		return e, true
	})

	return out, err
}

// Del removes each key unconditionally and returns how many of them
// existed as non-expired entries immediately prior to removal.
func (s *Store) Del(keys ...string) int {
	now := time.Now()
	count := 0

	for _, key := range keys {
		s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
			if live(e, ok, now) {
				count++
			}
			return nil, false
		})
	}
	return count
}

// Exists counts how many of the given keys currently resolve to a
// non-expired entry.
func (s *Store) Exists(keys ...string) int {
	now := time.Now()
	count := 0

	for _, key := range keys {
		s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
			if !live(e, ok, now) {
				return nil, false
			}
			count++
			return e, true
		})
	}
	return count
}

// ============================================================
// Hash operations
// ============================================================

// FieldValue is one field-value pair for HSet.
type FieldValue struct {
	Field string
	Value []byte
}

// HSet merges the given pairs into the hash at key, creating the hash
// if the key is absent. Returns the count of fields that did not
// previously exist.
func (s *Store) HSet(key string, pairs ...FieldValue) (int, error) {
	now := time.Now()
	added := 0
	var err error

	s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
		e, ok = vivifyHash(e, ok, now)
		if !ok {
			err = ErrWrongType
			return e, true
		}
		for _, p := range pairs {
			if e.hash.Set(p.Field, p.Value) {
				added++
			}
		}
		return e, true
	})

	return added, err
}

// HSetNX sets the field only if it is absent in the hash, creating the
// hash if the key is absent. Returns whether the field was set.
func (s *Store) HSetNX(key, field string, value []byte) (bool, error) {
	now := time.Now()
	var set bool
	var err error

	s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
		e, ok = vivifyHash(e, ok, now)
		if !ok {
			err = ErrWrongType
			return e, true
		}
		set = e.hash.SetNX(field, value)
		return e, true
	})

	return set, err
}

// HGet returns the value of a field, or nil when the key or field is
// absent.
func (s *Store) HGet(key, field string) ([]byte, error) {
	now := time.Now()
	var out []byte
	var err error

	s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
		if !live(e, ok, now) {
			return nil, false
		}
		if e.kind != kindHash {
			err = ErrWrongType
			return e, true
		}
		out, _ = e.hash.Get(field)
		return e, true
	})

	return out, err
}

// HMGet returns positional results for the given fields, nil per
// missing field. An absent key yields all-nil positions.
func (s *Store) HMGet(key string, fields ...string) ([][]byte, error) {
	now := time.Now()
	out := make([][]byte, len(fields))
	var err error

	s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
		if !live(e, ok, now) {
			return nil, false
		}
		if e.kind != kindHash {
			err = ErrWrongType
			return e, true
		}
		for i, f := range fields {
			out[i], _ = e.hash.Get(f)
		}
		return e, true
	})

	return out, err
}

// HIncrBy adds delta to the integer at field, treating a missing field
// as 0 and creating the hash if the key is absent. Returns the new
// value, or ErrNotInteger / ErrOverflow leaving the field unchanged.
func (s *Store) HIncrBy(key, field string, delta int64) (int64, error) {
	now := time.Now()
	var out int64
	var err error

	s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
		e, ok = vivifyHash(e, ok, now)
		if !ok {
			err = ErrWrongType
			return e, true
		}
		out, err = e.hash.IncrBy(field, delta)
		return e, true
	})

	return out, err
}

// vivifyHash resolves the entry for a hash write: a missing or expired
// entry is replaced with a fresh empty hash, an existing hash is kept,
// and any other kind reports false.
func vivifyHash(e *entry, ok bool, now time.Time) (*entry, bool) {
	if !live(e, ok, now) {
		return newHashEntry(), true
	}
	if e.kind != kindHash {
		return e, false
	}
	return e, true
}

// ============================================================
// List operations
// ============================================================

// LPush pushes values onto the head of the list at key, creating the
// list if the key is absent. Returns the new length.
func (s *Store) LPush(key string, values ...[]byte) (int, error) {
	return s.push(key, values, true)
}

// RPush pushes values onto the tail of the list at key, creating the
// list if the key is absent. Returns the new length.
func (s *Store) RPush(key string, values ...[]byte) (int, error) {
	return s.push(key, values, false)
}

func (s *Store) push(key string, values [][]byte, left bool) (int, error) {
	now := time.Now()
	var length int
	var err error

	s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
		e, ok = vivifyList(e, ok, now)
		if !ok {
			err = ErrWrongType
			return e, true
		}
		if left {
			length = e.list.LPush(values...)
		} else {
			length = e.list.RPush(values...)
		}
		return e, true
	})

	return length, err
}

// LPop removes and returns the head element, or nil when the list is
// absent or empty. The key is deleted once the list becomes empty.
func (s *Store) LPop(key string) ([]byte, error) {
	return s.pop(key, true)
}

// RPop removes and returns the tail element, or nil when the list is
// absent or empty. The key is deleted once the list becomes empty.
func (s *Store) RPop(key string) ([]byte, error) {
	return s.pop(key, false)
}

func (s *Store) pop(key string, left bool) ([]byte, error) {
	now := time.Now()
	var out []byte
	var err error

	s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
		if !live(e, ok, now) {
			return nil, false
		}
		if e.kind != kindList {
			err = ErrWrongType
			return e, true
		}
		if left {
			out, _ = e.list.LPop()
		} else {
			out, _ = e.list.RPop()
		}
		// Absence, not an empty container.
		return e, e.list.Len() > 0
	})

	return out, err
}

// LLen returns the list length, 0 when the key is absent.
func (s *Store) LLen(key string) (int, error) {
	now := time.Now()
	var length int
	var err error

	s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
		if !live(e, ok, now) {
			return nil, false
		}
		if e.kind != kindList {
			err = ErrWrongType
			return e, true
		}
		length = e.list.Len()
		return e, true
	})

	return length, err
}

// LRange returns copies of the inclusive range over a snapshot of the
// list taken under the key's shard lock. Negative indices count from
// the tail; out-of-range indices are clamped.
func (s *Store) LRange(key string, start, stop int) ([][]byte, error) {
	now := time.Now()
	var out [][]byte
	var err error

	s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
		if !live(e, ok, now) {
			return nil, false
		}
		if e.kind != kindList {
			err = ErrWrongType
			return e, true
		}
		out = e.list.Range(start, stop)
		return e, true
	})

	return out, err
}

// LTrim keeps only the inclusive range, using the same index rules as
// LRange. The key is deleted when the resulting range is empty.
func (s *Store) LTrim(key string, start, stop int) error {
	now := time.Now()
	var err error

	s.entries.Mutate(key, func(e *entry, ok bool) (*entry, bool) {
		if !live(e, ok, now) {
			return nil, false
		}
		if e.kind != kindList {
			err = ErrWrongType
			return e, true
		}
		e.list.Trim(start, stop)
		return e, e.list.Len() > 0
	})

	return err
}

// LMove atomically pops one element from src's head or tail and pushes
// it onto dst's head or tail. It returns nil with no effect when src is
// absent or empty, deletes src if it becomes empty, creates dst if
// needed, and preserves src's TTL when src survives. Moves serialize
// against each other behind a store-wide mutex.
func (s *Store) LMove(src, dst string, fromLeft, toLeft bool) ([]byte, error) {
	s.moveMu.Lock()
	defer s.moveMu.Unlock()

	now := time.Now()

	// Check dst's kind first so a wrong-type destination mutates
	// nothing, src included.
	var dstBad bool
	s.entries.Mutate(dst, func(e *entry, ok bool) (*entry, bool) {
		if !live(e, ok, now) {
			return nil, false
		}
		dstBad = e.kind != kindList
		return e, true
	})
	if dstBad {
		return nil, ErrWrongType
	}

	val, err := s.pop(src, fromLeft)
	if err != nil || val == nil {
		return nil, err
	}

	if toLeft {
		_, err = s.LPush(dst, val)
	} else {
		_, err = s.RPush(dst, val)
	}
	if err != nil {
		// dst changed kind between the check and the push; put the
		// element back where it came from.
		if fromLeft {
			_, _ = s.LPush(src, val)
		} else {
			_, _ = s.RPush(src, val)
		}
		return nil, err
	}

	return val, nil
}

// vivifyList resolves the entry for a list write, mirroring vivifyHash.
func vivifyList(e *entry, ok bool, now time.Time) (*entry, bool) {
	if !live(e, ok, now) {
		return newListEntry(), true
	}
	if e.kind != kindList {
		return e, false
	}
	return e, true
}
