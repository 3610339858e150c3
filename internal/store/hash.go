// Package store - Hash variant.
//
// A Hash is a map of field to value pairs stored under a single key.
// The Hash itself is NOT thread-safe; concurrency is managed by the
// Store, which only touches a hash under its key's shard lock.
package store

import (
	"math"
	"strconv"
)

// Hash represents the field map held by a hash-kind entry.
type Hash struct {
	fields map[string][]byte
}

// NewHash creates a new empty Hash.
func NewHash() *Hash {
	return &Hash{
		fields: make(map[string][]byte),
	}
}

// Set sets field to value. Returns true if the field is new.
func (h *Hash) Set(field string, value []byte) bool {
	_, existed := h.fields[field]
	h.fields[field] = cloneBytes(value)
	return !existed
}

// SetNX sets field to value only if the field does not exist.
// Returns true if the field was set.
func (h *Hash) SetNX(field string, value []byte) bool {
	if _, exists := h.fields[field]; exists {
		return false
	}
	h.fields[field] = cloneBytes(value)
	return true
}

// Get returns a copy of the value of a field.
func (h *Hash) Get(field string) ([]byte, bool) {
	val, exists := h.fields[field]
	if !exists {
		return nil, false
	}
	return cloneBytes(val), true
}

// Exists returns whether a field exists in the hash.
func (h *Hash) Exists(field string) bool {
	_, exists := h.fields[field]
	return exists
}

// Len returns the number of fields in the hash.
func (h *Hash) Len() int {
	return len(h.fields)
}

// IncrBy adds delta to the integer stored at field, treating a missing
// field as 0. It fails with ErrNotInteger when the existing value is
// not a base-10 integer, and with ErrOverflow when the addition would
// overflow; in both cases the field is left unchanged.
func (h *Hash) IncrBy(field string, delta int64) (int64, error) {
	cur := int64(0)
	if raw, exists := h.fields[field]; exists {
		parsed, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		cur = parsed
	}

	if (delta > 0 && cur > math.MaxInt64-delta) ||
		(delta < 0 && cur < math.MinInt64-delta) {
		return 0, ErrOverflow
	}

	next := cur + delta
	h.fields[field] = []byte(strconv.FormatInt(next, 10))
	return next, nil
}
