// Package store - List variant.
//
// A List is an ordered double-ended sequence of byte values stored
// under a single key. Duplicates and empty elements are allowed. The
// List itself is NOT thread-safe; concurrency is managed by the Store.
package store

// List represents the sequence held by a list-kind entry.
type List struct {
	items [][]byte
}

// NewList creates a new empty List.
func NewList() *List {
	return &List{
		items: make([][]byte, 0),
	}
}

// LPush prepends one or more values to the list. Values are inserted
// one at a time left to right, so LPush(a, b, c) yields head-to-tail
// c, b, a. Returns the new length.
func (l *List) LPush(values ...[]byte) int {
	newItems := make([][]byte, len(values)+len(l.items))
	for i, v := range values {
		newItems[len(values)-1-i] = cloneBytes(v)
	}
	copy(newItems[len(values):], l.items)
	l.items = newItems
	return len(l.items)
}

// RPush appends one or more values in argument order. Returns the new
// length.
func (l *List) RPush(values ...[]byte) int {
	for _, v := range values {
		l.items = append(l.items, cloneBytes(v))
	}
	return len(l.items)
}

// LPop removes and returns the head element.
func (l *List) LPop() ([]byte, bool) {
	if len(l.items) == 0 {
		return nil, false
	}
	val := l.items[0]
	l.items = l.items[1:]
	return val, true
}

// RPop removes and returns the tail element.
func (l *List) RPop() ([]byte, bool) {
	if len(l.items) == 0 {
		return nil, false
	}
	val := l.items[len(l.items)-1]
	l.items = l.items[:len(l.items)-1]
	return val, true
}

// Len returns the number of elements in the list.
func (l *List) Len() int {
	return len(l.items)
}

// Range returns copies of the elements from start to stop inclusive.
// Negative indices count from the tail (-1 is the last element).
// Out-of-range indices are clamped; an empty range returns nil.
func (l *List) Range(start, stop int) [][]byte {
	start, stop, ok := l.clampRange(start, stop)
	if !ok {
		return nil
	}

	out := make([][]byte, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, cloneBytes(l.items[i]))
	}
	return out
}

// Trim keeps only the elements from start to stop inclusive, using the
// same index rules as Range. Trimming to an empty range empties the
// list.
func (l *List) Trim(start, stop int) {
	start, stop, ok := l.clampRange(start, stop)
	if !ok {
		l.items = l.items[:0]
		return
	}
	l.items = l.items[start : stop+1]
}

// clampRange resolves negative indices against the current length and
// clamps both ends. ok is false when the resulting range is empty:
// start at or beyond the length, or clamped start past stop.
func (l *List) clampRange(start, stop int) (int, int, bool) {
	length := len(l.items)
	if length == 0 {
		return 0, 0, false
	}

	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if start >= length || start > stop {
		return 0, 0, false
	}
	return start, stop, true
}
