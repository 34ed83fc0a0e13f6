// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package adaptive

// Window is a fixed-capacity sliding window over observations. Appending
// beyond capacity evicts the oldest entry, so the window always holds the
// most recent [limit] values in insertion order.
type Window[T any] struct {
	limit int
	buf   []T
	head  int
	size  int
}

// NewWindow returns an empty window holding at most [limit] entries.
// Non-positive limits are treated as one.
func NewWindow[T any](limit int) *Window[T] {
	if limit <= 0 {
		limit = 1
	}
	return &Window[T]{
		limit: limit,
		buf:   make([]T, limit),
	}
}

// Append adds [v] as the newest entry, evicting the oldest if full.
func (w *Window[T]) Append(v T) {
	if w.size < w.limit {
		w.buf[(w.head+w.size)%w.limit] = v
		w.size++
		return
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % w.limit
}

// Len returns the number of entries currently held.
func (w *Window[T]) Len() int {
	return w.size
}

// First returns the oldest entry.
func (w *Window[T]) First() (T, bool) {
	if w.size == 0 {
		var zero T
		return zero, false
	}
	return w.buf[w.head], true
}

// Last returns the newest entry.
func (w *Window[T]) Last() (T, bool) {
	if w.size == 0 {
		var zero T
		return zero, false
	}
	return w.buf[(w.head+w.size-1)%w.limit], true
}

// Values returns a copy of the window contents, oldest first.
func (w *Window[T]) Values() []T {
	out := make([]T, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.head+i)%w.limit]
	}
	return out
}
