package ot

import (
	"iter"

	"github.com/benbjohnson/immutable"
)

// ListState is an immutable snapshot of a list and the version it is at.
// The zero value is an empty list at version 0. Snapshots share structure with
// each other and may be read from any goroutine.
type ListState[T any] struct {
	items   *immutable.List[T]
	version int
}

// NewListState builds a snapshot holding a copy of items.
func NewListState[T any](items []T, version int) ListState[T] {
	b := immutable.NewListBuilder[T]()
	for _, item := range items {
		b.Append(item)
	}
	return ListState[T]{items: b.List(), version: version}
}

func (s ListState[T]) Version() int { return s.version }

func (s ListState[T]) Len() int {
	if s.items == nil {
		return 0
	}
	return s.items.Len()
}

// At returns the item at index i. It panics if i is out of range.
func (s ListState[T]) At(i int) T {
	return s.list().Get(i)
}

// Items returns the items as a freshly allocated slice.
func (s ListState[T]) Items() []T {
	out := make([]T, 0, s.Len())
	for _, item := range s.All() {
		out = append(out, item)
	}
	return out
}

// All iterates over index/item pairs in order.
func (s ListState[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		if s.items == nil {
			return
		}
		it := s.items.Iterator()
		for !it.Done() {
			i, item := it.Next()
			if !yield(i, item) {
				return
			}
		}
	}
}

// Equal reports whether both snapshots hold the same version and items.
func (s ListState[T]) Equal(other ListState[T], eq func(a, b T) bool) bool {
	if s.version != other.version || s.Len() != other.Len() {
		return false
	}
	for i, item := range s.All() {
		if !eq(item, other.At(i)) {
			return false
		}
	}
	return true
}

func (s ListState[T]) list() *immutable.List[T] {
	if s.items == nil {
		return immutable.NewList[T]()
	}
	return s.items
}

func insertAt[T any](l *immutable.List[T], i int, item T) *immutable.List[T] {
	n := l.Len()
	switch i {
	case n:
		return l.Append(item)
	case 0:
		return l.Prepend(item)
	}
	out := l.Slice(0, i).Append(item)
	for j := i; j < n; j++ {
		out = out.Append(l.Get(j))
	}
	return out
}

func removeAt[T any](l *immutable.List[T], i int) *immutable.List[T] {
	n := l.Len()
	switch i {
	case 0:
		return l.Slice(1, n)
	case n - 1:
		return l.Slice(0, n-1)
	}
	out := l.Slice(0, i)
	for j := i + 1; j < n; j++ {
		out = out.Append(l.Get(j))
	}
	return out
}
