package sequence

import (
	"iter"
	"sort"
)

// Iterator is a generic, immutable, chainable iterator for any type T.
type Iterator[T any] struct {
	seq iter.Seq[T]
}

// From creates a new Iterator from a slice of T.
func From[T any](data []T) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for _, v := range data {
				if !yield(v) {
					return
				}
			}
		},
	}
}

// FromMap creates a new Iterator over the values of a map.
func FromMap[T any, K comparable](data map[K]T) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for _, v := range data {
				if !yield(v) {
					return
				}
			}
		},
	}
}

// FromSeq wraps an existing iter.Seq.
func FromSeq[T any](seq iter.Seq[T]) *Iterator[T] {
	return &Iterator[T]{seq: seq}
}

// Seq returns the underlying sequence function for the iterator.
// This allows direct access to the iterator's sequence for advanced use cases.
func (i *Iterator[T]) Seq() iter.Seq[T] {
	return i.seq
}

// Pull pulls the next element from the iterator and returns it along with a
// boolean indicating whether the element was valid.
func (i *Iterator[T]) Pull() (next func() (T, bool), stop func()) {
	return iter.Pull(i.Seq())
}

// Collect exhausts the iterator and returns a slice of all elements.
func (i *Iterator[T]) Collect() []T {
	var out []T
	i.seq(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Sort returns a new Iterator with elements sorted according to the provided
// less function. The less function should return true if a < b.
func (i *Iterator[T]) Sort(less func(a, b T) bool) *Iterator[T] {
	data := i.Collect()
	sort.SliceStable(data, func(a, b int) bool {
		return less(data[a], data[b])
	})
	return From(data)
}

// Filter returns a new Iterator containing only elements that satisfy the predicate.
func (i *Iterator[T]) Filter(pred func(T) bool) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			i.seq(func(v T) bool {
				if pred(v) {
					return yield(v)
				}
				return true
			})
		},
	}
}

// Find returns the first element matching the predicate, or false if not found.
func (i *Iterator[T]) Find(pred func(T) bool) (T, bool) {
	var zero T
	found := false
	i.seq(func(v T) bool {
		if pred(v) {
			zero = v
			found = true
			return false
		}
		return true
	})
	return zero, found
}

// Any returns true if any element matches the predicate.
func (i *Iterator[T]) Any(pred func(T) bool) bool {
	found := false
	i.seq(func(v T) bool {
		if pred(v) {
			found = true
			return false
		}
		return true
	})
	return found
}

// All returns true if all elements match the predicate.
func (i *Iterator[T]) All(pred func(T) bool) bool {
	all := true
	i.seq(func(v T) bool {
		if !pred(v) {
			all = false
			return false
		}
		return true
	})
	return all
}

// Count returns the number of elements in the iterator.
func (i *Iterator[T]) Count() int {
	count := 0
	i.seq(func(_ T) bool {
		count++
		return true
	})
	return count
}

// First returns the first element, or false if empty.
func (i *Iterator[T]) First() (T, bool) {
	var zero T
	found := false
	i.seq(func(v T) bool {
		zero = v
		found = true
		return false
	})
	return zero, found
}

// Partition splits elements into two slices based on a predicate.
func (i *Iterator[T]) Partition(pred func(T) bool) (matches, rest []T) {
	i.seq(func(v T) bool {
		if pred(v) {
			matches = append(matches, v)
		} else {
			rest = append(rest, v)
		}
		return true
	})
	return
}

// Flatten flattens an iterator of slices into a single iterator.
func Flatten[T any](it *Iterator[[]T]) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			it.seq(func(slice []T) bool {
				for _, v := range slice {
					if !yield(v) {
						return false
					}
				}
				return true
			})
		},
	}
}

// GroupBy groups elements by a key function, returning a map from key to slice of T.
func GroupBy[T any, K comparable](it *Iterator[T], keyFn func(T) K) map[K][]T {
	groups := make(map[K][]T)
	it.seq(func(v T) bool {
		k := keyFn(v)
		groups[k] = append(groups[k], v)
		return true
	})
	return groups
}

// ToMap builds a map from the iterator using key and value selector functions.
func ToMap[T any, K comparable, V any](it *Iterator[T], keyFn func(T) K, valFn func(T) V) map[K]V {
	m := make(map[K]V, it.Count())
	it.seq(func(v T) bool {
		m[keyFn(v)] = valFn(v)
		return true
	})
	return m
}

// ToSet builds a set (map[T]struct{}) from the iterator.
func ToSet[T comparable](it *Iterator[T]) map[T]struct{} {
	set := make(map[T]struct{})
	it.seq(func(v T) bool {
		set[v] = struct{}{}
		return true
	})
	return set
}

// ToArray applies the callback function to each element of the iterator and
// returns a slice of the results. It transforms elements from type T to type S.
func ToArray[T any, S any](it *Iterator[T], callback func(T) S) []S {
	arr := make([]S, 0, it.Count())
	it.seq(func(v T) bool {
		arr = append(arr, callback(v))
		return true
	})
	return arr
}

// SortedKeys returns the keys of a map in ascending order. Command handlers
// use it wherever map iteration order would otherwise leak into replies or
// events.
func SortedKeys[K interface {
	~string | ~int | ~int64 | ~uint64
}, V any](data map[K]V) []K {
	keys := make([]K, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
	return keys
}
