package jfr

// Dictionary is a dense mapping from the 64-bit ids the JFR constant
// pool assigns to decoded values, with O(1) average lookup. Keys are
// not required to be dense, but the writer typically assigns them
// monotonically within a chunk.
//
// Grounded on perffile/reader.go's idToAttr map[attrID]*EventAttr: an
// id-keyed lookup table built once during construction and never
// mutated afterward. Generalized here to a generic container (spec
// §3 Dictionary<T>) since Go 1.18 generics give us that directly.
type Dictionary[T any] struct {
	m map[uint64]T
}

// Preallocate reserves capacity for n entries and returns n, so
// callers can write:
//
//	for i := 0; i < d.Preallocate(n); i++ { ... }
func (d *Dictionary[T]) Preallocate(n int) int {
	if d.m == nil {
		d.m = make(map[uint64]T, n)
	}
	return n
}

// Set stores value under key, creating the backing map on first use.
func (d *Dictionary[T]) Set(key uint64, value T) {
	if d.m == nil {
		d.m = make(map[uint64]T)
	}
	d.m[key] = value
}

// Get returns the value stored under key and whether it was present.
func (d *Dictionary[T]) Get(key uint64) (T, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Len reports the number of entries currently stored.
func (d *Dictionary[T]) Len() int { return len(d.m) }
