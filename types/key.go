package types

// CompositeKey is an ordered tuple of values used as a B-tree key for
// multi-column indexes (spec §3). Single-column indexes use a one-element
// CompositeKey so the same comparator serves both.
type CompositeKey []Value

// CompareKeys implements the lexicographic rule of spec §3/§9: null sorts
// first within a position, and a strict prefix sorts before a longer tuple
// that agrees on the prefix.
func CompareKeys(a, b CompositeKey) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// EqualKeys reports whether a and b compare equal under CompareKeys — the
// same total order used by uniqueness checks, so "index says equal" never
// diverges from "executor says equal" (spec §9).
func EqualKeys(a, b CompositeKey) bool { return CompareKeys(a, b) == 0 }
