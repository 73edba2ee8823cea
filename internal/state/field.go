package state

import "slices"

// Field is either a concrete last-known value or Unknown.
// The zero value is Unknown.
type Field[T any] struct {
	value T
	known bool
}

// Known returns a concrete field holding v.
func Known[T any](v T) Field[T] {
	return Field[T]{value: v, known: true}
}

// Unknown returns the Unknown marker for T.
func Unknown[T any]() Field[T] {
	return Field[T]{}
}

// Get returns the value and whether it is concrete.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.known
}

// IsKnown reports whether the field holds a concrete value.
func (f Field[T]) IsKnown() bool {
	return f.known
}

// Or returns f if it is concrete, otherwise prior.
// Merging with Or can never turn a concrete field back into Unknown.
func (f Field[T]) Or(prior Field[T]) Field[T] {
	if f.known {
		return f
	}
	return prior
}

// cloneList copies a list field so stored state never aliases caller data.
func cloneList(f Field[[]string]) Field[[]string] {
	v, ok := f.Get()
	if !ok {
		return f
	}
	if v == nil {
		return Known([]string{})
	}
	return Known(slices.Clone(v))
}
