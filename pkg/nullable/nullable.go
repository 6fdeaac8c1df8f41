// Package nullable distinguishes an absent JSON field from an explicit null
// in partial-update request bodies.
package nullable

import (
	"bytes"
	"encoding/json"
)

// Value is a tri-state field: absent (Set false), explicit null (Set and
// Null), or a concrete value.
type Value[T any] struct {
	Set  bool
	Null bool
	V    T
}

func Of[T any](v T) Value[T] {
	return Value[T]{Set: true, V: v}
}

func Null[T any]() Value[T] {
	return Value[T]{Set: true, Null: true}
}

// UnmarshalJSON is only invoked when the key is present.
func (n *Value[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Null = true
		var zero T
		n.V = zero
		return nil
	}
	n.Null = false
	return json.Unmarshal(data, &n.V)
}

func (n Value[T]) MarshalJSON() ([]byte, error) {
	if !n.Set || n.Null {
		return []byte("null"), nil
	}
	return json.Marshal(n.V)
}

// Ptr returns nil for absent or null, else a pointer to the value.
func (n Value[T]) Ptr() *T {
	if !n.Set || n.Null {
		return nil
	}
	v := n.V
	return &v
}

// Apply folds the field into current: absent keeps it, null clears it.
func (n Value[T]) Apply(current *T) *T {
	if !n.Set {
		return current
	}
	return n.Ptr()
}
