package model

import "encoding/json"

// Optional is a partial-update field that distinguishes "absent" from
// "explicit null". Set is false when the field was omitted; Set with a nil
// Value means the caller asked to clear the field.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// NewOptional returns a set Optional holding v.
func NewOptional[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// NullOptional returns a set Optional holding an explicit null.
func NullOptional[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// UnmarshalJSON is only invoked for fields present in the payload, so
// presence implies Set.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON encodes the held value, or null when cleared.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
