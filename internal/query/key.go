package query

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Key identifies one fetchable resource, e.g. ["grid-events", 2]. Two keys
// are equal when their JSON encodings are byte-equal, so an int 2 and a
// float64 2 (what a key decodes to after a round trip through disk) match.
type Key struct {
	parts []any
	hash  string
}

// NewKey builds a key from primitive parts: strings, bools, numbers or nil.
// It panics on any other type, since keys are written as literals.
func NewKey(parts ...any) Key {
	k, err := makeKey(parts)
	if err != nil {
		panic(err)
	}
	return k
}

// ParseKey decodes a JSON array produced by Key.MarshalJSON.
func ParseKey(raw []byte) (Key, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var parts []any
	if err := dec.Decode(&parts); err != nil {
		return Key{}, fmt.Errorf("parse key %s: %w", raw, err)
	}
	if len(parts) == 0 {
		return Key{}, fmt.Errorf("parse key %s: empty key", raw)
	}
	return makeKey(parts)
}

func makeKey(parts []any) (Key, error) {
	dup := make([]any, len(parts))
	for i, p := range parts {
		switch p.(type) {
		case nil, string, bool, json.Number,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			dup[i] = p
		default:
			return Key{}, fmt.Errorf("query key part %d has non-primitive type %T", i, p)
		}
	}
	encoded, err := json.Marshal(dup)
	if err != nil {
		return Key{}, fmt.Errorf("encode query key: %w", err)
	}
	return Key{parts: dup, hash: string(encoded)}, nil
}

// Hash returns the canonical serialized form used for equality.
func (k Key) Hash() string { return k.hash }

// String implements fmt.Stringer.
func (k Key) String() string { return k.hash }

// Equal reports structural equality.
func (k Key) Equal(other Key) bool { return k.hash == other.hash }

// IsZero reports whether k was never built.
func (k Key) IsZero() bool { return k.hash == "" }

// Parts returns a copy of the key's parts.
func (k Key) Parts() []any {
	dup := make([]any, len(k.parts))
	copy(dup, k.parts)
	return dup
}

// MarshalJSON implements json.Marshaler.
func (k Key) MarshalJSON() ([]byte, error) {
	if k.hash == "" {
		return []byte("null"), nil
	}
	return []byte(k.hash), nil
}
