package core

// Secret wraps a sensitive string, typically an assistant API key, so
// that accidental logging or serialization cannot leak it. String,
// GoString, JSON, and text marshaling all produce a redacted
// placeholder; only Expose returns the real value.
//
// Example:
//
//	key := NewSecret("wx-abc123")
//	fmt.Println(key)       // prints: [REDACTED]
//	fmt.Printf("%#v", key) // prints: core.Secret{[REDACTED]}
//	key.Expose()           // returns: "wx-abc123"
type Secret struct {
	value string
}

// NewSecret wraps value in a Secret.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// String returns a redacted placeholder. Implements fmt.Stringer.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString returns a redacted placeholder for %#v formatting.
// Implements fmt.GoStringer.
func (s Secret) GoString() string {
	return "core.Secret{[REDACTED]}"
}

// MarshalJSON returns a redacted JSON string so secrets never land in
// serialized payloads.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalText returns a redacted text representation for encoders that
// go through encoding.TextMarshaler, YAML included.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// Expose returns the wrapped value. Call it only at the point of use,
// such as building an Authorization header, and avoid logging the
// result.
func (s Secret) Expose() string {
	return s.value
}

// IsEmpty reports whether the wrapped value is empty.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}
