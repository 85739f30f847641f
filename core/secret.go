package core

import "log/slog"

// Secret wraps an API key so it cannot leak through fmt, JSON, YAML or slog.
// Use Expose() to read the value when building the Authorization header.
//
//	key := NewSecret("app-abc123")
//	fmt.Println(key)   // [REDACTED]
//	key.Expose()       // "app-abc123"
type Secret struct {
	value string
}

// NewSecret creates a new Secret from a string value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// String returns a redacted placeholder.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString returns a redacted placeholder for %#v formatting.
func (s Secret) GoString() string {
	return "core.Secret{[REDACTED]}"
}

// MarshalJSON returns a redacted JSON string.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalText returns a redacted text representation (YAML, TOML).
func (s Secret) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// LogValue keeps the key out of structured logs.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// Bearer returns the Authorization header value for the key.
func (s Secret) Bearer() string {
	return "Bearer " + s.value
}

// Expose returns the actual secret value.
// Be careful not to log or serialize the returned value.
func (s Secret) Expose() string {
	return s.value
}

// IsEmpty returns true if the secret value is empty.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}
