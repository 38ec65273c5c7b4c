package model

import (
	"encoding/json"
	"fmt"
)

// ID is an opaque identifier issued by the exam backend. The backend may emit
// identifiers as JSON numbers or strings; both decode into the same ID and
// digit-only IDs are encoded back as numbers.
type ID string

// UnmarshalJSON accepts a JSON string, number, or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON encodes digit-only IDs as JSON numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// String returns the raw identifier.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the ID is empty.
func (id ID) IsZero() bool {
	return id == ""
}

func (id ID) numeric() bool {
	if id == "" || len(id) > 18 {
		return false
	}
	if len(id) > 1 && id[0] == '0' {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

// ParseID validates an identifier taken from a URL or user input.
func ParseID(s string) (ID, error) {
	if s == "" || len(s) > 64 {
		return "", fmt.Errorf("invalid id %q", s)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-', c == '_':
		default:
			return "", fmt.Errorf("invalid id %q", s)
		}
	}
	return ID(s), nil
}
