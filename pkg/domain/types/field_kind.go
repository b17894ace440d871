package types

import (
	"fmt"
	"strings"
)

// FieldKind describes the value domain of a record attribute
type FieldKind string

const (
	FieldKindText   FieldKind = "text"
	FieldKindBool   FieldKind = "bool"
	FieldKindNumber FieldKind = "number"
	FieldKindGeo    FieldKind = "geo"
	FieldKindCode   FieldKind = "code"
	FieldKindDate   FieldKind = "date"
)

// IsValid checks if the field kind is valid
func (k FieldKind) IsValid() bool {
	switch k {
	case FieldKindText,
		FieldKindBool,
		FieldKindNumber,
		FieldKindGeo,
		FieldKindCode,
		FieldKindDate:
		return true
	default:
		return false
	}
}

// Normalize returns the kind, treating empty as FieldKindText
func (k FieldKind) Normalize() FieldKind {
	if k == "" {
		return FieldKindText
	}
	return k
}

// IsFalsy reports whether value is a boolean "off" value for bool fields
func (k FieldKind) IsFalsy(value string) bool {
	if k != FieldKindBool {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "false", "0", "no", "n", "f", "לא":
		return true
	default:
		return false
	}
}

// String returns the string representation of the field kind
func (k FieldKind) String() string {
	return string(k)
}

// ParseFieldKind parses a string into a FieldKind
func ParseFieldKind(s string) (FieldKind, error) {
	kind := FieldKind(s).Normalize()
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid field kind: %s", s)
	}
	return kind, nil
}
