package utils

import (
	"strconv"
	"strings"
)

// ParseBool converts query-string style booleans ("1", "true", "yes", "on").
// Anything else is false.
func ParseBool(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch lower {
	case "1", "true", "yes", "on", "t":
		return true
	}
	b, err := strconv.ParseBool(lower)
	return err == nil && b
}

// StringPtr returns nil for blank strings, otherwise a pointer to the trimmed value.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
