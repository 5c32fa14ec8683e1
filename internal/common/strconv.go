package common

import (
	"strconv"
	"strings"
)

// AtoiDefault converts the provided string to an integer falling back to the default when parsing fails.
func AtoiDefault(value string, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// PositiveIntDefault is AtoiDefault for values that must be at least 1.
func PositiveIntDefault(value string, def int) int {
	if v := AtoiDefault(value, def); v > 0 {
		return v
	}
	return def
}
