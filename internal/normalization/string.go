package normalization

import (
	"strings"
)

func ParseInputString(input string) string {
	normalized := strings.ToLower(strings.TrimSpace(input))
	return normalized
}

func ParseInputStringPtr(input *string) *string {
	if input == nil {
		return nil
	}
	normalized := strings.ToLower(strings.TrimSpace(*input))
	return &normalized
}

// TrimInputString keeps the caller's casing. Names and titles go through
// here, identifiers like emails go through ParseInputString.
func TrimInputString(input string) string {
	return strings.TrimSpace(input)
}
