package shared

import (
	"fmt"
	"strconv"
)

// Limit bounds for list endpoints.
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// ParseLimit parses a page-size query value. An empty value yields the
// default; values outside [1, MaxLimit] are rejected.
func ParseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be an integer", ErrValidation)
	}
	if limit < 1 || limit > MaxLimit {
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", ErrValidation, MaxLimit)
	}
	return limit, nil
}
