package registry

import (
	"errors"
	"fmt"
)

var (
	ErrCapacityExhausted  = errors.New("all SFT numbers have been assigned")
	ErrInvalidRange       = fmt.Errorf("SFT number must be between %d and %d", MinNumber, MaxNumber)
	ErrAlreadyUsed        = errors.New("SFT number already used")
	ErrEmptyName          = errors.New("application name is required")
	ErrInvalidName        = fmt.Errorf("application name and description must be valid text without control characters, at most %d characters", MaxTextLength)
	ErrPersistenceCorrupt = errors.New("registry files are corrupt or unreadable")
)

// Reason maps an allocation error to a short label for metrics and logs
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCapacityExhausted):
		return "capacity_exhausted"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrEmptyName):
		return "empty_name"
	case errors.Is(err, ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, ErrPersistenceCorrupt):
		return "persistence_corrupt"
	default:
		return "store_error"
	}
}
