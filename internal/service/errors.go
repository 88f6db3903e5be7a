package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput wraps request fields that fail to parse or validate.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when a write would break a rule table's
	// non-overlapping version history.
	ErrConflict = errors.New("conflict")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// lookupErr turns a repository lookup failure into ErrNotFound or a wrapped
// database error.
func lookupErr(entity string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	}
	return fmt.Errorf("failed to fetch %s: %w", entity, err)
}
