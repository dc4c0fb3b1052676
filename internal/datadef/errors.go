package datadef

import (
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid definition")
	ErrConflict = errors.New("conflict")
)

// ValidationError несёт полный список проблем, а не первую.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid definition: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }
