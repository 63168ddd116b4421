package doses

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("dose not found")
	ErrInvalidSchedule   = errors.New("invalid schedule")
	ErrInvalidTransition = errors.New("invalid dose transition")
	ErrImmutableStatus   = errors.New("dose status is immutable")
	ErrInvalidRange      = errors.New("invalid range")
	ErrForbidden         = errors.New("forbidden")

	// ErrConflict: otro actor ganó la transición condicional.
	// También es ErrInvalidTransition para quien solo chequea ese error.
	ErrConflict = fmt.Errorf("%w: dose was already transitioned", ErrInvalidTransition)
)
