package extract

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation marks a parsed tree that breaks an assumption the
// engine relies on. It indicates a defect, not bad input.
var ErrInvariantViolation = errors.New("invariant violation")

// InvariantError carries the source and the broken assumption.
type InvariantError struct {
	Source string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Source, ErrInvariantViolation, e.Detail)
}

// Is makes errors.Is(err, ErrInvariantViolation) report true.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantViolation
}
