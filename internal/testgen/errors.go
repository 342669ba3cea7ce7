package testgen

import (
	"errors"
	"fmt"
)

// ErrPoolExhausted is matched by every *PoolExhaustedError.
var ErrPoolExhausted = errors.New("question pool exhausted")

// PoolExhaustedError reports that too few questions were available after
// every relaxation.
type PoolExhaustedError struct {
	Requested int
	Available int
	Minimum   int
	Err       error // underlying cause, e.g. a timed-out fetch
}

func (e *PoolExhaustedError) Error() string {
	msg := fmt.Sprintf("question pool exhausted: %d of %d available (minimum %d)", e.Available, e.Requested, e.Minimum)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PoolExhaustedError) Is(target error) bool { return target == ErrPoolExhausted }

func (e *PoolExhaustedError) Unwrap() error { return e.Err }
