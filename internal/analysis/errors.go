package analysis

import (
	"errors"
	"fmt"
)

// ErrMalformedAttempt is matched by every *ValidationError.
var ErrMalformedAttempt = errors.New("malformed attempt")

// ValidationError rejects an attempt that cannot be scored.
type ValidationError struct {
	AttemptID string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("malformed attempt %s: %s", e.AttemptID, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrMalformedAttempt }
