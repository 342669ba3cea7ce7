package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Failure kinds. Match them with errors.Is.
var (
	ErrRateLimited     = errors.New("rate limited")
	ErrUnavailable     = errors.New("provider unavailable")
	ErrRejected        = errors.New("request rejected")
	ErrInvalidResponse = errors.New("invalid response")
	ErrTruncated       = errors.New("response truncated")
)

// Error is a failed Generate call.
type Error struct {
	Kind     error
	Provider string

	// Tag and Tries are filled in by the retry layer.
	Tag   Tag
	Tries int

	// Content is the raw reply for invalid or truncated output.
	Content json.RawMessage
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider + ": ")
	}
	b.WriteString(e.Kind.Error())
	if s := e.Tag.String(); s != "" {
		fmt.Fprintf(&b, " (%s)", s)
	}
	if e.Tries > 1 {
		fmt.Fprintf(&b, " after %d tries", e.Tries)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// transient reports whether another try may succeed.
func (e *Error) transient() bool {
	return e.Kind == ErrRateLimited || e.Kind == ErrUnavailable
}

// classify maps an HTTP status from a backend SDK onto a failure kind.
// Status 0 means the request never got a response.
func classify(provider string, status int, err error) *Error {
	kind := ErrUnavailable
	switch {
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case status >= 400 && status < 500:
		kind = ErrRejected
	}
	return &Error{Kind: kind, Provider: provider, Err: err}
}
