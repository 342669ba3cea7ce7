package question

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuestion is the sentinel wrapped by every question validation
// failure.
var ErrInvalidQuestion = errors.New("invalid question")

const (
	MinOptions = 2
	MaxOptions = 4
)

// Validate checks the structural rules a question must satisfy before it can
// enter the pool.
func Validate(q *Question) error {
	if strings.TrimSpace(q.ID) == "" {
		return invalid(q, "id is required")
	}
	if strings.TrimSpace(q.State) == "" {
		return invalid(q, "state is required")
	}
	if strings.TrimSpace(q.Category) == "" {
		return invalid(q, "category is required")
	}
	if !q.Type.Valid() {
		return invalid(q, fmt.Sprintf("unknown type %q", q.Type))
	}
	if !q.Difficulty.Valid() {
		return invalid(q, fmt.Sprintf("unknown difficulty %q", q.Difficulty))
	}
	if q.Points <= 0 {
		return invalid(q, "points must be positive")
	}
	if n := len(q.Options); n < MinOptions || n > MaxOptions {
		return invalid(q, fmt.Sprintf("has %d options, want %d-%d", n, MinOptions, MaxOptions))
	}

	if q.Type == TypeOrdering {
		return validateOrdering(q)
	}

	if len(q.Correct) != 1 {
		return invalid(q, fmt.Sprintf("%s question needs exactly one correct index", q.Type))
	}
	if idx := q.Correct[0]; idx < 0 || idx >= len(q.Options) {
		return invalid(q, fmt.Sprintf("correct index %d out of range", idx))
	}
	if q.Type == TypeTrueFalse && len(q.Options) != 2 {
		return invalid(q, "true-false question needs exactly 2 options")
	}
	return nil
}

// validateOrdering requires the correct answer to be a permutation of the
// option indexes.
func validateOrdering(q *Question) error {
	if len(q.Correct) != len(q.Options) {
		return invalid(q, "ordering answer must list every option once")
	}
	seen := make([]bool, len(q.Options))
	for _, idx := range q.Correct {
		if idx < 0 || idx >= len(q.Options) || seen[idx] {
			return invalid(q, "ordering answer must be a permutation of option indexes")
		}
		seen[idx] = true
	}
	return nil
}

func invalid(q *Question, reason string) error {
	id := q.ID
	if id == "" {
		id = "<unnamed>"
	}
	return fmt.Errorf("%w %s: %s", ErrInvalidQuestion, id, reason)
}
