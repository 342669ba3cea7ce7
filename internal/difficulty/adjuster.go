package difficulty

import (
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/adaptest/internal/question"
)

// Transition thresholds on the rolling average score.
const (
	PromoteFromEasy   = 85.0
	PromoteFromMedium = 90.0
	DemoteFromHard    = 60.0
	DemoteFromMedium  = 50.0

	// MinConsistency is the consistency needed for any transition to apply.
	MinConsistency = 0.7

	// WeakAverage is the average below which a category is weak.
	WeakAverage = 70.0

	// WeakConfidence is the confidence needed to flag a weak category.
	WeakConfidence = 0.7
)

// DefaultLevel is the level assumed for a category with no history.
const DefaultLevel = question.Medium

// ErrConcurrentUpdate is returned by level stores when a compare-and-set
// finds a level other than the one expected.
var ErrConcurrentUpdate = errors.New("difficulty level changed concurrently")

// Level is the persisted per-user, per-category difficulty state.
type Level struct {
	UserID     string
	Category   string
	Level      question.Difficulty
	Confidence float64
	UpdatedAt  time.Time
}

// Adjustment is the outcome of running the state machine.
type Adjustment struct {
	Category   string
	Changed    bool
	Previous   question.Difficulty
	New        question.Difficulty
	Reason     string
	Assessment Assessment
}

// Transition applies the level state machine to a single observation. It
// returns the next level and a human-readable reason; when no transition
// applies the current level is returned with an empty reason.
func Transition(current question.Difficulty, average, consistency float64) (question.Difficulty, string) {
	if !current.Valid() {
		current = DefaultLevel
	}
	if consistency < MinConsistency {
		return current, ""
	}

	switch current {
	case question.Easy:
		if average >= PromoteFromEasy {
			return question.Medium, fmt.Sprintf("consistent high performance (average %.1f, consistency %.2f)", average, consistency)
		}
	case question.Medium:
		if average >= PromoteFromMedium {
			return question.Hard, fmt.Sprintf("consistent high performance (average %.1f, consistency %.2f)", average, consistency)
		}
		if average <= DemoteFromMedium {
			return question.Easy, fmt.Sprintf("consistently low scores (average %.1f, consistency %.2f)", average, consistency)
		}
	case question.Hard:
		if average <= DemoteFromHard {
			return question.Medium, fmt.Sprintf("consistently low scores (average %.1f, consistency %.2f)", average, consistency)
		}
	}
	return current, ""
}

// Adjust maps recent scores (oldest first) in one category to the next level.
// It is pure: identical inputs always yield identical results. With no
// history the level defaults to MEDIUM and never transitions.
func Adjust(category string, current question.Difficulty, scores []float64, window int) Adjustment {
	if !current.Valid() {
		current = DefaultLevel
	}
	a := Assess(scores, window)
	adj := Adjustment{
		Category:   category,
		Previous:   current,
		New:        current,
		Assessment: a,
	}
	if a.Samples == 0 {
		return adj
	}

	next, reason := Transition(current, a.Average, a.Consistency)
	if next != current {
		adj.Changed = true
		adj.New = next
		adj.Reason = reason
	}
	return adj
}

// IsWeak reports whether an assessment marks its category as a weak area.
func IsWeak(a Assessment) bool {
	return a.Samples > 0 && a.Average < WeakAverage && a.Confidence >= WeakConfidence
}
