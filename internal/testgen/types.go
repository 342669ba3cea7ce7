package testgen

import (
	"context"
	"time"

	"github.com/abhisek/adaptest/internal/question"
)

// Filter selects questions from the pool.
type Filter struct {
	State        string
	Categories   []string            // empty = every category
	Difficulty   question.Difficulty // empty = any difficulty
	ExcludeIDs   []string
	ExcludeTypes []question.Type

	// RankByEffectiveness asks the source to order results by its
	// effectiveness ranking instead of its natural order.
	RankByEffectiveness bool

	Limit int
}

// Source supplies questions. Implementations must honour every Filter field.
type Source interface {
	FetchQuestions(ctx context.Context, f Filter) ([]question.Question, error)
}

// Request describes the test to build.
type Request struct {
	UserID   string
	State    string
	Category string // optional

	// Level is the learner's active difficulty level; empty means MEDIUM.
	Level question.Difficulty

	// WeakCategories receive the reserved weak-area share.
	WeakCategories []string

	// Count is the target number of questions; 0 uses the configured default.
	Count int

	// Exclude lists question ids already served to the learner.
	Exclude []string
}

// Template is a generated test ready to be served.
type Template struct {
	ID               string              `json:"id"`
	UserID           string              `json:"user_id"`
	State            string              `json:"state"`
	Category         string              `json:"category,omitempty"`
	Questions        []question.Question `json:"questions"`
	TimeLimitMinutes int                 `json:"time_limit_minutes"`
	Difficulty       question.Difficulty `json:"difficulty"`
	PassingScore     int                 `json:"passing_score"` // percent
	PassingPoints    int                 `json:"passing_points"`
	TotalPoints      int                 `json:"total_points"`
	Requested        int                 `json:"requested"`
	CreatedAt        time.Time           `json:"created_at"`
}

// TimeLimitSeconds returns the time limit in seconds.
func (t *Template) TimeLimitSeconds() float64 {
	return float64(t.TimeLimitMinutes) * 60
}

// Categories returns the distinct categories covered, in first-seen order.
func (t *Template) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range t.Questions {
		if !seen[q.Category] {
			seen[q.Category] = true
			out = append(out, q.Category)
		}
	}
	return out
}
