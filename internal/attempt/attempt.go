package attempt

import (
	"time"

	"github.com/abhisek/adaptest/internal/question"
)

// Response is one answered question within an attempt.
type Response struct {
	QuestionID      string          `json:"question_id"`
	Answer          question.Answer `json:"answer"`
	ResponseTimeSec float64         `json:"response_time_sec"`
}

// Attempt is a learner's completed submission for a test template.
// Immutable once created.
type Attempt struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	TemplateID     string     `json:"template_id"`
	Responses      []Response `json:"responses"`
	TotalTimeSpent float64    `json:"total_time_spent_sec"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Record is the persisted summary of a past attempt used as performance
// history.
type Record struct {
	AttemptID      string
	UserID         string
	State          string
	Score          float64            // raw %
	CategoryScores map[string]float64 // category → raw %
	CreatedAt      time.Time
}

// ScoreFor returns the record's score for category, or the overall score
// when category is empty. The second result is false if the attempt did not
// cover the category.
func (r Record) ScoreFor(category string) (float64, bool) {
	if category == "" {
		return r.Score, true
	}
	s, ok := r.CategoryScores[category]
	return s, ok
}

// Chronological extracts scores for category from newest-first records and
// returns them oldest first, skipping attempts that did not cover it.
func Chronological(newestFirst []Record, category string) []float64 {
	scores := make([]float64, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		if s, ok := newestFirst[i].ScoreFor(category); ok {
			scores = append(scores, s)
		}
	}
	return scores
}
