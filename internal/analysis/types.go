package analysis

import (
	"github.com/abhisek/adaptest/internal/attempt"
	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/testgen"
)

// Strength rates a category score.
type Strength string

const (
	StrengthStrong   Strength = "STRONG"
	StrengthModerate Strength = "MODERATE"
	StrengthWeak     Strength = "WEAK"
)

// Strength thresholds on a category's score.
const (
	StrongScore   = 80.0
	ModerateScore = 60.0
)

// TimeRating rates pacing against the template's time budget.
type TimeRating string

const (
	TimeTooFast TimeRating = "TOO_FAST"
	TimeOptimal TimeRating = "OPTIMAL"
	TimeTooSlow TimeRating = "TOO_SLOW"
)

// Pacing ratio bounds (actual / expected time per question).
const (
	TooFastRatio = 0.5
	TooSlowRatio = 1.5
)

// PatternType names a structural mistake signal.
type PatternType string

const (
	PatternConsecutiveErrors PatternType = "CONSECUTIVE_ERRORS"
	PatternRushedAnswer      PatternType = "RUSHED_ANSWER"
)

// Input is everything Analyze needs. The comparison pool is explicit so the
// result depends only on its arguments.
type Input struct {
	Attempt  attempt.Attempt
	Template *testgen.Template

	// Pool holds raw scores of same-state attempts in the comparison window.
	Pool []float64

	// PriorScores are the learner's earlier raw scores for the same state,
	// oldest first, excluding this attempt.
	PriorScores []float64
}

// Score holds the headline figures, in percent.
type Score struct {
	Raw        float64  `json:"raw"`
	Weighted   float64  `json:"weighted"`
	Percentile *float64 `json:"percentile,omitempty"` // nil when the pool is empty
}

// CategoryScore is one row of the category breakdown.
type CategoryScore struct {
	Correct  int      `json:"correct"`
	Total    int      `json:"total"`
	Score    float64  `json:"score"`
	Strength Strength `json:"strength"`
}

// MistakePattern is a detected signal. Categories[i] is the category of the
// question at QuestionIndexes[i].
type MistakePattern struct {
	Type            PatternType `json:"type"`
	QuestionIndexes []int       `json:"question_indexes"`
	Categories      []string    `json:"categories"`
}

// TimeEfficiency compares pacing to the expected time per question.
type TimeEfficiency struct {
	AvgPerQuestion float64    `json:"avg_per_question_sec"`
	Expected       float64    `json:"expected_sec"`
	Ratio          float64    `json:"ratio"`
	Rating         TimeRating `json:"rating"`
}

// Improvement compares the attempt with the learner's earlier attempts.
type Improvement struct {
	ScoreDifference *float64         `json:"score_difference,omitempty"` // nil without a previous attempt
	Trend           difficulty.Trend `json:"trend"`
	Samples         int              `json:"samples"`
}

// Result is the immutable analysis of one attempt.
type Result struct {
	AttemptID  string `json:"attempt_id"`
	UserID     string `json:"user_id"`
	TemplateID string `json:"template_id"`
	State      string `json:"state"`

	Score          Score `json:"score"`
	CorrectCount   int   `json:"correct_count"`
	TotalQuestions int   `json:"total_questions"`
	EarnedPoints   int   `json:"earned_points"`
	TotalPoints    int   `json:"total_points"`
	Passed         bool  `json:"passed"`

	// Answers holds each graded response in answer order.
	Answers []Graded `json:"answers"`

	CategoryBreakdown map[string]CategoryScore `json:"category_breakdown"`
	MistakePatterns   []MistakePattern         `json:"mistake_patterns"`
	TimeEfficiency    TimeEfficiency           `json:"time_efficiency"`
	Improvement       Improvement              `json:"improvement"`
}

// WeakCategories returns the categories rated WEAK, lowest score first and
// then by name.
func (r *Result) WeakCategories() []string {
	return r.categoriesWhere(func(c CategoryScore) bool { return c.Strength == StrengthWeak })
}

// CategoryScores returns category → score.
func (r *Result) CategoryScores() map[string]float64 {
	out := make(map[string]float64, len(r.CategoryBreakdown))
	for cat, c := range r.CategoryBreakdown {
		out[cat] = c.Score
	}
	return out
}
