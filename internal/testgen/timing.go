package testgen

import (
	"math"

	"github.com/abhisek/adaptest/internal/question"
)

// BaseTimeSecs is the fixed allowance added to every test.
const BaseTimeSecs = 300

// TypeTimeSecs returns the per-question allowance for a question type.
func TypeTimeSecs(t question.Type) float64 {
	switch t {
	case question.TypeTrueFalse:
		return 30
	case question.TypeOrdering, question.TypeImageBased:
		return 60
	case question.TypeScenarioBased:
		return 105
	default:
		return 45
	}
}

// DifficultyMultiplier scales a question's allowance by difficulty.
func DifficultyMultiplier(d question.Difficulty) float64 {
	switch d {
	case question.Medium:
		return 1.2
	case question.Hard:
		return 1.5
	default:
		return 1.0
	}
}

// TimeLimitMinutes sums the base and per-question allowances, applies the
// buffer ratio (0.1 = 10%), and rounds up to whole minutes.
func TimeLimitMinutes(qs []question.Question, buffer float64) int {
	total := float64(BaseTimeSecs)
	for _, q := range qs {
		total += TypeTimeSecs(q.Type) * DifficultyMultiplier(q.Difficulty)
	}
	secs := int(math.Round(total * (1 + buffer)))
	return (secs + 59) / 60
}

// PassingPoints is the minimum points needed to pass at the given ratio.
func PassingPoints(totalPoints int, ratio float64) int {
	return int(math.Ceil(math.Round(float64(totalPoints)*ratio*1000) / 1000))
}
