package testgen

import (
	"math"
	"sort"

	"github.com/abhisek/adaptest/internal/question"
)

// Distribution is the share of a test drawn from each difficulty.
type Distribution map[question.Difficulty]float64

// DistributionFor returns the fixed weight table for a target level.
func DistributionFor(level question.Difficulty) Distribution {
	switch level {
	case question.Easy:
		return Distribution{question.Easy: 0.7, question.Medium: 0.3, question.Hard: 0.0}
	case question.Hard:
		return Distribution{question.Easy: 0.1, question.Medium: 0.3, question.Hard: 0.6}
	default:
		return Distribution{question.Easy: 0.3, question.Medium: 0.4, question.Hard: 0.3}
	}
}

// ByWeight returns the difficulties with a positive weight, heaviest first.
// Equal weights keep chain order.
func (d Distribution) ByWeight() []question.Difficulty {
	var out []question.Difficulty
	for _, diff := range question.AllDifficulties() {
		if d[diff] > 0 {
			out = append(out, diff)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return d[out[i]] > d[out[j]]
	})
	return out
}

// Allocate splits n questions across difficulties: each bucket gets its
// weight times n rounded to the nearest integer, and any rounding surplus or
// shortfall is settled against the heaviest bucket.
func Allocate(n int, d Distribution) map[question.Difficulty]int {
	counts := make(map[question.Difficulty]int, len(d))
	order := d.ByWeight()
	if n <= 0 || len(order) == 0 {
		return counts
	}

	sum := 0
	for _, diff := range order {
		c := int(math.Round(float64(n) * d[diff]))
		counts[diff] = c
		sum += c
	}

	diff := n - sum
	if diff > 0 {
		counts[order[0]] += diff
		return counts
	}
	// Surplus: take from the heaviest buckets first without going negative.
	for _, bucket := range order {
		if diff == 0 {
			break
		}
		take := min(counts[bucket], -diff)
		counts[bucket] -= take
		diff += take
	}
	return counts
}
