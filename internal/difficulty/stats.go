package difficulty

import "math"

const (
	// DefaultWindow is the number of most recent scores considered.
	DefaultWindow = 10

	// ConfidentSamples is the sample count at which confidence reaches 1.
	ConfidentSamples = 5

	// MinTrendSamples is the fewest scores the trend classifier will judge.
	MinTrendSamples = 3
)

// Trend classifies the direction of a score series.
type Trend string

const (
	TrendImproving Trend = "IMPROVING"
	TrendDeclining Trend = "DECLINING"
	TrendStable    Trend = "STABLE"
)

// Assessment summarises a rolling window of scores (0-100).
type Assessment struct {
	Samples     int
	Average     float64
	Consistency float64 // 1 - stddev/100, floored at 0
	Confidence  float64 // min(1, samples/5)
	Trend       Trend
}

// Assess computes the rolling-window statistics over the last window scores.
// Scores are ordered oldest first. window <= 0 selects DefaultWindow.
func Assess(scores []float64, window int) Assessment {
	scores = lastN(scores, window)
	n := len(scores)
	if n == 0 {
		return Assessment{Trend: TrendStable}
	}

	avg := mean(scores)
	return Assessment{
		Samples:     n,
		Average:     avg,
		Consistency: Consistency(scores),
		Confidence:  Confidence(n),
		Trend:       ClassifyTrend(scores),
	}
}

// Consistency returns max(0, 1 - stddev(scores)/100). An empty series is
// perfectly consistent.
func Consistency(scores []float64) float64 {
	if len(scores) == 0 {
		return 1
	}
	return clamp(1-stddev(scores)/100, 0, 1)
}

// Confidence grows linearly with sample count and caps at 1.
func Confidence(samples int) float64 {
	if samples <= 0 {
		return 0
	}
	return math.Min(1, float64(samples)/ConfidentSamples)
}

// ClassifyTrend compares each score to its predecessor. Seventy percent or
// more increases is IMPROVING, thirty percent or fewer is DECLINING.
// Fewer than three scores is always STABLE.
func ClassifyTrend(scores []float64) Trend {
	if len(scores) < MinTrendSamples {
		return TrendStable
	}
	increases := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[i-1] {
			increases++
		}
	}
	ratio := float64(increases) / float64(len(scores)-1)
	switch {
	case ratio >= 0.7:
		return TrendImproving
	case ratio <= 0.3:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func lastN(scores []float64, n int) []float64 {
	if n <= 0 {
		n = DefaultWindow
	}
	if len(scores) > n {
		return scores[len(scores)-n:]
	}
	return scores
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	m := mean(xs)
	sq := 0.0
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
