package analysis

import (
	"fmt"
	"sort"

	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/question"
)

// Analyzer scores attempts. It holds no state beyond its detectors and is
// safe for concurrent use.
type Analyzer struct {
	detectors []Detector
}

// New creates an Analyzer. With no detectors it uses DefaultDetectors.
func New(detectors ...Detector) *Analyzer {
	if len(detectors) == 0 {
		detectors = DefaultDetectors()
	}
	return &Analyzer{detectors: detectors}
}

// Analyze converts an attempt into a Result. It is deterministic: the same
// Input always yields an identical Result.
func (a *Analyzer) Analyze(in Input) (*Result, error) {
	graded, err := grade(in)
	if err != nil {
		return nil, err
	}
	tmpl := in.Template
	at := in.Attempt

	res := &Result{
		AttemptID:         at.ID,
		UserID:            at.UserID,
		TemplateID:        tmpl.ID,
		State:             tmpl.State,
		TotalQuestions:    len(graded),
		Answers:           graded,
		CategoryBreakdown: make(map[string]CategoryScore),
		MistakePatterns:   []MistakePattern{},
	}

	byID := make(map[string]question.Question, len(tmpl.Questions))
	for _, q := range tmpl.Questions {
		byID[q.ID] = q
	}
	for _, g := range graded {
		q := byID[g.QuestionID]
		res.TotalPoints += q.Points
		cs := res.CategoryBreakdown[g.Category]
		cs.Total++
		if g.Correct {
			res.CorrectCount++
			res.EarnedPoints += q.Points
			cs.Correct++
		}
		res.CategoryBreakdown[g.Category] = cs
	}
	for cat, cs := range res.CategoryBreakdown {
		cs.Score = percent(cs.Correct, cs.Total)
		cs.Strength = RateStrength(cs.Score)
		res.CategoryBreakdown[cat] = cs
	}

	res.Score = Score{
		Raw:        percent(res.CorrectCount, res.TotalQuestions),
		Weighted:   percent(res.EarnedPoints, res.TotalPoints),
		Percentile: Percentile(percent(res.CorrectCount, res.TotalQuestions), in.Pool),
	}
	res.Passed = res.Score.Weighted >= float64(tmpl.PassingScore)

	for _, d := range a.detectors {
		res.MistakePatterns = append(res.MistakePatterns, d.Detect(graded)...)
	}

	res.TimeEfficiency = Pacing(totalTime(in), tmpl.TimeLimitSeconds(), len(graded))
	res.Improvement = Compare(res.Score.Raw, in.PriorScores)
	return res, nil
}

// grade validates the attempt against its template and marks each response.
// Response order defines question indexes.
func grade(in Input) ([]Graded, error) {
	at := in.Attempt
	invalid := func(format string, args ...any) error {
		return &ValidationError{AttemptID: at.ID, Reason: fmt.Sprintf(format, args...)}
	}
	if in.Template == nil {
		return nil, invalid("no test template")
	}
	if at.TemplateID != "" && at.TemplateID != in.Template.ID {
		return nil, invalid("attempt is for template %s, not %s", at.TemplateID, in.Template.ID)
	}
	qs := in.Template.Questions
	if len(qs) == 0 {
		return nil, invalid("template %s has no questions", in.Template.ID)
	}
	if len(at.Responses) != len(qs) {
		return nil, invalid("%d answers for %d questions", len(at.Responses), len(qs))
	}

	byID := make(map[string]question.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	seen := make(map[string]bool, len(qs))
	graded := make([]Graded, len(at.Responses))
	for i, r := range at.Responses {
		q, ok := byID[r.QuestionID]
		if !ok {
			return nil, invalid("answer %d references unknown question %q", i, r.QuestionID)
		}
		if seen[r.QuestionID] {
			return nil, invalid("question %q answered twice", r.QuestionID)
		}
		seen[r.QuestionID] = true
		graded[i] = Graded{
			Index:           i,
			QuestionID:      q.ID,
			Category:        q.Category,
			Correct:         q.IsCorrect(r.Answer),
			ResponseTimeSec: r.ResponseTimeSec,
		}
	}
	return graded, nil
}

// RateStrength maps a category score to its strength band.
func RateStrength(score float64) Strength {
	switch {
	case score >= StrongScore:
		return StrengthStrong
	case score >= ModerateScore:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// Percentile ranks score within pool: the share of pool scores at or below
// it, in percent. It returns nil for an empty pool.
func Percentile(score float64, pool []float64) *float64 {
	if len(pool) == 0 {
		return nil
	}
	atOrBelow := 0
	for _, s := range pool {
		if s <= score {
			atOrBelow++
		}
	}
	p := float64(atOrBelow*100) / float64(len(pool))
	return &p
}

// Pacing rates total time spent against the time limit, both in seconds.
func Pacing(totalSecs, limitSecs float64, questions int) TimeEfficiency {
	if questions <= 0 {
		return TimeEfficiency{Rating: TimeOptimal}
	}
	te := TimeEfficiency{
		AvgPerQuestion: totalSecs / float64(questions),
		Expected:       limitSecs / float64(questions),
		Rating:         TimeOptimal,
	}
	if te.Expected <= 0 {
		return te
	}
	te.Ratio = te.AvgPerQuestion / te.Expected
	switch {
	case te.Ratio < TooFastRatio:
		te.Rating = TimeTooFast
	case te.Ratio > TooSlowRatio:
		te.Rating = TimeTooSlow
	}
	return te
}

// Compare reports the change from the most recent prior score and the trend
// over the prior scores followed by this one.
func Compare(score float64, prior []float64) Improvement {
	series := make([]float64, 0, len(prior)+1)
	series = append(series, prior...)
	series = append(series, score)

	imp := Improvement{
		Trend:   difficulty.ClassifyTrend(series),
		Samples: len(series),
	}
	if len(prior) > 0 {
		d := score - prior[len(prior)-1]
		imp.ScoreDifference = &d
	}
	return imp
}

// totalTime prefers the attempt's recorded total and falls back to the sum
// of response times.
func totalTime(in Input) float64 {
	if in.Attempt.TotalTimeSpent > 0 {
		return in.Attempt.TotalTimeSpent
	}
	sum := 0.0
	for _, r := range in.Attempt.Responses {
		sum += r.ResponseTimeSec
	}
	return sum
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part*100) / float64(whole)
}

func (r *Result) categoriesWhere(keep func(CategoryScore) bool) []string {
	var out []string
	for cat, cs := range r.CategoryBreakdown {
		if keep(cs) {
			out = append(out, cat)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := r.CategoryBreakdown[out[i]].Score, r.CategoryBreakdown[out[j]].Score
		if si != sj {
			return si < sj
		}
		return out[i] < out[j]
	})
	return out
}
