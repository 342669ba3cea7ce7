package analysis

// RushedAnswerSecs is the response time (exclusive) under which a wrong
// answer counts as rushed.
const RushedAnswerSecs = 10.0

// MinConsecutiveErrors is the shortest run of wrong answers reported.
const MinConsecutiveErrors = 3

// Graded is one response after grading, in answer order.
type Graded struct {
	Index           int     `json:"index"`
	QuestionID      string  `json:"question_id"`
	Category        string  `json:"category"`
	Correct         bool    `json:"correct"`
	ResponseTimeSec float64 `json:"response_time_sec"`
}

// Detector finds one kind of mistake pattern in a graded attempt.
type Detector interface {
	Name() string
	Detect(graded []Graded) []MistakePattern
}

// DefaultDetectors returns detectors in reporting order.
func DefaultDetectors() []Detector {
	return []Detector{
		&ConsecutiveErrorsDetector{},
		&RushedAnswerDetector{},
	}
}

// ConsecutiveErrorsDetector reports each maximal run of at least
// MinConsecutiveErrors wrong answers as one pattern.
type ConsecutiveErrorsDetector struct{}

func (d *ConsecutiveErrorsDetector) Name() string { return "consecutive-errors" }

func (d *ConsecutiveErrorsDetector) Detect(graded []Graded) []MistakePattern {
	var out []MistakePattern
	var run []Graded
	flush := func() {
		if len(run) >= MinConsecutiveErrors {
			out = append(out, newPattern(PatternConsecutiveErrors, run))
		}
		run = run[:0]
	}
	for _, g := range graded {
		if g.Correct {
			flush()
			continue
		}
		run = append(run, g)
	}
	flush()
	return out
}

// RushedAnswerDetector reports every wrong answer given in under
// RushedAnswerSecs. Responses without a recorded time are ignored.
type RushedAnswerDetector struct{}

func (d *RushedAnswerDetector) Name() string { return "rushed-answer" }

func (d *RushedAnswerDetector) Detect(graded []Graded) []MistakePattern {
	var out []MistakePattern
	for _, g := range graded {
		if !g.Correct && g.ResponseTimeSec > 0 && g.ResponseTimeSec < RushedAnswerSecs {
			out = append(out, newPattern(PatternRushedAnswer, []Graded{g}))
		}
	}
	return out
}

func newPattern(t PatternType, gs []Graded) MistakePattern {
	p := MistakePattern{
		Type:            t,
		QuestionIndexes: make([]int, len(gs)),
		Categories:      make([]string, len(gs)),
	}
	for i, g := range gs {
		p.QuestionIndexes[i] = g.Index
		p.Categories[i] = g.Category
	}
	return p
}
