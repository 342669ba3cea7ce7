package question

import "slices"

// Difficulty is the ordered difficulty chain EASY < MEDIUM < HARD. It is used
// both for individual questions and for a learner's per-category level.
type Difficulty string

const (
	Easy   Difficulty = "EASY"
	Medium Difficulty = "MEDIUM"
	Hard   Difficulty = "HARD"
)

// AllDifficulties returns the difficulties in ascending order.
func AllDifficulties() []Difficulty {
	return []Difficulty{Easy, Medium, Hard}
}

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	return d == Easy || d == Medium || d == Hard
}

// Rank returns the position of d in the chain (0, 1, 2), or -1 if unknown.
func (d Difficulty) Rank() int {
	return slices.Index(AllDifficulties(), d)
}

// Harder returns the next level up, or d itself at the top of the chain.
func (d Difficulty) Harder() Difficulty {
	switch d {
	case Easy:
		return Medium
	case Medium:
		return Hard
	}
	return d
}

// Easier returns the next level down, or d itself at the bottom of the chain.
func (d Difficulty) Easier() Difficulty {
	switch d {
	case Hard:
		return Medium
	case Medium:
		return Easy
	}
	return d
}

// Type describes how a question is presented and answered.
type Type string

const (
	TypeMultipleChoice Type = "multiple-choice"
	TypeTrueFalse      Type = "true-false"
	TypeOrdering       Type = "ordering"
	TypeImageBased     Type = "image-based"
	TypeScenarioBased  Type = "scenario-based"
)

// AllTypes returns every supported question type.
func AllTypes() []Type {
	return []Type{
		TypeMultipleChoice,
		TypeTrueFalse,
		TypeOrdering,
		TypeImageBased,
		TypeScenarioBased,
	}
}

// Valid reports whether t is a supported question type.
func (t Type) Valid() bool {
	return slices.Contains(AllTypes(), t)
}

// Answer is a submitted or canonical answer expressed as option indexes.
// Single-answer types carry exactly one index; ordering questions carry the
// full ordered sequence of indexes.
type Answer []int

// Equal reports element-wise equality. An empty answer never equals a
// non-empty one.
func (a Answer) Equal(b Answer) bool {
	return slices.Equal(a, b)
}

// Question is an immutable item in the question pool.
type Question struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory,omitempty"`
	Type        Type       `json:"type"`
	Text        string     `json:"text"`
	Options     []string   `json:"options"`
	Correct     Answer     `json:"correct_answer"`
	Explanation string     `json:"explanation"`
	Difficulty  Difficulty `json:"difficulty"`
	Points      int        `json:"points"`
	Tags        []string   `json:"tags,omitempty"`
}

// IsCorrect reports whether the submitted answer matches the question's
// correct answer. Ordering questions require the whole sequence to match.
func (q *Question) IsCorrect(submitted Answer) bool {
	return q.Correct.Equal(submitted)
}

// HasTag reports whether the question carries the given tag.
func (q *Question) HasTag(tag string) bool {
	return slices.Contains(q.Tags, tag)
}

// IDs returns the ids of qs in order.
func IDs(qs []Question) []string {
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}
