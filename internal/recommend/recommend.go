package recommend

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/abhisek/adaptest/internal/analysis"
	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/question"
)

// Type is the kind of next step suggested.
type Type string

const (
	TypeStory            Type = "STORY"
	TypeTest             Type = "TEST"
	TypeReview           Type = "REVIEW"
	TypeDifficultyChange Type = "DIFFICULTY_CHANGE"
)

// Priorities, lowest first.
const (
	PriorityDifficultyChange = 0
	PriorityStory            = 1
	PriorityTest             = 2
	PriorityReview           = 3
)

const (
	// MaxPerKind caps STORY and TEST suggestions per weak category.
	MaxPerKind = 2

	// MaxReviewCategories caps REVIEW suggestions.
	MaxReviewCategories = 3
)

// Recommendation is a transient next-step suggestion.
type Recommendation struct {
	Type       Type   `json:"type"`
	Priority   int    `json:"priority"`
	ResourceID string `json:"resource_id"`
	Category   string `json:"category,omitempty"`
	Title      string `json:"title,omitempty"`
	Reason     string `json:"reason"`
}

// ContentQuery selects remedial content.
type ContentQuery struct {
	Category   string
	Kind       question.ResourceKind
	Difficulty question.Difficulty
	ExcludeIDs []string
	Limit      int
}

// ContentSource supplies remedial content, best first.
type ContentSource interface {
	FetchContent(ctx context.Context, q ContentQuery) ([]question.Resource, error)
}

// History is the learner context beyond a single analysis.
type History struct {
	// Levels is the current difficulty per category; missing means MEDIUM.
	Levels map[string]question.Difficulty

	// Completed lists resource ids the learner has already finished.
	Completed []string

	// WeakAreas are categories flagged weak over the rolling window.
	WeakAreas []string

	// Adjustments are the difficulty decisions made for this attempt.
	Adjustments []difficulty.Adjustment
}

// Engine ranks next-step suggestions.
type Engine struct {
	content ContentSource
}

// New creates an Engine.
func New(content ContentSource) *Engine {
	return &Engine{content: content}
}

// Recommend builds suggestions from an analysis and the learner's history.
// The output is sorted by priority; equal priorities keep insertion order.
func (e *Engine) Recommend(ctx context.Context, res *analysis.Result, h History) ([]Recommendation, error) {
	var recs []Recommendation

	for _, adj := range h.Adjustments {
		if !adj.Changed {
			continue
		}
		recs = append(recs, Recommendation{
			Type:       TypeDifficultyChange,
			Priority:   PriorityDifficultyChange,
			ResourceID: fmt.Sprintf("level:%s:%s", adj.Category, adj.New),
			Category:   adj.Category,
			Reason:     fmt.Sprintf("%s moves from %s to %s: %s", adj.Category, adj.Previous, adj.New, adj.Reason),
		})
	}

	for _, cat := range weakCategories(res, h.WeakAreas) {
		level := h.Levels[cat]
		if !level.Valid() {
			level = difficulty.DefaultLevel
		}
		for _, kind := range []question.ResourceKind{question.ResourceStory, question.ResourceTest} {
			content, err := e.fetch(ctx, cat, kind, level, h.Completed)
			if err != nil {
				return nil, err
			}
			for _, r := range content {
				recs = append(recs, contentRecommendation(r, cat, kind, res))
			}
		}
	}

	for _, cat := range ReviewCategories(res.MistakePatterns, MaxReviewCategories) {
		recs = append(recs, Recommendation{
			Type:       TypeReview,
			Priority:   PriorityReview,
			ResourceID: "review:" + cat,
			Category:   cat,
			Reason:     fmt.Sprintf("review %s: %s", cat, describePatterns(res.MistakePatterns, cat)),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Priority < recs[j].Priority })
	return recs, nil
}

func (e *Engine) fetch(ctx context.Context, cat string, kind question.ResourceKind, level question.Difficulty, completed []string) ([]question.Resource, error) {
	if e.content == nil {
		return nil, nil
	}
	rs, err := e.content.FetchContent(ctx, ContentQuery{
		Category:   cat,
		Kind:       kind,
		Difficulty: level,
		ExcludeIDs: completed,
		Limit:      MaxPerKind,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s content for %s: %w", strings.ToLower(string(kind)), cat, err)
	}
	out := make([]question.Resource, 0, MaxPerKind)
	for _, r := range rs {
		if len(out) == MaxPerKind {
			break
		}
		if slices.Contains(completed, r.ID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func contentRecommendation(r question.Resource, cat string, kind question.ResourceKind, res *analysis.Result) Recommendation {
	rec := Recommendation{
		ResourceID: r.ID,
		Category:   cat,
		Title:      r.Title,
	}
	if kind == question.ResourceStory {
		rec.Type, rec.Priority = TypeStory, PriorityStory
	} else {
		rec.Type, rec.Priority = TypeTest, PriorityTest
	}
	if cs, ok := res.CategoryBreakdown[cat]; ok {
		rec.Reason = fmt.Sprintf("%s scored %.0f%% in this attempt", cat, cs.Score)
	} else {
		rec.Reason = fmt.Sprintf("%s has been weak in recent attempts", cat)
	}
	return rec
}

// weakCategories lists this attempt's WEAK categories followed by any
// historical weak areas not already present.
func weakCategories(res *analysis.Result, historical []string) []string {
	out := res.WeakCategories()
	for _, cat := range historical {
		if !slices.Contains(out, cat) {
			out = append(out, cat)
		}
	}
	return out
}

// ReviewCategories returns up to n categories ordered by how many pattern
// entries cite them, most first. Ties keep first-appearance order.
func ReviewCategories(patterns []analysis.MistakePattern, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, p := range patterns {
		for _, cat := range p.Categories {
			if counts[cat] == 0 {
				order = append(order, cat)
			}
			counts[cat]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}

func describePatterns(patterns []analysis.MistakePattern, cat string) string {
	var parts []string
	for _, t := range []analysis.PatternType{analysis.PatternConsecutiveErrors, analysis.PatternRushedAnswer} {
		n := 0
		for _, p := range patterns {
			if p.Type == t && slices.Contains(p.Categories, cat) {
				n++
			}
		}
		if n == 0 {
			continue
		}
		label := "consecutive error run"
		if t == analysis.PatternRushedAnswer {
			label = "rushed answer"
		}
		if n > 1 {
			label += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, label))
	}
	return strings.Join(parts, ", ")
}
