package engine

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/abhisek/adaptest/internal/analysis"
	"github.com/abhisek/adaptest/internal/attempt"
	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/question"
	"github.com/abhisek/adaptest/internal/recommend"
	"github.com/abhisek/adaptest/internal/testgen"
)

type memQuestions struct {
	questions []question.Question
	seen      map[string][]string
}

func (m *memQuestions) FetchQuestions(_ context.Context, f testgen.Filter) ([]question.Question, error) {
	var out []question.Question
	for _, q := range m.questions {
		switch {
		case f.State != "" && q.State != f.State:
		case len(f.Categories) > 0 && !slices.Contains(f.Categories, q.Category):
		case f.Difficulty != "" && q.Difficulty != f.Difficulty:
		case slices.Contains(f.ExcludeIDs, q.ID):
		case slices.Contains(f.ExcludeTypes, q.Type):
		default:
			out = append(out, q)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memQuestions) SeenQuestionIDs(_ context.Context, userID, _ string, limit int) ([]string, error) {
	ids := m.seen[userID]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type memTemplates struct {
	mu        sync.Mutex
	templates map[string]*testgen.Template
}

func (m *memTemplates) SaveTemplate(_ context.Context, t *testgen.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.templates == nil {
		m.templates = make(map[string]*testgen.Template)
	}
	if _, ok := m.templates[t.ID]; !ok {
		m.templates[t.ID] = t
	}
	return nil
}

func (m *memTemplates) Template(_ context.Context, id string) (*testgen.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.templates[id], nil
}

type memHistory struct {
	mu       sync.Mutex
	attempts map[string]attempt.Attempt
	records  []attempt.Record
}

func (m *memHistory) SaveAttempt(_ context.Context, at attempt.Attempt, res *analysis.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempts == nil {
		m.attempts = make(map[string]attempt.Attempt)
	}
	if _, ok := m.attempts[at.ID]; ok {
		return fmt.Errorf("attempt %s exists", at.ID)
	}
	m.attempts[at.ID] = at
	m.records = append(m.records, attempt.Record{
		AttemptID:      at.ID,
		UserID:         at.UserID,
		State:          res.State,
		Score:          res.Score.Raw,
		CategoryScores: res.CategoryScores(),
		CreatedAt:      at.CreatedAt,
	})
	return nil
}

func (m *memHistory) Attempt(_ context.Context, id string) (*attempt.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.attempts[id]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

func (m *memHistory) RecentAttempts(_ context.Context, userID, state, category string, limit int) ([]attempt.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attempt.Record
	for _, r := range m.records {
		if r.UserID != userID || (state != "" && r.State != state) {
			continue
		}
		if _, ok := r.ScoreFor(category); !ok {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// seed adds past attempts for one category, oldest first, an hour apart.
func (m *memHistory) seed(userID, state, category string, start time.Time, scores ...float64) {
	for i, s := range scores {
		m.records = append(m.records, attempt.Record{
			AttemptID:      fmt.Sprintf("past-%s-%d", category, i),
			UserID:         userID,
			State:          state,
			Score:          s,
			CategoryScores: map[string]float64{category: s},
			CreatedAt:      start.Add(time.Duration(i) * time.Hour),
		})
	}
}

type memPool struct {
	scores       []float64
	since, until time.Time
}

func (m *memPool) ComparisonPool(_ context.Context, _ string, since, until time.Time) ([]float64, error) {
	m.since, m.until = since, until
	return m.scores, nil
}

type memLevels struct {
	mu     sync.Mutex
	levels map[string]difficulty.Level

	// conflicts makes the next n CompareAndSet calls lose a race: the
	// stored level is bumped by a "concurrent writer" first.
	conflicts int
	err       error
	cas       int
}

func levelKey(userID, category string) string { return userID + "/" + category }

func (m *memLevels) Level(_ context.Context, userID, category string) (*difficulty.Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.levels[levelKey(userID, category)]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *memLevels) Levels(_ context.Context, userID string) ([]difficulty.Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []difficulty.Level
	for _, l := range m.levels {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (m *memLevels) CompareAndSet(_ context.Context, userID, category string, expected, level question.Difficulty, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cas++
	if m.err != nil {
		return m.err
	}
	if m.levels == nil {
		m.levels = make(map[string]difficulty.Level)
	}
	key := levelKey(userID, category)
	if m.conflicts > 0 {
		m.conflicts--
		m.levels[key] = difficulty.Level{UserID: userID, Category: category, Level: question.Easy}
		return difficulty.ErrConcurrentUpdate
	}
	if m.levels[key].Level != expected {
		return difficulty.ErrConcurrentUpdate
	}
	m.levels[key] = difficulty.Level{UserID: userID, Category: category, Level: level, Confidence: confidence}
	return nil
}

func (m *memLevels) set(userID, category string, level question.Difficulty) {
	if m.levels == nil {
		m.levels = make(map[string]difficulty.Level)
	}
	m.levels[levelKey(userID, category)] = difficulty.Level{UserID: userID, Category: category, Level: level}
}

type memContent struct {
	resources []question.Resource
	completed map[string][]string
}

func (m *memContent) FetchContent(_ context.Context, q recommend.ContentQuery) ([]question.Resource, error) {
	var out []question.Resource
	for _, r := range m.resources {
		if r.Category == q.Category && r.Kind == q.Kind && r.Difficulty == q.Difficulty && !slices.Contains(q.ExcludeIDs, r.ID) {
			out = append(out, r)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memContent) CompletedResources(_ context.Context, userID string) ([]string, error) {
	return m.completed[userID], nil
}

type memCache struct {
	mu      sync.Mutex
	results map[string]*analysis.Result
	gets    int
}

func (m *memCache) GetAnalysis(_ context.Context, id string) (*analysis.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	return m.results[id], nil
}

func (m *memCache) PutAnalysis(_ context.Context, res *analysis.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		m.results = make(map[string]*analysis.Result)
	}
	m.results[res.AttemptID] = res
	return nil
}

type memEvents struct {
	mu     sync.Mutex
	events []Event
}

func (m *memEvents) Append(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memEvents) kinds() []string {
	var out []string
	for _, e := range m.events {
		out = append(out, e.Kind)
	}
	return out
}

type memNotifier struct {
	sent []Notification
}

func (m *memNotifier) Notify(_ context.Context, n Notification) error {
	m.sent = append(m.sent, n)
	return nil
}

// fixture bundles every fake.
type fixture struct {
	questions *memQuestions
	templates *memTemplates
	history   *memHistory
	pool      *memPool
	levels    *memLevels
	content   *memContent
	cache     *memCache
	events    *memEvents
	notifier  *memNotifier
}

func newFixture(categories ...string) *fixture {
	f := &fixture{
		questions: &memQuestions{seen: map[string][]string{}},
		templates: &memTemplates{},
		history:   &memHistory{},
		pool:      &memPool{},
		levels:    &memLevels{},
		content:   &memContent{completed: map[string][]string{}},
		cache:     &memCache{},
		events:    &memEvents{},
		notifier:  &memNotifier{},
	}
	types := []question.Type{question.TypeMultipleChoice, question.TypeTrueFalse}
	for _, cat := range categories {
		for _, d := range question.AllDifficulties() {
			for i := 0; i < 12; i++ {
				f.questions.questions = append(f.questions.questions, question.Question{
					ID:         fmt.Sprintf("%s-%s-%02d", cat, d, i),
					State:      "CA",
					Category:   cat,
					Type:       types[i%2],
					Options:    []string{"a", "b"},
					Correct:    question.Answer{0},
					Difficulty: d,
					Points:     1,
				})
			}
			for _, kind := range []question.ResourceKind{question.ResourceStory, question.ResourceTest} {
				for i := 0; i < 3; i++ {
					f.content.resources = append(f.content.resources, question.Resource{
						ID:         fmt.Sprintf("%s-%s-%s-%d", cat, d, kind, i),
						Kind:       kind,
						Category:   cat,
						Difficulty: d,
					})
				}
			}
		}
	}
	return f
}

func (f *fixture) deps() Deps {
	return Deps{
		Questions: f.questions,
		Templates: f.templates,
		History:   f.history,
		Pool:      f.pool,
		Levels:    f.levels,
		Content:   f.content,
		Notifier:  f.notifier,
		Cache:     f.cache,
		Events:    f.events,
	}
}
