package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/adaptest/internal/analysis"
	"github.com/abhisek/adaptest/internal/attempt"
	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/question"
	"github.com/abhisek/adaptest/internal/recommend"
	"github.com/abhisek/adaptest/internal/testgen"
)

// Service is the boundary of the assessment engine. It wires the
// generator, analyzer, adjuster and recommender to injected collaborators
// and holds no other state.
type Service struct {
	deps     Deps
	cfg      Config
	gen      *testgen.Generator
	analyzer *analysis.Analyzer
	rec      *recommend.Engine
	now      func() time.Time
	newID    func() string
}

// Option customises a Service.
type Option func(*options)

type options struct {
	now    func() time.Time
	newID  func() string
	genOps []testgen.Option
}

// WithClock sets the clock used for new attempts and notifications.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
		o.genOps = append(o.genOps, testgen.WithClock(now))
	}
}

// WithIDFunc sets the id generator for attempts and templates.
func WithIDFunc(fn func() string) Option {
	return func(o *options) {
		o.newID = fn
		o.genOps = append(o.genOps, testgen.WithIDFunc(fn))
	}
}

// WithGeneratorOptions passes options through to the test generator.
func WithGeneratorOptions(opts ...testgen.Option) Option {
	return func(o *options) { o.genOps = append(o.genOps, opts...) }
}

// New creates a Service. Questions, Templates, History, Pool, Levels and
// Content are required.
func New(cfg Config, deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Questions == nil:
		return nil, errors.New("engine: question repository is required")
	case deps.Templates == nil:
		return nil, errors.New("engine: template store is required")
	case deps.History == nil:
		return nil, errors.New("engine: history store is required")
	case deps.Pool == nil:
		return nil, errors.New("engine: comparison pool source is required")
	case deps.Levels == nil:
		return nil, errors.New("engine: level store is required")
	case deps.Content == nil:
		return nil, errors.New("engine: content repository is required")
	}

	o := options{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		deps:     deps,
		cfg:      cfg,
		gen:      testgen.New(deps.Questions, cfg.Generator, o.genOps...),
		analyzer: analysis.New(),
		rec:      recommend.New(deps.Content),
		now:      o.now,
		newID:    o.newID,
	}, nil
}

// GenerateRequest asks for a new test.
type GenerateRequest struct {
	UserID   string
	State    string
	Category string // optional
	Count    int    // 0 uses the configured default
}

// GenerateTest builds and stores a test template for the learner.
func (s *Service) GenerateTest(ctx context.Context, req GenerateRequest) (*testgen.Template, error) {
	if req.UserID == "" || req.State == "" {
		return nil, fmt.Errorf("%w: user and state are required", ErrInvalidRequest)
	}
	if req.Count < 0 || (s.cfg.MaxQuestions > 0 && req.Count > s.cfg.MaxQuestions) {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidRequest, s.cfg.MaxQuestions)
	}

	levels, err := s.deps.Levels.Levels(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	level := targetLevel(levels, req.Category)

	weak, err := s.weakAreas(ctx, req.UserID, levels)
	if err != nil {
		return nil, err
	}
	if req.Category != "" {
		weak = filterCategory(weak, req.Category)
	}

	seen, err := s.deps.Questions.SeenQuestionIDs(ctx, req.UserID, req.State, s.cfg.SeenWindow)
	if err != nil {
		return nil, fmt.Errorf("load seen questions: %w", err)
	}

	tmpl, err := s.gen.Generate(ctx, testgen.Request{
		UserID:         req.UserID,
		State:          req.State,
		Category:       req.Category,
		Level:          level,
		WeakCategories: weak,
		Count:          req.Count,
		Exclude:        seen,
	})
	if err != nil {
		return nil, fmt.Errorf("generate test: %w", err)
	}

	if err := s.deps.Templates.SaveTemplate(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	s.record(ctx, Event{
		Kind:    EventTestGenerated,
		UserID:  req.UserID,
		Subject: tmpl.ID,
		Payload: map[string]any{
			"state":           tmpl.State,
			"category":        tmpl.Category,
			"difficulty":      tmpl.Difficulty,
			"questions":       len(tmpl.Questions),
			"weak_categories": weak,
		},
	})
	return tmpl, nil
}

// Outcome is everything produced by submitting an attempt.
type Outcome struct {
	Attempt         attempt.Attempt            `json:"attempt"`
	Analysis        *analysis.Result           `json:"analysis"`
	Adjustments     []difficulty.Adjustment    `json:"adjustments"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

// SubmitAttempt scores an attempt, records it, adjusts difficulty for every
// category the test covered and recommends next steps. tmpl may be nil, in
// which case the attempt's template is loaded from the template store. A
// supplied tmpl is only used when no stored template has its id; otherwise
// the attempt is graded against the stored one.
func (s *Service) SubmitAttempt(ctx context.Context, at attempt.Attempt, tmpl *testgen.Template) (*Outcome, error) {
	if at.UserID == "" {
		return nil, fmt.Errorf("%w: attempt has no user", ErrInvalidRequest)
	}
	tmpl, err := s.gradingTemplate(ctx, at.TemplateID, tmpl)
	if err != nil {
		return nil, err
	}
	if at.TemplateID == "" {
		at.TemplateID = tmpl.ID
	}
	if at.ID == "" {
		at.ID = s.newID()
	}
	if at.CreatedAt.IsZero() {
		at.CreatedAt = s.now()
	}

	res, err := s.analyze(ctx, at, tmpl)
	if err != nil {
		return nil, err
	}

	if err := s.deps.History.SaveAttempt(ctx, at, res); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}

	var adjustments []difficulty.Adjustment
	for _, cat := range tmpl.Categories() {
		adj, err := s.AdjustDifficulty(ctx, at.UserID, cat)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adj)
	}

	recs, err := s.recommend(ctx, at.UserID, res, adjustments)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, res)
	s.record(ctx, Event{
		Kind:    EventAttemptSubmitted,
		UserID:  at.UserID,
		Subject: at.ID,
		Payload: map[string]any{
			"template_id": tmpl.ID,
			"raw":         res.Score.Raw,
			"weighted":    res.Score.Weighted,
			"passed":      res.Passed,
		},
	})

	return &Outcome{
		Attempt:         at,
		Analysis:        res,
		Adjustments:     adjustments,
		Recommendations: recs,
	}, nil
}

// AnalyzeAttempt returns the cached analysis of a stored attempt, computing
// and caching it on a miss.
func (s *Service) AnalyzeAttempt(ctx context.Context, attemptID string) (*analysis.Result, error) {
	if s.deps.Cache != nil {
		res, err := s.deps.Cache.GetAnalysis(ctx, attemptID)
		if err != nil {
			warn("read cached analysis %s: %v", attemptID, err)
		} else if res != nil {
			return res, nil
		}
	}

	at, err := s.deps.History.Attempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	if at == nil {
		return nil, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	tmpl, err := s.template(ctx, at.TemplateID)
	if err != nil {
		return nil, err
	}

	res, err := s.analyze(ctx, *at, tmpl)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, res)
	return res, nil
}

// AdjustDifficulty runs the state machine over the learner's recent scores
// in category and persists the result with a compare-and-set. A lost race
// is retried once against the freshly stored level.
func (s *Service) AdjustDifficulty(ctx context.Context, userID, category string) (difficulty.Adjustment, error) {
	var adj difficulty.Adjustment
	for try := 0; try < 2; try++ {
		stored, err := s.deps.Levels.Level(ctx, userID, category)
		if err != nil {
			return adj, fmt.Errorf("load level for %s: %w", category, err)
		}
		var expected question.Difficulty
		current := difficulty.DefaultLevel
		if stored != nil {
			expected, current = stored.Level, stored.Level
		}

		recs, err := s.deps.History.RecentAttempts(ctx, userID, "", category, s.cfg.HistoryWindow)
		if err != nil {
			return adj, fmt.Errorf("load history for %s: %w", category, err)
		}
		adj = difficulty.Adjust(category, current, attempt.Chronological(recs, category), s.cfg.HistoryWindow)

		err = s.deps.Levels.CompareAndSet(ctx, userID, category, expected, adj.New, adj.Assessment.Confidence)
		if errors.Is(err, difficulty.ErrConcurrentUpdate) && try == 0 {
			continue
		}
		if err != nil {
			return adj, fmt.Errorf("persist level for %s: %w", category, err)
		}
		break
	}

	if adj.Changed {
		s.record(ctx, Event{
			Kind:    EventDifficultyChanged,
			UserID:  userID,
			Subject: category,
			Payload: map[string]any{
				"from":       adj.Previous,
				"to":         adj.New,
				"reason":     adj.Reason,
				"confidence": adj.Assessment.Confidence,
			},
		})
		s.notify(ctx, Notification{
			UserID:   userID,
			Kind:     EventDifficultyChanged,
			Category: category,
			Message:  fmt.Sprintf("%s is now %s: %s", category, adj.New, adj.Reason),
			At:       s.now(),
		})
	}
	return adj, nil
}

// Recommend regenerates next-step suggestions for a stored attempt.
func (s *Service) Recommend(ctx context.Context, attemptID string) ([]recommend.Recommendation, error) {
	res, err := s.AnalyzeAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return s.recommend(ctx, res.UserID, res, nil)
}

// Levels lists the learner's stored difficulty levels.
func (s *Service) Levels(ctx context.Context, userID string) ([]difficulty.Level, error) {
	levels, err := s.deps.Levels.Levels(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	return levels, nil
}

// analyze gathers the comparison pool and prior scores for at and scores it.
func (s *Service) analyze(ctx context.Context, at attempt.Attempt, tmpl *testgen.Template) (*analysis.Result, error) {
	pool, err := s.deps.Pool.ComparisonPool(ctx, tmpl.State, at.CreatedAt.Add(-s.cfg.ComparisonWindow), at.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("load comparison pool: %w", err)
	}

	recs, err := s.deps.History.RecentAttempts(ctx, at.UserID, tmpl.State, "", s.cfg.HistoryWindow+1)
	if err != nil {
		return nil, fmt.Errorf("load prior attempts: %w", err)
	}
	var earlier []attempt.Record
	for _, r := range recs {
		if r.AttemptID != at.ID && r.CreatedAt.Before(at.CreatedAt) {
			earlier = append(earlier, r)
		}
	}

	res, err := s.analyzer.Analyze(analysis.Input{
		Attempt:     at,
		Template:    tmpl,
		Pool:        pool,
		PriorScores: attempt.Chronological(earlier, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("analyze attempt: %w", err)
	}
	return res, nil
}

func (s *Service) recommend(ctx context.Context, userID string, res *analysis.Result, adjustments []difficulty.Adjustment) ([]recommend.Recommendation, error) {
	levels, err := s.deps.Levels.Levels(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	completed, err := s.deps.Content.CompletedResources(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load completed resources: %w", err)
	}
	weak, err := s.weakAreas(ctx, userID, levels)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]question.Difficulty, len(levels))
	for _, l := range levels {
		byCategory[l.Category] = l.Level
	}
	recs, err := s.rec.Recommend(ctx, res, recommend.History{
		Levels:      byCategory,
		Completed:   completed,
		WeakAreas:   weak,
		Adjustments: adjustments,
	})
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	return recs, nil
}

// weakAreas assesses every category the learner has a level for and returns
// the weak ones, lowest average first.
func (s *Service) weakAreas(ctx context.Context, userID string, levels []difficulty.Level) ([]string, error) {
	type scored struct {
		category string
		average  float64
	}
	var weak []scored
	for _, l := range levels {
		recs, err := s.deps.History.RecentAttempts(ctx, userID, "", l.Category, s.cfg.HistoryWindow)
		if err != nil {
			return nil, fmt.Errorf("load history for %s: %w", l.Category, err)
		}
		a := difficulty.Assess(attempt.Chronological(recs, l.Category), s.cfg.HistoryWindow)
		if difficulty.IsWeak(a) {
			weak = append(weak, scored{l.Category, a.Average})
		}
	}
	sort.Slice(weak, func(i, j int) bool {
		if weak[i].average != weak[j].average {
			return weak[i].average < weak[j].average
		}
		return weak[i].category < weak[j].category
	})
	out := make([]string, len(weak))
	for i, w := range weak {
		out[i] = w.category
	}
	return out, nil
}

// gradingTemplate picks the template an attempt is scored against. The
// stored template always wins over a supplied copy with the same id.
func (s *Service) gradingTemplate(ctx context.Context, templateID string, supplied *testgen.Template) (*testgen.Template, error) {
	if supplied == nil {
		return s.template(ctx, templateID)
	}
	if supplied.ID == "" {
		return nil, fmt.Errorf("%w: template has no id", ErrInvalidRequest)
	}
	if templateID != "" && templateID != supplied.ID {
		return nil, fmt.Errorf("%w: attempt is for template %q, not %q", ErrInvalidRequest, templateID, supplied.ID)
	}
	stored, err := s.deps.Templates.Template(ctx, supplied.ID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if stored != nil {
		return stored, nil
	}
	if err := s.deps.Templates.SaveTemplate(ctx, supplied); err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	return supplied, nil
}

func (s *Service) template(ctx context.Context, id string) (*testgen.Template, error) {
	tmpl, err := s.deps.Templates.Template(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if tmpl == nil {
		return nil, fmt.Errorf("template %q: %w", id, ErrNotFound)
	}
	return tmpl, nil
}

func (s *Service) cache(ctx context.Context, res *analysis.Result) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.PutAnalysis(ctx, res); err != nil {
		warn("cache analysis %s: %v", res.AttemptID, err)
	}
}

func (s *Service) record(ctx context.Context, e Event) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Append(ctx, e); err != nil {
		warn("append %s event: %v", e.Kind, err)
	}
}

func (s *Service) notify(ctx context.Context, n Notification) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.Notify(ctx, n); err != nil {
		warn("notify %s: %v", n.UserID, err)
	}
}

// targetLevel picks the generation level: the category's level when one is
// named, otherwise the rounded mean rank of every stored level.
func targetLevel(levels []difficulty.Level, category string) question.Difficulty {
	if category != "" {
		for _, l := range levels {
			if l.Category == category && l.Level.Valid() {
				return l.Level
			}
		}
		return difficulty.DefaultLevel
	}
	sum, n := 0, 0
	for _, l := range levels {
		if l.Level.Valid() {
			sum += l.Level.Rank()
			n++
		}
	}
	if n == 0 {
		return difficulty.DefaultLevel
	}
	rank := int(math.Round(float64(sum) / float64(n)))
	return question.AllDifficulties()[rank]
}

func filterCategory(cats []string, keep string) []string {
	for _, c := range cats {
		if c == keep {
			return []string{keep}
		}
	}
	return nil
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}
