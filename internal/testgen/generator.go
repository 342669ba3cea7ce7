package testgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/adaptest/internal/question"
)

// Config controls test sizing and selection.
type Config struct {
	// DefaultCount is used when a request does not name a count.
	DefaultCount int

	// MinQuestions is the smallest test generation may return.
	MinQuestions int

	// WeakShare is the fraction of the test reserved for weak categories.
	WeakShare float64

	// MaxTypeShare caps the share of any single question type.
	MaxTypeShare float64

	// TimeBuffer is added to the computed time limit (0.1 = 10%).
	TimeBuffer float64

	// PassingRatio is the share of total points needed to pass.
	PassingRatio float64
}

// DefaultConfig returns the standard sizing rules.
func DefaultConfig() Config {
	return Config{
		DefaultCount: 20,
		MinQuestions: 5,
		WeakShare:    0.4,
		MaxTypeShare: 0.6,
		TimeBuffer:   0.1,
		PassingRatio: 0.7,
	}
}

// Generator builds test templates from a question source.
type Generator struct {
	source Source
	cfg    Config
	rng    *rand.Rand
	now    func() time.Time
	newID  func() string
}

// Option customises a Generator.
type Option func(*Generator)

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option { return func(g *Generator) { g.rng = r } }

// WithClock sets the clock used for CreatedAt.
func WithClock(now func() time.Time) Option { return func(g *Generator) { g.now = now } }

// WithIDFunc sets the template id generator.
func WithIDFunc(fn func() string) Option { return func(g *Generator) { g.newID = fn } }

// New creates a Generator.
func New(source Source, cfg Config, opts ...Option) *Generator {
	g := &Generator{
		source: source,
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// selection tracks chosen questions and the ids that must not be drawn.
type selection struct {
	questions []question.Question
	chosen    map[string]bool
	excluded  map[string]bool // learner's seen list
}

func newSelection(exclude []string) *selection {
	s := &selection{
		chosen:   make(map[string]bool),
		excluded: make(map[string]bool, len(exclude)),
	}
	for _, id := range exclude {
		s.excluded[id] = true
	}
	return s
}

func (s *selection) add(q question.Question) bool {
	if s.chosen[q.ID] {
		return false
	}
	s.chosen[q.ID] = true
	s.questions = append(s.questions, q)
	return true
}

func (s *selection) excludeIDs(relaxed bool) []string {
	ids := make([]string, 0, len(s.chosen)+len(s.excluded))
	for id := range s.chosen {
		ids = append(ids, id)
	}
	if !relaxed {
		for id := range s.excluded {
			if !s.chosen[id] {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Generate builds a template for req. It fails with *PoolExhaustedError when
// fewer than MinQuestions can be drawn after relaxing the exclusion list.
func (g *Generator) Generate(ctx context.Context, req Request) (*Template, error) {
	count := req.Count
	if count <= 0 {
		count = g.cfg.DefaultCount
	}
	level := req.Level
	if !level.Valid() {
		level = question.Medium
	}
	dist := DistributionFor(level)
	sel := newSelection(req.Exclude)

	var general []string
	if req.Category != "" {
		general = []string{req.Category}
	}

	if len(req.WeakCategories) > 0 {
		weakCount := int(math.Round(float64(count) * g.cfg.WeakShare))
		if err := g.fill(ctx, sel, req.State, req.WeakCategories, dist, weakCount, true, false); err != nil {
			return nil, g.fetchFailure(err, count, sel)
		}
	}

	if err := g.fill(ctx, sel, req.State, general, dist, count-len(sel.questions), false, false); err != nil {
		return nil, g.fetchFailure(err, count, sel)
	}

	// Relax the learner's exclusion list before giving up.
	if missing := count - len(sel.questions); missing > 0 {
		if err := g.fill(ctx, sel, req.State, general, dist, missing, false, true); err != nil {
			return nil, g.fetchFailure(err, count, sel)
		}
	}

	if len(sel.questions) < g.cfg.MinQuestions {
		return nil, &PoolExhaustedError{
			Requested: count,
			Available: len(sel.questions),
			Minimum:   g.cfg.MinQuestions,
		}
	}

	if err := g.ensureVariety(ctx, sel); err != nil {
		return nil, g.fetchFailure(err, count, sel)
	}

	qs := sel.questions
	g.rng.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })

	total := 0
	for _, q := range qs {
		total += q.Points
	}

	return &Template{
		ID:               g.newID(),
		UserID:           req.UserID,
		State:            req.State,
		Category:         req.Category,
		Questions:        qs,
		TimeLimitMinutes: TimeLimitMinutes(qs, g.cfg.TimeBuffer),
		Difficulty:       level,
		PassingScore:     int(math.Round(g.cfg.PassingRatio * 100)),
		PassingPoints:    PassingPoints(total, g.cfg.PassingRatio),
		TotalPoints:      total,
		Requested:        count,
		CreatedAt:        g.now(),
	}, nil
}

// fill draws up to n questions following the distribution. A bucket that
// cannot be filled passes its shortfall to the next-heaviest bucket; what is
// still missing after the lightest bucket goes back through the buckets
// heaviest first until it is absorbed or every bucket is dry.
func (g *Generator) fill(
	ctx context.Context,
	sel *selection,
	state string,
	categories []string,
	dist Distribution,
	n int,
	rank bool,
	relaxed bool,
) error {
	if n <= 0 {
		return nil
	}
	alloc := Allocate(n, dist)
	order := dist.ByWeight()
	carry := 0
	for _, d := range order {
		need := alloc[d] + carry
		taken, err := g.draw(ctx, sel, state, categories, d, need, rank, relaxed)
		if err != nil {
			return err
		}
		carry = need - taken
	}
	for _, d := range order {
		if carry == 0 {
			break
		}
		taken, err := g.draw(ctx, sel, state, categories, d, carry, rank, relaxed)
		if err != nil {
			return err
		}
		carry -= taken
	}
	return nil
}

// draw adds up to need unchosen questions of difficulty d and reports how
// many it added.
func (g *Generator) draw(
	ctx context.Context,
	sel *selection,
	state string,
	categories []string,
	d question.Difficulty,
	need int,
	rank bool,
	relaxed bool,
) (int, error) {
	if need <= 0 {
		return 0, nil
	}
	qs, err := g.source.FetchQuestions(ctx, Filter{
		State:               state,
		Categories:          categories,
		Difficulty:          d,
		ExcludeIDs:          sel.excludeIDs(relaxed),
		RankByEffectiveness: rank,
		Limit:               need,
	})
	if err != nil {
		return 0, fmt.Errorf("fetch %s questions: %w", d, err)
	}
	taken := 0
	for _, q := range qs {
		if taken == need {
			break
		}
		if q.Difficulty != d || (!relaxed && sel.excluded[q.ID]) {
			continue
		}
		if sel.add(q) {
			taken++
		}
	}
	return taken, nil
}

// ensureVariety swaps questions of an over-represented type for alternates
// of the same difficulty and category. Best effort: questions without an
// alternate stay in place.
func (g *Generator) ensureVariety(ctx context.Context, sel *selection) error {
	qs := sel.questions
	limit := max(1, int(math.Floor(g.cfg.MaxTypeShare*float64(len(qs)))))

	counts := make(map[question.Type]int)
	for _, q := range qs {
		counts[q.Type]++
	}
	dominant := question.AllTypes()[0]
	for _, t := range question.AllTypes() {
		if counts[t] > counts[dominant] {
			dominant = t
		}
	}
	if counts[dominant] <= limit {
		return nil
	}

	for i := len(qs) - 1; i >= 0 && counts[dominant] > limit; i-- {
		q := qs[i]
		if q.Type != dominant {
			continue
		}
		var full []question.Type
		for _, t := range question.AllTypes() {
			if t == dominant || counts[t] >= limit {
				full = append(full, t)
			}
		}
		alts, err := g.source.FetchQuestions(ctx, Filter{
			State:        q.State,
			Categories:   []string{q.Category},
			Difficulty:   q.Difficulty,
			ExcludeIDs:   sel.excludeIDs(false),
			ExcludeTypes: full,
			Limit:        1,
		})
		if err != nil {
			return fmt.Errorf("fetch alternate for %s: %w", q.ID, err)
		}
		for _, alt := range alts {
			if sel.chosen[alt.ID] || sel.excluded[alt.ID] || alt.Type == dominant {
				continue
			}
			delete(sel.chosen, q.ID)
			sel.chosen[alt.ID] = true
			qs[i] = alt
			counts[dominant]--
			counts[alt.Type]++
			break
		}
	}
	return nil
}

// fetchFailure turns an expired or cancelled fetch into pool exhaustion;
// any other error propagates unchanged.
func (g *Generator) fetchFailure(err error, requested int, sel *selection) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &PoolExhaustedError{
			Requested: requested,
			Available: len(sel.questions),
			Minimum:   g.cfg.MinQuestions,
			Err:       err,
		}
	}
	return err
}
