package testgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/adaptest/internal/question"
)

// fakeSource is an in-memory Source that honours every Filter field and
// records the filters it was called with.
type fakeSource struct {
	mu        sync.Mutex
	questions []question.Question
	calls     []Filter
	err       error
}

func (f *fakeSource) FetchQuestions(_ context.Context, filter Filter) ([]question.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, filter)
	if f.err != nil {
		return nil, f.err
	}

	var out []question.Question
	for _, q := range f.questions {
		switch {
		case filter.State != "" && q.State != filter.State:
		case len(filter.Categories) > 0 && !slices.Contains(filter.Categories, q.Category):
		case filter.Difficulty != "" && q.Difficulty != filter.Difficulty:
		case slices.Contains(filter.ExcludeIDs, q.ID):
		case slices.Contains(filter.ExcludeTypes, q.Type):
		default:
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func makeQuestions(prefix, category string, d question.Difficulty, t question.Type, n int) []question.Question {
	qs := make([]question.Question, n)
	for i := range qs {
		qs[i] = question.Question{
			ID:         fmt.Sprintf("%s-%s-%02d", prefix, d, i),
			State:      "CA",
			Category:   category,
			Type:       t,
			Options:    []string{"a", "b"},
			Correct:    question.Answer{0},
			Difficulty: d,
			Points:     1,
		}
	}
	return qs
}

func fullPool(category string, perDifficulty int) []question.Question {
	var qs []question.Question
	for _, d := range question.AllDifficulties() {
		qs = append(qs, makeQuestions("mc-"+category, category, d, question.TypeMultipleChoice, perDifficulty/2)...)
		qs = append(qs, makeQuestions("tf-"+category, category, d, question.TypeTrueFalse, perDifficulty-perDifficulty/2)...)
	}
	return qs
}

func newTestGenerator(src Source) *Generator {
	return New(src, DefaultConfig(),
		WithRand(rand.New(rand.NewPCG(7, 11))),
		WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
		WithIDFunc(func() string { return "tmpl-1" }),
	)
}

func countByDifficulty(qs []question.Question) map[question.Difficulty]int {
	out := make(map[question.Difficulty]int)
	for _, q := range qs {
		out[q.Difficulty]++
	}
	return out
}

func TestAllocate_SumsAndStaysWithinOne(t *testing.T) {
	for _, level := range question.AllDifficulties() {
		dist := DistributionFor(level)
		for n := 0; n <= 60; n++ {
			alloc := Allocate(n, dist)
			sum := 0
			for _, d := range question.AllDifficulties() {
				c := alloc[d]
				require.GreaterOrEqual(t, c, 0)
				ideal := float64(n) * dist[d]
				assert.LessOrEqual(t, math.Abs(float64(c)-ideal), 1.0+1e-9,
					"level %s n=%d bucket %s: got %d, ideal %.1f", level, n, d, c, ideal)
				sum += c
			}
			assert.Equal(t, n, sum, "level %s n=%d", level, n)
		}
	}
}

func TestAllocate_MediumTwentyFive(t *testing.T) {
	alloc := Allocate(25, DistributionFor(question.Medium))
	assert.Equal(t, 8, alloc[question.Easy])
	assert.Equal(t, 9, alloc[question.Medium])
	assert.Equal(t, 8, alloc[question.Hard])
}

func TestDistribution_ByWeight(t *testing.T) {
	assert.Equal(t, []question.Difficulty{question.Easy, question.Medium}, DistributionFor(question.Easy).ByWeight())
	assert.Equal(t, []question.Difficulty{question.Medium, question.Easy, question.Hard}, DistributionFor(question.Medium).ByWeight())
	assert.Equal(t, []question.Difficulty{question.Hard, question.Medium, question.Easy}, DistributionFor(question.Hard).ByWeight())
}

func TestGenerate_DistributionLaw(t *testing.T) {
	src := &fakeSource{questions: fullPool("SIGNS", 20)}
	g := newTestGenerator(src)

	tmpl, err := g.Generate(context.Background(), Request{UserID: "u1", State: "CA", Level: question.Medium, Count: 25})
	require.NoError(t, err)
	require.Len(t, tmpl.Questions, 25)

	counts := countByDifficulty(tmpl.Questions)
	assert.InDelta(t, 7.5, counts[question.Easy], 1)
	assert.InDelta(t, 10, counts[question.Medium], 1)
	assert.InDelta(t, 7.5, counts[question.Hard], 1)
	assert.Equal(t, question.Medium, tmpl.Difficulty)
	assert.Equal(t, "tmpl-1", tmpl.ID)
	assert.Equal(t, 25, tmpl.Requested)
}

func TestGenerate_NoDuplicates(t *testing.T) {
	src := &fakeSource{questions: fullPool("SIGNS", 10)}
	tmpl, err := newTestGenerator(src).Generate(context.Background(), Request{State: "CA", Count: 20})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, q := range tmpl.Questions {
		require.False(t, seen[q.ID], "duplicate question %s", q.ID)
		seen[q.ID] = true
	}
}

func TestGenerate_WeakAreaReservation(t *testing.T) {
	pool := append(fullPool("SIGNS", 20), fullPool("PARKING", 20)...)
	src := &fakeSource{questions: pool}

	tmpl, err := newTestGenerator(src).Generate(context.Background(), Request{
		State:          "CA",
		Level:          question.Medium,
		WeakCategories: []string{"PARKING"},
		Count:          20,
	})
	require.NoError(t, err)
	require.Len(t, tmpl.Questions, 20)

	ranked := 0
	for _, c := range src.calls {
		if c.RankByEffectiveness {
			ranked++
			assert.Equal(t, []string{"PARKING"}, c.Categories)
		}
	}
	assert.Equal(t, 3, ranked, "one ranked fetch per weighted bucket")

	// The first 8 questions drawn (before the shuffle) came from the weak
	// category; at least those 8 must be present.
	parking := 0
	for _, q := range tmpl.Questions {
		if q.Category == "PARKING" {
			parking++
		}
	}
	assert.GreaterOrEqual(t, parking, 8)
}

func TestGenerate_BucketShortfallMovesToNextBucket(t *testing.T) {
	var pool []question.Question
	pool = append(pool, makeQuestions("e", "SIGNS", question.Easy, question.TypeTrueFalse, 20)...)
	pool = append(pool, makeQuestions("m", "SIGNS", question.Medium, question.TypeMultipleChoice, 20)...)
	pool = append(pool, makeQuestions("h", "SIGNS", question.Hard, question.TypeTrueFalse, 2)...)
	src := &fakeSource{questions: pool}

	tmpl, err := newTestGenerator(src).Generate(context.Background(), Request{State: "CA", Level: question.Hard, Count: 20})
	require.NoError(t, err)
	require.Len(t, tmpl.Questions, 20)

	counts := countByDifficulty(tmpl.Questions)
	assert.Equal(t, 2, counts[question.Hard])
	assert.Equal(t, 18, counts[question.Medium]+counts[question.Easy])
}

func TestGenerate_LightestBucketShortfallWrapsToHeavierBuckets(t *testing.T) {
	tests := []struct {
		name       string
		easy, med  int
		wantEasy   int
		wantMedium int
	}{
		{name: "medium absorbs it", easy: 30, med: 30, wantEasy: 6, wantMedium: 14},
		{name: "spills past medium into easy", easy: 30, med: 9, wantEasy: 11, wantMedium: 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pool []question.Question
			pool = append(pool, makeQuestions("e", "SIGNS", question.Easy, question.TypeTrueFalse, tt.easy)...)
			pool = append(pool, makeQuestions("m", "SIGNS", question.Medium, question.TypeMultipleChoice, tt.med)...)
			src := &fakeSource{questions: pool}

			tmpl, err := newTestGenerator(src).Generate(context.Background(), Request{State: "CA", Level: question.Medium, Count: 20})
			require.NoError(t, err)
			require.Len(t, tmpl.Questions, 20)

			counts := countByDifficulty(tmpl.Questions)
			assert.Zero(t, counts[question.Hard])
			assert.Equal(t, tt.wantEasy, counts[question.Easy])
			assert.Equal(t, tt.wantMedium, counts[question.Medium])
		})
	}
}

func TestGenerate_RelaxesExclusionList(t *testing.T) {
	pool := fullPool("SIGNS", 4) // 12 questions
	src := &fakeSource{questions: pool}

	tmpl, err := newTestGenerator(src).Generate(context.Background(), Request{
		State:   "CA",
		Count:   10,
		Exclude: question.IDs(pool),
	})
	require.NoError(t, err)
	assert.Len(t, tmpl.Questions, 10)
}

func TestGenerate_PrefersUnseenQuestions(t *testing.T) {
	pool := fullPool("SIGNS", 10) // 30 questions
	src := &fakeSource{questions: pool}
	seen := question.IDs(pool[:10])

	tmpl, err := newTestGenerator(src).Generate(context.Background(), Request{State: "CA", Count: 15, Exclude: seen})
	require.NoError(t, err)
	for _, q := range tmpl.Questions {
		assert.NotContains(t, seen, q.ID)
	}
}

func TestGenerate_PoolExhausted(t *testing.T) {
	src := &fakeSource{questions: makeQuestions("m", "SIGNS", question.Medium, question.TypeMultipleChoice, 3)}

	_, err := newTestGenerator(src).Generate(context.Background(), Request{State: "CA", Count: 20})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPoolExhausted)

	var pe *PoolExhaustedError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Available)
	assert.Equal(t, 20, pe.Requested)
	assert.Equal(t, 5, pe.Minimum)
}

func TestGenerate_TimeoutBecomesPoolExhausted(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("query: %w", context.DeadlineExceeded)}

	_, err := newTestGenerator(src).Generate(context.Background(), Request{State: "CA"})
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerate_RepositoryErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{err: boom}

	_, err := newTestGenerator(src).Generate(context.Background(), Request{State: "CA"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrPoolExhausted)
}

func TestGenerate_TypeVariety(t *testing.T) {
	var pool []question.Question
	for _, d := range question.AllDifficulties() {
		// "a-" ids sort first so the initial draw is all multiple choice.
		pool = append(pool, makeQuestions("a-mc", "SIGNS", d, question.TypeMultipleChoice, 10)...)
		pool = append(pool, makeQuestions("z-tf", "SIGNS", d, question.TypeTrueFalse, 5)...)
	}
	src := &fakeSource{questions: pool}

	tmpl, err := newTestGenerator(src).Generate(context.Background(), Request{State: "CA", Level: question.Medium, Count: 10})
	require.NoError(t, err)
	require.Len(t, tmpl.Questions, 10)

	mc := 0
	for _, q := range tmpl.Questions {
		if q.Type == question.TypeMultipleChoice {
			mc++
		}
	}
	assert.LessOrEqual(t, mc, 6)
	counts := countByDifficulty(tmpl.Questions)
	assert.Equal(t, 3, counts[question.Easy])
	assert.Equal(t, 4, counts[question.Medium])
	assert.Equal(t, 3, counts[question.Hard])
}

func TestGenerate_TypeVarietyBestEffort(t *testing.T) {
	src := &fakeSource{questions: fullPool("SIGNS", 0)}
	for _, d := range question.AllDifficulties() {
		src.questions = append(src.questions, makeQuestions("mc", "SIGNS", d, question.TypeMultipleChoice, 10)...)
	}

	tmpl, err := newTestGenerator(src).Generate(context.Background(), Request{State: "CA", Count: 10})
	require.NoError(t, err)
	assert.Len(t, tmpl.Questions, 10)
}

func TestGenerate_ShuffleIsSeeded(t *testing.T) {
	pool := fullPool("SIGNS", 20)

	a, err := newTestGenerator(&fakeSource{questions: pool}).Generate(context.Background(), Request{State: "CA", Count: 20})
	require.NoError(t, err)
	b, err := newTestGenerator(&fakeSource{questions: pool}).Generate(context.Background(), Request{State: "CA", Count: 20})
	require.NoError(t, err)
	assert.Equal(t, question.IDs(a.Questions), question.IDs(b.Questions))

	sorted := question.IDs(a.Questions)
	sort.Strings(sorted)
	assert.NotEqual(t, sorted, question.IDs(a.Questions), "questions should not come back in draw order")
}

func TestGenerate_TemplateFields(t *testing.T) {
	src := &fakeSource{questions: fullPool("SIGNS", 10)}
	tmpl, err := newTestGenerator(src).Generate(context.Background(), Request{UserID: "u1", State: "CA", Category: "SIGNS", Count: 15})
	require.NoError(t, err)

	assert.Equal(t, "u1", tmpl.UserID)
	assert.Equal(t, "SIGNS", tmpl.Category)
	assert.Equal(t, 15, tmpl.TotalPoints)
	assert.Equal(t, 11, tmpl.PassingPoints)
	assert.Equal(t, 70, tmpl.PassingScore)
	assert.Equal(t, TimeLimitMinutes(tmpl.Questions, 0.1), tmpl.TimeLimitMinutes)
	assert.Equal(t, []string{"SIGNS"}, tmpl.Categories())
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), tmpl.CreatedAt)
}
