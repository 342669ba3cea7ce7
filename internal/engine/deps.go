package engine

import (
	"context"
	"time"

	"github.com/abhisek/adaptest/internal/analysis"
	"github.com/abhisek/adaptest/internal/attempt"
	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/question"
	"github.com/abhisek/adaptest/internal/recommend"
	"github.com/abhisek/adaptest/internal/testgen"
)

// QuestionRepository supplies questions and the learner's seen list.
type QuestionRepository interface {
	testgen.Source

	// SeenQuestionIDs returns ids of questions recently served to the
	// learner in state, most recent first.
	SeenQuestionIDs(ctx context.Context, userID, state string, limit int) ([]string, error)
}

// TemplateStore keeps generated templates until their attempt is scored.
type TemplateStore interface {
	SaveTemplate(ctx context.Context, t *testgen.Template) error

	// Template returns nil when no template has the id.
	Template(ctx context.Context, id string) (*testgen.Template, error)
}

// HistoryStore persists attempts and serves performance history.
type HistoryStore interface {
	// SaveAttempt stores an attempt with its headline and per-category
	// scores taken from res.
	SaveAttempt(ctx context.Context, at attempt.Attempt, res *analysis.Result) error

	// Attempt returns nil when no attempt has the id.
	Attempt(ctx context.Context, id string) (*attempt.Attempt, error)

	// RecentAttempts returns records newest first. Empty state or category
	// match everything; a category filter keeps only attempts covering it.
	RecentAttempts(ctx context.Context, userID, state, category string, limit int) ([]attempt.Record, error)
}

// ComparisonPoolSource supplies scores used for percentile ranking.
type ComparisonPoolSource interface {
	// ComparisonPool returns scores of attempts in state created in
	// [since, until).
	ComparisonPool(ctx context.Context, state string, since, until time.Time) ([]float64, error)
}

// LevelStore persists DifficultyLevel rows.
type LevelStore interface {
	// Level returns nil when the learner has no level for category.
	Level(ctx context.Context, userID, category string) (*difficulty.Level, error)

	Levels(ctx context.Context, userID string) ([]difficulty.Level, error)

	// CompareAndSet atomically writes level and confidence if the stored
	// level equals expected (empty expected means no row yet). A mismatch
	// fails with difficulty.ErrConcurrentUpdate.
	CompareAndSet(ctx context.Context, userID, category string, expected, level question.Difficulty, confidence float64) error
}

// ContentRepository supplies remedial content and completion marks.
type ContentRepository interface {
	recommend.ContentSource

	CompletedResources(ctx context.Context, userID string) ([]string, error)
}

// AnalysisCache holds computed analyses. Get returns nil on a miss.
type AnalysisCache interface {
	GetAnalysis(ctx context.Context, attemptID string) (*analysis.Result, error)
	PutAnalysis(ctx context.Context, res *analysis.Result) error
}

// Notification is a learner-facing message raised by the engine.
type Notification struct {
	UserID   string    `json:"user_id"`
	Kind     string    `json:"kind"`
	Category string    `json:"category,omitempty"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Event is an entry for the append-only event log.
type Event struct {
	Kind    string
	UserID  string
	Subject string // template, attempt or category the event concerns
	Payload any
}

// EventLog records engine activity.
type EventLog interface {
	Append(ctx context.Context, e Event) error
}

// Event kinds.
const (
	EventTestGenerated     = "test_generated"
	EventAttemptSubmitted  = "attempt_submitted"
	EventDifficultyChanged = "difficulty_changed"
)

// Deps are the collaborators a Service needs. Notifier, Cache and Events
// are optional.
type Deps struct {
	Questions QuestionRepository
	Templates TemplateStore
	History   HistoryStore
	Pool      ComparisonPoolSource
	Levels    LevelStore
	Content   ContentRepository
	Notifier  Notifier
	Cache     AnalysisCache
	Events    EventLog
}
