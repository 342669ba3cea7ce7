package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/question"
)

// LevelRepo persists per-category difficulty levels. It implements
// engine.LevelStore.
type LevelRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ engine.LevelStore = (*LevelRepo)(nil)

type levelRow struct {
	UserID     string  `db:"user_id"`
	Category   string  `db:"category"`
	Level      string  `db:"level"`
	Confidence float64 `db:"confidence"`
	UpdatedAt  int64   `db:"updated_at"`
}

func (r levelRow) toLevel() difficulty.Level {
	return difficulty.Level{
		UserID:     r.UserID,
		Category:   r.Category,
		Level:      question.Difficulty(r.Level),
		Confidence: r.Confidence,
		UpdatedAt:  fromMillis(r.UpdatedAt),
	}
}

// Level returns nil when the learner has no level for category.
func (r *LevelRepo) Level(ctx context.Context, userID, category string) (*difficulty.Level, error) {
	var row levelRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT user_id, category, level, confidence, updated_at
		FROM difficulty_levels WHERE user_id = ? AND category = ?`), userID, category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query level %s/%s: %w", userID, category, err)
	}
	l := row.toLevel()
	return &l, nil
}

// Levels returns every level of the learner, ordered by category.
func (r *LevelRepo) Levels(ctx context.Context, userID string) ([]difficulty.Level, error) {
	var rows []levelRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT user_id, category, level, confidence, updated_at
		FROM difficulty_levels WHERE user_id = ? ORDER BY category`), userID)
	if err != nil {
		return nil, fmt.Errorf("query levels of %s: %w", userID, err)
	}
	out := make([]difficulty.Level, len(rows))
	for i, row := range rows {
		out[i] = row.toLevel()
	}
	return out, nil
}

// CompareAndSet writes level if the stored level still equals expected. An
// empty expected only succeeds when no row exists yet.
func (r *LevelRepo) CompareAndSet(ctx context.Context, userID, category string, expected, level question.Difficulty, confidence float64) error {
	now := toMillis(r.now())

	var (
		res sql.Result
		err error
	)
	if expected == "" {
		res, err = r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO difficulty_levels
			(user_id, category, level, confidence, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (user_id, category) DO NOTHING`),
			userID, category, string(level), confidence, now)
	} else {
		res, err = r.db.ExecContext(ctx, r.db.Rebind(`UPDATE difficulty_levels
			SET level = ?, confidence = ?, updated_at = ?
			WHERE user_id = ? AND category = ? AND level = ?`),
			string(level), confidence, now, userID, category, string(expected))
	}
	if err != nil {
		return fmt.Errorf("set level %s/%s: %w", userID, category, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set level %s/%s: %w", userID, category, err)
	}
	if n == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}
