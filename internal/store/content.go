package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/question"
	"github.com/abhisek/adaptest/internal/recommend"
)

// ContentRepo stores study resources and what each learner has completed.
// It implements engine.ContentRepository.
type ContentRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ engine.ContentRepository = (*ContentRepo)(nil)

type resourceRow struct {
	ID            string  `db:"id"`
	Kind          string  `db:"kind"`
	Category      string  `db:"category"`
	Difficulty    string  `db:"difficulty"`
	Title         string  `db:"title"`
	Effectiveness float64 `db:"effectiveness"`
}

// Upsert inserts resources, replacing any with the same id.
func (r *ContentRepo) Upsert(ctx context.Context, resources []question.Resource) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, res := range resources {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO content_resources
			(id, kind, category, difficulty, title, effectiveness) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET kind = EXCLUDED.kind, category = EXCLUDED.category,
			  difficulty = EXCLUDED.difficulty, title = EXCLUDED.title, effectiveness = EXCLUDED.effectiveness`),
			res.ID, string(res.Kind), res.Category, string(res.Difficulty), res.Title, res.Effectiveness)
		if err != nil {
			return fmt.Errorf("save resource %s: %w", res.ID, err)
		}
	}
	return tx.Commit()
}

// FetchContent returns matching resources, most effective first.
func (r *ContentRepo) FetchContent(ctx context.Context, q recommend.ContentQuery) ([]question.Resource, error) {
	query := `SELECT id, kind, category, difficulty, title, effectiveness FROM content_resources
		WHERE category = ? AND kind = ? AND difficulty = ?`
	args := []any{q.Category, string(q.Kind), string(q.Difficulty)}
	if len(q.ExcludeIDs) > 0 {
		query += ` AND id NOT IN (?)`
		args = append(args, q.ExcludeIDs)
	}
	query += ` ORDER BY effectiveness DESC, id`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("expand content query: %w", err)
	}
	var rows []resourceRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}

	out := make([]question.Resource, len(rows))
	for i, row := range rows {
		out[i] = question.Resource{
			ID:            row.ID,
			Kind:          question.ResourceKind(row.Kind),
			Category:      row.Category,
			Difficulty:    question.Difficulty(row.Difficulty),
			Title:         row.Title,
			Effectiveness: row.Effectiveness,
		}
	}
	return out, nil
}

// CompletedResources returns ids of resources the learner finished, oldest
// first.
func (r *ContentRepo) CompletedResources(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, r.db.Rebind(`SELECT resource_id FROM completed_resources
		WHERE user_id = ? ORDER BY completed_at, resource_id`), userID)
	if err != nil {
		return nil, fmt.Errorf("query completed resources: %w", err)
	}
	return ids, nil
}

// MarkCompleted records that the learner finished a resource. Repeating it
// is a no-op.
func (r *ContentRepo) MarkCompleted(ctx context.Context, userID, resourceID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO completed_resources (user_id, resource_id, completed_at)
		VALUES (?, ?, ?) ON CONFLICT (user_id, resource_id) DO NOTHING`),
		userID, resourceID, toMillis(r.now()))
	if err != nil {
		return fmt.Errorf("mark %s completed: %w", resourceID, err)
	}
	return nil
}
