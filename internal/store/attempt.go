package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abhisek/adaptest/internal/analysis"
	"github.com/abhisek/adaptest/internal/attempt"
	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/question"
)

// AttemptRepo persists attempts and serves performance history. It
// implements engine.HistoryStore and engine.ComparisonPoolSource.
type AttemptRepo struct {
	db  *sqlx.DB
	seq *sequenceCounter
}

var (
	_ engine.HistoryStore         = (*AttemptRepo)(nil)
	_ engine.ComparisonPoolSource = (*AttemptRepo)(nil)
)

type attemptRow struct {
	ID             string  `db:"id"`
	Seq            int64   `db:"seq"`
	UserID         string  `db:"user_id"`
	TemplateID     string  `db:"template_id"`
	State          string  `db:"state"`
	Score          float64 `db:"score"`
	WeightedScore  float64 `db:"weighted_score"`
	TotalTimeSpent float64 `db:"total_time_sec"`
	CreatedAt      int64   `db:"created_at"`
}

type responseRow struct {
	Idx             int     `db:"idx"`
	QuestionID      string  `db:"question_id"`
	Answer          string  `db:"answer_json"`
	ResponseTimeSec float64 `db:"response_time_sec"`
	Correct         int     `db:"correct"`
}

// SaveAttempt stores the attempt, its graded responses and its per-category
// scores in one transaction.
func (r *AttemptRepo) SaveAttempt(ctx context.Context, at attempt.Attempt, res *analysis.Result) error {
	if len(res.Answers) != len(at.Responses) {
		return fmt.Errorf("save attempt %s: %d graded answers for %d responses", at.ID, len(res.Answers), len(at.Responses))
	}

	// Taken before the transaction: SQLite runs on a single connection.
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO attempts
		(id, seq, user_id, template_id, state, score, weighted_score, total_time_sec, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		at.ID, seqNum, at.UserID, at.TemplateID, res.State, res.Score.Raw, res.Score.Weighted,
		at.TotalTimeSpent, toMillis(at.CreatedAt))
	if err != nil {
		return fmt.Errorf("save attempt %s: %w", at.ID, err)
	}

	for i, resp := range at.Responses {
		answer, err := json.Marshal(resp.Answer)
		if err != nil {
			return fmt.Errorf("marshal answer %d: %w", i, err)
		}
		correct := 0
		if res.Answers[i].Correct {
			correct = 1
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO attempt_responses
			(attempt_id, idx, question_id, answer_json, response_time_sec, correct) VALUES (?, ?, ?, ?, ?, ?)`),
			at.ID, i, resp.QuestionID, string(answer), resp.ResponseTimeSec, correct)
		if err != nil {
			return fmt.Errorf("save response %d: %w", i, err)
		}
	}

	for cat, cs := range res.CategoryBreakdown {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO attempt_category_scores
			(attempt_id, category, score) VALUES (?, ?, ?)`),
			at.ID, cat, cs.Score)
		if err != nil {
			return fmt.Errorf("save category score %s: %w", cat, err)
		}
	}

	return tx.Commit()
}

// Attempt returns nil when no attempt has the id.
func (r *AttemptRepo) Attempt(ctx context.Context, id string) (*attempt.Attempt, error) {
	var row attemptRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT id, seq, user_id, template_id, state, score,
		weighted_score, total_time_sec, created_at FROM attempts WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query attempt %s: %w", id, err)
	}

	var resps []responseRow
	err = r.db.SelectContext(ctx, &resps, r.db.Rebind(`SELECT idx, question_id, answer_json, response_time_sec, correct
		FROM attempt_responses WHERE attempt_id = ? ORDER BY idx`), id)
	if err != nil {
		return nil, fmt.Errorf("query responses of %s: %w", id, err)
	}

	at := &attempt.Attempt{
		ID:             row.ID,
		UserID:         row.UserID,
		TemplateID:     row.TemplateID,
		TotalTimeSpent: row.TotalTimeSpent,
		CreatedAt:      fromMillis(row.CreatedAt),
		Responses:      make([]attempt.Response, len(resps)),
	}
	for i, rr := range resps {
		var a question.Answer
		if err := json.Unmarshal([]byte(rr.Answer), &a); err != nil {
			return nil, fmt.Errorf("decode answer %d of %s: %w", rr.Idx, id, err)
		}
		at.Responses[i] = attempt.Response{QuestionID: rr.QuestionID, Answer: a, ResponseTimeSec: rr.ResponseTimeSec}
	}
	return at, nil
}

// RecentAttempts returns records newest first. Empty state or category
// match everything; a category filter keeps only attempts covering it.
func (r *AttemptRepo) RecentAttempts(ctx context.Context, userID, state, category string, limit int) ([]attempt.Record, error) {
	q := `SELECT a.id, a.seq, a.user_id, a.template_id, a.state, a.score, a.weighted_score, a.total_time_sec, a.created_at
		FROM attempts a WHERE a.user_id = ?`
	args := []any{userID}
	if state != "" {
		q += ` AND a.state = ?`
		args = append(args, state)
	}
	if category != "" {
		q += ` AND EXISTS (SELECT 1 FROM attempt_category_scores c WHERE c.attempt_id = a.id AND c.category = ?)`
		args = append(args, category)
	}
	q += ` ORDER BY a.created_at DESC, a.seq DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []attemptRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("query recent attempts: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	scores, err := r.categoryScores(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]attempt.Record, len(rows))
	for i, row := range rows {
		out[i] = attempt.Record{
			AttemptID:      row.ID,
			UserID:         row.UserID,
			State:          row.State,
			Score:          row.Score,
			CategoryScores: scores[row.ID],
			CreatedAt:      fromMillis(row.CreatedAt),
		}
	}
	return out, nil
}

func (r *AttemptRepo) categoryScores(ctx context.Context, ids []string) (map[string]map[string]float64, error) {
	q, args, err := sqlx.In(`SELECT attempt_id, category, score FROM attempt_category_scores WHERE attempt_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("expand attempt ids: %w", err)
	}
	var rows []struct {
		AttemptID string  `db:"attempt_id"`
		Category  string  `db:"category"`
		Score     float64 `db:"score"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("query category scores: %w", err)
	}
	out := make(map[string]map[string]float64, len(ids))
	for _, row := range rows {
		if out[row.AttemptID] == nil {
			out[row.AttemptID] = make(map[string]float64)
		}
		out[row.AttemptID][row.Category] = row.Score
	}
	return out, nil
}

// ComparisonPool returns raw scores of every attempt in state created in
// [since, until).
func (r *AttemptRepo) ComparisonPool(ctx context.Context, state string, since, until time.Time) ([]float64, error) {
	var scores []float64
	err := r.db.SelectContext(ctx, &scores, r.db.Rebind(
		`SELECT score FROM attempts WHERE state = ? AND created_at >= ? AND created_at < ? ORDER BY score`),
		state, toMillis(since), toMillis(until))
	if err != nil {
		return nil, fmt.Errorf("query comparison pool: %w", err)
	}
	return scores, nil
}
