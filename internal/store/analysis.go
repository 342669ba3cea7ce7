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
	"github.com/abhisek/adaptest/internal/engine"
)

// AnalysisRepo persists computed analyses so they survive restarts. It
// implements engine.AnalysisCache and backs the Redis cache.
type AnalysisRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ engine.AnalysisCache = (*AnalysisRepo)(nil)

// GetAnalysis returns nil when the attempt has no stored analysis.
func (r *AnalysisRepo) GetAnalysis(ctx context.Context, attemptID string) (*analysis.Result, error) {
	var body string
	err := r.db.GetContext(ctx, &body, r.db.Rebind(`SELECT result_json FROM analyses WHERE attempt_id = ?`), attemptID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis %s: %w", attemptID, err)
	}
	var res analysis.Result
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", attemptID, err)
	}
	return &res, nil
}

// PutAnalysis stores res once; analyses are immutable.
func (r *AnalysisRepo) PutAnalysis(ctx context.Context, res *analysis.Result) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO analyses (attempt_id, user_id, result_json, created_at)
		VALUES (?, ?, ?, ?) ON CONFLICT (attempt_id) DO NOTHING`),
		res.AttemptID, res.UserID, string(body), toMillis(r.now()))
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", res.AttemptID, err)
	}
	return nil
}
