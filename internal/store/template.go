package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/testgen"
)

// TemplateRepo stores generated test templates as JSON documents.
type TemplateRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ engine.TemplateStore = (*TemplateRepo)(nil)

// SaveTemplate stores t. A template already stored under the same id is
// left untouched.
func (r *TemplateRepo) SaveTemplate(ctx context.Context, t *testgen.Template) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO templates (id, user_id, state, body_json, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`),
		t.ID, t.UserID, t.State, string(body), toMillis(created))
	if err != nil {
		return fmt.Errorf("save template %s: %w", t.ID, err)
	}
	return nil
}

// Template returns nil when no template has the id.
func (r *TemplateRepo) Template(ctx context.Context, id string) (*testgen.Template, error) {
	var body string
	err := r.db.GetContext(ctx, &body, r.db.Rebind(`SELECT body_json FROM templates WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query template %s: %w", id, err)
	}
	var t testgen.Template
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return nil, fmt.Errorf("decode template %s: %w", id, err)
	}
	return &t, nil
}
