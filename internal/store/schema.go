package store

import (
	"context"
	"database/sql"
)

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	schema := schemaSQLite
	if driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Timestamps are unix milliseconds. Booleans are 0/1 integers on both
// backends so rows scan identically.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  state TEXT NOT NULL,
  category TEXT NOT NULL,
  subcategory TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL,
  text TEXT NOT NULL,
  options_json TEXT NOT NULL,
  correct_json TEXT NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  difficulty TEXT NOT NULL,
  points INTEGER NOT NULL,
  tags_json TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS questions_pool ON questions (state, category, difficulty);

CREATE TABLE IF NOT EXISTS templates (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  state TEXT NOT NULL,
  body_json TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  seq INTEGER NOT NULL,
  user_id TEXT NOT NULL,
  template_id TEXT NOT NULL,
  state TEXT NOT NULL,
  score REAL NOT NULL,
  weighted_score REAL NOT NULL,
  total_time_sec REAL NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS attempts_user ON attempts (user_id, created_at);
CREATE INDEX IF NOT EXISTS attempts_state ON attempts (state, created_at);

CREATE TABLE IF NOT EXISTS attempt_responses (
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  idx INTEGER NOT NULL,
  question_id TEXT NOT NULL,
  answer_json TEXT NOT NULL,
  response_time_sec REAL NOT NULL,
  correct INTEGER NOT NULL,
  PRIMARY KEY (attempt_id, idx)
);
CREATE INDEX IF NOT EXISTS attempt_responses_question ON attempt_responses (question_id);

CREATE TABLE IF NOT EXISTS attempt_category_scores (
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  category TEXT NOT NULL,
  score REAL NOT NULL,
  PRIMARY KEY (attempt_id, category)
);

CREATE TABLE IF NOT EXISTS difficulty_levels (
  user_id TEXT NOT NULL,
  category TEXT NOT NULL,
  level TEXT NOT NULL,
  confidence REAL NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, category)
);

CREATE TABLE IF NOT EXISTS analyses (
  attempt_id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  result_json TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS content_resources (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  category TEXT NOT NULL,
  difficulty TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  effectiveness REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS completed_resources (
  user_id TEXT NOT NULL,
  resource_id TEXT NOT NULL,
  completed_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, resource_id)
);

CREATE TABLE IF NOT EXISTS events (
  seq INTEGER PRIMARY KEY,
  kind TEXT NOT NULL,
  user_id TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL DEFAULT '',
  payload_json TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_kind ON events (kind, seq);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  state TEXT NOT NULL,
  category TEXT NOT NULL,
  subcategory TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL,
  text TEXT NOT NULL,
  options_json TEXT NOT NULL,
  correct_json TEXT NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  difficulty TEXT NOT NULL,
  points INTEGER NOT NULL,
  tags_json TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS questions_pool ON questions (state, category, difficulty);

CREATE TABLE IF NOT EXISTS templates (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  state TEXT NOT NULL,
  body_json TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  seq BIGINT NOT NULL,
  user_id TEXT NOT NULL,
  template_id TEXT NOT NULL,
  state TEXT NOT NULL,
  score DOUBLE PRECISION NOT NULL,
  weighted_score DOUBLE PRECISION NOT NULL,
  total_time_sec DOUBLE PRECISION NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS attempts_user ON attempts (user_id, created_at);
CREATE INDEX IF NOT EXISTS attempts_state ON attempts (state, created_at);

CREATE TABLE IF NOT EXISTS attempt_responses (
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  idx INTEGER NOT NULL,
  question_id TEXT NOT NULL,
  answer_json TEXT NOT NULL,
  response_time_sec DOUBLE PRECISION NOT NULL,
  correct INTEGER NOT NULL,
  PRIMARY KEY (attempt_id, idx)
);
CREATE INDEX IF NOT EXISTS attempt_responses_question ON attempt_responses (question_id);

CREATE TABLE IF NOT EXISTS attempt_category_scores (
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  category TEXT NOT NULL,
  score DOUBLE PRECISION NOT NULL,
  PRIMARY KEY (attempt_id, category)
);

CREATE TABLE IF NOT EXISTS difficulty_levels (
  user_id TEXT NOT NULL,
  category TEXT NOT NULL,
  level TEXT NOT NULL,
  confidence DOUBLE PRECISION NOT NULL,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (user_id, category)
);

CREATE TABLE IF NOT EXISTS analyses (
  attempt_id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  result_json TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS content_resources (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  category TEXT NOT NULL,
  difficulty TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  effectiveness DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS completed_resources (
  user_id TEXT NOT NULL,
  resource_id TEXT NOT NULL,
  completed_at BIGINT NOT NULL,
  PRIMARY KEY (user_id, resource_id)
);

CREATE TABLE IF NOT EXISTS events (
  seq BIGINT PRIMARY KEY,
  kind TEXT NOT NULL,
  user_id TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL DEFAULT '',
  payload_json TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_kind ON events (kind, seq);
`
