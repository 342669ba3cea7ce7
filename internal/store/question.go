package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/question"
	"github.com/abhisek/adaptest/internal/testgen"
)

// QuestionRepo serves the question pool. It implements
// engine.QuestionRepository.
type QuestionRepo struct {
	db *sqlx.DB
}

var _ engine.QuestionRepository = (*QuestionRepo)(nil)

type questionRow struct {
	ID          string `db:"id"`
	State       string `db:"state"`
	Category    string `db:"category"`
	Subcategory string `db:"subcategory"`
	Type        string `db:"type"`
	Text        string `db:"text"`
	Options     string `db:"options_json"`
	Correct     string `db:"correct_json"`
	Explanation string `db:"explanation"`
	Difficulty  string `db:"difficulty"`
	Points      int    `db:"points"`
	Tags        string `db:"tags_json"`
}

const questionColumns = `q.id, q.state, q.category, q.subcategory, q.type, q.text, q.options_json,
	q.correct_json, q.explanation, q.difficulty, q.points, q.tags_json`

// Upsert inserts questions, replacing any with the same id.
func (r *QuestionRepo) Upsert(ctx context.Context, qs []question.Question) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO questions
		(id, state, category, subcategory, type, text, options_json, correct_json, explanation, difficulty, points, tags_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		  state = EXCLUDED.state, category = EXCLUDED.category, subcategory = EXCLUDED.subcategory,
		  type = EXCLUDED.type, text = EXCLUDED.text, options_json = EXCLUDED.options_json,
		  correct_json = EXCLUDED.correct_json, explanation = EXCLUDED.explanation,
		  difficulty = EXCLUDED.difficulty, points = EXCLUDED.points, tags_json = EXCLUDED.tags_json`))
	if err != nil {
		return fmt.Errorf("prepare question insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range qs {
		cols, err := encodeQuestionColumns(q)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, q.ID, q.State, q.Category, q.Subcategory, string(q.Type), q.Text,
			cols.options, cols.correct, q.Explanation, string(q.Difficulty), q.Points, cols.tags); err != nil {
			return fmt.Errorf("save question %s: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

// encodedQuestionColumns holds the JSON-encoded columns of a question row.
type encodedQuestionColumns struct {
	options, correct, tags string
}

func encodeQuestionColumns(q question.Question) (encodedQuestionColumns, error) {
	var cols encodedQuestionColumns
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return cols, fmt.Errorf("marshal options of %s: %w", q.ID, err)
	}
	correct, err := json.Marshal(q.Correct)
	if err != nil {
		return cols, fmt.Errorf("marshal answer of %s: %w", q.ID, err)
	}
	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return cols, fmt.Errorf("marshal tags of %s: %w", q.ID, err)
	}
	cols.options, cols.correct, cols.tags = string(opts), string(correct), string(tagsJSON)
	return cols, nil
}

// FetchQuestions honours every Filter field. With RankByEffectiveness the
// questions learners miss most often come first; questions never answered
// come last. Otherwise results are ordered by id.
func (r *QuestionRepo) FetchQuestions(ctx context.Context, f testgen.Filter) ([]question.Question, error) {
	var (
		where []string
		args  []any
	)
	if f.State != "" {
		where = append(where, "q.state = ?")
		args = append(args, f.State)
	}
	if len(f.Categories) > 0 {
		where = append(where, "q.category IN (?)")
		args = append(args, f.Categories)
	}
	if f.Difficulty != "" {
		where = append(where, "q.difficulty = ?")
		args = append(args, string(f.Difficulty))
	}
	if len(f.ExcludeIDs) > 0 {
		where = append(where, "q.id NOT IN (?)")
		args = append(args, f.ExcludeIDs)
	}
	if len(f.ExcludeTypes) > 0 {
		types := make([]string, len(f.ExcludeTypes))
		for i, t := range f.ExcludeTypes {
			types[i] = string(t)
		}
		where = append(where, "q.type NOT IN (?)")
		args = append(args, types)
	}

	q := `SELECT ` + questionColumns + ` FROM questions q`
	if f.RankByEffectiveness {
		q += ` LEFT JOIN (
			SELECT question_id, AVG(correct * 1.0) AS correct_rate
			FROM attempt_responses GROUP BY question_id
		) e ON e.question_id = q.id`
	}
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.RankByEffectiveness {
		q += ` ORDER BY COALESCE(e.correct_rate, 2.0), q.id`
	} else {
		q += ` ORDER BY q.id`
	}
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, fmt.Errorf("expand question filter: %w", err)
	}
	var rows []questionRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}

	out := make([]question.Question, 0, len(rows))
	for _, row := range rows {
		qq, err := row.toQuestion()
		if err != nil {
			return nil, err
		}
		out = append(out, qq)
	}
	return out, nil
}

// SeenQuestionIDs returns questions the learner answered in state, most
// recently answered first.
func (r *QuestionRepo) SeenQuestionIDs(ctx context.Context, userID, state string, limit int) ([]string, error) {
	q := `SELECT r.question_id FROM attempt_responses r
		JOIN attempts a ON a.id = r.attempt_id
		WHERE a.user_id = ? AND a.state = ?
		GROUP BY r.question_id
		ORDER BY MAX(a.seq) DESC, r.question_id`
	args := []any{userID, state}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("query seen questions: %w", err)
	}
	return ids, nil
}

// Count returns the number of questions in state (all states when empty).
func (r *QuestionRepo) Count(ctx context.Context, state string) (int, error) {
	q := `SELECT COUNT(*) FROM questions`
	var args []any
	if state != "" {
		q += ` WHERE state = ?`
		args = append(args, state)
	}
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(q), args...); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func (row questionRow) toQuestion() (question.Question, error) {
	q := question.Question{
		ID:          row.ID,
		State:       row.State,
		Category:    row.Category,
		Subcategory: row.Subcategory,
		Type:        question.Type(row.Type),
		Text:        row.Text,
		Explanation: row.Explanation,
		Difficulty:  question.Difficulty(row.Difficulty),
		Points:      row.Points,
	}
	if err := json.Unmarshal([]byte(row.Options), &q.Options); err != nil {
		return q, fmt.Errorf("decode options of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Correct), &q.Correct); err != nil {
		return q, fmt.Errorf("decode answer of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Tags), &q.Tags); err != nil {
		return q, fmt.Errorf("decode tags of %s: %w", row.ID, err)
	}
	if len(q.Tags) == 0 {
		q.Tags = nil
	}
	return q, nil
}
