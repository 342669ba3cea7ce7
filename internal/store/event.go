package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abhisek/adaptest/internal/engine"
)

// sequenceCounter manages the global monotonic sequence number shared by
// the event log and attempt history. Auto-increment ids differ between
// backends and across tables, so this counter gives every row a single
// increasing order regardless of table, enabling:
//
//   - Cross-table ordering (did the level change before or after the attempt?)
//   - Stable tie-breaks for attempts recorded within the same millisecond
//   - Append-only guarantees (events are never reordered)
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(ctx context.Context, db *sql.DB) (*sequenceCounter, error) {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val BIGINT NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.ExecContext(ctx, `INSERT INTO global_sequence (id, next_val) VALUES (1, 1) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
// It must not be called while a transaction holds the only SQLite connection.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// EventLog is the append-only event log. It implements engine.EventLog.
type EventLog struct {
	db  *sqlx.DB
	seq *sequenceCounter
	now func() time.Time
}

var _ engine.EventLog = (*EventLog)(nil)

// Append records an event under the next global sequence number.
func (l *EventLog) Append(ctx context.Context, e engine.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", e.Kind, err)
	}

	seqNum, err := l.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	_, err = l.db.ExecContext(ctx, l.db.Rebind(
		`INSERT INTO events (seq, kind, user_id, subject, payload_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		seqNum, e.Kind, e.UserID, e.Subject, string(payload), toMillis(l.now()))
	if err != nil {
		return fmt.Errorf("save %s event: %w", e.Kind, err)
	}
	return nil
}

// Query returns events matching opts in sequence order.
func (l *EventLog) Query(ctx context.Context, opts QueryOpts) ([]EventRecord, error) {
	q := `SELECT seq, kind, user_id, subject, payload_json, created_at FROM events WHERE 1=1`
	var args []any
	if opts.Kind != "" {
		q += ` AND kind = ?`
		args = append(args, opts.Kind)
	}
	if opts.UserID != "" {
		q += ` AND user_id = ?`
		args = append(args, opts.UserID)
	}
	if opts.After > 0 {
		q += ` AND seq > ?`
		args = append(args, opts.After)
	}
	if opts.Before > 0 {
		q += ` AND seq < ?`
		args = append(args, opts.Before)
	}
	if !opts.From.IsZero() {
		q += ` AND created_at >= ?`
		args = append(args, toMillis(opts.From))
	}
	if !opts.To.IsZero() {
		q += ` AND created_at <= ?`
		args = append(args, toMillis(opts.To))
	}
	q += ` ORDER BY seq`
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	var rows []eventRow
	if err := l.db.SelectContext(ctx, &rows, l.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	out := make([]EventRecord, len(rows))
	for i, r := range rows {
		out[i] = EventRecord{
			Sequence:  r.Seq,
			Kind:      r.Kind,
			UserID:    r.UserID,
			Subject:   r.Subject,
			Payload:   json.RawMessage(r.Payload),
			Timestamp: fromMillis(r.CreatedAt),
		}
	}
	return out, nil
}

type eventRow struct {
	Seq       int64  `db:"seq"`
	Kind      string `db:"kind"`
	UserID    string `db:"user_id"`
	Subject   string `db:"subject"`
	Payload   string `db:"payload_json"`
	CreatedAt int64  `db:"created_at"`
}

// EventNotification is the event kind written by Notifier.
const EventNotification = "notification"

// Notifier delivers engine notifications by appending them to the event
// log, where a UI or mailer can pick them up.
type Notifier struct {
	log *EventLog
}

var _ engine.Notifier = (*Notifier)(nil)

// NewNotifier creates a Notifier writing to log.
func NewNotifier(log *EventLog) *Notifier {
	return &Notifier{log: log}
}

func (n *Notifier) Notify(ctx context.Context, note engine.Notification) error {
	return n.log.Append(ctx, engine.Event{
		Kind:    EventNotification,
		UserID:  note.UserID,
		Subject: note.Category,
		Payload: note,
	})
}
