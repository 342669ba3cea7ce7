package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // pure Go SQLite driver (no CGO)
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Store owns the database handle and provides access to repositories.
type Store struct {
	db     *sqlx.DB
	driver Driver
	seq    *sequenceCounter
	now    func() time.Time
}

// Open connects to the database, applies SQLite pragmas where relevant and
// ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName, bindName string
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		drvName, bindName = "sqlite", "sqlite3"
	case DriverPostgres:
		drvName, bindName = "pgx", "pgx"
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps per-connection pragmas in force and
		// serialises writers.
		db.SetMaxOpenConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	seq, err := newSequenceCounter(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     sqlx.NewDb(db, bindName),
		driver: driver,
		seq:    seq,
		now:    time.Now,
	}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

// Driver reports the backend in use.
func (s *Store) Driver() Driver {
	return s.driver
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Questions returns the question repository.
func (s *Store) Questions() *QuestionRepo { return &QuestionRepo{db: s.db} }

// Templates returns the template repository.
func (s *Store) Templates() *TemplateRepo { return &TemplateRepo{db: s.db, now: s.now} }

// Attempts returns the attempt history repository.
func (s *Store) Attempts() *AttemptRepo { return &AttemptRepo{db: s.db, seq: s.seq} }

// Levels returns the difficulty level repository.
func (s *Store) Levels() *LevelRepo { return &LevelRepo{db: s.db, now: s.now} }

// Analyses returns the durable analysis cache.
func (s *Store) Analyses() *AnalysisRepo { return &AnalysisRepo{db: s.db, now: s.now} }

// Content returns the remedial content repository.
func (s *Store) Content() *ContentRepo { return &ContentRepo{db: s.db, now: s.now} }

// Events returns the event log.
func (s *Store) Events() *EventLog { return &EventLog{db: s.db, seq: s.seq, now: s.now} }

// applyPragmas configures SQLite for single-writer performance.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. ADAPTEST_DB environment variable
// 2. $XDG_DATA_HOME/adaptest/adaptest.db
// 3. ~/.local/share/adaptest/adaptest.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("ADAPTEST_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "adaptest", "adaptest.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
