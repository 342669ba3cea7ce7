// Package app wires the store, cache, LLM provider and engine from a
// Config. Both the CLI and the HTTP server start from here.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/adaptest/internal/cache"
	"github.com/abhisek/adaptest/internal/coach"
	"github.com/abhisek/adaptest/internal/config"
	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/llm"
	"github.com/abhisek/adaptest/internal/question"
	"github.com/abhisek/adaptest/internal/store"
)

// Options overrides parts of the wiring.
type Options struct {
	// DBPath takes precedence over the configured DSN.
	DBPath string

	// LLMProvider replaces the provider built from configuration.
	LLMProvider llm.Provider

	// EngineOptions are passed to engine.New.
	EngineOptions []engine.Option
}

// App holds the live dependencies.
type App struct {
	Config config.Config
	Store  *store.Store
	Engine *engine.Service
	Coach  *coach.Coach

	redis *redis.Client
}

// Open connects every dependency. Redis and the LLM provider are optional:
// when they cannot be reached a warning is printed and the app runs
// without them.
func Open(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	dsn := cfg.Database.DSN
	if opts.DBPath != "" {
		dsn = opts.DBPath
	}
	driver := store.Driver(cfg.Database.Driver)
	if driver == store.DriverSQLite {
		var err error
		if dsn == "" {
			dsn, err = store.DefaultDBPath()
		} else {
			err = store.EnsureDir(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
	}

	st, err := store.Open(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &App{Config: cfg, Store: st}

	var analyses engine.AnalysisCache = st.Analyses()
	if cfg.Redis.URL != "" {
		client, err := cache.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			warn("redis unavailable, caching analyses in the database only: %v", err)
		} else {
			a.redis = client
			analyses = cache.New(client, st.Analyses(), cfg.Redis.TTL)
		}
	}

	provider := opts.LLMProvider
	if provider == nil && cfg.LLM.Enabled() {
		provider, err = llm.NewProvider(ctx, cfg.LLM, st.Events())
		if err != nil {
			warn("LLM provider not configured: %v", err)
			warn("coaching notes will be rule-based.")
			provider = nil
		}
	}
	a.Coach = coach.New(provider, coach.DefaultConfig())

	events := st.Events()
	svc, err := engine.New(cfg.EngineConfig(), engine.Deps{
		Questions: st.Questions(),
		Templates: st.Templates(),
		History:   st.Attempts(),
		Pool:      st.Attempts(),
		Levels:    st.Levels(),
		Content:   st.Content(),
		Notifier:  store.NewNotifier(events),
		Cache:     analyses,
		Events:    events,
	}, opts.EngineOptions...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.Engine = svc
	return a, nil
}

// Seed imports a question bank and its content resources.
func (a *App) Seed(ctx context.Context, bank *question.Bank) error {
	if err := a.Store.Questions().Upsert(ctx, bank.Questions); err != nil {
		return fmt.Errorf("import questions: %w", err)
	}
	if len(bank.Content) > 0 {
		if err := a.Store.Content().Upsert(ctx, bank.Content); err != nil {
			return fmt.Errorf("import content: %w", err)
		}
	}
	return nil
}

// Ping checks the database and, when configured, Redis.
func (a *App) Ping(ctx context.Context) error {
	if err := a.Store.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases connections.
func (a *App) Close() error {
	if a.redis != nil {
		a.redis.Close()
	}
	return a.Store.Close()
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}
