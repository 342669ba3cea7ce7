// Package config loads adaptest settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/llm"
	"github.com/abhisek/adaptest/internal/testgen"
)

// Question count bounds accepted for generated tests.
const (
	MinQuestionCount = 5
	MaxQuestionCount = 50
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	HTTP     HTTPConfig     `yaml:"http"`
	Engine   EngineConfig   `yaml:"engine"`
	LLM      llm.Config     `yaml:"llm"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`

	// DSN is a file path for sqlite or a connection URL for postgres.
	// Empty selects the default sqlite path.
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	// URL enables the analysis cache, e.g. redis://localhost:6379/0.
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// EngineConfig holds the generator and adjuster tunables.
type EngineConfig struct {
	QuestionCount    int           `yaml:"question_count"`
	MinQuestions     int           `yaml:"min_questions"`
	WeakShare        float64       `yaml:"weak_share"`
	MaxTypeShare     float64       `yaml:"max_type_share"`
	TimeBuffer       float64       `yaml:"time_buffer"`
	PassingRatio     float64       `yaml:"passing_ratio"`
	HistoryWindow    int           `yaml:"history_window"`
	SeenWindow       int           `yaml:"seen_window"`
	ComparisonWindow time.Duration `yaml:"comparison_window"`
}

// Default returns the built-in settings.
func Default() Config {
	ec := engine.DefaultConfig()
	return Config{
		Database: DatabaseConfig{Driver: "sqlite"},
		Redis:    RedisConfig{TTL: 24 * time.Hour},
		HTTP: HTTPConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Engine: EngineConfig{
			QuestionCount:    ec.Generator.DefaultCount,
			MinQuestions:     ec.Generator.MinQuestions,
			WeakShare:        ec.Generator.WeakShare,
			MaxTypeShare:     ec.Generator.MaxTypeShare,
			TimeBuffer:       ec.Generator.TimeBuffer,
			PassingRatio:     ec.Generator.PassingRatio,
			HistoryWindow:    ec.HistoryWindow,
			SeenWindow:       ec.SeenWindow,
			ComparisonWindow: ec.ComparisonWindow,
		},
		LLM: llm.DefaultConfig(),
	}
}

// Load builds the configuration. A .env file in the working directory is
// read first when present. path names a YAML file; when empty,
// ADAPTEST_CONFIG is consulted and a missing variable means no file.
// Environment variables override the file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("ADAPTEST_CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Database.Driver = getEnv("ADAPTEST_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("ADAPTEST_DB", cfg.Database.DSN)
	cfg.Redis.URL = getEnv("ADAPTEST_REDIS_URL", cfg.Redis.URL)
	cfg.HTTP.Addr = getEnv("ADAPTEST_HTTP_ADDR", cfg.HTTP.Addr)
	if v := os.Getenv("ADAPTEST_CORS_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}

	var err error
	if cfg.Redis.TTL, err = getEnvAsDuration("ADAPTEST_REDIS_TTL", cfg.Redis.TTL); err != nil {
		return err
	}
	if cfg.Engine.QuestionCount, err = getEnvAsInt("ADAPTEST_QUESTION_COUNT", cfg.Engine.QuestionCount); err != nil {
		return err
	}
	if cfg.Engine.HistoryWindow, err = getEnvAsInt("ADAPTEST_HISTORY_WINDOW", cfg.Engine.HistoryWindow); err != nil {
		return err
	}
	if cfg.Engine.ComparisonWindow, err = getEnvAsDuration("ADAPTEST_COMPARISON_WINDOW", cfg.Engine.ComparisonWindow); err != nil {
		return err
	}

	llm.ApplyEnv(&cfg.LLM)
	return nil
}

// Validate checks ranges and names.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return errors.New("postgres requires a DSN")
	}

	e := c.Engine
	if e.QuestionCount < MinQuestionCount || e.QuestionCount > MaxQuestionCount {
		return fmt.Errorf("question_count must be between %d and %d, got %d", MinQuestionCount, MaxQuestionCount, e.QuestionCount)
	}
	if e.MinQuestions < 1 || e.MinQuestions > e.QuestionCount {
		return fmt.Errorf("min_questions must be between 1 and question_count, got %d", e.MinQuestions)
	}
	if e.WeakShare < 0 || e.WeakShare > 1 {
		return fmt.Errorf("weak_share must be within [0, 1], got %v", e.WeakShare)
	}
	if e.MaxTypeShare <= 0 || e.MaxTypeShare > 1 {
		return fmt.Errorf("max_type_share must be within (0, 1], got %v", e.MaxTypeShare)
	}
	if e.TimeBuffer < 0 {
		return fmt.Errorf("time_buffer must not be negative, got %v", e.TimeBuffer)
	}
	if e.PassingRatio <= 0 || e.PassingRatio > 1 {
		return fmt.Errorf("passing_ratio must be within (0, 1], got %v", e.PassingRatio)
	}
	if e.HistoryWindow < 1 {
		return fmt.Errorf("history_window must be positive, got %d", e.HistoryWindow)
	}
	if e.SeenWindow < 0 {
		return fmt.Errorf("seen_window must not be negative, got %d", e.SeenWindow)
	}
	if e.ComparisonWindow <= 0 {
		return fmt.Errorf("comparison_window must be positive, got %s", e.ComparisonWindow)
	}
	if c.Redis.URL != "" && c.Redis.TTL <= 0 {
		return fmt.Errorf("redis ttl must be positive, got %s", c.Redis.TTL)
	}
	return c.LLM.Validate()
}

// EngineConfig maps the tunables onto engine.Config.
func (c Config) EngineConfig() engine.Config {
	e := c.Engine
	window := e.HistoryWindow
	if window <= 0 {
		window = difficulty.DefaultWindow
	}
	return engine.Config{
		Generator: testgen.Config{
			DefaultCount: e.QuestionCount,
			MinQuestions: e.MinQuestions,
			WeakShare:    e.WeakShare,
			MaxTypeShare: e.MaxTypeShare,
			TimeBuffer:   e.TimeBuffer,
			PassingRatio: e.PassingRatio,
		},
		HistoryWindow:    window,
		MaxQuestions:     MaxQuestionCount,
		SeenWindow:       e.SeenWindow,
		ComparisonWindow: e.ComparisonWindow,
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
