package engine

import (
	"time"

	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/testgen"
)

// Config tunes the engine.
type Config struct {
	Generator testgen.Config

	// HistoryWindow is the rolling window of attempts per category.
	HistoryWindow int

	// MaxQuestions caps the count a request may ask for.
	MaxQuestions int

	// SeenWindow is how many recently served questions are excluded.
	SeenWindow int

	// ComparisonWindow bounds the percentile comparison pool.
	ComparisonWindow time.Duration
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		Generator:        testgen.DefaultConfig(),
		HistoryWindow:    difficulty.DefaultWindow,
		MaxQuestions:     50,
		SeenWindow:       200,
		ComparisonWindow: 30 * 24 * time.Hour,
	}
}
