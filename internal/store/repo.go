package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/abhisek/adaptest/internal/difficulty"
)

// ErrConcurrentUpdate is returned by LevelRepo.CompareAndSet when the stored
// level is not the expected one.
var ErrConcurrentUpdate = difficulty.ErrConcurrentUpdate

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Kind   string
	UserID string
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// EventRecord is a stored event.
type EventRecord struct {
	Sequence  int64
	Kind      string
	UserID    string
	Subject   string
	Payload   json.RawMessage
	Timestamp time.Time
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Purpose      string  `json:"purpose"`
	AttemptID    string  `json:"attempt_id,omitempty"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	LatencyMs    int64   `json:"latency_ms"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
	Success      bool    `json:"success"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// EventRepo provides append access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
}
