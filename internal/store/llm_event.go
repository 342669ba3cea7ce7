package store

import (
	"context"

	"github.com/abhisek/adaptest/internal/engine"
)

// EventLLMRequest is the event kind for LLM API calls.
const EventLLMRequest = "llm_request"

var _ EventRepo = (*EventLog)(nil)

func (l *EventLog) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	return l.Append(ctx, engine.Event{
		Kind:    EventLLMRequest,
		Subject: data.Purpose,
		Payload: data,
	})
}
