package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/abhisek/adaptest/internal/store"
)

// eventLogger appends every backend call to the event log, tagged with the
// purpose and attempt from the request context.
type eventLogger struct {
	inner    Provider
	provider string
	events   store.EventRepo
	now      func() time.Time
}

// WithLogging wraps p so each Generate call becomes an llm_request event.
func WithLogging(p Provider, providerName string, events store.EventRepo) Provider {
	return &eventLogger{inner: p, provider: providerName, events: events, now: time.Now}
}

func (l *eventLogger) Generate(ctx context.Context, req Request) (*Response, error) {
	start := l.now()
	resp, err := l.inner.Generate(ctx, req)

	tag := TagFrom(ctx)
	data := store.LLMRequestEventData{
		Provider:  l.provider,
		Model:     l.inner.ModelID(),
		Purpose:   tag.Purpose,
		AttemptID: tag.AttemptID,
		LatencyMs: l.now().Sub(start).Milliseconds(),
		Success:   err == nil,
	}
	if resp != nil {
		if resp.Model != "" {
			data.Model = resp.Model
		}
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		if c := LookupCost(data.Model); c != nil {
			data.CostUSD = c.Cost(data.InputTokens, data.OutputTokens)
		}
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}

	if logErr := l.events.AppendLLMRequest(ctx, data); logErr != nil {
		fmt.Fprintf(os.Stderr, "warning: log %s request for %s: %v\n", tag.Purpose, l.provider, logErr)
	}
	return resp, err
}

func (l *eventLogger) ModelID() string { return l.inner.ModelID() }
