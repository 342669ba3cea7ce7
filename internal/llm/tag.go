package llm

import (
	"context"
	"strings"
)

// Tag labels a request in the event log and in errors.
type Tag struct {
	Purpose   string
	AttemptID string
}

func (t Tag) String() string {
	var parts []string
	if t.Purpose != "" {
		parts = append(parts, t.Purpose)
	}
	if t.AttemptID != "" {
		parts = append(parts, "attempt "+t.AttemptID)
	}
	return strings.Join(parts, ", ")
}

type tagKey struct{}

// WithTag attaches t to requests made with ctx.
func WithTag(ctx context.Context, t Tag) context.Context {
	return context.WithValue(ctx, tagKey{}, t)
}

// TagFrom returns the tag set by WithTag. Purpose defaults to "unknown".
func TagFrom(ctx context.Context) Tag {
	t, _ := ctx.Value(tagKey{}).(Tag)
	if t.Purpose == "" {
		t.Purpose = "unknown"
	}
	return t
}
