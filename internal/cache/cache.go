// Package cache layers Redis in front of the durable analysis store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/adaptest/internal/analysis"
	"github.com/abhisek/adaptest/internal/engine"
)

// DefaultTTL is how long an analysis stays in Redis after it is written
// or read through.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "adaptest:analysis:"

// AnalysisCache is a read-through engine.AnalysisCache. The backing store is
// authoritative; Redis failures degrade to backing-store reads with a
// warning.
type AnalysisCache struct {
	client  *redis.Client
	backing engine.AnalysisCache
	ttl     time.Duration
}

var _ engine.AnalysisCache = (*AnalysisCache)(nil)

// New wraps backing with client. A ttl of zero uses DefaultTTL.
func New(client *redis.Client, backing engine.AnalysisCache, ttl time.Duration) *AnalysisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &AnalysisCache{client: client, backing: backing, ttl: ttl}
}

// Dial parses a redis:// URL and verifies the server answers.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func key(attemptID string) string { return keyPrefix + attemptID }

// GetAnalysis returns nil when neither Redis nor the backing store has the
// attempt.
func (c *AnalysisCache) GetAnalysis(ctx context.Context, attemptID string) (*analysis.Result, error) {
	raw, err := c.client.Get(ctx, key(attemptID)).Bytes()
	switch {
	case err == nil:
		var res analysis.Result
		if err := json.Unmarshal(raw, &res); err == nil {
			return &res, nil
		}
		warn("discarding undecodable cached analysis %s", attemptID)
	case !errors.Is(err, redis.Nil):
		warn("redis get %s: %v", attemptID, err)
	}

	res, err := c.backing.GetAnalysis(ctx, attemptID)
	if err != nil || res == nil {
		return res, err
	}
	c.fill(ctx, res)
	return res, nil
}

// PutAnalysis writes the backing store first; a failure there is returned.
func (c *AnalysisCache) PutAnalysis(ctx context.Context, res *analysis.Result) error {
	if err := c.backing.PutAnalysis(ctx, res); err != nil {
		return err
	}
	c.fill(ctx, res)
	return nil
}

// fill caches res without overwriting an existing entry.
func (c *AnalysisCache) fill(ctx context.Context, res *analysis.Result) {
	raw, err := json.Marshal(res)
	if err != nil {
		warn("marshal analysis %s: %v", res.AttemptID, err)
		return
	}
	if err := c.client.SetNX(ctx, key(res.AttemptID), raw, c.ttl).Err(); err != nil {
		warn("redis set %s: %v", res.AttemptID, err)
	}
}

// Ping reports whether Redis is reachable.
func (c *AnalysisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: analysis cache: "+format+"\n", args...)
}
