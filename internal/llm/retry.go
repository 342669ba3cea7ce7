package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryConfig bounds how hard one coaching request is retried. A note is
// optional output, so the defaults give up after a few seconds.
type RetryConfig struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// retrier retries rate limits and outages with doubling, jittered delays,
// and retries an invalid reply once. Everything runs under one deadline.
type retrier struct {
	inner   Provider
	cfg     RetryConfig
	timeout time.Duration
	sleep   func(context.Context, time.Duration) error
}

// WithRetry wraps p. A positive timeout bounds the call, retries included.
func WithRetry(p Provider, cfg RetryConfig, timeout time.Duration) Provider {
	return &retrier{inner: p, cfg: cfg, timeout: timeout, sleep: sleepCtx}
}

func (r *retrier) Generate(ctx context.Context, req Request) (*Response, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	tag := TagFrom(ctx)
	attempts := max(1, r.cfg.Attempts)
	invalidSeen := false

	for try := 1; ; try++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		var e *Error
		if !errors.As(err, &e) {
			return nil, err
		}
		failed := *e
		failed.Tag, failed.Tries = tag, try

		again := failed.transient() || (failed.Kind == ErrInvalidResponse && !invalidSeen)
		if failed.Kind == ErrInvalidResponse {
			invalidSeen = true
		}
		if !again || try >= attempts || ctx.Err() != nil {
			return nil, &failed
		}
		if err := r.sleep(ctx, r.delay(try)); err != nil {
			return nil, &failed
		}
	}
}

func (r *retrier) ModelID() string { return r.inner.ModelID() }

// delay is BaseDelay doubled per try, capped at MaxDelay, then jittered
// into its upper half.
func (r *retrier) delay(try int) time.Duration {
	d := r.cfg.BaseDelay
	for i := 1; i < try && d < r.cfg.MaxDelay; i++ {
		d *= 2
	}
	if d <= 0 || d > r.cfg.MaxDelay {
		d = r.cfg.MaxDelay
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half+1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
