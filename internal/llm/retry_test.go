package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRetrier records waits instead of sleeping.
func newTestRetrier(p Provider, attempts int) (*retrier, *[]time.Duration) {
	var waits []time.Duration
	r := &retrier{
		inner: p,
		cfg:   RetryConfig{Attempts: attempts, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second},
		sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}
	return r, &waits
}

func down() MockResponse {
	return MockResponse{Err: &Error{Kind: ErrUnavailable, Provider: ProviderMock, Err: errors.New("503")}}
}

func TestRetry_RecoversFromOutage(t *testing.T) {
	mock := NewMockProvider(down(), MockResponse{Err: &Error{Kind: ErrRateLimited}}, MockResponse{Content: json.RawMessage(validNote)})
	r, waits := newTestRetrier(mock, 3)

	resp, err := r.Generate(coachCtx("a1"), noteRequest())
	require.NoError(t, err)
	assert.JSONEq(t, validNote, string(resp.Content))
	assert.Equal(t, 3, mock.CallCount())
	assert.Len(t, *waits, 2)
}

func TestRetry_GivesUpTaggedAfterAttempts(t *testing.T) {
	mock := NewMockProvider(down(), down(), down(), MockResponse{Content: json.RawMessage(validNote)})
	r, _ := newTestRetrier(mock, 3)

	_, err := r.Generate(coachCtx("a1"), noteRequest())
	assert.ErrorIs(t, err, ErrUnavailable)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 3, e.Tries)
	assert.Equal(t, Tag{Purpose: "coach", AttemptID: "a1"}, e.Tag)
	assert.Contains(t, err.Error(), "(coach, attempt a1) after 3 tries")
	assert.Equal(t, 3, mock.CallCount())
}

func TestRetry_RejectedIsNotRetried(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &Error{Kind: ErrRejected, Err: errors.New("401")}})
	r, waits := newTestRetrier(mock, 3)

	_, err := r.Generate(coachCtx("a1"), noteRequest())
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 1, mock.CallCount())
	assert.Empty(t, *waits)
}

func TestRetry_TruncatedIsNotRetried(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &Error{Kind: ErrTruncated}})
	r, _ := newTestRetrier(mock, 3)

	_, err := r.Generate(coachCtx("a1"), noteRequest())
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetry_InvalidNoteRetriedOnce(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(noTipsNote)},
		MockResponse{Content: json.RawMessage(validNote)},
	)
	r, _ := newTestRetrier(mock, 3)
	_, err := r.Generate(coachCtx("a1"), noteRequest())
	require.NoError(t, err)

	mock = NewMockProvider(
		MockResponse{Content: json.RawMessage(noTipsNote)},
		MockResponse{Content: json.RawMessage(noTipsNote)},
		MockResponse{Content: json.RawMessage(validNote)},
	)
	r, _ = newTestRetrier(mock, 3)
	_, err = r.Generate(coachCtx("a1"), noteRequest())
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.Equal(t, 2, mock.CallCount())
}

func TestRetry_OtherErrorsPassThrough(t *testing.T) {
	plain := errors.New("marshal schema coaching-note: bad")
	mock := NewMockProvider(MockResponse{Err: plain}, MockResponse{Content: json.RawMessage(validNote)})
	r, _ := newTestRetrier(mock, 3)

	_, err := r.Generate(coachCtx("a1"), noteRequest())
	assert.Same(t, plain, err)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetry_StopsWhenSleepInterrupted(t *testing.T) {
	mock := NewMockProvider(down(), MockResponse{Content: json.RawMessage(validNote)})
	r, _ := newTestRetrier(mock, 3)
	r.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	_, err := r.Generate(coachCtx("a1"), noteRequest())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, mock.CallCount())
}

type slowProvider struct{}

func (slowProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, &Error{Kind: ErrUnavailable, Err: ctx.Err()}
}

func (slowProvider) ModelID() string { return "slow" }

func TestWithRetry_TimeoutCoversWholeCall(t *testing.T) {
	p := WithRetry(slowProvider{}, RetryConfig{Attempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, 20*time.Millisecond)

	start := time.Now()
	_, err := p.Generate(coachCtx("a1"), noteRequest())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "slow", p.ModelID())
}

func TestRetryDelay(t *testing.T) {
	r := &retrier{cfg: RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}}

	bounds := []struct {
		try      int
		min, max time.Duration
	}{
		{1, 50 * time.Millisecond, 100 * time.Millisecond},
		{2, 100 * time.Millisecond, 200 * time.Millisecond},
		{3, 150 * time.Millisecond, 300 * time.Millisecond},
		{40, 150 * time.Millisecond, 300 * time.Millisecond},
	}
	for _, b := range bounds {
		for range 50 {
			d := r.delay(b.try)
			require.GreaterOrEqual(t, d, b.min, "try %d", b.try)
			require.LessOrEqual(t, d, b.max, "try %d", b.try)
		}
	}

	assert.Zero(t, (&retrier{}).delay(1))
}
