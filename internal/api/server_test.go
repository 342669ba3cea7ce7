package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/adaptest/internal/analysis"
	"github.com/abhisek/adaptest/internal/attempt"
	"github.com/abhisek/adaptest/internal/coach"
	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/question"
	"github.com/abhisek/adaptest/internal/recommend"
	"github.com/abhisek/adaptest/internal/testgen"
)

type fakeEngine struct {
	err error

	generated engine.GenerateRequest
	submitted attempt.Attempt
	template  *testgen.Template
}

func (f *fakeEngine) GenerateTest(_ context.Context, req engine.GenerateRequest) (*testgen.Template, error) {
	f.generated = req
	if f.err != nil {
		return nil, f.err
	}
	return &testgen.Template{ID: "tmpl-1", UserID: req.UserID, State: req.State, TimeLimitMinutes: 5}, nil
}

func (f *fakeEngine) SubmitAttempt(_ context.Context, at attempt.Attempt, tmpl *testgen.Template) (*engine.Outcome, error) {
	f.submitted, f.template = at, tmpl
	if f.err != nil {
		return nil, f.err
	}
	at.ID = "att-1"
	return &engine.Outcome{
		Attempt:  at,
		Analysis: &analysis.Result{AttemptID: "att-1", Score: analysis.Score{Raw: 80, Weighted: 75}},
		Adjustments: []difficulty.Adjustment{{
			Category: "SIGNS", Changed: true, Previous: question.Medium, New: question.Hard,
			Reason: "consistent high performance", Assessment: difficulty.Assessment{Confidence: 0.9},
		}},
		Recommendations: []recommend.Recommendation{{Type: recommend.TypeTest, Priority: 2, ResourceID: "t1"}},
	}, nil
}

func (f *fakeEngine) AnalyzeAttempt(_ context.Context, id string) (*analysis.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &analysis.Result{AttemptID: id, Passed: true}, nil
}

func (f *fakeEngine) Recommend(_ context.Context, id string) ([]recommend.Recommendation, error) {
	return nil, f.err
}

func (f *fakeEngine) Levels(_ context.Context, userID string) ([]difficulty.Level, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []difficulty.Level{{UserID: userID, Category: "SIGNS", Level: question.Hard, Confidence: 0.9}}, nil
}

type fakeCoach struct{ err error }

func (f fakeCoach) Note(_ context.Context, res *analysis.Result, _ []recommend.Recommendation) (*coach.Note, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &coach.Note{Headline: "Nice work on " + res.AttemptID, Tips: []string{"Keep going."}, Source: coach.SourceRules}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	srv := NewServer(&fakeEngine{}, Options{})
	rec, env := do(t, srv.Router(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), "healthy")
}

func TestReady(t *testing.T) {
	srv := NewServer(&fakeEngine{}, Options{Ready: func(context.Context) error { return nil }})
	rec, _ := do(t, srv.Router(), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	srv = NewServer(&fakeEngine{}, Options{Ready: func(context.Context) error { return errors.New("db down") }})
	rec, env := do(t, srv.Router(), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_ready", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestGenerateTest(t *testing.T) {
	eng := &fakeEngine{}
	srv := NewServer(eng, Options{})

	rec, env := do(t, srv.Router(), http.MethodPost, "/v1/tests",
		`{"user_id":"u1","state":"CA","category":"SIGNS","count":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, engine.GenerateRequest{UserID: "u1", State: "CA", Category: "SIGNS", Count: 10}, eng.generated)

	var tmpl testgen.Template
	require.NoError(t, json.Unmarshal(env.Data, &tmpl))
	assert.Equal(t, "tmpl-1", tmpl.ID)
	assert.Equal(t, 5, tmpl.TimeLimitMinutes)
}

func TestGenerateTest_BadBody(t *testing.T) {
	srv := NewServer(&fakeEngine{}, Options{})

	for _, body := range []string{`{`, `{"user":"u1"}`, `[]`} {
		rec, env := do(t, srv.Router(), http.MethodPost, "/v1/tests", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.NotNil(t, env.Error)
		assert.Equal(t, "invalid_request", env.Error.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"pool exhausted", &testgen.PoolExhaustedError{Requested: 20, Available: 3, Minimum: 5}, http.StatusConflict, "pool_exhausted"},
		{"wrapped pool exhausted", fmt.Errorf("generate: %w", testgen.ErrPoolExhausted), http.StatusConflict, "pool_exhausted"},
		{"malformed", &analysis.ValidationError{AttemptID: "a", Reason: "2 answers for 3 questions"}, http.StatusUnprocessableEntity, "malformed_attempt"},
		{"not found", fmt.Errorf("attempt x: %w", engine.ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid", fmt.Errorf("%w: user is required", engine.ErrInvalidRequest), http.StatusBadRequest, "validation_error"},
		{"internal", errors.New("disk full"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&fakeEngine{err: tt.err}, Options{})
			rec, env := do(t, srv.Router(), http.MethodPost, "/v1/tests", `{"user_id":"u1","state":"CA"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	srv := NewServer(&fakeEngine{err: errors.New("disk full")}, Options{})
	rec, _ := do(t, srv.Router(), http.MethodGet, "/v1/users/u1/levels", "")
	assert.NotContains(t, rec.Body.String(), "disk full")
}

func TestSubmitAttempt(t *testing.T) {
	eng := &fakeEngine{}
	srv := NewServer(eng, Options{Coach: fakeCoach{}})

	body := `{
		"attempt": {"user_id":"u1","template_id":"tmpl-1","responses":[{"question_id":"q1","answer":[0],"response_time_sec":12}]},
		"template": {"id":"tmpl-1","state":"CA","questions":[]}
	}`
	rec, env := do(t, srv.Router(), http.MethodPost, "/v1/attempts", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, "u1", eng.submitted.UserID)
	require.Len(t, eng.submitted.Responses, 1)
	assert.Equal(t, question.Answer{0}, eng.submitted.Responses[0].Answer)
	require.NotNil(t, eng.template)
	assert.Equal(t, "tmpl-1", eng.template.ID)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "att-1", resp.Attempt.ID)
	assert.Equal(t, 75.0, resp.Analysis.Score.Weighted)
	require.Len(t, resp.Adjustments, 1)
	assert.Equal(t, adjustmentView{
		Category: "SIGNS", Changed: true, Previous: question.Medium, New: question.Hard,
		Reason: "consistent high performance", Confidence: 0.9,
	}, resp.Adjustments[0])
	require.Len(t, resp.Recommendations, 1)
	require.NotNil(t, resp.Note)
	assert.Equal(t, "Nice work on att-1", resp.Note.Headline)
}

func TestSubmitAttempt_WithoutTemplateOrCoach(t *testing.T) {
	eng := &fakeEngine{}
	srv := NewServer(eng, Options{})

	rec, env := do(t, srv.Router(), http.MethodPost, "/v1/attempts",
		`{"attempt":{"user_id":"u1","template_id":"tmpl-1","responses":[]}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, eng.template)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Nil(t, resp.Note)
}

func TestSubmitAttempt_CoachFailureKeepsOutcome(t *testing.T) {
	srv := NewServer(&fakeEngine{}, Options{Coach: fakeCoach{err: errors.New("quota")}})
	rec, env := do(t, srv.Router(), http.MethodPost, "/v1/attempts", `{"attempt":{"user_id":"u1"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Nil(t, resp.Note)
	assert.Equal(t, "att-1", resp.Attempt.ID)
}

func TestGetAnalysis(t *testing.T) {
	srv := NewServer(&fakeEngine{}, Options{})
	rec, env := do(t, srv.Router(), http.MethodGet, "/v1/attempts/att-9/analysis", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res analysis.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "att-9", res.AttemptID)
	assert.True(t, res.Passed)
}

func TestGetRecommendations_EmptyList(t *testing.T) {
	srv := NewServer(&fakeEngine{}, Options{})
	rec, env := do(t, srv.Router(), http.MethodGet, "/v1/attempts/att-9/recommendations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestGetLevels(t *testing.T) {
	srv := NewServer(&fakeEngine{}, Options{})
	rec, env := do(t, srv.Router(), http.MethodGet, "/v1/users/u7/levels", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var levels []levelView
	require.NoError(t, json.Unmarshal(env.Data, &levels))
	require.Len(t, levels, 1)
	assert.Equal(t, "SIGNS", levels[0].Category)
	assert.Equal(t, question.Hard, levels[0].Level)
	assert.True(t, levels[0].UpdatedAt.IsZero())
}

func TestCORS(t *testing.T) {
	srv := NewServer(&fakeEngine{}, Options{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/tests", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	srv := NewServer(&fakeEngine{}, Options{})
	req := httptest.NewRequest(http.MethodGet, "/v2/nothing", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
