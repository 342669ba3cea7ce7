package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abhisek/adaptest/internal/analysis"
	"github.com/abhisek/adaptest/internal/attempt"
	"github.com/abhisek/adaptest/internal/coach"
	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/question"
	"github.com/abhisek/adaptest/internal/recommend"
	"github.com/abhisek/adaptest/internal/testgen"
)

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		warn("encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{Error: &apiError{Code: code, Message: message}}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		warn("encode error response: %v", err)
	}
}

// respondEngineError maps domain errors onto status codes. Anything
// unrecognised is a 500 with the detail kept out of the response.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, testgen.ErrPoolExhausted):
		respondError(w, http.StatusConflict, "pool_exhausted", err.Error())
	case errors.Is(err, analysis.ErrMalformedAttempt):
		respondError(w, http.StatusUnprocessableEntity, "malformed_attempt", err.Error())
	case errors.Is(err, engine.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, engine.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		warn("%s %s: %v", r.Method, r.URL.Path, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			warn("readiness: %v", err)
			respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Test generation

type generateRequest struct {
	UserID   string `json:"user_id"`
	State    string `json:"state"`
	Category string `json:"category,omitempty"`
	Count    int    `json:"count,omitempty"`
}

func (s *Server) handleGenerateTest(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tmpl, err := s.engine.GenerateTest(r.Context(), engine.GenerateRequest{
		UserID:   req.UserID,
		State:    req.State,
		Category: req.Category,
		Count:    req.Count,
	})
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, tmpl)
}

// Attempts

type submitRequest struct {
	Attempt attempt.Attempt `json:"attempt"`

	// Template is optional when the template was generated by this server.
	Template *testgen.Template `json:"template,omitempty"`
}

type submitResponse struct {
	Attempt         attempt.Attempt            `json:"attempt"`
	Analysis        *analysis.Result           `json:"analysis"`
	Adjustments     []adjustmentView           `json:"adjustments"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Note            *coach.Note                `json:"note,omitempty"`
}

type adjustmentView struct {
	Category   string              `json:"category"`
	Changed    bool                `json:"changed"`
	Previous   question.Difficulty `json:"previous"`
	New        question.Difficulty `json:"new"`
	Reason     string              `json:"reason,omitempty"`
	Confidence float64             `json:"confidence"`
}

func (s *Server) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := s.engine.SubmitAttempt(r.Context(), req.Attempt, req.Template)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	resp := submitResponse{
		Attempt:         out.Attempt,
		Analysis:        out.Analysis,
		Adjustments:     make([]adjustmentView, len(out.Adjustments)),
		Recommendations: out.Recommendations,
	}
	for i, a := range out.Adjustments {
		resp.Adjustments[i] = adjustmentView{
			Category:   a.Category,
			Changed:    a.Changed,
			Previous:   a.Previous,
			New:        a.New,
			Reason:     a.Reason,
			Confidence: a.Assessment.Confidence,
		}
	}
	if s.opts.Coach != nil {
		note, err := s.opts.Coach.Note(r.Context(), out.Analysis, out.Recommendations)
		if err != nil {
			warn("coaching note for %s: %v", out.Attempt.ID, err)
		} else {
			resp.Note = note
		}
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.AnalyzeAttempt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.engine.Recommend(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	respondJSON(w, http.StatusOK, recs)
}

// Levels

type levelView struct {
	Category   string              `json:"category"`
	Level      question.Difficulty `json:"level"`
	Confidence float64             `json:"confidence"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func (s *Server) handleGetLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.engine.Levels(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	out := make([]levelView, len(levels))
	for i, l := range levels {
		out[i] = levelView{Category: l.Category, Level: l.Level, Confidence: l.Confidence, UpdatedAt: l.UpdatedAt}
	}
	respondJSON(w, http.StatusOK, out)
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}
