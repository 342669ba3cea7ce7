// Package coach writes short learner-facing notes after an attempt, using
// an LLM when one is configured and a rule-based fallback otherwise.
package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/abhisek/adaptest/internal/analysis"
	"github.com/abhisek/adaptest/internal/llm"
	"github.com/abhisek/adaptest/internal/recommend"
)

// Note sources.
const (
	SourceLLM   = "llm"
	SourceRules = "rules"
)

// Note is the coaching text shown with an analysis.
type Note struct {
	Headline string   `json:"headline"`
	Tips     []string `json:"tips"`
	Source   string   `json:"source"`
}

// Config holds generation settings.
type Config struct {
	MaxTokens   int
	Temperature float64
}

func DefaultConfig() Config {
	return Config{MaxTokens: 300, Temperature: 0.4}
}

// Coach produces notes. The zero provider means rules only.
type Coach struct {
	provider llm.Provider
	cfg      Config
}

// New creates a Coach. provider may be nil.
func New(provider llm.Provider, cfg Config) *Coach {
	return &Coach{provider: provider, cfg: cfg}
}

type noteOutput struct {
	Headline string   `json:"headline"`
	Tips     []string `json:"tips"`
}

// Note returns a note for res. LLM failures fall back to the rule-based
// note with a warning; Note itself only fails on a nil result.
func (c *Coach) Note(ctx context.Context, res *analysis.Result, recs []recommend.Recommendation) (*Note, error) {
	if res == nil {
		return nil, fmt.Errorf("coach: nil analysis")
	}
	if c == nil || c.provider == nil {
		return Fallback(res, recs), nil
	}

	note, err := c.generate(ctx, res, recs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: coaching note for %s: %v\n", res.AttemptID, err)
		return Fallback(res, recs), nil
	}
	return note, nil
}

func (c *Coach) generate(ctx context.Context, res *analysis.Result, recs []recommend.Recommendation) (*Note, error) {
	ctx = llm.WithTag(ctx, llm.Tag{Purpose: "coach", AttemptID: res.AttemptID})

	resp, err := c.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildUserMessage(res, recs),
		Schema:      NoteSchema,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate note: %w", err)
	}

	var out noteOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parse note: %w", err)
	}
	out.Headline = strings.TrimSpace(out.Headline)
	if out.Headline == "" || len(out.Tips) == 0 {
		return nil, &llm.Error{Kind: llm.ErrInvalidResponse, Content: resp.Content, Err: fmt.Errorf("empty note")}
	}
	if len(out.Tips) > MaxTips {
		out.Tips = out.Tips[:MaxTips]
	}
	return &Note{Headline: out.Headline, Tips: out.Tips, Source: SourceLLM}, nil
}

// Fallback derives a note from the analysis and recommendations alone.
// The same inputs always give the same note.
func Fallback(res *analysis.Result, recs []recommend.Recommendation) *Note {
	note := &Note{Source: SourceRules}
	if res.Passed {
		note.Headline = fmt.Sprintf("Passed with %.0f%%.", res.Score.Weighted)
	} else {
		note.Headline = fmt.Sprintf("Scored %.0f%%, not passing yet.", res.Score.Weighted)
	}

	seen := make(map[string]bool)
	for _, r := range recs {
		if len(note.Tips) == MaxTips {
			break
		}
		tip := tipFor(r)
		if tip == "" || seen[tip] {
			continue
		}
		seen[tip] = true
		note.Tips = append(note.Tips, tip)
	}

	if len(note.Tips) < MaxTips {
		switch res.TimeEfficiency.Rating {
		case analysis.TimeTooFast:
			note.Tips = append(note.Tips, "You answered very quickly. Read every option before choosing.")
		case analysis.TimeTooSlow:
			note.Tips = append(note.Tips, "You ran long. Practise with a timer to build pace.")
		}
	}
	if len(note.Tips) == 0 {
		note.Tips = []string{"Keep taking practice tests to hold your level."}
	}
	return note
}

func tipFor(r recommend.Recommendation) string {
	name := r.Title
	if name == "" {
		name = r.ResourceID
	}
	switch r.Type {
	case recommend.TypeDifficultyChange:
		return r.Reason + "."
	case recommend.TypeStory:
		return fmt.Sprintf("Read %q to shore up %s.", name, r.Category)
	case recommend.TypeTest:
		return fmt.Sprintf("Take the %s practice test %q.", r.Category, name)
	case recommend.TypeReview:
		return fmt.Sprintf("Review the %s questions you missed in a row or rushed.", r.Category)
	}
	return ""
}
