package coach

import "github.com/abhisek/adaptest/internal/llm"

// MaxTips bounds the tips in a note.
const MaxTips = 3

// NoteSchema is the structured output requested from the LLM.
var NoteSchema = &llm.Schema{
	Name:        "coaching-note",
	Description: "A short learner-facing note after a practice test",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"headline": map[string]any{
				"type":        "string",
				"description": "One sentence on how the test went (at most 15 words)",
			},
			"tips": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"minItems":    1,
				"maxItems":    MaxTips,
				"description": "1-3 concrete next steps (at most 20 words each)",
			},
		},
		"required":             []any{"headline", "tips"},
		"additionalProperties": false,
	},
}
