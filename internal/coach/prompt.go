package coach

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abhisek/adaptest/internal/analysis"
	"github.com/abhisek/adaptest/internal/recommend"
)

const systemPrompt = `You coach learners preparing for a driving knowledge test. You write short, specific, encouraging notes after each practice test.`

func buildUserMessage(res *analysis.Result, recs []recommend.Recommendation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "State: %s\n", res.State)
	fmt.Fprintf(&b, "Score: %.0f%% raw, %.0f%% weighted (%d of %d correct)\n",
		res.Score.Raw, res.Score.Weighted, res.CorrectCount, res.TotalQuestions)
	if res.Passed {
		b.WriteString("Result: passed\n")
	} else {
		b.WriteString("Result: not passed\n")
	}
	fmt.Fprintf(&b, "Pacing: %s\n", res.TimeEfficiency.Rating)
	fmt.Fprintf(&b, "Trend: %s over %d attempts\n", res.Improvement.Trend, res.Improvement.Samples)

	b.WriteString("\nCategories:\n")
	cats := make([]string, 0, len(res.CategoryBreakdown))
	for cat := range res.CategoryBreakdown {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		cs := res.CategoryBreakdown[cat]
		fmt.Fprintf(&b, "- %s: %d/%d (%.0f%%, %s)\n", cat, cs.Correct, cs.Total, cs.Score, cs.Strength)
	}

	if len(res.MistakePatterns) > 0 {
		b.WriteString("\nMistake patterns:\n")
		for _, p := range res.MistakePatterns {
			fmt.Fprintf(&b, "- %s at questions %v\n", p.Type, p.QuestionIndexes)
		}
	}

	b.WriteString("\nPlanned next steps:\n")
	if len(recs) == 0 {
		b.WriteString("None\n")
	}
	for _, r := range recs {
		fmt.Fprintf(&b, "- %s: %s\n", r.Type, r.Reason)
	}

	b.WriteString(`
Instructions:
1. Write a one-sentence headline about this attempt. Mention the score.
2. Write 1-3 tips. Each tip names a category or habit from the data above.
3. Refer to the planned next steps where they help; do not invent resources.
4. Plain text only. No markdown.`)

	return b.String()
}
