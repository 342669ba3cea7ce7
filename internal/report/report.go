// Package report renders assessment results for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/adaptest/internal/analysis"
	"github.com/abhisek/adaptest/internal/coach"
	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/recommend"
)

// Width is the line width used for category bars.
const Width = 60

// Analysis renders the headline score, category breakdown, pacing, trend
// and mistake patterns of res.
func Analysis(res *analysis.Result) string {
	var b strings.Builder

	verdict := bad.Render("NOT PASSED")
	if res.Passed {
		verdict = good.Render("PASSED")
	}
	b.WriteString(title.Render(fmt.Sprintf("Attempt %s", res.AttemptID)))
	b.WriteString("  " + verdict + "\n")

	lines := []string{
		fmt.Sprintf("Score      %d/%d correct (%.0f%%), %d/%d points (%.0f%%)",
			res.CorrectCount, res.TotalQuestions, res.Score.Raw,
			res.EarnedPoints, res.TotalPoints, res.Score.Weighted),
	}
	if p := res.Score.Percentile; p != nil {
		lines = append(lines, fmt.Sprintf("Percentile %.0f", *p))
	}
	te := res.TimeEfficiency
	lines = append(lines, fmt.Sprintf("Pacing     %s (%.0fs per question, %.0fs expected)",
		te.Rating, te.AvgPerQuestion, te.Expected))
	trend := string(res.Improvement.Trend)
	if d := res.Improvement.ScoreDifference; d != nil {
		trend += fmt.Sprintf(", %+.0f points since last attempt", *d)
	}
	lines = append(lines, "Trend      "+trend)
	b.WriteString(card.Render(body.Render(strings.Join(lines, "\n"))))
	b.WriteString("\n")

	b.WriteString(heading.Render("Categories") + "\n")
	cats := make([]string, 0, len(res.CategoryBreakdown))
	for cat := range res.CategoryBreakdown {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	labelWidth := 0
	for _, cat := range cats {
		labelWidth = max(labelWidth, len(cat))
	}
	for _, cat := range cats {
		cs := res.CategoryBreakdown[cat]
		label := fmt.Sprintf("%-*s %2d/%-2d", labelWidth, cat, cs.Correct, cs.Total)
		b.WriteString(bar(label, cs.Score, Width, strengthStyle(cs.Strength)))
		b.WriteString("  " + strengthStyle(cs.Strength).Render(string(cs.Strength)) + "\n")
	}

	if len(res.MistakePatterns) > 0 {
		b.WriteString(heading.Render("Mistake patterns") + "\n")
		for _, p := range res.MistakePatterns {
			b.WriteString(warn.Render("• "+string(p.Type)) + dim.Render(fmt.Sprintf(" at questions %v", humanIndexes(p.QuestionIndexes))) + "\n")
		}
	}
	return b.String()
}

// Recommendations renders recs in priority order as given.
func Recommendations(recs []recommend.Recommendation) string {
	var b strings.Builder
	b.WriteString(heading.Render("Next steps") + "\n")
	if len(recs) == 0 {
		b.WriteString(hint.Render("Nothing to recommend right now.") + "\n")
		return b.String()
	}
	for i, r := range recs {
		name := r.Title
		if name == "" {
			name = r.ResourceID
		}
		b.WriteString(fmt.Sprintf("%2d. ", i+1))
		b.WriteString(lipgloss.NewStyle().Foreground(Primary).Render(fmt.Sprintf("[%s]", r.Type)))
		b.WriteString(" " + body.Render(name) + "\n")
		if r.Reason != "" {
			b.WriteString("    " + hint.Render(r.Reason) + "\n")
		}
	}
	return b.String()
}

// Adjustments renders the difficulty changes of one submission. Unchanged
// categories are listed dimmed.
func Adjustments(adjs []difficulty.Adjustment) string {
	var b strings.Builder
	b.WriteString(heading.Render("Difficulty") + "\n")
	for _, a := range adjs {
		if a.Changed {
			b.WriteString(good.Render(fmt.Sprintf("%s: %s → %s", a.Category, a.Previous, a.New)))
			b.WriteString(" " + hint.Render(a.Reason) + "\n")
			continue
		}
		b.WriteString(dim.Render(fmt.Sprintf("%s: %s (unchanged)", a.Category, a.New)) + "\n")
	}
	return b.String()
}

// Note renders a coaching note.
func Note(n coach.Note) string {
	var b strings.Builder
	b.WriteString(title.Render(n.Headline) + "\n")
	for _, tip := range n.Tips {
		b.WriteString(body.Render("• "+tip) + "\n")
	}
	return card.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

// Levels renders a learner's stored difficulty levels as a table.
func Levels(userID string, levels []difficulty.Level) string {
	var b strings.Builder
	b.WriteString(title.Render("Levels for "+userID) + "\n")
	if len(levels) == 0 {
		b.WriteString(hint.Render("No levels recorded yet.") + "\n")
		return b.String()
	}
	b.WriteString(dim.Render(fmt.Sprintf("%-24s  %-8s  %10s  %s", "CATEGORY", "LEVEL", "CONFIDENCE", "UPDATED")) + "\n")
	b.WriteString(dim.Render(strings.Repeat("─", 64)) + "\n")
	for _, l := range levels {
		updated := "-"
		if !l.UpdatedAt.IsZero() {
			updated = l.UpdatedAt.Format("2006-01-02 15:04")
		}
		b.WriteString(body.Render(fmt.Sprintf("%-24s  %-8s  %9.0f%%  %s", l.Category, l.Level, l.Confidence*100, updated)) + "\n")
	}
	return b.String()
}

// Print writes each rendered section to w, separated by blank lines.
func Print(w io.Writer, sections ...string) error {
	for i, s := range sections {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprint(w, s); err != nil {
			return err
		}
	}
	return nil
}

func strengthStyle(s analysis.Strength) lipgloss.Style {
	switch s {
	case analysis.StrengthStrong:
		return good
	case analysis.StrengthModerate:
		return warn
	default:
		return bad
	}
}

// humanIndexes converts zero-based question indexes to question numbers.
func humanIndexes(idx []int) []int {
	out := make([]int, len(idx))
	for i, n := range idx {
		out[i] = n + 1
	}
	return out
}
