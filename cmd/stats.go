package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/attempt"
	"github.com/abhisek/adaptest/internal/difficulty"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show a learner's recent attempts and score trend",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		state, _ := cmd.Flags().GetString("state")
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.Store.Attempts().RecentAttempts(cmd.Context(), user, strings.ToUpper(state), category, limit)
		if err != nil {
			return fmt.Errorf("load attempts: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(recs) == 0 {
			fmt.Fprintln(w, "No attempts recorded yet.")
			return nil
		}

		fmt.Fprintf(w, "%-36s  %-16s  %-5s  %6s  %s\n", "Attempt", "Date", "State", "Score", "Categories")
		fmt.Fprintln(w, strings.Repeat("─", 100))
		for _, r := range recs {
			score, _ := r.ScoreFor(category)
			fmt.Fprintf(w, "%-36s  %-16s  %-5s  %5.0f%%  %s\n",
				r.AttemptID,
				r.CreatedAt.Local().Format("2006-01-02 15:04"),
				r.State,
				score,
				categoryList(r.CategoryScores),
			)
		}

		scores := attempt.Chronological(recs, category)
		fmt.Fprintf(w, "\n%d attempts, trend %s\n", len(scores), difficulty.ClassifyTrend(scores))
		return nil
	},
}

func categoryList(scores map[string]float64) string {
	cats := make([]string, 0, len(scores))
	for c := range scores {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = fmt.Sprintf("%s %.0f%%", c, scores[c])
	}
	return strings.Join(parts, ", ")
}

func init() {
	statsCmd.Flags().String("user", "", "Learner ID")
	statsCmd.Flags().String("state", "", "Only attempts for this jurisdiction")
	statsCmd.Flags().String("category", "", "Score and trend for one category")
	statsCmd.Flags().Int("limit", 10, "Max attempts to show")
	statsCmd.MarkFlagRequired("user")
}
