package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/attempt"
	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/question"
	"github.com/abhisek/adaptest/internal/report"
	"github.com/abhisek/adaptest/internal/testgen"
)

var seedCmd = &cobra.Command{
	Use:   "seed <bank.json>",
	Short: "Import a question bank",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bank, err := question.LoadBankFile(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Seed(cmd.Context(), bank); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d questions and %d content resources (bank %s).\n",
			len(bank.Questions), len(bank.Content), bank.Version)
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an adaptive test and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		state, _ := cmd.Flags().GetString("state")
		category, _ := cmd.Flags().GetString("category")
		count, _ := cmd.Flags().GetInt("count")
		out, _ := cmd.Flags().GetString("out")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tmpl, err := a.Engine.GenerateTest(cmd.Context(), engine.GenerateRequest{
			UserID:   user,
			State:    strings.ToUpper(state),
			Category: category,
			Count:    count,
		})
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), out, tmpl)
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <attempt.json>",
	Short: "Score an attempt, adjust difficulty and recommend next steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		templatePath, _ := cmd.Flags().GetString("template")
		asJSON, _ := cmd.Flags().GetBool("json")

		var at attempt.Attempt
		if err := readJSON(args[0], &at); err != nil {
			return err
		}
		var tmpl *testgen.Template
		if templatePath != "" {
			tmpl = &testgen.Template{}
			if err := readJSON(templatePath, tmpl); err != nil {
				return err
			}
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		outcome, err := a.Engine.SubmitAttempt(ctx, at, tmpl)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), "", outcome)
		}

		note, err := a.Coach.Note(ctx, outcome.Analysis, outcome.Recommendations)
		if err != nil {
			return err
		}
		return report.Print(cmd.OutOrStdout(),
			report.Analysis(outcome.Analysis),
			report.Adjustments(outcome.Adjustments),
			report.Recommendations(outcome.Recommendations),
			report.Note(*note),
		)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <attempt-id>",
	Short: "Show the analysis of a stored attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Engine.AnalyzeAttempt(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), "", res)
		}
		return report.Print(cmd.OutOrStdout(), report.Analysis(res))
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <attempt-id>",
	Short: "Recommend next steps for a stored attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		recs, err := a.Engine.Recommend(ctx, args[0])
		if err != nil {
			return err
		}
		res, err := a.Engine.AnalyzeAttempt(ctx, args[0])
		if err != nil {
			return err
		}
		note, err := a.Coach.Note(ctx, res, recs)
		if err != nil {
			return err
		}
		return report.Print(cmd.OutOrStdout(), report.Recommendations(recs), report.Note(*note))
	},
}

var adjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "Re-run difficulty adjustment for one category",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		category, _ := cmd.Flags().GetString("category")
		if category == "" {
			return errors.New("--category is required")
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		adj, err := a.Engine.AdjustDifficulty(cmd.Context(), user, category)
		if err != nil {
			return err
		}
		return report.Print(cmd.OutOrStdout(), report.Adjustments([]difficulty.Adjustment{adj}))
	},
}

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "List a learner's difficulty levels",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		levels, err := a.Engine.Levels(cmd.Context(), user)
		if err != nil {
			return err
		}
		return report.Print(cmd.OutOrStdout(), report.Levels(user, levels))
	},
}

func init() {
	generateCmd.Flags().String("user", "", "Learner ID")
	generateCmd.Flags().String("state", "", "Jurisdiction code (e.g. CA)")
	generateCmd.Flags().String("category", "", "Restrict the test to one category")
	generateCmd.Flags().Int("count", 0, "Number of questions (default from config)")
	generateCmd.Flags().StringP("out", "o", "", "Write the template to a file instead of stdout")
	generateCmd.MarkFlagRequired("user")
	generateCmd.MarkFlagRequired("state")

	submitCmd.Flags().String("template", "", "Template JSON file (defaults to the stored template)")
	submitCmd.Flags().Bool("json", false, "Print the outcome as JSON")

	analyzeCmd.Flags().Bool("json", false, "Print the analysis as JSON")

	adjustCmd.Flags().String("user", "", "Learner ID")
	adjustCmd.Flags().String("category", "", "Category to adjust")
	adjustCmd.MarkFlagRequired("user")

	levelsCmd.Flags().String("user", "", "Learner ID")
	levelsCmd.MarkFlagRequired("user")
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeJSON writes v indented to path, or to w when path is empty.
func writeJSON(w io.Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
