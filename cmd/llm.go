package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect LLM request events",
}

type llmEvent struct {
	store.LLMRequestEventData
	Sequence int64
	Time     string
}

// loadLLMEvents returns every recorded LLM request, oldest first.
func loadLLMEvents(cmd *cobra.Command) ([]llmEvent, error) {
	a, err := openApp(cmd)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	records, err := a.Store.Events().Query(cmd.Context(), store.QueryOpts{Kind: store.EventLLMRequest})
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	out := make([]llmEvent, 0, len(records))
	for _, r := range records {
		var data store.LLMRequestEventData
		if err := json.Unmarshal(r.Payload, &data); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", r.Sequence, err)
		}
		out = append(out, llmEvent{
			LLMRequestEventData: data,
			Sequence:            r.Sequence,
			Time:                r.Timestamp.Local().Format("2006-01-02 15:04:05"),
		})
	}
	return out, nil
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")

		events, err := loadLLMEvents(cmd)
		if err != nil {
			return err
		}
		var shown []llmEvent
		for _, e := range events {
			if purpose == "" || e.Purpose == purpose {
				shown = append(shown, e)
			}
		}
		if limit > 0 && len(shown) > limit {
			shown = shown[len(shown)-limit:]
		}

		w := cmd.OutOrStdout()
		if len(shown) == 0 {
			fmt.Fprintln(w, "No LLM events found.")
			return nil
		}

		fmt.Fprintf(w, "%-5s  %-19s  %-10s  %-12s  %-11s  %-26s  %-6s  %-6s  %-7s  %s\n",
			"Seq", "Timestamp", "Purpose", "Attempt", "Provider", "Model", "In", "Out", "Ms", "OK")
		fmt.Fprintln(w, strings.Repeat("─", 122))
		for _, e := range shown {
			ok := "✓"
			if !e.Success {
				ok = "✗ " + e.ErrorMessage
			}
			model := e.Model
			if len(model) > 26 {
				model = model[:26]
			}
			attempt := e.AttemptID
			if len(attempt) > 12 {
				attempt = attempt[:12]
			}
			fmt.Fprintf(w, "%-5d  %-19s  %-10s  %-12s  %-11s  %-26s  %-6d  %-6d  %-7d  %s\n",
				e.Sequence, e.Time, e.Purpose, attempt, e.Provider, model,
				e.InputTokens, e.OutputTokens, e.LatencyMs, ok)
		}
		return nil
	},
}

type usage struct {
	key        string
	calls      int
	in, out    int
	latencyMs  int64
	costUSD    float64
	errorCalls int
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated LLM token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := loadLLMEvents(cmd)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(w, "No LLM usage recorded yet.")
			return nil
		}

		byPurpose := aggregate(events, func(e llmEvent) string { return e.Purpose })
		fmt.Fprintln(w, "Usage by Purpose")
		fmt.Fprintln(w, strings.Repeat("─", 72))
		fmt.Fprintf(w, "%-16s  %6s  %10s  %10s  %8s  %6s\n", "Purpose", "Calls", "Input", "Output", "Avg Ms", "Errors")
		fmt.Fprintln(w, strings.Repeat("─", 72))
		var total usage
		for _, u := range byPurpose {
			fmt.Fprintf(w, "%-16s  %6d  %10d  %10d  %8d  %6d\n",
				u.key, u.calls, u.in, u.out, u.latencyMs/int64(u.calls), u.errorCalls)
			total.calls += u.calls
			total.in += u.in
			total.out += u.out
			total.costUSD += u.costUSD
		}
		fmt.Fprintln(w, strings.Repeat("─", 72))
		fmt.Fprintf(w, "%-16s  %6d  %10d  %10d\n", "TOTAL", total.calls, total.in, total.out)

		byModel := aggregate(events, func(e llmEvent) string { return e.Provider + "/" + e.Model })
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Estimated Cost by Model")
		fmt.Fprintln(w, strings.Repeat("─", 56))
		for _, u := range byModel {
			fmt.Fprintf(w, "%-40s  %6d  $%.4f\n", u.key, u.calls, u.costUSD)
		}
		fmt.Fprintln(w, strings.Repeat("─", 56))
		fmt.Fprintf(w, "%-40s  %6d  $%.4f\n", "TOTAL", total.calls, total.costUSD)
		return nil
	},
}

func aggregate(events []llmEvent, keyOf func(llmEvent) string) []usage {
	idx := map[string]int{}
	var out []usage
	for _, e := range events {
		k := keyOf(e)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, usage{key: k})
		}
		u := &out[i]
		u.calls++
		u.in += e.InputTokens
		u.out += e.OutputTokens
		u.latencyMs += e.LatencyMs
		u.costUSD += e.CostUSD
		if !e.Success {
			u.errorCalls++
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func init() {
	llmListCmd.Flags().Int("limit", 20, "Max events to show")
	llmListCmd.Flags().String("purpose", "", "Filter by purpose (e.g. coach)")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
