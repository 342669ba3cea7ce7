package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/adaptest/internal/store"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "adaptest (devel)\n", run(t, "version"))
}

func TestLevels_EmptyDatabase(t *testing.T) {
	t.Setenv("ADAPTEST_CONFIG", "")
	db := filepath.Join(t.TempDir(), "adaptest.db")
	out := run(t, "--db", db, "levels", "--user", "u1")
	assert.Contains(t, out, "No levels recorded yet.")
}

func TestCategoryList(t *testing.T) {
	assert.Equal(t, "PARKING 40%, SIGNS 90%", categoryList(map[string]float64{"SIGNS": 90, "PARKING": 40}))
	assert.Equal(t, "", categoryList(nil))
}

func TestAggregate(t *testing.T) {
	events := []llmEvent{
		{LLMRequestEventData: store.LLMRequestEventData{Purpose: "coach", Model: "m1", InputTokens: 10, OutputTokens: 5, LatencyMs: 100, CostUSD: 0.01, Success: true}},
		{LLMRequestEventData: store.LLMRequestEventData{Purpose: "coach", Model: "m2", InputTokens: 20, OutputTokens: 5, LatencyMs: 300}},
		{LLMRequestEventData: store.LLMRequestEventData{Purpose: "alpha", Model: "m1", InputTokens: 1, Success: true}},
	}

	got := aggregate(events, func(e llmEvent) string { return e.Purpose })
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].key)
	assert.Equal(t, usage{key: "coach", calls: 2, in: 30, out: 10, latencyMs: 400, costUSD: 0.01, errorCalls: 1}, got[1])
}
