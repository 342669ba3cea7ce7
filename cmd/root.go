package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/app"
	"github.com/abhisek/adaptest/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "adaptest",
	Short:         "Adaptive driving-knowledge assessments",
	Long:          "adaptest generates practice tests that adapt to each learner, scores attempts and recommends what to study next.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides ADAPTEST_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (overrides ADAPTEST_CONFIG env var)")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(adjustCmd)
	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads configuration using the --config flag, falling back to
// ADAPTEST_CONFIG and then the built-in defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// openApp loads configuration and connects the store, cache and engine.
// The --db flag takes priority over ADAPTEST_DB and the default XDG path.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, _ := cmd.Flags().GetString("db")
	return app.Open(cmd.Context(), cfg, app.Options{DBPath: dbPath})
}
