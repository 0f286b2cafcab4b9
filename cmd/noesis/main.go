// Command noesis is the hybrid reasoning engine CLI: it analyzes contexts,
// selects among reasoning paradigms, builds plans, and persists what the
// engines learn between invocations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"noesis/internal/config"
	"noesis/internal/logging"
)

const version = "0.1.0"

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "noesis",
	Short: "noesis - hybrid meta-reasoning engine",
	Long: `noesis is a hybrid reasoning engine for autonomous agents.

It analyzes an incoming context, scores four reasoning paradigms (rules,
probabilistic, reinforcement learning, planning) against the extracted
features and their historical performance, delegates to the winner with
ranked fallbacks, and fans learning signals back to every engine.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		if err := logging.Initialize(workspace); err != nil {
			return fmt.Errorf("initialize file logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".noesis/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", ".", "workspace directory")

	rootCmd.AddCommand(thinkCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the noesis version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("noesis %s\n", version)
	},
}
