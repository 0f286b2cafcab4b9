package main

import (
	"context"

	"github.com/spf13/cobra"

	"noesis/internal/meta"
	"noesis/internal/types"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show paradigm performance and recent decisions",
	Long: `Prints per-paradigm usage counts, success rates, and mean confidence,
plus the most recent archived paradigm-selection decisions.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsLimit, "decisions", 10, "number of recent decisions to show")
}

func runStats(cmd *cobra.Command, args []string) error {
	return withRuntime(func(ctx context.Context, rt *runtime) error {
		decisions, err := rt.store.RecentDecisions(ctx, statsLimit)
		if err != nil {
			return err
		}

		out := struct {
			Stats     meta.Stats           `json:"stats"`
			Decisions []types.MetaDecision `json:"recent_decisions"`
		}{
			Stats:     rt.reasoner.GetStats(),
			Decisions: decisions,
		}
		return printJSON(out)
	})
}
