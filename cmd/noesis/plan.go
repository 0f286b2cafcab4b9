package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <goal>",
	Short: "Build a plan for a goal",
	Long: `Decomposes the goal through the hierarchical task network, orders the
steps with the bounded forward search, and prints the plan as JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")

	return withRuntime(func(ctx context.Context, rt *runtime) error {
		plan, err := rt.reasoner.Plan(ctx, goal)
		if err != nil {
			return err
		}
		return printJSON(plan)
	})
}
