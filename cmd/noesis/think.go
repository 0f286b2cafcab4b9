package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"noesis/internal/types"
)

var thinkStrategy string

var thinkCmd = &cobra.Command{
	Use:   "think [context.json]",
	Short: "Run one reasoning pass over a thought context",
	Long: `Reads a ThoughtContext as JSON (from the given file, or stdin when no
file is given), runs one meta-reasoning pass, and prints the ThoughtResult
as JSON along with the paradigm-selection decision.

Strategies:
  auto          score paradigms and delegate to the winner (default)
  hybrid        run the two best paradigms concurrently and merge
  deliberative  give the winner a bounded deadline, degrade to the fast path`,
	Args: cobra.MaximumNArgs(1),
	RunE: runThink,
}

func init() {
	thinkCmd.Flags().StringVar(&thinkStrategy, "strategy", "auto", "reasoning strategy: auto, hybrid, deliberative")
}

func runThink(cmd *cobra.Command, args []string) error {
	tc, err := readThoughtContext(args)
	if err != nil {
		return err
	}

	return withRuntime(func(ctx context.Context, rt *runtime) error {
		var result *types.ThoughtResult
		switch thinkStrategy {
		case "auto":
			result, err = rt.reasoner.Think(ctx, tc)
		case "hybrid":
			result, err = rt.reasoner.ThinkHybrid(ctx, tc)
		case "deliberative":
			result, err = rt.reasoner.ThinkDeliberative(ctx, tc)
		default:
			return fmt.Errorf("unknown strategy %q", thinkStrategy)
		}
		if err != nil {
			return err
		}

		out := struct {
			Result   *types.ThoughtResult `json:"result"`
			Decision *types.MetaDecision  `json:"decision,omitempty"`
		}{Result: result}
		if history := rt.reasoner.History(); len(history) > 0 {
			last := history[len(history)-1]
			out.Decision = &last
		}
		return printJSON(out)
	})
}

func readThoughtContext(args []string) (types.ThoughtContext, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
		if err != nil {
			return types.ThoughtContext{}, fmt.Errorf("read context: %w", err)
		}
	} else {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return types.ThoughtContext{}, fmt.Errorf("read stdin: %w", err)
		}
	}

	var tc types.ThoughtContext
	if err := json.Unmarshal(data, &tc); err != nil {
		return types.ThoughtContext{}, fmt.Errorf("parse thought context: %w", err)
	}
	return tc, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
