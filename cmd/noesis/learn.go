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

var learnCmd = &cobra.Command{
	Use:   "learn [experience.json]",
	Short: "Feed an experience to every learning-capable engine",
	Long: `Reads an Experience as JSON (from the given file, or stdin when no
file is given) and fans it out to every engine that can learn: rule weights,
conditional probability tables, and the Q-table all update, then persist.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLearn,
}

func runLearn(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read experience: %w", err)
		}
	} else {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}

	var exp types.Experience
	if err := json.Unmarshal(data, &exp); err != nil {
		return fmt.Errorf("parse experience: %w", err)
	}

	return withRuntime(func(ctx context.Context, rt *runtime) error {
		if err := rt.reasoner.Learn(exp); err != nil {
			return fmt.Errorf("learn: %w", err)
		}
		fmt.Println("experience applied")
		return nil
	})
}
