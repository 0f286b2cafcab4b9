package planner

import (
	"context"
	"sort"
	"strings"
	"time"

	"noesis/internal/logging"
)

// ActionSchema is a grounded STRIPS operator: applicable when every
// precondition holds, it adds and deletes literals from the state.
type ActionSchema struct {
	Name          string
	Preconditions []string
	AddEffects    []string
	DelEffects    []string
	Cost          float64
}

// Applicable reports whether the action can fire in the given state.
func (a ActionSchema) Applicable(state map[string]bool) bool {
	for _, p := range a.Preconditions {
		if !state[p] {
			return false
		}
	}
	return true
}

// Apply returns the successor state.
func (a ActionSchema) Apply(state map[string]bool) map[string]bool {
	next := make(map[string]bool, len(state)+len(a.AddEffects))
	for lit, v := range state {
		if v {
			next[lit] = true
		}
	}
	for _, lit := range a.DelEffects {
		delete(next, lit)
	}
	for _, lit := range a.AddEffects {
		next[lit] = true
	}
	return next
}

// Problem is a grounded planning problem over a set of operators.
type Problem struct {
	Initial []string
	Goal    []string
	Actions []ActionSchema
}

// SearchOptions bounds the forward search.
type SearchOptions struct {
	MaxPlanLength int
	Deadline      time.Time
}

// Solution is the outcome of a forward search. Valid=false with no actions
// means the search was exhausted or timed out, not an error.
type Solution struct {
	Actions []string
	Cost    float64
	Valid   bool
}

// Length returns the number of actions in the solution.
func (s Solution) Length() int { return len(s.Actions) }

type searchNode struct {
	state   map[string]bool
	actions []string
	cost    float64
}

// Search runs breadth-first forward search from the initial state. The
// wall-clock deadline is polled every iteration so a pathological problem
// cannot stall the caller; running past it yields an invalid solution,
// never an error.
func Search(ctx context.Context, p Problem, opts SearchOptions) (Solution, error) {
	if opts.MaxPlanLength <= 0 {
		opts.MaxPlanLength = 10
	}

	initial := make(map[string]bool, len(p.Initial))
	for _, lit := range p.Initial {
		initial[lit] = true
	}

	if satisfies(initial, p.Goal) {
		return Solution{Actions: []string{}, Valid: true}, nil
	}

	queue := []searchNode{{state: initial}}
	visited := map[string]bool{stateKey(initial): true}
	expanded := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return Solution{}, err
		}
		if !opts.Deadline.IsZero() && time.Now().After(opts.Deadline) {
			logging.Planner("Search: deadline exceeded after %d expansions", expanded)
			return Solution{}, nil
		}

		node := queue[0]
		queue = queue[1:]
		expanded++

		if len(node.actions) >= opts.MaxPlanLength {
			continue
		}

		for _, action := range p.Actions {
			if !action.Applicable(node.state) {
				continue
			}
			next := action.Apply(node.state)
			key := stateKey(next)
			if visited[key] {
				continue
			}
			visited[key] = true

			actions := append(append([]string(nil), node.actions...), action.Name)
			cost := node.cost + action.Cost
			if satisfies(next, p.Goal) {
				logging.PlannerDebug("Search: solved in %d steps after %d expansions", len(actions), expanded)
				return Solution{Actions: actions, Cost: cost, Valid: true}, nil
			}
			queue = append(queue, searchNode{state: next, actions: actions, cost: cost})
		}
	}

	return Solution{}, nil
}

func satisfies(state map[string]bool, goal []string) bool {
	for _, lit := range goal {
		if !state[lit] {
			return false
		}
	}
	return true
}

func stateKey(state map[string]bool) string {
	lits := make([]string, 0, len(state))
	for lit, v := range state {
		if v {
			lits = append(lits, lit)
		}
	}
	sort.Strings(lits)
	return strings.Join(lits, ",")
}
