package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"noesis/internal/logging"
	"noesis/internal/types"
)

// ParadigmName is the registry id of the planning engine.
const ParadigmName = "planning"

// Options configures plan construction and search.
type Options struct {
	// MaxPlanLength bounds both HTN plans and search depth.
	MaxPlanLength int
	// SearchTimeout bounds the STRIPS forward search.
	SearchTimeout time.Duration
	// StepDuration is the per-step estimate used for plan durations.
	StepDuration time.Duration
}

// DefaultOptions returns the standard planner configuration.
func DefaultOptions() Options {
	return Options{
		MaxPlanLength: 10,
		SearchTimeout: 5 * time.Second,
		StepDuration:  30 * time.Second,
	}
}

// Engine is the planning paradigm: goals decompose through the task network
// into ordered steps with linear preconditions, each step's effect enabling
// the next.
type Engine struct {
	decomposer *Decomposer
	opts       Options
}

// NewEngine creates a planning engine.
func NewEngine(opts Options) *Engine {
	if opts.MaxPlanLength <= 0 {
		opts.MaxPlanLength = 10
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 5 * time.Second
	}
	if opts.StepDuration <= 0 {
		opts.StepDuration = 30 * time.Second
	}
	return &Engine{
		decomposer: NewDecomposer(),
		opts:       opts,
	}
}

// Name implements types.ReasoningParadigm.
func (e *Engine) Name() string { return ParadigmName }

// BuildPlan decomposes a goal into primitive tasks, compiles them into a
// grounded planning problem, and runs the forward search to order the steps.
// An exhausted or timed-out search yields a plan with Valid=false and no
// steps, never an error.
func (e *Engine) BuildPlan(ctx context.Context, goal string, priority float64) (*types.Plan, error) {
	timer := logging.StartTimer(logging.CategoryPlanner, "BuildPlan")
	defer timer.Stop()

	tasks, err := e.decomposer.Decompose(goal)
	if err != nil {
		return nil, fmt.Errorf("decompose %q: %w", goal, err)
	}
	if len(tasks) > e.opts.MaxPlanLength {
		tasks = tasks[:e.opts.MaxPlanLength]
	}

	problem := taskProblem(tasks)
	solution, err := e.Solve(ctx, problem)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", goal, err)
	}

	plan := &types.Plan{
		ID:        uuid.NewString(),
		Goal:      goal,
		Priority:  types.Clamp01(priority),
		Status:    types.PlanStatusPending,
		CreatedAt: time.Now(),
	}
	if !solution.Valid {
		logging.Planner("BuildPlan: goal=%q unplannable (search exhausted)", goal)
		return plan, nil
	}

	steps := make([]types.PlanStep, 0, solution.Length())
	for i, task := range solution.Actions {
		step := types.PlanStep{
			ID:      fmt.Sprintf("step-%d", i+1),
			Action:  task,
			Effects: []string{task + "_done"},
			Parameters: map[string]interface{}{
				"goal": goal,
			},
		}
		if i > 0 {
			step.Preconditions = []string{solution.Actions[i-1] + "_done"}
		}
		steps = append(steps, step)
	}

	plan.Steps = steps
	plan.Cost = solution.Cost
	plan.EstimatedDuration = time.Duration(len(steps)) * e.opts.StepDuration
	plan.Valid = e.Validate(plan, problem.Goal)

	logging.Planner("BuildPlan: goal=%q steps=%d cost=%.0f valid=%v", goal, len(steps), plan.Cost, plan.Valid)
	return plan, nil
}

// taskProblem compiles an ordered task list into a grounded problem: each
// task is an operator enabled by the completion of the one before it, and
// the goal is the final task's completion literal.
func taskProblem(tasks []string) Problem {
	actions := make([]ActionSchema, 0, len(tasks))
	for i, task := range tasks {
		schema := ActionSchema{
			Name:       task,
			AddEffects: []string{task + "_done"},
			Cost:       1,
		}
		if i > 0 {
			schema.Preconditions = []string{tasks[i-1] + "_done"}
		}
		actions = append(actions, schema)
	}
	return Problem{
		Goal:    []string{tasks[len(tasks)-1] + "_done"},
		Actions: actions,
	}
}

// Validate simulates the plan from an empty state: every step's
// preconditions must be satisfied by the effects of earlier steps, and the
// final state must cover every goal literal. An empty plan is valid only
// when the goal is already empty.
func (e *Engine) Validate(plan *types.Plan, goal []string) bool {
	if plan == nil {
		return false
	}
	state := make(map[string]bool)
	for _, step := range plan.Steps {
		for _, pre := range step.Preconditions {
			if !state[pre] {
				return false
			}
		}
		for _, eff := range step.Effects {
			state[eff] = true
		}
	}
	return satisfies(state, goal)
}

// Solve runs the STRIPS forward search under the configured timeout.
func (e *Engine) Solve(ctx context.Context, p Problem) (Solution, error) {
	deadline := time.Now().Add(e.opts.SearchTimeout)
	return Search(ctx, p, SearchOptions{
		MaxPlanLength: e.opts.MaxPlanLength,
		Deadline:      deadline,
	})
}

// Think implements types.ReasoningParadigm: build a plan for the context's
// goal and emit it as a plan-execution action.
func (e *Engine) Think(ctx context.Context, tc types.ThoughtContext, analysis types.ContextAnalysis) (*types.ThoughtResult, error) {
	timer := logging.StartTimer(logging.CategoryPlanner, "Think")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	goal := strings.TrimSpace(tc.Goal)
	if goal == "" {
		return &types.ThoughtResult{
			Thoughts:   []string{"No goal to plan for"},
			Confidence: 0.1,
		}, nil
	}

	plan, err := e.BuildPlan(ctx, goal, analysis.TimeConstraint)
	if err != nil {
		return nil, err
	}

	if plan.Length() == 0 {
		return &types.ThoughtResult{
			Thoughts:   []string{fmt.Sprintf("No plan found for goal %q", goal)},
			Confidence: 0.2,
		}, nil
	}

	thoughts := []string{
		fmt.Sprintf("Decomposed goal %q into %d steps", goal, plan.Length()),
	}
	for _, step := range plan.Steps {
		thoughts = append(thoughts, fmt.Sprintf("  %s: %s", step.ID, step.Action))
	}

	confidence := 0.85
	if !plan.Valid {
		confidence = 0.3
	}

	action := types.AgentAction{
		ID:     uuid.NewString(),
		Type:   types.ActionPlanExecution,
		Target: plan.ID,
		Parameters: map[string]interface{}{
			"plan": plan,
			"goal": goal,
		},
		CreatedAt: time.Now(),
	}

	return &types.ThoughtResult{
		Thoughts:   thoughts,
		Actions:    []types.AgentAction{action},
		Confidence: confidence,
	}, nil
}
