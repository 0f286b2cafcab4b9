package planner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noesis/internal/types"
)

func TestDecompose_KeywordMethods(t *testing.T) {
	d := NewDecomposer()

	tests := []struct {
		goal  string
		first string
		count int
	}{
		{"respond to the user's question", "analyze_input", 3},
		{"investigate the failing deployment", "gather_information", 4},
		{"build a notification service", "design_solution", 3},
		{"do something unclassifiable", "assess_situation", 3},
	}
	for _, tt := range tests {
		tasks, err := d.Decompose(tt.goal)
		require.NoError(t, err, tt.goal)
		assert.Len(t, tasks, tt.count, tt.goal)
		assert.Equal(t, tt.first, tasks[0], tt.goal)
	}
}

func TestDecompose_EmptyGoal(t *testing.T) {
	_, err := NewDecomposer().Decompose("   ")
	assert.Error(t, err)
}

func TestDecompose_Caches(t *testing.T) {
	d := NewDecomposer()

	first, err := d.Decompose("respond to greeting")
	require.NoError(t, err)
	second, err := d.Decompose("respond to greeting")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, d.CacheLen())
}

func TestBuildPlan_LinearPreconditions(t *testing.T) {
	e := NewEngine(DefaultOptions())

	plan, err := e.BuildPlan(context.Background(), "respond to the question", 0.5)
	require.NoError(t, err)

	require.GreaterOrEqual(t, plan.Length(), 3)
	assert.True(t, plan.Valid)
	assert.Empty(t, plan.Steps[0].Preconditions, "first step needs nothing")

	for i := 1; i < len(plan.Steps); i++ {
		require.Len(t, plan.Steps[i].Preconditions, 1)
		assert.Equal(t,
			plan.Steps[i-1].Effects[0],
			plan.Steps[i].Preconditions[0],
			"each step depends on the previous step's effect")
	}
}

func TestBuildPlan_LongGoal(t *testing.T) {
	e := NewEngine(DefaultOptions())

	goal := strings.Repeat("analyze the quarterly metrics and ", 12) + "report"
	plan, err := e.BuildPlan(context.Background(), goal, 0.8)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, plan.Length(), 3, "complex goals still get a multi-step plan")
	assert.LessOrEqual(t, plan.Length(), 10)
	assert.True(t, plan.Valid)
	assert.Equal(t, types.PlanStatusPending, plan.Status)
	assert.Equal(t, float64(plan.Length()), plan.Cost)
	assert.Equal(t, time.Duration(plan.Length())*30*time.Second, plan.EstimatedDuration)
}

func TestBuildPlan_SearchTimeoutMeansInvalidPlan(t *testing.T) {
	// An already-expired search deadline exhausts immediately; the plan
	// comes back invalid with no steps, not as an error.
	e := &Engine{
		decomposer: NewDecomposer(),
		opts: Options{
			MaxPlanLength: 10,
			SearchTimeout: -time.Second,
			StepDuration:  30 * time.Second,
		},
	}

	plan, err := e.BuildPlan(context.Background(), "respond to the question", 0.5)
	require.NoError(t, err)
	assert.False(t, plan.Valid)
	assert.Empty(t, plan.Steps)
}

func TestValidate_DetectsBrokenOrdering(t *testing.T) {
	e := NewEngine(DefaultOptions())

	plan := &types.Plan{Steps: []types.PlanStep{
		{ID: "a", Action: "first", Preconditions: []string{"never_produced"}},
	}}
	assert.False(t, e.Validate(plan, nil))
	assert.False(t, e.Validate(nil, nil))
}

func TestValidate_RequiresGoalCoverage(t *testing.T) {
	e := NewEngine(DefaultOptions())

	plan := &types.Plan{Steps: []types.PlanStep{
		{ID: "a", Action: "first", Effects: []string{"first_done"}},
		{ID: "b", Action: "second", Preconditions: []string{"first_done"}, Effects: []string{"second_done"}},
	}}

	assert.True(t, e.Validate(plan, []string{"second_done"}))
	assert.True(t, e.Validate(plan, []string{"first_done", "second_done"}))
	assert.False(t, e.Validate(plan, []string{"never_produced"}),
		"well-ordered steps that miss the goal are not a valid plan")

	// An empty plan covers only an empty goal.
	assert.True(t, e.Validate(&types.Plan{}, nil))
	assert.False(t, e.Validate(&types.Plan{}, []string{"anything"}))
}

func TestSolve_FindsShortestPlan(t *testing.T) {
	e := NewEngine(DefaultOptions())

	p := Problem{
		Initial: []string{"at_home"},
		Goal:    []string{"has_coffee"},
		Actions: []ActionSchema{
			{
				Name:          "walk_to_cafe",
				Preconditions: []string{"at_home"},
				AddEffects:    []string{"at_cafe"},
				DelEffects:    []string{"at_home"},
			},
			{
				Name:          "buy_coffee",
				Preconditions: []string{"at_cafe"},
				AddEffects:    []string{"has_coffee"},
			},
		},
	}

	sol, err := e.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, sol.Valid)
	assert.Equal(t, []string{"walk_to_cafe", "buy_coffee"}, sol.Actions)
}

func TestSolve_GoalAlreadySatisfied(t *testing.T) {
	e := NewEngine(DefaultOptions())
	sol, err := e.Solve(context.Background(), Problem{
		Initial: []string{"done"},
		Goal:    []string{"done"},
	})
	require.NoError(t, err)
	assert.True(t, sol.Valid)
	assert.Empty(t, sol.Actions)
}

func TestSolve_Unsolvable(t *testing.T) {
	e := NewEngine(DefaultOptions())
	sol, err := e.Solve(context.Background(), Problem{
		Initial: []string{"a"},
		Goal:    []string{"unreachable"},
		Actions: []ActionSchema{
			{Name: "noop", Preconditions: []string{"a"}, AddEffects: []string{"b"}},
		},
	})
	require.NoError(t, err, "exhaustion is a result, not an error")
	assert.False(t, sol.Valid)
	assert.Empty(t, sol.Actions)
}

func TestSearch_DeadlinePolling(t *testing.T) {
	// A deadline already in the past exhausts immediately, even on a
	// solvable problem.
	p := Problem{
		Initial: []string{"a"},
		Goal:    []string{"b"},
		Actions: []ActionSchema{
			{Name: "go", Preconditions: []string{"a"}, AddEffects: []string{"b"}},
		},
	}
	sol, err := Search(context.Background(), p, SearchOptions{
		MaxPlanLength: 10,
		Deadline:      time.Now().Add(-time.Second),
	})
	require.NoError(t, err)
	assert.False(t, sol.Valid)
}

func TestSearch_AccumulatesCost(t *testing.T) {
	p := Problem{
		Initial: []string{"a"},
		Goal:    []string{"c"},
		Actions: []ActionSchema{
			{Name: "ab", Preconditions: []string{"a"}, AddEffects: []string{"b"}, Cost: 2},
			{Name: "bc", Preconditions: []string{"b"}, AddEffects: []string{"c"}, Cost: 3},
		},
	}
	sol, err := Search(context.Background(), p, SearchOptions{MaxPlanLength: 10})
	require.NoError(t, err)
	require.True(t, sol.Valid)
	assert.Equal(t, 5.0, sol.Cost)
	assert.Equal(t, 2, sol.Length())
}

func TestSearch_RespectsMaxPlanLength(t *testing.T) {
	// A chain longer than the cap is unreachable.
	actions := make([]ActionSchema, 0, 12)
	for i := 0; i < 12; i++ {
		actions = append(actions, ActionSchema{
			Name:          litName("go", i),
			Preconditions: []string{litName("at", i)},
			AddEffects:    []string{litName("at", i+1)},
			DelEffects:    []string{litName("at", i)},
		})
	}
	p := Problem{
		Initial: []string{litName("at", 0)},
		Goal:    []string{litName("at", 12)},
		Actions: actions,
	}
	sol, err := Search(context.Background(), p, SearchOptions{MaxPlanLength: 5})
	require.NoError(t, err)
	assert.False(t, sol.Valid)
}

func litName(prefix string, i int) string {
	return prefix + "_" + string(rune('a'+i))
}

func TestThink_GoalProducesPlanAction(t *testing.T) {
	e := NewEngine(DefaultOptions())

	goal := "investigate why the nightly ingestion job started dropping records " +
		"after the storage migration and summarize the root cause for the team"
	result, err := e.Think(context.Background(), types.ThoughtContext{Goal: goal}, types.ContextAnalysis{GoalOriented: 0.8, Complexity: 0.8})
	require.NoError(t, err)

	require.Len(t, result.Actions, 1)
	assert.Equal(t, types.ActionPlanExecution, result.Actions[0].Type)
	assert.GreaterOrEqual(t, result.Confidence, 0.8)

	plan, ok := result.Actions[0].Parameters["plan"].(*types.Plan)
	require.True(t, ok)
	assert.GreaterOrEqual(t, plan.Length(), 3)
}

func TestThink_NoGoal(t *testing.T) {
	e := NewEngine(DefaultOptions())

	result, err := e.Think(context.Background(), types.ThoughtContext{}, types.ContextAnalysis{})
	require.NoError(t, err)
	assert.Empty(t, result.Actions)
	assert.Less(t, result.Confidence, 0.2)
}

func TestThink_CancelledContext(t *testing.T) {
	e := NewEngine(DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Think(ctx, types.ThoughtContext{Goal: "respond"}, types.ContextAnalysis{})
	assert.Error(t, err)
}
