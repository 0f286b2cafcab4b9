package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noesis/internal/types"
)

func questionContext(msg string) types.ThoughtContext {
	return types.ThoughtContext{
		AgentID: "agent-1",
		Status:  types.StatusIdle,
		Events: []types.Event{{
			Type: "communication.message",
			Data: map[string]interface{}{"message": msg},
		}},
	}
}

func TestThink_QuestionFiresRespondRule(t *testing.T) {
	e := NewEngine(DefaultOptions())

	result, err := e.Think(context.Background(), questionContext("What's the weather?"), types.ContextAnalysis{})
	require.NoError(t, err)

	require.Len(t, result.Actions, 1, "a single question should yield exactly one action")
	assert.Equal(t, types.ActionCommunication, result.Actions[0].Type)
	assert.Equal(t, "respond", result.Actions[0].Target)
	assert.Equal(t, "respond_to_question", result.Actions[0].Parameters["rule"])
	assert.Greater(t, result.Confidence, 0.5)
}

func TestThink_NoEligibleRules(t *testing.T) {
	e := NewEngine(DefaultOptions())

	tc := types.ThoughtContext{
		AgentID: "agent-1",
		Events:  []types.Event{{Type: "sensor.tick"}},
	}
	result, err := e.Think(context.Background(), tc, types.ContextAnalysis{})
	require.NoError(t, err)

	assert.Empty(t, result.Actions)
	assert.InDelta(t, 0.3, result.Confidence, 0.01)
	assert.Contains(t, result.Thoughts[0], "No rules fired")
}

func TestForwardChaining_TerminatesWithinMaxIterations(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxIterations = 10
	e := NewEngine(opts)
	e.ReplaceRules(nil)

	// A rule that keeps itself eligible by reasserting its own trigger.
	err := e.AddRule(&Rule{
		Name: "reassert_loop",
		Conditions: []Condition{
			{Type: ConditionFact, Subject: "loop", Predicate: "active", Object: "true"},
		},
		Actions: []RuleAction{
			{Type: ActionAssert, Subject: "loop", Predicate: "active", Object: "true"},
		},
	})
	require.NoError(t, err)

	e.Facts().Assert(Fact{Subject: "loop", Predicate: "active", Object: "true"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, thinkErr := e.Think(context.Background(), types.ThoughtContext{}, types.ContextAnalysis{})
		assert.NoError(t, thinkErr)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forward chaining did not terminate")
	}

	// One rule can fire at most once per run.
	firings := e.RecentFirings()
	assert.LessOrEqual(t, len(firings), opts.MaxIterations)
}

func TestConflictResolution_Priority(t *testing.T) {
	opts := DefaultOptions()
	opts.Strategy = StrategyPriority
	e := NewEngine(opts)
	e.ReplaceRules([]*Rule{
		{
			Name:     "low",
			Priority: 0.3,
			Conditions: []Condition{
				{Type: ConditionFact, Subject: "x", Predicate: "p", Object: "1"},
			},
			Actions: []RuleAction{{Type: ActionExecute, Target: "low_action"}},
		},
		{
			Name:     "high",
			Priority: 0.9,
			Conditions: []Condition{
				{Type: ConditionFact, Subject: "x", Predicate: "p", Object: "1"},
			},
			Actions: []RuleAction{{Type: ActionExecute, Target: "high_action"}},
		},
	})
	e.Facts().Assert(Fact{Subject: "x", Predicate: "p", Object: "1"})

	result, err := e.Think(context.Background(), types.ThoughtContext{}, types.ContextAnalysis{})
	require.NoError(t, err)
	require.NotEmpty(t, result.Actions)
	assert.Equal(t, "high_action", result.Actions[0].Target, "priority strategy should fire the high-priority rule first")
}

func TestConflictResolution_Specificity(t *testing.T) {
	opts := DefaultOptions()
	opts.Strategy = StrategySpecificity
	e := NewEngine(opts)
	e.ReplaceRules([]*Rule{
		{
			Name:     "general",
			Priority: 0.9,
			Conditions: []Condition{
				{Type: ConditionFact, Subject: "x", Predicate: "p", Object: "1"},
			},
			Actions: []RuleAction{{Type: ActionExecute, Target: "general_action"}},
		},
		{
			Name:     "specific",
			Priority: 0.2,
			Conditions: []Condition{
				{Type: ConditionFact, Subject: "x", Predicate: "p", Object: "1"},
				{Type: ConditionFact, Subject: "y", Predicate: "q", Object: "2"},
			},
			Actions: []RuleAction{{Type: ActionExecute, Target: "specific_action"}},
		},
	})
	e.Facts().Assert(Fact{Subject: "x", Predicate: "p", Object: "1"})
	e.Facts().Assert(Fact{Subject: "y", Predicate: "q", Object: "2"})

	result, err := e.Think(context.Background(), types.ThoughtContext{}, types.ContextAnalysis{})
	require.NoError(t, err)
	require.NotEmpty(t, result.Actions)
	assert.Equal(t, "specific_action", result.Actions[0].Target)
}

func TestConflictResolution_Recency(t *testing.T) {
	opts := DefaultOptions()
	opts.Strategy = StrategyRecency
	e := NewEngine(opts)
	e.ReplaceRules([]*Rule{
		{
			Name: "first",
			Conditions: []Condition{
				{Type: ConditionFact, Subject: "x", Predicate: "p", Object: "1"},
			},
			Actions: []RuleAction{{Type: ActionExecute, Target: "first_action"}},
		},
		{
			Name: "second",
			Conditions: []Condition{
				{Type: ConditionFact, Subject: "x", Predicate: "p", Object: "1"},
			},
			Actions: []RuleAction{{Type: ActionExecute, Target: "second_action"}},
		},
	})
	e.Facts().Assert(Fact{Subject: "x", Predicate: "p", Object: "1"})

	// Seed recency: "second" fired most recently.
	e.mu.Lock()
	e.lastSuccess["second"] = time.Now()
	e.lastSuccess["first"] = time.Now().Add(-time.Minute)
	e.mu.Unlock()

	result, err := e.Think(context.Background(), types.ThoughtContext{}, types.ContextAnalysis{})
	require.NoError(t, err)
	require.NotEmpty(t, result.Actions)
	assert.Equal(t, "second_action", result.Actions[0].Target)
}

func TestFire_ActionErrorContinuesChaining(t *testing.T) {
	e := NewEngine(DefaultOptions())
	e.ReplaceRules([]*Rule{
		{
			Name:     "broken",
			Priority: 0.9,
			Conditions: []Condition{
				{Type: ConditionFact, Subject: "x", Predicate: "p", Object: "1"},
			},
			// Execute without a target fails during firing.
			Actions: []RuleAction{{Type: ActionExecute}},
		},
		{
			Name:     "working",
			Priority: 0.5,
			Conditions: []Condition{
				{Type: ConditionFact, Subject: "x", Predicate: "p", Object: "1"},
			},
			Actions: []RuleAction{{Type: ActionExecute, Target: "ok_action"}},
		},
	})
	e.Facts().Assert(Fact{Subject: "x", Predicate: "p", Object: "1"})

	result, err := e.Think(context.Background(), types.ThoughtContext{}, types.ContextAnalysis{})
	require.NoError(t, err)

	require.Len(t, result.Actions, 1)
	assert.Equal(t, "ok_action", result.Actions[0].Target)

	firings := e.RecentFirings()
	require.Len(t, firings, 2)
	assert.False(t, firings[0].Success)
	assert.NotEmpty(t, firings[0].Error)
	assert.True(t, firings[1].Success)
}

func TestLearn_PositiveRewardRaisesWeights(t *testing.T) {
	e := NewEngine(DefaultOptions())

	// Fire respond_to_question once so it is in the reward window.
	_, err := e.Think(context.Background(), questionContext("how are you?"), types.ContextAnalysis{})
	require.NoError(t, err)

	before, ok := e.Rule("respond_to_question")
	require.True(t, ok)

	var prevPriority, prevConfidence = before.Priority, before.Confidence
	for i := 0; i < 5; i++ {
		_, err := e.Think(context.Background(), questionContext("how are you?"), types.ContextAnalysis{})
		require.NoError(t, err)

		err = e.Learn(types.Experience{Reward: types.Reward{Type: "user_feedback", Value: 0.9}})
		require.NoError(t, err)

		r, _ := e.Rule("respond_to_question")
		if prevPriority < WeightMax {
			assert.Greater(t, r.Priority, prevPriority, "priority should increase while under the cap")
		}
		assert.LessOrEqual(t, r.Priority, WeightMax)
		assert.LessOrEqual(t, r.Confidence, WeightMax)
		prevPriority, prevConfidence = r.Priority, r.Confidence
	}

	assert.LessOrEqual(t, prevConfidence, WeightMax)
}

func TestLearn_NegativeRewardLowersWeights(t *testing.T) {
	e := NewEngine(DefaultOptions())

	_, err := e.Think(context.Background(), questionContext("why?"), types.ContextAnalysis{})
	require.NoError(t, err)

	before, _ := e.Rule("respond_to_question")
	require.NoError(t, e.Learn(types.Experience{Reward: types.Reward{Value: -0.9}}))

	after, _ := e.Rule("respond_to_question")
	assert.Less(t, after.Priority, before.Priority)
	assert.GreaterOrEqual(t, after.Priority, WeightMin)
}

func TestLearn_NeutralRewardIsIgnored(t *testing.T) {
	e := NewEngine(DefaultOptions())

	_, err := e.Think(context.Background(), questionContext("when?"), types.ContextAnalysis{})
	require.NoError(t, err)

	before, _ := e.Rule("respond_to_question")
	require.NoError(t, e.Learn(types.Experience{Reward: types.Reward{Value: 0.2}}))

	after, _ := e.Rule("respond_to_question")
	assert.Equal(t, before.Priority, after.Priority)
}

func TestFactBase_AssertRetractQuery(t *testing.T) {
	fb := NewFactBase()

	f := fb.Assert(Fact{Subject: "sky", Predicate: "color", Object: "blue"})
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, 1, fb.Len())

	// Re-asserting the same triple replaces, not duplicates.
	fb.Assert(Fact{Subject: "sky", Predicate: "color", Object: "blue", Confidence: 0.4})
	assert.Equal(t, 1, fb.Len())

	got := fb.Query("sky", "color", "")
	assert.Len(t, got, 1)
	assert.InDelta(t, 0.4, got[0].Confidence, 0.001)

	removed := fb.Retract("sky", "", "")
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, fb.Len())
}
