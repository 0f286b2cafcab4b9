package rl

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noesis/internal/types"
)

func TestStateKey_Canonical(t *testing.T) {
	k1 := StateKey(map[string]float64{"b": 0.82, "a": 0.31})
	k2 := StateKey(map[string]float64{"a": 0.30, "b": 0.80})
	assert.Equal(t, "a=0.3|b=0.8", k1, "features are rounded to one decimal and sorted")
	assert.Equal(t, k1, k2)
	assert.Equal(t, "empty", StateKey(nil))
}

func TestSelectAction_ExploitsBestQ(t *testing.T) {
	// Epsilon floor keeps exploration negligible for this check.
	opts := DefaultOptions()
	opts.Epsilon = 0.0001
	opts.EpsilonMin = 0.0001
	opts.Seed = 42
	a := NewAgent(opts)

	a.setQLocked("s", "left", 0.2)
	a.setQLocked("s", "right", 0.9)

	exploits := 0
	for i := 0; i < 50; i++ {
		choice, explored, err := a.SelectAction("s", []string{"left", "right"})
		require.NoError(t, err)
		if !explored {
			exploits++
			assert.Equal(t, "right", choice)
		}
	}
	assert.Greater(t, exploits, 45, "with epsilon near zero almost every pick exploits")
}

func TestSelectAction_TieBreaksDeterministically(t *testing.T) {
	opts := DefaultOptions()
	opts.Epsilon = 0.0001
	opts.EpsilonMin = 0.0001
	opts.Seed = 7
	a := NewAgent(opts)

	// Unknown state: all Q-values are zero, first in sorted order wins.
	choice, explored, err := a.SelectAction("unseen", []string{"zeta", "alpha", "mid"})
	require.NoError(t, err)
	if !explored {
		assert.Equal(t, "alpha", choice)
	}
}

func TestSelectAction_NoActions(t *testing.T) {
	a := NewAgent(DefaultOptions())
	_, _, err := a.SelectAction("s", nil)
	assert.Error(t, err)
}

func TestUpdate_TDRule(t *testing.T) {
	opts := DefaultOptions()
	opts.LearningRate = 0.5
	opts.DiscountFactor = 0.9
	a := NewAgent(opts)

	a.setQLocked("next", "best", 1.0)

	a.Update(types.Experience{
		State:  map[string]interface{}{"f": 0.3},
		Action: "go",
		Reward: types.Reward{Value: 1.0},
		NextState: map[string]interface{}{
			"g": 0.7,
		},
	})

	// Q("f=0.3","go") = 0 + 0.5 * (1.0 + 0.9*maxQ("g=0.7") - 0)
	// next state key has no entries so maxQ is 0.
	assert.InDelta(t, 0.5, a.QValue("f=0.3", "go"), 1e-9)
}

func TestUpdate_TerminalIgnoresFuture(t *testing.T) {
	opts := DefaultOptions()
	opts.LearningRate = 1.0
	a := NewAgent(opts)

	next := map[string]interface{}{"f": 0.1}
	a.setQLocked(StateKey(map[string]float64{"f": 0.1}), "anything", 10.0)

	a.Update(types.Experience{
		State:     map[string]interface{}{"f": 0.5},
		Action:    "stop",
		Reward:    types.Reward{Value: 2.0},
		NextState: next,
		Done:      true,
	})
	assert.InDelta(t, 2.0, a.QValue("f=0.5", "stop"), 1e-9, "terminal updates use the bare reward")
}

func TestUpdate_EpsilonDecaysToFloor(t *testing.T) {
	opts := DefaultOptions()
	opts.Epsilon = 0.3
	opts.EpsilonMin = 0.05
	opts.EpsilonDecay = 0.5
	a := NewAgent(opts)

	for i := 0; i < 10; i++ {
		a.Update(types.Experience{
			State:  map[string]interface{}{"f": 0.5},
			Action: "go",
			Reward: types.Reward{Value: 0.1},
		})
	}
	assert.InDelta(t, 0.05, a.Epsilon(), 1e-9, "epsilon stops at the floor")
}

func TestUpdate_BufferIsFIFOBounded(t *testing.T) {
	opts := DefaultOptions()
	opts.BufferSize = 5
	a := NewAgent(opts)

	for i := 0; i < 12; i++ {
		a.Update(types.Experience{
			State:  map[string]interface{}{"f": float64(i)},
			Action: "go",
			Reward: types.Reward{Value: 0},
		})
	}
	assert.Equal(t, 5, a.BufferLen())
	assert.Equal(t, int64(12), a.Updates())
}

func TestUpdate_ConvergesToDiscountedReturn(t *testing.T) {
	// Repeatedly looping on the same state with a constant reward converges
	// Q toward r / (1 - gamma).
	opts := DefaultOptions()
	opts.LearningRate = 0.1
	opts.DiscountFactor = 0.9
	a := NewAgent(opts)

	state := map[string]interface{}{"f": 0.5}
	for i := 0; i < 5000; i++ {
		a.Update(types.Experience{
			State:     state,
			Action:    "loop",
			Reward:    types.Reward{Value: 1.0},
			NextState: state,
		})
	}

	want := 1.0 / (1.0 - 0.9)
	got := a.QValue("f=0.5", "loop")
	assert.True(t, math.Abs(got-want) < 0.1, fmt.Sprintf("Q=%.3f, want near %.3f", got, want))
}

func TestActionConfidence(t *testing.T) {
	a := NewAgent(DefaultOptions())
	a.setQLocked("s", "best", 0.9)
	a.setQLocked("s", "mid", 0.5)
	a.setQLocked("s", "worst", 0.1)

	all := []string{"best", "mid", "worst"}
	assert.InDelta(t, 1.0, a.ActionConfidence("s", "best", all), 1e-9)
	assert.InDelta(t, 0.5, a.ActionConfidence("s", "mid", all), 1e-9)
	assert.InDelta(t, 0.0, a.ActionConfidence("s", "worst", all), 1e-9)

	// All-tied states sit at 0.5.
	assert.InDelta(t, 0.5, a.ActionConfidence("unseen", "best", all), 1e-9)
	assert.InDelta(t, 0.5, a.ActionConfidence("s", "best", []string{"best"}), 1e-9)
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	a := NewAgent(DefaultOptions())
	a.setQLocked("s1", "go", 0.4)
	a.setQLocked("s2", "stop", -0.2)

	snap := a.Snapshot()

	b := NewAgent(DefaultOptions())
	b.Restore(snap)
	assert.InDelta(t, 0.4, b.QValue("s1", "go"), 1e-9)
	assert.InDelta(t, -0.2, b.QValue("s2", "stop"), 1e-9)

	// Snapshot is a copy, not an alias.
	snap["s1"]["go"] = 99
	assert.InDelta(t, 0.4, a.QValue("s1", "go"), 1e-9)
}

func TestEngineThink_EmitsAction(t *testing.T) {
	opts := DefaultOptions()
	opts.Seed = 3
	e := NewEngine(opts)

	analysis := types.ContextAnalysis{Complexity: 0.8, GoalOriented: 0.8}
	result, err := e.Think(context.Background(), types.ThoughtContext{}, analysis)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Thoughts)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
}

func TestEngineThink_CancelledContext(t *testing.T) {
	e := NewEngine(DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Think(ctx, types.ThoughtContext{}, types.ContextAnalysis{})
	assert.Error(t, err)
}

func TestEngineLearn_RequiresAction(t *testing.T) {
	e := NewEngine(DefaultOptions())
	assert.Error(t, e.Learn(types.Experience{}))
	assert.NoError(t, e.Learn(types.Experience{
		State:  map[string]interface{}{"f": 0.5},
		Action: "respond",
		Reward: types.Reward{Value: 1},
	}))
}
