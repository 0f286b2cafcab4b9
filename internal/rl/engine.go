package rl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"noesis/internal/logging"
	"noesis/internal/types"
)

// ParadigmName is the registry id of the reinforcement-learning engine.
const ParadigmName = "reinforcement"

// defaultActions is the action repertoire offered to the Q-learner when the
// context does not constrain it.
var defaultActions = []string{"respond", "plan", "observe", "wait"}

// Engine wraps the tabular Q-learner as a reasoning paradigm.
type Engine struct {
	agent *Agent
}

// NewEngine creates a reinforcement engine with the given options.
func NewEngine(opts Options) *Engine {
	return &Engine{agent: NewAgent(opts)}
}

// Name implements types.ReasoningParadigm.
func (e *Engine) Name() string { return ParadigmName }

// Agent exposes the underlying learner for persistence and tests.
func (e *Engine) Agent() *Agent { return e.agent }

// Think implements types.ReasoningParadigm: featurize the analysis into a
// state key, select an action epsilon-greedily, and emit it.
func (e *Engine) Think(ctx context.Context, tc types.ThoughtContext, analysis types.ContextAnalysis) (*types.ThoughtResult, error) {
	timer := logging.StartTimer(logging.CategoryRL, "Think")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stateKey := StateKey(analysis.Features())

	chosen, explored, err := e.agent.SelectAction(stateKey, defaultActions)
	if err != nil {
		return nil, fmt.Errorf("select action: %w", err)
	}

	confidence := e.agent.ActionConfidence(stateKey, chosen, defaultActions)
	if explored {
		// Exploratory picks carry no value estimate.
		confidence = 0.5
	}

	thoughts := []string{
		fmt.Sprintf("State %s", stateKey),
		fmt.Sprintf("Selected %q (explore=%v, q=%.3f)", chosen, explored, e.agent.QValue(stateKey, chosen)),
	}

	var actions []types.AgentAction
	if act := e.actionFor(chosen, stateKey, explored); act != nil {
		actions = append(actions, *act)
	}

	logging.RL("Think: state=%s action=%s explore=%v confidence=%.2f", stateKey, chosen, explored, confidence)

	return &types.ThoughtResult{
		Thoughts:   thoughts,
		Actions:    actions,
		Confidence: types.Clamp01(confidence),
	}, nil
}

// actionFor maps a learned action name to an agent action. The "wait" action
// deliberately produces nothing.
func (e *Engine) actionFor(name, stateKey string, explored bool) *types.AgentAction {
	params := map[string]interface{}{
		"state":    stateKey,
		"explored": explored,
	}
	now := time.Now()
	switch name {
	case "respond":
		return &types.AgentAction{
			ID: uuid.NewString(), Type: types.ActionCommunication,
			Target: "respond", Parameters: params, CreatedAt: now,
		}
	case "plan":
		return &types.AgentAction{
			ID: uuid.NewString(), Type: types.ActionPlanExecution,
			Target: "plan", Parameters: params, CreatedAt: now,
		}
	case "observe":
		return &types.AgentAction{
			ID: uuid.NewString(), Type: types.ActionObservation,
			Target: "environment", Parameters: params, CreatedAt: now,
		}
	default:
		return nil
	}
}

// Learn implements types.LearningCapable.
func (e *Engine) Learn(exp types.Experience) error {
	if exp.Action == "" {
		return fmt.Errorf("experience missing action")
	}
	e.agent.Update(exp)
	return nil
}
