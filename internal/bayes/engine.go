package bayes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"noesis/internal/logging"
	"noesis/internal/perception"
	"noesis/internal/types"
)

// ParadigmName is the registry id of the probabilistic engine.
const ParadigmName = "probabilistic"

// DefaultDecisionThreshold is the posterior above which a decision node
// becomes a boolean yes.
const DefaultDecisionThreshold = 0.6

// Engine wraps a Bayesian network as a reasoning paradigm. Evidence is
// extracted from the thought context, decision nodes are thresholded into
// boolean outcomes, and outcomes convert into agent actions.
type Engine struct {
	network   *Network
	threshold float64
}

// NewEngine creates a probabilistic engine over the default network.
func NewEngine(threshold float64) *Engine {
	return NewEngineWithNetwork(DefaultNetwork(), threshold)
}

// NewEngineWithNetwork creates an engine over a caller-supplied network.
func NewEngineWithNetwork(n *Network, threshold float64) *Engine {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultDecisionThreshold
	}
	return &Engine{
		network:   n,
		threshold: threshold,
	}
}

// Name implements types.ReasoningParadigm.
func (e *Engine) Name() string { return ParadigmName }

// Network exposes the underlying network for persistence and tests.
func (e *Engine) Network() *Network { return e.network }

// Think implements types.ReasoningParadigm: extract evidence, query the
// network, threshold decision nodes, emit actions.
func (e *Engine) Think(ctx context.Context, tc types.ThoughtContext, analysis types.ContextAnalysis) (*types.ThoughtResult, error) {
	timer := logging.StartTimer(logging.CategoryBayes, "Think")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	evidence := e.extractEvidence(tc, analysis)
	posterior := e.network.Query(evidence)

	var (
		thoughts []string
		actions  []types.AgentAction
		best     float64
	)

	thoughts = append(thoughts, fmt.Sprintf("Evidence: %v", evidence))

	for _, id := range DecisionNodes() {
		p, ok := posterior[id]
		if !ok {
			continue
		}
		decided := p >= e.threshold
		thoughts = append(thoughts, fmt.Sprintf("P(%s)=%.2f -> %v", id, p, decided))
		if p > best {
			best = p
		}
		if !decided {
			continue
		}
		if act := decisionToAction(id, p); act != nil {
			actions = append(actions, *act)
		}
	}

	logging.Bayes("Think: %d decisions, %d actions, best posterior %.2f", len(DecisionNodes()), len(actions), best)

	return &types.ThoughtResult{
		Thoughts:   thoughts,
		Actions:    actions,
		Confidence: types.Clamp01(best),
	}, nil
}

// extractEvidence projects the context into node states.
func (e *Engine) extractEvidence(tc types.ThoughtContext, analysis types.ContextAnalysis) map[string]string {
	evidence := make(map[string]string)

	for _, ev := range tc.Events {
		msg := ev.Message()
		if msg == "" {
			continue
		}
		switch {
		case perception.IsQuestion(msg):
			evidence["message_type"] = "question"
		case perception.IsCommand(msg):
			evidence["message_type"] = "command"
		default:
			if _, seen := evidence["message_type"]; !seen {
				evidence["message_type"] = "statement"
			}
		}
	}

	if analysis.Uncertainty < 0.3 {
		evidence["context_clear"] = "true"
	} else {
		evidence["context_clear"] = "false"
	}

	if tc.Goal != "" {
		evidence["goal_present"] = "true"
	} else {
		evidence["goal_present"] = "false"
	}

	if analysis.TimeConstraint >= 0.5 {
		evidence["urgency"] = "high"
	} else {
		evidence["urgency"] = "low"
	}

	return evidence
}

// Query runs the network directly against caller-supplied evidence.
func (e *Engine) Query(evidence map[string]string) map[string]float64 {
	return e.network.Query(evidence)
}

// Learn implements types.LearningCapable: one experience becomes one
// observed sample of network states, folded into the CPTs by frequency.
func (e *Engine) Learn(exp types.Experience) error {
	sample := sampleFromState(exp.State)

	// The reward decides the observed decision outcomes: a good outcome
	// confirms the decisions taken, a bad one disconfirms them.
	outcome := "false"
	if exp.Reward.Value > 0 {
		outcome = "true"
	}
	switch exp.Action {
	case "respond", "acknowledge", "greet":
		sample["should_respond"] = outcome
	case "plan", "pursue_goal":
		sample["should_plan"] = outcome
	}

	if len(sample) == 0 {
		return nil
	}

	e.network.LearnFromSamples([]map[string]string{sample})
	return nil
}

// sampleFromState maps an experience state snapshot onto network node states.
// Only keys matching node ids with string values are kept.
func sampleFromState(state map[string]interface{}) map[string]string {
	sample := make(map[string]string)
	for k, v := range state {
		if s, ok := v.(string); ok {
			sample[k] = s
		}
		if b, ok := v.(bool); ok {
			if b {
				sample[k] = "true"
			} else {
				sample[k] = "false"
			}
		}
	}
	return sample
}

func decisionToAction(nodeID string, p float64) *types.AgentAction {
	now := time.Now()
	switch nodeID {
	case "should_respond":
		return &types.AgentAction{
			ID:     uuid.NewString(),
			Type:   types.ActionCommunication,
			Target: "respond",
			Parameters: map[string]interface{}{
				"posterior": p,
			},
			CreatedAt: now,
		}
	case "should_plan":
		return &types.AgentAction{
			ID:     uuid.NewString(),
			Type:   types.ActionPlanExecution,
			Target: "plan",
			Parameters: map[string]interface{}{
				"posterior": p,
			},
			CreatedAt: now,
		}
	default:
		return nil
	}
}
