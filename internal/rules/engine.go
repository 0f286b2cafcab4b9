package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"noesis/internal/logging"
	"noesis/internal/perception"
	"noesis/internal/types"
)

// ParadigmName is the registry id of the rule engine.
const ParadigmName = "rule_engine"

// ConflictStrategy selects which eligible rule fires when several are
// eligible at once.
type ConflictStrategy string

const (
	// StrategyPriority fires the rule with the highest numeric priority.
	StrategyPriority ConflictStrategy = "priority"
	// StrategySpecificity fires the rule with the most conditions.
	StrategySpecificity ConflictStrategy = "specificity"
	// StrategyRecency fires the rule whose last successful firing is latest.
	StrategyRecency ConflictStrategy = "recency"
)

// FiringRecord logs one rule firing for recency resolution and learning.
type FiringRecord struct {
	RuleID  string    `json:"rule_id"`
	Success bool      `json:"success"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}

// Options configures the rule engine.
type Options struct {
	Strategy      ConflictStrategy
	MaxIterations int
	// LearningStep is how much a reward adjusts fired-rule weights.
	LearningStep float64
	// RewardWindow bounds how far back learning credits firings.
	RewardWindow time.Duration
	// FiringLogSize bounds the firing log.
	FiringLogSize int
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		Strategy:      StrategyPriority,
		MaxIterations: 10,
		LearningStep:  0.05,
		RewardWindow:  60 * time.Second,
		FiringLogSize: 200,
	}
}

// Engine is the forward-chaining rule engine. It owns a fact base and a rule
// set; all mutation is serialized behind mu.
type Engine struct {
	mu      sync.Mutex
	facts   *FactBase
	rules   map[string]*Rule
	opts    Options
	firings []FiringRecord
	// lastSuccess tracks the most recent successful firing per rule for
	// the recency strategy.
	lastSuccess map[string]time.Time
}

// NewEngine creates a rule engine with the default rule set loaded.
func NewEngine(opts Options) *Engine {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 10
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyPriority
	}
	if opts.LearningStep <= 0 {
		opts.LearningStep = 0.05
	}
	if opts.RewardWindow <= 0 {
		opts.RewardWindow = 60 * time.Second
	}
	if opts.FiringLogSize <= 0 {
		opts.FiringLogSize = 200
	}

	e := &Engine{
		facts:       NewFactBase(),
		rules:       make(map[string]*Rule),
		opts:        opts,
		lastSuccess: make(map[string]time.Time),
	}
	for _, r := range DefaultRules() {
		e.addRuleLocked(r)
	}
	logging.Rules("NewEngine: strategy=%s rules=%d", opts.Strategy, len(e.rules))
	return e
}

// Name implements types.ReasoningParadigm.
func (e *Engine) Name() string { return ParadigmName }

// Facts exposes the fact base for external evidence injection and tests.
func (e *Engine) Facts() *FactBase { return e.facts }

// AddRule registers or replaces a rule.
func (e *Engine) AddRule(r *Rule) error {
	if r == nil || r.Name == "" {
		return fmt.Errorf("rule requires a name")
	}
	for _, c := range r.Conditions {
		if c.Type == ConditionExpr {
			if err := c.Expr.Validate(); err != nil {
				return fmt.Errorf("rule %s: %w", r.Name, err)
			}
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addRuleLocked(r)
	return nil
}

func (e *Engine) addRuleLocked(r *Rule) {
	r.Normalize()
	e.rules[r.ID] = r
}

// RemoveRule deletes a rule by id.
func (e *Engine) RemoveRule(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, id)
}

// Rule returns a copy of the rule with the given id.
func (e *Engine) Rule(id string) (Rule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[id]
	if !ok {
		return Rule{}, false
	}
	return *r, true
}

// RuleCount returns the number of registered rules.
func (e *Engine) RuleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rules)
}

// ReplaceRules swaps the whole rule set (used by the file watcher reload).
func (e *Engine) ReplaceRules(ruleSet []*Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = make(map[string]*Rule, len(ruleSet))
	for _, r := range ruleSet {
		e.addRuleLocked(r)
	}
	logging.Rules("ReplaceRules: rule set now has %d rules", len(e.rules))
}

// RecentFirings returns a copy of the firing log, newest last.
func (e *Engine) RecentFirings() []FiringRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]FiringRecord, len(e.firings))
	copy(out, e.firings)
	return out
}

// Think implements types.ReasoningParadigm: project the context into facts,
// run forward chaining, and translate execute actions into agent actions.
func (e *Engine) Think(ctx context.Context, tc types.ThoughtContext, analysis types.ContextAnalysis) (*types.ThoughtResult, error) {
	timer := logging.StartTimer(logging.CategoryRules, "Think")
	defer timer.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.projectContextLocked(tc)

	fired, thoughts, actions, err := e.forwardChainLocked(ctx)
	if err != nil {
		return nil, err
	}

	confidence := 0.3
	if len(fired) > 0 {
		sum := 0.0
		for _, r := range fired {
			sum += r.Confidence
		}
		confidence = sum / float64(len(fired))
	}

	if len(thoughts) == 0 {
		thoughts = append(thoughts, "No rules fired for this context")
	}

	logging.Rules("Think: fired=%d actions=%d confidence=%.2f", len(fired), len(actions), confidence)

	return &types.ThoughtResult{
		Thoughts:   thoughts,
		Actions:    actions,
		Confidence: types.Clamp01(confidence),
	}, nil
}

// projectContextLocked maps the raw context into facts through a fixed set of
// projection rules: message shape flags, mention flags, goal achievability.
func (e *Engine) projectContextLocked(tc types.ThoughtContext) {
	now := time.Now()

	for _, ev := range tc.Events {
		if msg := ev.Message(); msg != "" {
			e.facts.Assert(Fact{Subject: "message", Predicate: "text", Object: msg, Timestamp: now})
			if perception.IsQuestion(msg) {
				e.facts.Assert(Fact{Subject: "message", Predicate: "is_question", Object: "true", Timestamp: now})
			}
			if perception.IsCommand(msg) {
				e.facts.Assert(Fact{Subject: "message", Predicate: "is_command", Object: "true", Timestamp: now})
			}
		}
		if containsFold(ev.Type, "mention") {
			e.facts.Assert(Fact{Subject: "agent", Predicate: "mentioned", Object: "true", Timestamp: now})
		}
	}

	if tc.Goal != "" {
		achievable := "false"
		// Short, concrete goals are treated as directly achievable; long
		// multi-step goals go to the planner instead.
		if len(tc.Goal) < 200 {
			achievable = "true"
		}
		e.facts.Assert(Fact{Subject: "goal", Predicate: "achievable", Object: achievable, Timestamp: now})
		e.facts.Assert(Fact{Subject: "goal", Predicate: "text", Object: tc.Goal, Timestamp: now})
	}

	e.facts.Assert(Fact{Subject: "agent", Predicate: "status", Object: string(tc.Status), Timestamp: now})
}

// forwardChainLocked fires exactly one rule per iteration until no rule is
// eligible or the iteration cap is reached. A rule fires at most once per
// run; together with the cap this guarantees termination.
func (e *Engine) forwardChainLocked(ctx context.Context) ([]*Rule, []string, []types.AgentAction, error) {
	var (
		fired    []*Rule
		thoughts []string
		actions  []types.AgentAction
		firedIDs = make(map[string]bool)
	)

	for i := 0; i < e.opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return fired, thoughts, actions, err
		}

		now := time.Now()
		eligible := e.eligibleRulesLocked(firedIDs, now)
		if len(eligible) == 0 {
			break
		}

		winner := e.resolveConflict(eligible)
		firedIDs[winner.ID] = true

		emitted, err := e.fireLocked(winner, now)
		if err != nil {
			// RuleActionError: record the failed firing and continue with
			// the remaining eligible rules.
			e.recordFiringLocked(FiringRecord{RuleID: winner.ID, Success: false, At: now, Error: err.Error()})
			logging.Rules("forwardChain: rule %s failed: %v", winner.ID, err)
			continue
		}

		e.recordFiringLocked(FiringRecord{RuleID: winner.ID, Success: true, At: now})
		e.lastSuccess[winner.ID] = now
		fired = append(fired, winner)
		thoughts = append(thoughts, fmt.Sprintf("Fired rule %q (priority %.2f)", winner.Name, winner.Priority))
		actions = append(actions, emitted...)
	}

	return fired, thoughts, actions, nil
}

func (e *Engine) eligibleRulesLocked(exclude map[string]bool, now time.Time) []*Rule {
	var eligible []*Rule
	for _, r := range e.rules {
		if exclude[r.ID] {
			continue
		}
		ok, err := r.Eligible(e.facts, now)
		if err != nil {
			logging.RulesDebug("eligibleRules: rule %s condition error: %v", r.ID, err)
			continue
		}
		if ok {
			eligible = append(eligible, r)
		}
	}
	return eligible
}

// resolveConflict picks one rule from the eligible set by the configured
// strategy. Ties break deterministically by rule id.
func (e *Engine) resolveConflict(eligible []*Rule) *Rule {
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })

	winner := eligible[0]
	switch e.opts.Strategy {
	case StrategySpecificity:
		for _, r := range eligible[1:] {
			if len(r.Conditions) > len(winner.Conditions) {
				winner = r
			}
		}
	case StrategyRecency:
		for _, r := range eligible[1:] {
			if e.lastSuccess[r.ID].After(e.lastSuccess[winner.ID]) {
				winner = r
			}
		}
	default: // StrategyPriority
		for _, r := range eligible[1:] {
			if r.Priority > winner.Priority {
				winner = r
			}
		}
	}

	logging.RulesDebug("resolveConflict: %d eligible, strategy=%s, winner=%s", len(eligible), e.opts.Strategy, winner.ID)
	return winner
}

// fireLocked executes a rule's actions against the fact base. The action
// switch is exhaustive; unknown variants are an error.
func (e *Engine) fireLocked(r *Rule, now time.Time) ([]types.AgentAction, error) {
	var emitted []types.AgentAction

	for _, a := range r.Actions {
		switch a.Type {
		case ActionAssert:
			conf := a.Confidence
			if conf == 0 {
				conf = r.Confidence
			}
			e.facts.Assert(Fact{Subject: a.Subject, Predicate: a.Predicate, Object: a.Object, Confidence: conf, Timestamp: now})

		case ActionRetract:
			e.facts.Retract(a.Subject, a.Predicate, a.Object)

		case ActionExecute:
			if a.Target == "" {
				return emitted, fmt.Errorf("rule %s: execute action without target", r.ID)
			}
			emitted = append(emitted, types.AgentAction{
				ID:     uuid.NewString(),
				Type:   types.ActionCommunication,
				Target: a.Target,
				Parameters: map[string]interface{}{
					"rule":       r.ID,
					"confidence": r.Confidence,
				},
				CreatedAt: now,
			})

		case ActionModify:
			matched := e.facts.Query(a.Subject, a.Predicate, a.Object)
			for _, f := range matched {
				if a.NewObject != "" {
					f.Object = a.NewObject
				}
				if a.ConfidenceDelta != 0 {
					f.Confidence = types.Clamp01(f.Confidence + a.ConfidenceDelta)
				}
				f.Timestamp = now
				e.facts.Assert(f)
			}

		default:
			return emitted, fmt.Errorf("rule %s: unknown action type %q", r.ID, a.Type)
		}
	}

	return emitted, nil
}

func (e *Engine) recordFiringLocked(rec FiringRecord) {
	e.firings = append(e.firings, rec)
	if len(e.firings) > e.opts.FiringLogSize {
		e.firings = e.firings[len(e.firings)-e.opts.FiringLogSize:]
	}
}

// Learn implements types.LearningCapable. A clearly positive reward raises
// the priority and confidence of rules fired successfully inside the reward
// window; a clearly negative reward lowers them. Bounds are enforced.
func (e *Engine) Learn(exp types.Experience) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	value := exp.Reward.Value
	if value <= 0.5 && value >= -0.5 {
		return nil
	}

	step := e.opts.LearningStep
	if value < 0 {
		step = -step
	}

	cutoff := time.Now().Add(-e.opts.RewardWindow)
	adjusted := 0
	seen := make(map[string]bool)
	for i := len(e.firings) - 1; i >= 0; i-- {
		rec := e.firings[i]
		if rec.At.Before(cutoff) {
			break
		}
		if !rec.Success || seen[rec.RuleID] {
			continue
		}
		seen[rec.RuleID] = true
		r, ok := e.rules[rec.RuleID]
		if !ok {
			continue
		}
		r.Priority = clampWeight(r.Priority + step)
		r.Confidence = clampWeight(r.Confidence + step)
		adjusted++
	}

	if adjusted > 0 {
		logging.Rules("Learn: reward=%.2f adjusted %d rules by %+.2f", value, adjusted, step)
	}
	return nil
}

// RuleWeights is the persistable learned state of one rule.
type RuleWeights struct {
	Priority   float64 `json:"priority"`
	Confidence float64 `json:"confidence"`
}

// ExportWeights returns every rule's learned weights keyed by rule id.
func (e *Engine) ExportWeights() map[string]RuleWeights {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]RuleWeights, len(e.rules))
	for id, r := range e.rules {
		out[id] = RuleWeights{Priority: r.Priority, Confidence: r.Confidence}
	}
	return out
}

// ImportWeights applies persisted weights to matching rules. Weights for
// rules that no longer exist are ignored.
func (e *Engine) ImportWeights(weights map[string]RuleWeights) {
	e.mu.Lock()
	defer e.mu.Unlock()

	applied := 0
	for id, w := range weights {
		r, ok := e.rules[id]
		if !ok {
			continue
		}
		r.Priority = clampWeight(w.Priority)
		r.Confidence = clampWeight(w.Confidence)
		applied++
	}
	logging.Rules("ImportWeights: applied %d of %d persisted weights", applied, len(weights))
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
