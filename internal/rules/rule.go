package rules

import (
	"fmt"
	"time"
)

// Weight bounds for priority and confidence. Learning adjusts weights only
// inside these bounds.
const (
	WeightMin = 0.1
	WeightMax = 1.0
)

// ConditionType tags the closed set of condition variants.
type ConditionType string

const (
	// ConditionFact requires an exact subject/predicate/object fact.
	ConditionFact ConditionType = "fact"
	// ConditionPattern requires any fact matching a wildcard pattern.
	ConditionPattern ConditionType = "pattern"
	// ConditionExpr evaluates a restricted expression against the fact base.
	ConditionExpr ConditionType = "expr"
	// ConditionTemporal requires a matching fact asserted within a window.
	ConditionTemporal ConditionType = "temporal"
)

// Condition is one variant of the closed condition set. Exactly the fields
// for its type are meaningful; Evaluate switches exhaustively on Type.
type Condition struct {
	Type ConditionType `json:"type" yaml:"type"`

	// Fact / Pattern / Temporal: the triple pattern ("" or "*" wildcards
	// are allowed for Pattern and Temporal).
	Subject   string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Predicate string `json:"predicate,omitempty" yaml:"predicate,omitempty"`
	Object    string `json:"object,omitempty" yaml:"object,omitempty"`

	// MinConfidence filters matched facts (0 means no filter).
	MinConfidence float64 `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`

	// Expr: the restricted expression tree.
	Expr *Expr `json:"expr,omitempty" yaml:"expr,omitempty"`

	// Temporal: how recent the fact must be.
	Window time.Duration `json:"window,omitempty" yaml:"window,omitempty"`
}

// Evaluate reports whether the condition holds against the fact base at now.
func (c Condition) Evaluate(fb *FactBase, now time.Time) (bool, error) {
	switch c.Type {
	case ConditionFact:
		return c.matchWithConfidence(fb, false, now), nil
	case ConditionPattern:
		return c.matchWithConfidence(fb, false, now), nil
	case ConditionExpr:
		if c.Expr == nil {
			return false, fmt.Errorf("expr condition without expression")
		}
		return c.Expr.Evaluate(fb)
	case ConditionTemporal:
		return c.matchWithConfidence(fb, true, now), nil
	default:
		return false, fmt.Errorf("unknown condition type %q", c.Type)
	}
}

func (c Condition) matchWithConfidence(fb *FactBase, temporal bool, now time.Time) bool {
	for _, f := range fb.Query(c.Subject, c.Predicate, c.Object) {
		if c.MinConfidence > 0 && f.Confidence < c.MinConfidence {
			continue
		}
		if temporal && c.Window > 0 && now.Sub(f.Timestamp) > c.Window {
			continue
		}
		return true
	}
	return false
}

// RuleActionType tags the closed set of rule-action variants.
type RuleActionType string

const (
	// ActionAssert adds a fact to the fact base.
	ActionAssert RuleActionType = "assert"
	// ActionRetract removes matching facts from the fact base.
	ActionRetract RuleActionType = "retract"
	// ActionExecute emits an external agent action with the given target.
	ActionExecute RuleActionType = "execute"
	// ActionModify adjusts the object or confidence of matching facts.
	ActionModify RuleActionType = "modify"
)

// RuleAction is one variant of the closed action set.
type RuleAction struct {
	Type RuleActionType `json:"type" yaml:"type"`

	// Assert / Retract / Modify: the triple (pattern for retract/modify).
	Subject   string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Predicate string `json:"predicate,omitempty" yaml:"predicate,omitempty"`
	Object    string `json:"object,omitempty" yaml:"object,omitempty"`

	// Assert: confidence of the new fact.
	Confidence float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`

	// Execute: the external action target (becomes AgentAction.Target).
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// Modify: replacement object and/or confidence delta.
	NewObject       string  `json:"new_object,omitempty" yaml:"new_object,omitempty"`
	ConfidenceDelta float64 `json:"confidence_delta,omitempty" yaml:"confidence_delta,omitempty"`
}

// Rule couples conditions with actions. A rule fires only when every
// condition holds. Priority and confidence live in [WeightMin, WeightMax] and
// are adjusted only by learning.
type Rule struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	Conditions []Condition  `json:"conditions" yaml:"conditions"`
	Actions    []RuleAction `json:"actions" yaml:"actions"`
	Priority   float64      `json:"priority" yaml:"priority"`
	Confidence float64      `json:"confidence" yaml:"confidence"`
}

// Normalize clamps weights into bounds and fills defaults.
func (r *Rule) Normalize() {
	if r.ID == "" {
		r.ID = r.Name
	}
	if r.Priority == 0 {
		r.Priority = 0.5
	}
	if r.Confidence == 0 {
		r.Confidence = 0.5
	}
	r.Priority = clampWeight(r.Priority)
	r.Confidence = clampWeight(r.Confidence)
}

// Eligible reports whether all conditions hold.
func (r *Rule) Eligible(fb *FactBase, now time.Time) (bool, error) {
	for _, c := range r.Conditions {
		ok, err := c.Evaluate(fb, now)
		if err != nil {
			return false, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		if !ok {
			return false, nil
		}
	}
	return len(r.Conditions) > 0, nil
}

func clampWeight(v float64) float64 {
	if v < WeightMin {
		return WeightMin
	}
	if v > WeightMax {
		return WeightMax
	}
	return v
}
