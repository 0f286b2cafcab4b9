package rules

import "time"

// DefaultRules returns the built-in rule set. These cover the basic
// conversational reflexes an agent needs before any rule files are loaded.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			ID:   "respond_to_question",
			Name: "respond_to_question",
			Conditions: []Condition{
				{Type: ConditionFact, Subject: "message", Predicate: "is_question", Object: "true"},
			},
			Actions: []RuleAction{
				{Type: ActionExecute, Target: "respond"},
				{Type: ActionAssert, Subject: "agent", Predicate: "responded", Object: "true"},
			},
			Priority:   0.8,
			Confidence: 0.9,
		},
		{
			ID:   "acknowledge_command",
			Name: "acknowledge_command",
			Conditions: []Condition{
				{Type: ConditionFact, Subject: "message", Predicate: "is_command", Object: "true"},
				{Type: ConditionExpr, Expr: &Expr{
					Op:   OpNot,
					Args: []*Expr{{Op: OpFactExists, Subject: "agent", Predicate: "responded", Object: "true"}},
				}},
			},
			Actions: []RuleAction{
				{Type: ActionExecute, Target: "acknowledge"},
				{Type: ActionAssert, Subject: "agent", Predicate: "responded", Object: "true"},
			},
			Priority:   0.7,
			Confidence: 0.8,
		},
		{
			ID:   "greet_on_mention",
			Name: "greet_on_mention",
			Conditions: []Condition{
				{Type: ConditionTemporal, Subject: "agent", Predicate: "mentioned", Object: "true", Window: 30 * time.Second},
				{Type: ConditionExpr, Expr: &Expr{
					Op:   OpNot,
					Args: []*Expr{{Op: OpFactExists, Subject: "agent", Predicate: "responded", Object: "true"}},
				}},
			},
			Actions: []RuleAction{
				{Type: ActionExecute, Target: "greet"},
				{Type: ActionAssert, Subject: "agent", Predicate: "responded", Object: "true"},
			},
			Priority:   0.6,
			Confidence: 0.7,
		},
		{
			ID:   "pursue_achievable_goal",
			Name: "pursue_achievable_goal",
			Conditions: []Condition{
				{Type: ConditionFact, Subject: "goal", Predicate: "achievable", Object: "true"},
			},
			Actions: []RuleAction{
				{Type: ActionExecute, Target: "pursue_goal"},
				{Type: ActionAssert, Subject: "goal", Predicate: "pursued", Object: "true"},
			},
			Priority:   0.5,
			Confidence: 0.7,
		},
		{
			ID:   "clear_stale_response_flag",
			Name: "clear_stale_response_flag",
			Conditions: []Condition{
				{Type: ConditionFact, Subject: "agent", Predicate: "responded", Object: "true"},
				{Type: ConditionExpr, Expr: &Expr{
					Op:   OpNot,
					Args: []*Expr{{Op: OpFactExists, Subject: "message", Predicate: "is_question", Object: "true"}},
				}},
				{Type: ConditionExpr, Expr: &Expr{
					Op:   OpNot,
					Args: []*Expr{{Op: OpFactExists, Subject: "message", Predicate: "is_command", Object: "true"}},
				}},
			},
			Actions: []RuleAction{
				{Type: ActionRetract, Subject: "agent", Predicate: "responded", Object: "true"},
			},
			Priority:   0.2,
			Confidence: 0.5,
		},
	}
}
