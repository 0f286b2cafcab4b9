package rules

import (
	"fmt"
	"strings"
)

// ExprOp tags the closed set of expression operators. The expression
// mechanism is deliberately tiny: boolean combinators over fact predicates
// and string comparisons. There is no general-purpose evaluation, no
// identifier lookup, and no way to reach outside the fact base.
type ExprOp string

const (
	// OpAnd holds when every child holds.
	OpAnd ExprOp = "and"
	// OpOr holds when at least one child holds.
	OpOr ExprOp = "or"
	// OpNot holds when its single child does not.
	OpNot ExprOp = "not"
	// OpFactExists holds when a fact matches the triple pattern.
	OpFactExists ExprOp = "fact_exists"
	// OpObjectEquals holds when a matching fact's object equals Value.
	OpObjectEquals ExprOp = "object_equals"
	// OpObjectContains holds when a matching fact's object contains Value.
	OpObjectContains ExprOp = "object_contains"
	// OpConfidenceAtLeast holds when a matching fact's confidence >= Threshold.
	OpConfidenceAtLeast ExprOp = "confidence_at_least"
	// OpFactCountAtLeast holds when at least Count facts match the pattern.
	OpFactCountAtLeast ExprOp = "fact_count_at_least"
)

// Expr is a node of the restricted expression tree.
type Expr struct {
	Op   ExprOp  `json:"op" yaml:"op"`
	Args []*Expr `json:"args,omitempty" yaml:"args,omitempty"`

	Subject   string  `json:"subject,omitempty" yaml:"subject,omitempty"`
	Predicate string  `json:"predicate,omitempty" yaml:"predicate,omitempty"`
	Object    string  `json:"object,omitempty" yaml:"object,omitempty"`
	Value     string  `json:"value,omitempty" yaml:"value,omitempty"`
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Count     int     `json:"count,omitempty" yaml:"count,omitempty"`
}

// Evaluate walks the tree with an exhaustive operator switch. Unknown
// operators are an error, never silently false, so a malformed rule file
// surfaces at evaluation time.
func (e *Expr) Evaluate(fb *FactBase) (bool, error) {
	if e == nil {
		return false, fmt.Errorf("nil expression")
	}

	switch e.Op {
	case OpAnd:
		if len(e.Args) == 0 {
			return false, fmt.Errorf("and requires at least one argument")
		}
		for _, arg := range e.Args {
			ok, err := arg.Evaluate(fb)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case OpOr:
		if len(e.Args) == 0 {
			return false, fmt.Errorf("or requires at least one argument")
		}
		for _, arg := range e.Args {
			ok, err := arg.Evaluate(fb)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case OpNot:
		if len(e.Args) != 1 {
			return false, fmt.Errorf("not requires exactly one argument")
		}
		ok, err := e.Args[0].Evaluate(fb)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case OpFactExists:
		return fb.Exists(e.Subject, e.Predicate, e.Object), nil

	case OpObjectEquals:
		for _, f := range fb.Query(e.Subject, e.Predicate, "") {
			if strings.EqualFold(f.Object, e.Value) {
				return true, nil
			}
		}
		return false, nil

	case OpObjectContains:
		needle := strings.ToLower(e.Value)
		for _, f := range fb.Query(e.Subject, e.Predicate, "") {
			if strings.Contains(strings.ToLower(f.Object), needle) {
				return true, nil
			}
		}
		return false, nil

	case OpConfidenceAtLeast:
		for _, f := range fb.Query(e.Subject, e.Predicate, e.Object) {
			if f.Confidence >= e.Threshold {
				return true, nil
			}
		}
		return false, nil

	case OpFactCountAtLeast:
		return len(fb.Query(e.Subject, e.Predicate, e.Object)) >= e.Count, nil

	default:
		return false, fmt.Errorf("unknown expression operator %q", e.Op)
	}
}

// Validate checks the tree shape without evaluating it. Used when loading
// rule files so bad expressions fail at load time.
func (e *Expr) Validate() error {
	if e == nil {
		return fmt.Errorf("nil expression")
	}
	switch e.Op {
	case OpAnd, OpOr:
		if len(e.Args) == 0 {
			return fmt.Errorf("%s requires at least one argument", e.Op)
		}
		for _, arg := range e.Args {
			if err := arg.Validate(); err != nil {
				return err
			}
		}
		return nil
	case OpNot:
		if len(e.Args) != 1 {
			return fmt.Errorf("not requires exactly one argument")
		}
		return e.Args[0].Validate()
	case OpFactExists, OpObjectEquals, OpObjectContains:
		if e.Predicate == "" && e.Subject == "" {
			return fmt.Errorf("%s requires a subject or predicate", e.Op)
		}
		return nil
	case OpConfidenceAtLeast:
		if e.Threshold < 0 || e.Threshold > 1 {
			return fmt.Errorf("confidence_at_least threshold must be in [0,1]")
		}
		return nil
	case OpFactCountAtLeast:
		if e.Count < 1 {
			return fmt.Errorf("fact_count_at_least count must be >= 1")
		}
		return nil
	default:
		return fmt.Errorf("unknown expression operator %q", e.Op)
	}
}
