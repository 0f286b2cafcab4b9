// Package rules implements the forward-chaining rule engine: a mutable fact
// base, a rule set with tagged condition/action variants, conflict resolution
// (priority, specificity, recency), and reward-driven weight learning.
package rules

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"noesis/internal/logging"
)

// Fact is an atomic subject-predicate-object knowledge unit.
type Fact struct {
	ID         string    `json:"id" yaml:"id"`
	Subject    string    `json:"subject" yaml:"subject"`
	Predicate  string    `json:"predicate" yaml:"predicate"`
	Object     string    `json:"object" yaml:"object"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
	Timestamp  time.Time `json:"timestamp" yaml:"-"`
}

// Key returns the canonical subject|predicate|object identity of the fact.
func (f Fact) Key() string {
	return f.Subject + "|" + f.Predicate + "|" + f.Object
}

func (f Fact) String() string {
	return fmt.Sprintf("(%s %s %s)@%.2f", f.Subject, f.Predicate, f.Object, f.Confidence)
}

// FactBase is the mutable fact store. Facts are keyed by id and mutated only
// through Assert/Retract.
type FactBase struct {
	mu    sync.RWMutex
	facts map[string]Fact
}

// NewFactBase creates an empty fact base.
func NewFactBase() *FactBase {
	return &FactBase{facts: make(map[string]Fact)}
}

// Assert adds a fact. A fact with the same subject/predicate/object replaces
// the existing one (confidence and timestamp refresh); otherwise a new id is
// minted. Returns the stored fact.
func (fb *FactBase) Assert(f Fact) Fact {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	if f.Confidence <= 0 {
		f.Confidence = 1.0
	}

	// Replace on identical triple
	for id, existing := range fb.facts {
		if existing.Key() == f.Key() {
			f.ID = id
			fb.facts[id] = f
			logging.RulesDebug("Assert: refreshed fact %s", f)
			return f
		}
	}

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	fb.facts[f.ID] = f
	logging.RulesDebug("Assert: new fact %s", f)
	return f
}

// Retract removes every fact matching the pattern. Empty or "*" fields match
// anything. Returns the number of facts removed.
func (fb *FactBase) Retract(subject, predicate, object string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	removed := 0
	for id, f := range fb.facts {
		if matchField(subject, f.Subject) && matchField(predicate, f.Predicate) && matchField(object, f.Object) {
			delete(fb.facts, id)
			removed++
		}
	}
	if removed > 0 {
		logging.RulesDebug("Retract: removed %d facts matching (%s %s %s)", removed, subject, predicate, object)
	}
	return removed
}

// Query returns every fact matching the pattern. Empty or "*" fields match
// anything.
func (fb *FactBase) Query(subject, predicate, object string) []Fact {
	fb.mu.RLock()
	defer fb.mu.RUnlock()

	var out []Fact
	for _, f := range fb.facts {
		if matchField(subject, f.Subject) && matchField(predicate, f.Predicate) && matchField(object, f.Object) {
			out = append(out, f)
		}
	}
	return out
}

// Exists reports whether any fact matches the pattern.
func (fb *FactBase) Exists(subject, predicate, object string) bool {
	return len(fb.Query(subject, predicate, object)) > 0
}

// Get returns the fact with the given id.
func (fb *FactBase) Get(id string) (Fact, bool) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	f, ok := fb.facts[id]
	return f, ok
}

// Len returns the number of stored facts.
func (fb *FactBase) Len() int {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return len(fb.facts)
}

// All returns a copy of every stored fact.
func (fb *FactBase) All() []Fact {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	out := make([]Fact, 0, len(fb.facts))
	for _, f := range fb.facts {
		out = append(out, f)
	}
	return out
}

// Clear removes all facts.
func (fb *FactBase) Clear() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.facts = make(map[string]Fact)
}

func matchField(pattern, value string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	return strings.EqualFold(pattern, value)
}
