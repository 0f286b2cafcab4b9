// Package meta implements the meta-reasoner: paradigm scoring and selection,
// fallback execution, performance tracking, decision history, and the
// learning fan-out to every learning-capable engine.
package meta

import (
	"sync"
	"time"

	"noesis/internal/logging"
	"noesis/internal/types"
)

// performanceWindow bounds each paradigm's recent-record FIFO.
const performanceWindow = 20

// successThreshold is the accuracy above which an invocation counts as a
// success for the rate aggregate.
const successThreshold = 0.5

// Tracker owns the per-paradigm performance windows. Aggregates are
// recomputed from the window on every record; reads never block selection
// beyond the lock hold.
type Tracker struct {
	mu   sync.RWMutex
	perf map[string]*types.ParadigmPerformance
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{perf: make(map[string]*types.ParadigmPerformance)}
}

// Record appends one invocation record to the paradigm's window and
// recomputes the aggregates.
func (t *Tracker) Record(paradigm string, rec types.PerformanceRecord) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.perf[paradigm]
	if !ok {
		p = &types.ParadigmPerformance{Paradigm: paradigm}
		t.perf[paradigm] = p
	}

	p.Recent = append(p.Recent, rec)
	if len(p.Recent) > performanceWindow {
		p.Recent = p.Recent[len(p.Recent)-performanceWindow:]
	}
	p.UsageCount++
	p.LastUsed = rec.At

	var successes int
	var totalTime time.Duration
	var totalConfidence float64
	for _, r := range p.Recent {
		if r.Accuracy >= successThreshold {
			successes++
		}
		totalTime += r.ReasoningTime
		totalConfidence += r.Confidence
	}
	n := len(p.Recent)
	p.SuccessRate = float64(successes) / float64(n)
	p.AverageTime = totalTime / time.Duration(n)
	p.AverageConfidence = totalConfidence / float64(n)

	logging.PerformanceDebug("Record: %s success_rate=%.2f avg_conf=%.2f usage=%d",
		paradigm, p.SuccessRate, p.AverageConfidence, p.UsageCount)
}

// Performance returns a copy of a paradigm's aggregate, if any.
func (t *Tracker) Performance(paradigm string) (types.ParadigmPerformance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.perf[paradigm]
	if !ok {
		return types.ParadigmPerformance{}, false
	}
	return copyPerformance(p), true
}

// Multiplier returns the score multiplier 0.5 + 0.5 * successRate. Paradigms
// with no history get a neutral 1.0 so they are not penalized before use.
func (t *Tracker) Multiplier(paradigm string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.perf[paradigm]
	if !ok || len(p.Recent) == 0 {
		return 1.0
	}
	return 0.5 + 0.5*p.SuccessRate
}

// All returns copies of every tracked aggregate, keyed by paradigm.
func (t *Tracker) All() map[string]types.ParadigmPerformance {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]types.ParadigmPerformance, len(t.perf))
	for name, p := range t.perf {
		out[name] = copyPerformance(p)
	}
	return out
}

func copyPerformance(p *types.ParadigmPerformance) types.ParadigmPerformance {
	cp := *p
	cp.Recent = append([]types.PerformanceRecord(nil), p.Recent...)
	return cp
}

// efficiencyScore maps processing time onto (0,1]: instant work scores 1.0,
// one second scores 0.5.
func efficiencyScore(d time.Duration) float64 {
	return 1.0 / (1.0 + d.Seconds())
}
