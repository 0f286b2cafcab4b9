package meta

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"noesis/internal/logging"
	"noesis/internal/perception"
	"noesis/internal/types"
)

// ErrNoParadigms is returned when a reasoner is constructed with nothing
// registered.
var ErrNoParadigms = errors.New("no reasoning paradigms registered")

// ErrParadigmNotRegistered is returned when a named paradigm is missing.
var ErrParadigmNotRegistered = errors.New("paradigm not registered")

// ErrNoViableOption is returned by Decide when the option list is empty.
var ErrNoViableOption = errors.New("no viable option")

// GoalPlanner is the capability interface for engines that can build plans
// from goal strings, checked by interface assertion like LearningCapable.
type GoalPlanner interface {
	BuildPlan(ctx context.Context, goal string, priority float64) (*types.Plan, error)
}

// Options configures the meta-reasoner.
type Options struct {
	// MaxFallbacks bounds fallback retries after the primary paradigm fails.
	MaxFallbacks int
	// FallbackPenalty multiplies result confidence once per fallback hop.
	FallbackPenalty float64
	// HistoryCap bounds the FIFO decision history.
	HistoryCap int
	// DeliberativeTimeout bounds the slow path before it degrades to the
	// fast paradigm.
	DeliberativeTimeout time.Duration
	// Profiles overrides the default scoring configuration.
	Profiles map[string]ScoringProfile
}

// DefaultOptions returns the standard meta-reasoner configuration.
func DefaultOptions() Options {
	return Options{
		MaxFallbacks:        2,
		FallbackPenalty:     0.8,
		HistoryCap:          100,
		DeliberativeTimeout: 2 * time.Second,
	}
}

// Reasoner orchestrates the registered paradigms: it analyzes context,
// scores and selects a paradigm, delegates, retries fallbacks on failure,
// tracks performance, and fans learning signals out to every
// learning-capable engine. One reasoner instance serves one agent.
type Reasoner struct {
	mu        sync.Mutex
	paradigms map[string]types.ReasoningParadigm
	analyzer  *perception.Analyzer
	selector  *Selector
	tracker   *Tracker
	history   []types.MetaDecision
	opts      Options
}

// NewReasoner creates a meta-reasoner over the given paradigms. At least one
// paradigm is required; a missing or empty set is a configuration error.
func NewReasoner(opts Options, paradigms ...types.ReasoningParadigm) (*Reasoner, error) {
	if len(paradigms) == 0 {
		return nil, ErrNoParadigms
	}
	if opts.MaxFallbacks <= 0 {
		opts.MaxFallbacks = 2
	}
	if opts.FallbackPenalty <= 0 || opts.FallbackPenalty >= 1 {
		opts.FallbackPenalty = 0.8
	}
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = 100
	}
	if opts.DeliberativeTimeout <= 0 {
		opts.DeliberativeTimeout = 2 * time.Second
	}

	registry := make(map[string]types.ReasoningParadigm, len(paradigms))
	for _, p := range paradigms {
		if p == nil || p.Name() == "" {
			return nil, fmt.Errorf("invalid paradigm registration")
		}
		if _, dup := registry[p.Name()]; dup {
			return nil, fmt.Errorf("duplicate paradigm %q", p.Name())
		}
		registry[p.Name()] = p
	}

	tracker := NewTracker()
	r := &Reasoner{
		paradigms: registry,
		analyzer:  perception.NewAnalyzer(),
		selector:  NewSelector(opts.Profiles, tracker),
		tracker:   tracker,
		opts:      opts,
	}
	logging.Meta("NewReasoner: %d paradigms registered", len(registry))
	return r, nil
}

// Paradigms returns the registered paradigm names.
func (r *Reasoner) Paradigms() []string {
	names := make([]string, 0, len(r.paradigms))
	for name := range r.paradigms {
		names = append(names, name)
	}
	return names
}

// SelectParadigm scores every registered paradigm against the analysis and
// returns the winning decision with its ranked fallbacks and reasoning trail.
func (r *Reasoner) SelectParadigm(analysis types.ContextAnalysis) types.MetaDecision {
	ranked := r.selector.Rank(r.Paradigms(), analysis)
	winner := ranked[0]

	trail := append([]string(nil), winner.Trail...)
	trail = append(trail, fmt.Sprintf("selected %s with score %.3f", winner.Name, winner.Score))

	fallbacks := make([]string, 0, len(ranked)-1)
	for _, s := range ranked[1:] {
		fallbacks = append(fallbacks, s.Name)
		trail = append(trail, fmt.Sprintf("fallback %s scored %.3f", s.Name, s.Score))
	}
	if len(fallbacks) > r.opts.MaxFallbacks {
		fallbacks = fallbacks[:r.opts.MaxFallbacks]
	}

	return types.MetaDecision{
		ID:                uuid.NewString(),
		SelectedParadigm:  winner.Name,
		Confidence:        types.Clamp01(winner.Score),
		ReasoningTrail:    trail,
		FallbackParadigms: fallbacks,
		Analysis:          analysis,
		CreatedAt:         time.Now(),
	}
}

// Think runs one full meta-reasoning pass: analyze, select, delegate, and
// fall back on failure. Engine errors never propagate while any fallback
// remains; if everything fails the caller gets a degraded low-confidence
// result instead of an error.
func (r *Reasoner) Think(ctx context.Context, tc types.ThoughtContext) (*types.ThoughtResult, error) {
	timer := logging.StartTimer(logging.CategoryMeta, "Think")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analysis := r.analyzer.Analyze(tc)
	decision := r.SelectParadigm(analysis)
	r.archiveDecision(decision)

	order := append([]string{decision.SelectedParadigm}, decision.FallbackParadigms...)

	var errs error
	for hop, name := range order {
		engine := r.paradigms[name]
		start := time.Now()
		result, err := engine.Think(ctx, tc, analysis)
		elapsed := time.Since(start)

		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			r.tracker.Record(name, types.PerformanceRecord{
				Efficiency:    efficiencyScore(elapsed),
				ReasoningTime: elapsed,
				At:            time.Now(),
			})
			logging.Meta("Think: %s failed (%v), trying next fallback", name, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		for i := 0; i < hop; i++ {
			result.Confidence *= r.opts.FallbackPenalty
		}
		result.Confidence = types.Clamp01(result.Confidence)

		r.recordSuccess(name, result, elapsed)
		logging.Meta("Think: %s answered with confidence %.2f (hop %d)", name, result.Confidence, hop)
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Every paradigm failed. Degrade rather than propagate.
	logging.MetaDebug("Think: all paradigms failed: %v", errs)
	return &types.ThoughtResult{
		Thoughts:   []string{fmt.Sprintf("all reasoning paradigms failed: %v", errs)},
		Confidence: 0.05,
	}, nil
}

// ThinkHybrid runs the two best-scoring paradigms concurrently and merges
// their results by confidence-weighted union.
func (r *Reasoner) ThinkHybrid(ctx context.Context, tc types.ThoughtContext) (*types.ThoughtResult, error) {
	timer := logging.StartTimer(logging.CategoryMeta, "ThinkHybrid")
	defer timer.Stop()

	analysis := r.analyzer.Analyze(tc)
	ranked := r.selector.Rank(r.Paradigms(), analysis)
	if len(ranked) < 2 {
		return r.Think(ctx, tc)
	}

	first := r.paradigms[ranked[0].Name]
	second := r.paradigms[ranked[1].Name]

	var (
		a, b               *types.ThoughtResult
		aElapsed, bElapsed time.Duration
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var err error
		a, err = first.Think(gctx, tc, analysis)
		aElapsed = time.Since(start)
		return err
	})
	g.Go(func() error {
		start := time.Now()
		var err error
		b, err = second.Think(gctx, tc, analysis)
		bElapsed = time.Since(start)
		return err
	})
	if err := g.Wait(); err != nil {
		// One branch failing degrades to the normal fallback path.
		return r.Think(ctx, tc)
	}

	r.recordSuccess(first.Name(), a, aElapsed)
	r.recordSuccess(second.Name(), b, bElapsed)

	merged := mergeResults(a, b)
	merged.Thoughts = append([]string{
		fmt.Sprintf("hybrid: merged %s and %s", first.Name(), second.Name()),
	}, merged.Thoughts...)

	decision := r.SelectParadigm(analysis)
	decision.SelectedParadigm = fmt.Sprintf("hybrid(%s+%s)", first.Name(), second.Name())
	decision.Confidence = merged.Confidence
	r.archiveDecision(decision)

	logging.Meta("ThinkHybrid: %s + %s merged confidence %.2f", first.Name(), second.Name(), merged.Confidence)
	return merged, nil
}

// ThinkDeliberative races the selected paradigm against the deliberative
// deadline. If the deadline fires first, the rule-based fast path answers
// instead with a confidence penalty.
func (r *Reasoner) ThinkDeliberative(ctx context.Context, tc types.ThoughtContext) (*types.ThoughtResult, error) {
	timer := logging.StartTimer(logging.CategoryMeta, "ThinkDeliberative")
	defer timer.Stop()

	analysis := r.analyzer.Analyze(tc)
	decision := r.SelectParadigm(analysis)

	slowCtx, cancel := context.WithTimeout(ctx, r.opts.DeliberativeTimeout)
	defer cancel()

	type outcome struct {
		result  *types.ThoughtResult
		err     error
		elapsed time.Duration
	}
	ch := make(chan outcome, 1)
	go func() {
		start := time.Now()
		res, err := r.paradigms[decision.SelectedParadigm].Think(slowCtx, tc, analysis)
		ch <- outcome{res, err, time.Since(start)}
	}()

	select {
	case out := <-ch:
		if out.err == nil {
			r.recordSuccess(decision.SelectedParadigm, out.result, out.elapsed)
			r.archiveDecision(decision)
			return out.result, nil
		}
		r.tracker.Record(decision.SelectedParadigm, types.PerformanceRecord{
			Efficiency:    efficiencyScore(out.elapsed),
			ReasoningTime: out.elapsed,
			At:            time.Now(),
		})
	case <-slowCtx.Done():
	}

	// Fast path: first fallback, penalized. The decision is archived only
	// once the answering paradigm is known, so the history names the engine
	// that actually produced the result.
	if len(decision.FallbackParadigms) == 0 {
		return r.Think(ctx, tc)
	}
	fast := r.paradigms[decision.FallbackParadigms[0]]
	start := time.Now()
	result, err := fast.Think(ctx, tc, analysis)
	if err != nil {
		return r.Think(ctx, tc)
	}
	result.Confidence = types.Clamp01(result.Confidence * r.opts.FallbackPenalty)
	result.Thoughts = append(result.Thoughts, "deliberative path timed out, fast path answered")
	r.recordSuccess(fast.Name(), result, time.Since(start))

	decision.ReasoningTrail = append(decision.ReasoningTrail,
		fmt.Sprintf("deliberative deadline fired, %s answered", fast.Name()))
	decision.SelectedParadigm = fast.Name()
	decision.Confidence = result.Confidence
	r.archiveDecision(decision)

	logging.Meta("ThinkDeliberative: degraded to %s with penalty", fast.Name())
	return result, nil
}

// Plan delegates to the first registered paradigm that can build plans.
func (r *Reasoner) Plan(ctx context.Context, goal string) (*types.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analysis := r.analyzer.Analyze(types.ThoughtContext{Goal: goal})
	for _, name := range r.Paradigms() {
		gp, ok := r.paradigms[name].(GoalPlanner)
		if !ok {
			continue
		}
		plan, err := gp.BuildPlan(ctx, goal, analysis.TimeConstraint)
		if err != nil {
			return nil, fmt.Errorf("plan %q: %w", goal, err)
		}
		return plan, nil
	}
	return nil, fmt.Errorf("plan %q: %w", "planning", ErrParadigmNotRegistered)
}

// Decide returns the highest-utility member of the option list, unchanged.
// Ties resolve to the more confident option, then to input order.
func (r *Reasoner) Decide(options []types.Decision) (types.Decision, error) {
	if len(options) == 0 {
		return types.Decision{}, ErrNoViableOption
	}

	best := options[0]
	for _, d := range options[1:] {
		if d.Utility > best.Utility || (d.Utility == best.Utility && d.Confidence > best.Confidence) {
			best = d
		}
	}
	logging.MetaDebug("Decide: chose %q (utility %.2f) of %d options", best.Label, best.Utility, len(options))
	return best, nil
}

// Learn fans the experience out to every learning-capable engine. Errors are
// collected, not short-circuited: every engine sees every experience.
func (r *Reasoner) Learn(exp types.Experience) error {
	var errs error
	for name, p := range r.paradigms {
		lc, ok := p.(types.LearningCapable)
		if !ok {
			continue
		}
		if err := lc.Learn(exp); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}

// Stats is the observability snapshot exposed by GetStats.
type Stats struct {
	Paradigms               map[string]types.ParadigmPerformance `json:"paradigms"`
	Decisions               int                                  `json:"decisions"`
	MeanSelectionConfidence float64                              `json:"mean_selection_confidence"`
}

// GetStats returns per-paradigm usage and success aggregates plus decision
// history summary.
func (r *Reasoner) GetStats() Stats {
	r.mu.Lock()
	history := append([]types.MetaDecision(nil), r.history...)
	r.mu.Unlock()

	var total float64
	for _, d := range history {
		total += d.Confidence
	}
	mean := 0.0
	if len(history) > 0 {
		mean = total / float64(len(history))
	}

	return Stats{
		Paradigms:               r.tracker.All(),
		Decisions:               len(history),
		MeanSelectionConfidence: mean,
	}
}

// History returns a copy of the decision history, newest last.
func (r *Reasoner) History() []types.MetaDecision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.MetaDecision(nil), r.history...)
}

// Tracker exposes the performance tracker for persistence and tests.
func (r *Reasoner) Tracker() *Tracker { return r.tracker }

// Analyze exposes the context analyzer's feature extraction.
func (r *Reasoner) Analyze(tc types.ThoughtContext) types.ContextAnalysis {
	return r.analyzer.Analyze(tc)
}

// recordSuccess appends a completed invocation to the paradigm's window.
func (r *Reasoner) recordSuccess(name string, result *types.ThoughtResult, elapsed time.Duration) {
	r.tracker.Record(name, types.PerformanceRecord{
		Accuracy:      result.Confidence,
		Efficiency:    efficiencyScore(elapsed),
		Confidence:    result.Confidence,
		ReasoningTime: elapsed,
		At:            time.Now(),
	})
}

func (r *Reasoner) archiveDecision(d types.MetaDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, d)
	if len(r.history) > r.opts.HistoryCap {
		r.history = r.history[len(r.history)-r.opts.HistoryCap:]
	}
}

func mergeResults(a, b *types.ThoughtResult) *types.ThoughtResult {
	// Order by confidence so the stronger branch leads the union.
	if b.Confidence > a.Confidence {
		a, b = b, a
	}

	merged := &types.ThoughtResult{
		Thoughts: append(append([]string(nil), a.Thoughts...), b.Thoughts...),
		Actions:  append(append([]types.AgentAction(nil), a.Actions...), b.Actions...),
		Memories: append(append([]types.MemoryRecord(nil), a.Memories...), b.Memories...),
		Emotions: a.Emotions,
	}
	if merged.Emotions == nil {
		merged.Emotions = b.Emotions
	}

	total := a.Confidence + b.Confidence
	if total > 0 {
		merged.Confidence = types.Clamp01((a.Confidence*a.Confidence + b.Confidence*b.Confidence) / total)
	}
	return merged
}
