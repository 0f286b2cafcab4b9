// Package rl implements the reinforcement-learning engine: a tabular
// Q-learning agent with epsilon-greedy action selection, geometric
// exploration decay, and a bounded FIFO experience buffer.
package rl

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"noesis/internal/logging"
	"noesis/internal/types"
)

// Options configures the Q-learning agent.
type Options struct {
	// LearningRate is alpha in the TD update.
	LearningRate float64
	// DiscountFactor is gamma.
	DiscountFactor float64
	// Epsilon is the initial exploration probability.
	Epsilon float64
	// EpsilonMin is the exploration floor.
	EpsilonMin float64
	// EpsilonDecay multiplies epsilon after every update.
	EpsilonDecay float64
	// BufferSize bounds the FIFO experience buffer.
	BufferSize int
	// Seed fixes the exploration RNG; 0 means nondeterministic.
	Seed int64
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		LearningRate:   0.1,
		DiscountFactor: 0.9,
		Epsilon:        0.3,
		EpsilonMin:     0.01,
		EpsilonDecay:   0.995,
		BufferSize:     1000,
	}
}

// Agent is the tabular Q-learner. The Q-table maps state keys to
// action-value maps; all access is serialized behind mu.
type Agent struct {
	mu      sync.Mutex
	qtable  map[string]map[string]float64
	opts    Options
	epsilon float64
	rng     *rand.Rand
	buffer  []types.Experience
	updates int64
}

// NewAgent creates a Q-learning agent.
func NewAgent(opts Options) *Agent {
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.1
	}
	if opts.DiscountFactor <= 0 || opts.DiscountFactor >= 1 {
		opts.DiscountFactor = 0.9
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = 0.3
	}
	if opts.EpsilonMin <= 0 {
		opts.EpsilonMin = 0.01
	}
	if opts.EpsilonDecay <= 0 || opts.EpsilonDecay > 1 {
		opts.EpsilonDecay = 0.995
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}

	var rng *rand.Rand
	if opts.Seed != 0 {
		rng = rand.New(rand.NewSource(opts.Seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	return &Agent{
		qtable:  make(map[string]map[string]float64),
		opts:    opts,
		epsilon: opts.Epsilon,
		rng:     rng,
	}
}

// StateKey serializes a feature vector to a table key. Features are
// discretized to one decimal place and sorted by name so the key is stable.
func StateKey(features map[string]float64) string {
	if len(features) == 0 {
		return "empty"
	}
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%.1f", name, features[name]))
	}
	return strings.Join(parts, "|")
}

// SelectAction picks an action epsilon-greedily. With probability epsilon it
// explores uniformly; otherwise it exploits the best-known Q-value, ties
// broken by first-seen (sorted) order. Returns the action and whether the
// choice was exploratory.
func (a *Agent) SelectAction(stateKey string, available []string) (string, bool, error) {
	if len(available) == 0 {
		return "", false, fmt.Errorf("no available actions")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rng.Float64() < a.epsilon {
		choice := available[a.rng.Intn(len(available))]
		logging.RLDebug("SelectAction: explore %s (epsilon=%.3f)", choice, a.epsilon)
		return choice, true, nil
	}

	sorted := append([]string(nil), available...)
	sort.Strings(sorted)

	best := sorted[0]
	bestQ := a.qValueLocked(stateKey, best)
	for _, action := range sorted[1:] {
		if q := a.qValueLocked(stateKey, action); q > bestQ {
			best, bestQ = action, q
		}
	}
	logging.RLDebug("SelectAction: exploit %s (q=%.3f)", best, bestQ)
	return best, false, nil
}

// ActionConfidence is the normalized rank of the chosen action's Q-value
// among all available actions: 1.0 when strictly best, 0.5 when all tie.
func (a *Agent) ActionConfidence(stateKey, chosen string, available []string) float64 {
	if len(available) <= 1 {
		return 0.5
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	chosenQ := a.qValueLocked(stateKey, chosen)
	below, ties := 0, 0
	for _, action := range available {
		if action == chosen {
			continue
		}
		q := a.qValueLocked(stateKey, action)
		switch {
		case q < chosenQ:
			below++
		case q == chosenQ:
			ties++
		}
	}

	others := float64(len(available) - 1)
	// Ties contribute half, so an all-tied table lands at 0.5.
	return (float64(below) + float64(ties)/2) / others
}

// Update applies the temporal-difference rule for one experience and decays
// epsilon geometrically toward the floor.
func (a *Agent) Update(exp types.Experience) {
	stateKey := StateKey(floatFeatures(exp.State))
	nextKey := StateKey(floatFeatures(exp.NextState))

	a.mu.Lock()
	defer a.mu.Unlock()

	current := a.qValueLocked(stateKey, exp.Action)

	var futureBest float64
	if !exp.Done {
		futureBest = a.maxQLocked(nextKey)
	}

	target := exp.Reward.Value + a.opts.DiscountFactor*futureBest
	updated := current + a.opts.LearningRate*(target-current)
	a.setQLocked(stateKey, exp.Action, updated)

	a.epsilon *= a.opts.EpsilonDecay
	if a.epsilon < a.opts.EpsilonMin {
		a.epsilon = a.opts.EpsilonMin
	}

	a.buffer = append(a.buffer, exp)
	if len(a.buffer) > a.opts.BufferSize {
		a.buffer = a.buffer[len(a.buffer)-a.opts.BufferSize:]
	}
	a.updates++

	logging.RLDebug("Update: Q(%s,%s) %.3f -> %.3f (r=%.2f, epsilon=%.3f)",
		stateKey, exp.Action, current, updated, exp.Reward.Value, a.epsilon)
}

// Epsilon returns the current exploration probability.
func (a *Agent) Epsilon() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epsilon
}

// Updates returns how many TD updates have been applied.
func (a *Agent) Updates() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.updates
}

// BufferLen returns the experience buffer length.
func (a *Agent) BufferLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer)
}

// QValue returns Q(state, action).
func (a *Agent) QValue(stateKey, action string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.qValueLocked(stateKey, action)
}

// Snapshot returns a deep copy of the Q-table for persistence.
func (a *Agent) Snapshot() map[string]map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]map[string]float64, len(a.qtable))
	for s, actions := range a.qtable {
		cp := make(map[string]float64, len(actions))
		for act, q := range actions {
			cp[act] = q
		}
		out[s] = cp
	}
	return out
}

// Restore replaces the Q-table from a persisted snapshot.
func (a *Agent) Restore(table map[string]map[string]float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.qtable = make(map[string]map[string]float64, len(table))
	for s, actions := range table {
		cp := make(map[string]float64, len(actions))
		for act, q := range actions {
			cp[act] = q
		}
		a.qtable[s] = cp
	}
	logging.RL("Restore: loaded Q-table with %d states", len(a.qtable))
}

func (a *Agent) qValueLocked(stateKey, action string) float64 {
	if actions, ok := a.qtable[stateKey]; ok {
		return actions[action]
	}
	return 0
}

func (a *Agent) maxQLocked(stateKey string) float64 {
	actions, ok := a.qtable[stateKey]
	if !ok || len(actions) == 0 {
		return 0
	}
	var best float64
	first := true
	for _, q := range actions {
		if first || q > best {
			best = q
			first = false
		}
	}
	return best
}

func (a *Agent) setQLocked(stateKey, action string, q float64) {
	actions, ok := a.qtable[stateKey]
	if !ok {
		actions = make(map[string]float64)
		a.qtable[stateKey] = actions
	}
	actions[action] = q
}

// floatFeatures extracts numeric features from an experience state map.
func floatFeatures(state map[string]interface{}) map[string]float64 {
	features := make(map[string]float64)
	for k, v := range state {
		switch n := v.(type) {
		case float64:
			features[k] = n
		case float32:
			features[k] = float64(n)
		case int:
			features[k] = float64(n)
		case int64:
			features[k] = float64(n)
		case bool:
			if n {
				features[k] = 1
			}
		}
	}
	return features
}
