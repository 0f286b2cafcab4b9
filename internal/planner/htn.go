// Package planner implements the planning engine: hierarchical task-network
// decomposition of goals into primitive tasks, ordered and verified by a
// STRIPS style forward search bounded by plan length and a wall-clock
// deadline.
package planner

import (
	"fmt"
	"strings"
	"sync"

	"noesis/internal/logging"
)

// Task is a node in the hierarchical task network. Compound tasks decompose
// into subtasks; primitive tasks become plan steps directly.
type Task struct {
	Name      string
	Primitive bool
	Subtasks  []string
}

// method maps goal keywords to an ordered decomposition.
type method struct {
	keywords []string
	tasks    []string
}

// decompositions are checked in order; the first keyword hit wins.
var decompositions = []method{
	{
		keywords: []string{"respond", "answer", "reply"},
		tasks:    []string{"analyze_input", "generate_response", "validate_response"},
	},
	{
		keywords: []string{"investigate", "research", "diagnose"},
		tasks:    []string{"gather_information", "analyze_information", "synthesize_findings", "report_findings"},
	},
	{
		keywords: []string{"build", "create", "implement", "write"},
		tasks:    []string{"design_solution", "implement_solution", "verify_solution"},
	},
	{
		keywords: []string{"organize", "coordinate", "schedule"},
		tasks:    []string{"enumerate_items", "order_items", "confirm_schedule"},
	},
	{
		keywords: []string{"summarize", "review", "compile"},
		tasks:    []string{"collect_sources", "extract_key_points", "compose_summary"},
	},
}

// fallbackTasks covers goals that match no decomposition method.
var fallbackTasks = []string{"assess_situation", "execute_goal", "verify_outcome"}

// Decomposer turns goals into ordered primitive task lists. Results are
// cached by goal text and task count, so re-planning the same goal is free.
type Decomposer struct {
	mu    sync.Mutex
	cache map[string][]string
}

// NewDecomposer creates an empty decomposer.
func NewDecomposer() *Decomposer {
	return &Decomposer{cache: make(map[string][]string)}
}

// Decompose maps a goal to an ordered primitive task list.
func (d *Decomposer) Decompose(goal string) ([]string, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, fmt.Errorf("empty goal")
	}

	lower := strings.ToLower(goal)

	tasks := fallbackTasks
	for _, m := range decompositions {
		if containsAny(lower, m.keywords) {
			tasks = m.tasks
			break
		}
	}

	key := cacheKey(goal, len(tasks))

	d.mu.Lock()
	defer d.mu.Unlock()
	if cached, ok := d.cache[key]; ok {
		logging.PlannerDebug("Decompose: cache hit for %q", goal)
		return cached, nil
	}

	out := append([]string(nil), tasks...)
	d.cache[key] = out
	logging.PlannerDebug("Decompose: %q -> %d tasks", goal, len(out))
	return out, nil
}

// CacheLen reports the number of cached decompositions.
func (d *Decomposer) CacheLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}

func cacheKey(goal string, taskCount int) string {
	return fmt.Sprintf("%s#%d", goal, taskCount)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
