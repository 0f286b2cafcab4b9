// Package types provides shared type definitions used across noesis packages.
// This package exists to break import cycles between the meta-reasoner and the
// individual reasoning engines. Types in this package should be foundational
// data structures with no complex dependencies.
package types

import (
	"time"
)

// =============================================================================
// INBOUND CONTEXT
// =============================================================================

// AgentStatus describes what the owning agent is currently doing.
type AgentStatus string

const (
	StatusIdle      AgentStatus = "idle"
	StatusThinking  AgentStatus = "thinking"
	StatusExecuting AgentStatus = "executing"
	StatusWaiting   AgentStatus = "waiting"
)

// Event is a single observation delivered to the reasoning core.
type Event struct {
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Message extracts the "message" payload from an event, if any.
func (e Event) Message() string {
	if e.Data == nil {
		return ""
	}
	if msg, ok := e.Data["message"].(string); ok {
		return msg
	}
	return ""
}

// MemoryRecord is an opaque recalled memory supplied by the memory collaborator.
type MemoryRecord struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Content    string    `json:"content"`
	Importance float64   `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// ThoughtContext is the snapshot a think/plan/decide call reasons over.
type ThoughtContext struct {
	AgentID  string         `json:"agent_id"`
	Events   []Event        `json:"events"`
	Goal     string         `json:"goal,omitempty"`
	Memories []MemoryRecord `json:"memories,omitempty"`
	Status   AgentStatus    `json:"status"`
}

// =============================================================================
// OUTBOUND RESULTS
// =============================================================================

// ActionType categorizes agent actions for the execution collaborator.
type ActionType string

const (
	ActionCommunication ActionType = "communication"
	ActionPlanExecution ActionType = "plan_execution"
	ActionObservation   ActionType = "observation"
	ActionMemoryWrite   ActionType = "memory_write"
)

// AgentAction is a single action the agent should take.
type AgentAction struct {
	ID         string                 `json:"id"`
	Type       ActionType             `json:"type"`
	Target     string                 `json:"target,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// EmotionState is rendered by an external collaborator; the core only carries it.
type EmotionState struct {
	Primary   string  `json:"primary"`
	Intensity float64 `json:"intensity"`
}

// ThoughtResult is the outcome of one reasoning invocation.
type ThoughtResult struct {
	Thoughts   []string       `json:"thoughts"`
	Actions    []AgentAction  `json:"actions"`
	Emotions   *EmotionState  `json:"emotions,omitempty"`
	Memories   []MemoryRecord `json:"memories,omitempty"`
	Confidence float64        `json:"confidence"`
}

// Decision is one externally supplied option for a decide() call.
// The selector returns one member of the input unchanged, never a new option.
type Decision struct {
	ID         string                 `json:"id"`
	Label      string                 `json:"label"`
	Utility    float64                `json:"utility"`
	Confidence float64                `json:"confidence"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// =============================================================================
// LEARNING SIGNALS
// =============================================================================

// Reward carries the scalar feedback for a completed action.
type Reward struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// Experience is pushed by the action-execution collaborator after an action
// completes. Every learning-capable engine consumes it; the meta-reasoner does
// not retain it beyond triggering updates.
type Experience struct {
	State     map[string]interface{} `json:"state"`
	Action    string                 `json:"action"`
	Reward    Reward                 `json:"reward"`
	NextState map[string]interface{} `json:"next_state"`
	Done      bool                   `json:"done"`
}

// =============================================================================
// PLANS
// =============================================================================

// PlanStatus tracks a plan through its lifecycle.
type PlanStatus string

const (
	PlanStatusPending   PlanStatus = "pending"
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusFailed    PlanStatus = "failed"
)

// PlanStep is one ordered step of a plan.
type PlanStep struct {
	ID            string                 `json:"id"`
	Action        string                 `json:"action"`
	Parameters    map[string]interface{} `json:"parameters,omitempty"`
	Preconditions []string               `json:"preconditions"`
	Effects       []string               `json:"effects"`
}

// Plan is the outbound planning result. Valid holds only if sequentially
// applying the steps' effects to the initial state yields a superset of the
// goal literals; Valid=false with no steps means "no plan found", not an error.
type Plan struct {
	ID                string        `json:"id"`
	Goal              string        `json:"goal"`
	Steps             []PlanStep    `json:"steps"`
	Priority          float64       `json:"priority"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	Status            PlanStatus    `json:"status"`
	Cost              float64       `json:"cost"`
	Valid             bool          `json:"valid"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Length returns the number of steps in the plan.
func (p *Plan) Length() int {
	return len(p.Steps)
}
