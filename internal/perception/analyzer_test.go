package perception

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"noesis/internal/types"
)

func msgEvent(msg string) types.Event {
	return types.Event{
		Type: "communication.message",
		Data: map[string]interface{}{"message": msg},
	}
}

func TestAnalyze_QuestionContext(t *testing.T) {
	a := NewAnalyzer()
	tc := types.ThoughtContext{
		AgentID: "agent-1",
		Events:  []types.Event{msgEvent("What's the weather?")},
		Status:  types.StatusIdle,
	}

	analysis := a.Analyze(tc)

	assert.GreaterOrEqual(t, analysis.RulesApplicable, 0.7, "questions should make rules applicable")
	assert.LessOrEqual(t, analysis.Uncertainty, 0.2, "a plain question carries little uncertainty")
	assert.LessOrEqual(t, analysis.Complexity, 0.3)
	assert.LessOrEqual(t, analysis.GoalOriented, 0.2, "no goal set")
}

func TestAnalyze_MultiStepGoal(t *testing.T) {
	a := NewAnalyzer()
	goal := strings.Repeat("gather the required data and ", 11) + "produce a final summary report"
	tc := types.ThoughtContext{AgentID: "agent-1", Goal: goal}

	analysis := a.Analyze(tc)

	assert.InDelta(t, 0.8, analysis.GoalOriented, 0.01)
	assert.Greater(t, analysis.Complexity, 0.7)
}

func TestAnalyze_UncertainLanguage(t *testing.T) {
	a := NewAnalyzer()
	tc := types.ThoughtContext{
		Events: []types.Event{msgEvent("maybe it might possibly rain, not sure")},
	}

	analysis := a.Analyze(tc)

	assert.Greater(t, analysis.Uncertainty, 0.5)
	assert.Greater(t, analysis.ProbabilisticNature, 0.3)
}

func TestAnalyze_UrgencyKeywords(t *testing.T) {
	a := NewAnalyzer()

	urgent := a.Analyze(types.ThoughtContext{Events: []types.Event{msgEvent("please respond immediately")}})
	calm := a.Analyze(types.ThoughtContext{Events: []types.Event{msgEvent("whenever you have a moment")}})

	assert.Greater(t, urgent.TimeConstraint, calm.TimeConstraint)
	assert.InDelta(t, 0.9, urgent.TimeConstraint, 0.01)
}

func TestAnalyze_AdaptationFromFailures(t *testing.T) {
	a := NewAnalyzer()
	tc := types.ThoughtContext{
		Events: []types.Event{
			{Type: "action.failed"},
			{Type: "user.feedback"},
			msgEvent("try something else"),
		},
	}

	analysis := a.Analyze(tc)
	assert.Greater(t, analysis.AdaptationNeeded, 0.5)
}

func TestAnalyze_KnowledgeFromMemories(t *testing.T) {
	a := NewAnalyzer()

	none := a.Analyze(types.ThoughtContext{})
	five := a.Analyze(types.ThoughtContext{Memories: make([]types.MemoryRecord, 5)})

	assert.Equal(t, 0.0, none.KnowledgeAvailable)
	assert.InDelta(t, 0.5, five.KnowledgeAvailable, 0.01)
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := NewAnalyzer()
	tc := types.ThoughtContext{
		Events:   []types.Event{msgEvent("can you help me plan the week?")},
		Goal:     "organize schedule",
		Memories: make([]types.MemoryRecord, 3),
	}

	first := a.Analyze(tc)
	second := a.Analyze(tc)
	assert.Equal(t, first, second)
}

func TestIsQuestion(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"What's the weather?", true},
		{"how does this work", true},
		{"the sky is blue", false},
		{"", false},
		{"Is it done?", true},
	}
	for _, tt := range tests {
		if got := IsQuestion(tt.msg); got != tt.want {
			t.Errorf("IsQuestion(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestIsCommand(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"please send the report", true},
		{"can you check this", true},
		{"make it so", true},
		{"it rained yesterday", false},
	}
	for _, tt := range tests {
		if got := IsCommand(tt.msg); got != tt.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}
