// Package perception extracts numeric context features from a raw
// ThoughtContext. The analyzer is pure and deterministic: the same context
// always yields the same feature vector, and nothing here mutates state.
// The feature vector feeds both paradigm scoring in the meta-reasoner and
// evidence extraction inside the rule and probabilistic engines.
package perception

import (
	"strings"

	"noesis/internal/logging"
	"noesis/internal/types"
)

// Heuristic constants. These are tunable shape parameters, not contractual
// values; keep them together so retuning stays local to this file.
const (
	eventComplexityWeight = 0.08
	goalWordComplexity    = 0.0125
	goalComplexityCap     = 0.7
	baseComplexity        = 0.1

	memoryKnowledgeWeight = 0.1

	multiStepWordThreshold = 15
)

var urgencyKeywords = []string{
	"urgent", "now", "immediately", "asap", "quickly", "hurry", "deadline",
}

var uncertaintyKeywords = []string{
	"maybe", "perhaps", "possibly", "might", "unsure", "uncertain",
	"not sure", "unclear", "random", "unpredictable",
}

var probabilisticKeywords = []string{
	"probability", "chance", "likely", "unlikely", "odds", "predict",
	"estimate", "risk", "expect",
}

var sequencingKeywords = []string{
	"then", "after", "first", "next", "finally", "step", "stages", "before",
}

var questionPrefixes = []string{
	"what", "how", "why", "when", "where", "who", "which", "can", "could",
	"would", "should", "is", "are", "do", "does",
}

var commandVerbs = []string{
	"do", "make", "create", "build", "send", "find", "get", "show", "tell",
	"help", "stop", "start", "go",
}

// Analyzer turns a ThoughtContext into a ContextAnalysis.
type Analyzer struct{}

// NewAnalyzer creates a context analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze computes the feature vector for a context snapshot.
func (a *Analyzer) Analyze(tc types.ThoughtContext) types.ContextAnalysis {
	messages := collectMessages(tc.Events)
	joined := strings.ToLower(strings.Join(messages, " "))
	goalWords := countWords(tc.Goal)

	analysis := types.ContextAnalysis{
		Complexity:          a.complexity(tc, goalWords),
		Uncertainty:         keywordDensity(joined, uncertaintyKeywords),
		TimeConstraint:      a.timeConstraint(joined, tc.Goal),
		KnowledgeAvailable:  types.Clamp01(float64(len(tc.Memories)) * memoryKnowledgeWeight),
		AdaptationNeeded:    a.adaptationNeeded(tc.Events),
		GoalOriented:        a.goalOriented(tc.Goal, goalWords),
		ProbabilisticNature: a.probabilisticNature(joined),
		RulesApplicable:     a.rulesApplicable(messages, tc.Events),
	}

	logging.PerceptionDebug("Analyze: events=%d goalWords=%d -> complexity=%.2f uncertainty=%.2f rules=%.2f goal=%.2f",
		len(tc.Events), goalWords, analysis.Complexity, analysis.Uncertainty,
		analysis.RulesApplicable, analysis.GoalOriented)

	return analysis
}

// complexity grows with event volume and goal length.
func (a *Analyzer) complexity(tc types.ThoughtContext, goalWords int) float64 {
	c := baseComplexity + float64(len(tc.Events))*eventComplexityWeight

	goalC := float64(goalWords) * goalWordComplexity
	if goalC > goalComplexityCap {
		goalC = goalComplexityCap
	}
	c += goalC

	if tc.Status == types.StatusExecuting {
		c += 0.1
	}
	return types.Clamp01(c)
}

// timeConstraint is keyword-thresholded urgency.
func (a *Analyzer) timeConstraint(joined, goal string) float64 {
	text := joined + " " + strings.ToLower(goal)
	for _, kw := range urgencyKeywords {
		if strings.Contains(text, kw) {
			return 0.9
		}
	}
	return 0.1
}

// adaptationNeeded rises with failure and feedback events: signals that the
// agent's current behavior is not working.
func (a *Analyzer) adaptationNeeded(events []types.Event) float64 {
	if len(events) == 0 {
		return 0.1
	}
	adaptive := 0
	for _, e := range events {
		t := strings.ToLower(e.Type)
		if strings.Contains(t, "feedback") || strings.Contains(t, "error") || strings.Contains(t, "failed") {
			adaptive++
		}
	}
	return types.Clamp01(0.1 + float64(adaptive)/float64(len(events)))
}

// goalOriented distinguishes no goal, a simple goal, and a multi-step goal.
func (a *Analyzer) goalOriented(goal string, goalWords int) float64 {
	if strings.TrimSpace(goal) == "" {
		return 0.1
	}
	score := 0.5
	if goalWords >= multiStepWordThreshold || containsAny(strings.ToLower(goal), sequencingKeywords) {
		score += 0.3
	}
	return score
}

func (a *Analyzer) probabilisticNature(joined string) float64 {
	score := keywordDensity(joined, probabilisticKeywords)
	// Uncertainty language implies probabilistic reasoning is applicable too.
	if u := keywordDensity(joined, uncertaintyKeywords); u > score {
		score = (score + u) / 2
	}
	return types.Clamp01(score)
}

// rulesApplicable is high for question and command shaped messages and for
// direct mentions, all of which the default rule set covers.
func (a *Analyzer) rulesApplicable(messages []string, events []types.Event) float64 {
	if len(messages) == 0 && len(events) == 0 {
		return 0.2
	}

	score := 0.2
	for _, msg := range messages {
		if IsQuestion(msg) {
			score += 0.5
		}
		if IsCommand(msg) {
			score += 0.3
		}
	}
	for _, e := range events {
		if strings.Contains(strings.ToLower(e.Type), "mention") {
			score += 0.3
		}
	}
	return types.Clamp01(score)
}

// IsQuestion reports whether a message is question shaped.
func IsQuestion(msg string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(msg))
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	first, _ := splitFirstToken(trimmed)
	for _, p := range questionPrefixes {
		if first == p {
			return true
		}
	}
	return false
}

// IsCommand reports whether a message is command shaped (imperative verb or a
// polite request prefix).
func IsCommand(msg string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(msg))
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "please ") || strings.HasPrefix(trimmed, "can you ") || strings.HasPrefix(trimmed, "could you ") {
		return true
	}
	first, _ := splitFirstToken(trimmed)
	for _, v := range commandVerbs {
		if first == v {
			return true
		}
	}
	return false
}

func collectMessages(events []types.Event) []string {
	var messages []string
	for _, e := range events {
		if msg := e.Message(); msg != "" {
			messages = append(messages, msg)
		}
	}
	return messages
}

// keywordDensity scores keyword presence: each hit adds 0.3, capped at 0.9,
// floor 0.1 when text is present but matches nothing.
func keywordDensity(text string, keywords []string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0.1
	}
	score := 0.1
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			score += 0.3
		}
	}
	if score > 0.9 {
		score = 0.9
	}
	return score
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func splitFirstToken(s string) (string, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	idx := strings.IndexAny(s, " \t\n")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx:])
}
