package types

// ContextAnalysis is the numeric feature vector extracted from a
// ThoughtContext. Every field is in [0,1]. It drives both paradigm scoring in
// the meta-reasoner and evidence extraction inside individual engines.
type ContextAnalysis struct {
	Complexity          float64 `json:"complexity"`
	Uncertainty         float64 `json:"uncertainty"`
	TimeConstraint      float64 `json:"time_constraint"`
	KnowledgeAvailable  float64 `json:"knowledge_available"`
	AdaptationNeeded    float64 `json:"adaptation_needed"`
	GoalOriented        float64 `json:"goal_oriented"`
	ProbabilisticNature float64 `json:"probabilistic_nature"`
	RulesApplicable     float64 `json:"rules_applicable"`
}

// Features returns the analysis as a named map, used for reasoning trails and
// for the RL engine's state featurization.
func (a ContextAnalysis) Features() map[string]float64 {
	return map[string]float64{
		"complexity":           a.Complexity,
		"uncertainty":          a.Uncertainty,
		"time_constraint":      a.TimeConstraint,
		"knowledge_available":  a.KnowledgeAvailable,
		"adaptation_needed":    a.AdaptationNeeded,
		"goal_oriented":        a.GoalOriented,
		"probabilistic_nature": a.ProbabilisticNature,
		"rules_applicable":     a.RulesApplicable,
	}
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
