package meta

import (
	"fmt"
	"sort"

	"noesis/internal/types"
)

// FeatureWeights is a linear scoring vector over analysis feature names.
type FeatureWeights map[string]float64

// Boost multiplies a paradigm's score when a feature crosses a threshold.
type Boost struct {
	Feature    string  `yaml:"feature"`
	Threshold  float64 `yaml:"threshold"`
	Multiplier float64 `yaml:"multiplier"`
}

// ScoringProfile is one paradigm's scoring configuration. Weights over
// "inverse" features (where low values favor the paradigm) are expressed by
// prefixing the feature name with "!".
type ScoringProfile struct {
	Weights FeatureWeights `yaml:"weights"`
	Boosts  []Boost        `yaml:"boosts"`
}

// DefaultProfiles returns the standard scoring configuration. The exact
// coefficients are tunable defaults, not contractual constants.
func DefaultProfiles() map[string]ScoringProfile {
	return map[string]ScoringProfile{
		"rule_engine": {
			Weights: FeatureWeights{
				"rules_applicable":    0.5,
				"!uncertainty":        0.3,
				"knowledge_available": 0.2,
			},
			Boosts: []Boost{{Feature: "rules_applicable", Threshold: 0.7, Multiplier: 1.2}},
		},
		"probabilistic": {
			Weights: FeatureWeights{
				"uncertainty":          0.5,
				"probabilistic_nature": 0.3,
				"!knowledge_available": 0.2,
			},
			Boosts: []Boost{{Feature: "uncertainty", Threshold: 0.6, Multiplier: 1.2}},
		},
		"reinforcement": {
			Weights: FeatureWeights{
				"adaptation_needed":    0.5,
				"!knowledge_available": 0.3,
				"uncertainty":          0.2,
			},
			Boosts: []Boost{{Feature: "adaptation_needed", Threshold: 0.7, Multiplier: 1.2}},
		},
		"planning": {
			Weights: FeatureWeights{
				"goal_oriented":   0.5,
				"complexity":      0.3,
				"time_constraint": 0.2,
			},
			Boosts: []Boost{{Feature: "goal_oriented", Threshold: 0.7, Multiplier: 1.3}},
		},
	}
}

// ScoredParadigm is one scored candidate.
type ScoredParadigm struct {
	Name       string
	BaseScore  float64
	Multiplier float64
	Score      float64
	Trail      []string
}

// Selector scores registered paradigms against an analysis. Paradigms with
// no profile get a flat default score so an unknown engine is still
// selectable, just never preferred.
type Selector struct {
	profiles map[string]ScoringProfile
	tracker  *Tracker
}

// defaultScore applies to paradigms without a scoring profile.
const defaultScore = 0.3

// NewSelector creates a selector over the given profiles.
func NewSelector(profiles map[string]ScoringProfile, tracker *Tracker) *Selector {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Selector{profiles: profiles, tracker: tracker}
}

// Rank scores every candidate and returns them sorted best first, ties
// broken by name for determinism.
func (s *Selector) Rank(candidates []string, analysis types.ContextAnalysis) []ScoredParadigm {
	features := analysis.Features()

	scored := make([]ScoredParadigm, 0, len(candidates))
	for _, name := range candidates {
		scored = append(scored, s.score(name, features))
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Name < scored[j].Name
	})
	return scored
}

func (s *Selector) score(name string, features map[string]float64) ScoredParadigm {
	profile, ok := s.profiles[name]
	if !ok {
		return ScoredParadigm{
			Name:       name,
			BaseScore:  defaultScore,
			Multiplier: s.tracker.Multiplier(name),
			Score:      defaultScore * s.tracker.Multiplier(name),
			Trail:      []string{fmt.Sprintf("%s: no scoring profile, default %.2f", name, defaultScore)},
		}
	}

	var (
		base  float64
		trail []string
	)
	for feature, weight := range profile.Weights {
		value, inverted := featureValue(features, feature)
		base += weight * value
		if inverted {
			trail = append(trail, fmt.Sprintf("%s: low %s contributes %.2f", name, feature[1:], weight*value))
		} else {
			trail = append(trail, fmt.Sprintf("%s: %s=%.2f contributes %.2f", name, feature, value, weight*value))
		}
	}
	sort.Strings(trail)

	boosted := base
	for _, b := range profile.Boosts {
		if features[b.Feature] >= b.Threshold {
			boosted *= b.Multiplier
			trail = append(trail, fmt.Sprintf("%s: boost x%.1f (%s >= %.2f)", name, b.Multiplier, b.Feature, b.Threshold))
		}
	}

	mult := s.tracker.Multiplier(name)
	final := boosted * mult
	if mult != 1.0 {
		trail = append(trail, fmt.Sprintf("%s: performance multiplier %.2f", name, mult))
	}

	return ScoredParadigm{
		Name:       name,
		BaseScore:  base,
		Multiplier: mult,
		Score:      final,
		Trail:      trail,
	}
}

// featureValue resolves a possibly inverted ("!"-prefixed) feature name.
func featureValue(features map[string]float64, name string) (float64, bool) {
	if len(name) > 0 && name[0] == '!' {
		return 1.0 - features[name[1:]], true
	}
	return features[name], false
}
