package types

import "time"

// PerformanceRecord is one completed engine invocation's scorecard.
type PerformanceRecord struct {
	Accuracy      float64       `json:"accuracy"`
	Efficiency    float64       `json:"efficiency"`
	Confidence    float64       `json:"confidence"`
	ReasoningTime time.Duration `json:"reasoning_time"`
	MemoryUsage   int64         `json:"memory_usage"`
	At            time.Time     `json:"at"`
}

// ParadigmPerformance aggregates a paradigm's sliding performance window.
// Owned exclusively by the performance tracker, one instance per registered
// paradigm; aggregates are recomputed from the window on every update.
type ParadigmPerformance struct {
	Paradigm          string              `json:"paradigm"`
	SuccessRate       float64             `json:"success_rate"`
	AverageTime       time.Duration       `json:"average_time"`
	AverageConfidence float64             `json:"average_confidence"`
	Recent            []PerformanceRecord `json:"recent"`
	UsageCount        int64               `json:"usage_count"`
	LastUsed          time.Time           `json:"last_used"`
}

// MetaDecision records one paradigm-selection outcome. Immutable after
// creation; the meta-reasoner keeps a bounded FIFO history of these.
type MetaDecision struct {
	ID                string          `json:"id"`
	SelectedParadigm  string          `json:"selected_paradigm"`
	Confidence        float64         `json:"confidence"`
	ReasoningTrail    []string        `json:"reasoning_trail"`
	FallbackParadigms []string        `json:"fallback_paradigms"`
	Analysis          ContextAnalysis `json:"analysis"`
	CreatedAt         time.Time       `json:"created_at"`
}
