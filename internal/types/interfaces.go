package types

import (
	"context"
)

// ReasoningParadigm is one pluggable reasoning strategy registered with the
// meta-reasoner. Think must be safe for concurrent invocation; engines guard
// their internal state with their own locks.
type ReasoningParadigm interface {
	// Name returns the stable paradigm identifier used for registration,
	// scoring and performance tracking.
	Name() string

	// Think runs one reasoning pass over the context. The analysis is the
	// feature vector already extracted by the context analyzer, shared so
	// engines do not recompute it.
	Think(ctx context.Context, tc ThoughtContext, analysis ContextAnalysis) (*ThoughtResult, error)
}

// LearningCapable is implemented only by engines that can consume experience
// feedback. The meta-reasoner checks this capability by interface assertion,
// never by a runtime property probe.
type LearningCapable interface {
	Learn(exp Experience) error
}

// SnapshotPersistence is the learning-persistence collaborator contract:
// opaque save/load of an engine's learned state, keyed by engine name.
// Implementations must not interpret the payload.
type SnapshotPersistence interface {
	SaveSnapshot(ctx context.Context, engine string, payload []byte) error
	LoadSnapshot(ctx context.Context, engine string) ([]byte, error)
}
