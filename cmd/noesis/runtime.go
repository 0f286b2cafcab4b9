package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"noesis/internal/bayes"
	"noesis/internal/config"
	"noesis/internal/logging"
	"noesis/internal/meta"
	"noesis/internal/planner"
	"noesis/internal/rl"
	"noesis/internal/rules"
	"noesis/internal/store"
)

// runtime wires the four engines, the meta-reasoner, and the learned-state
// store into one agent instance for a CLI invocation.
type runtime struct {
	cfg      *config.Config
	reasoner *meta.Reasoner
	rules    *rules.Engine
	bayes    *bayes.Engine
	rl       *rl.Engine
	planner  *planner.Engine
	store    *store.LearnedStore
	watcher  *rules.Watcher
}

// newRuntime builds the engine stack from config and restores persisted
// learned state.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	ruleEngine := rules.NewEngine(rules.Options{
		Strategy:      rules.ConflictStrategy(cfg.Rules.ConflictStrategy),
		MaxIterations: cfg.Rules.MaxIterations,
		LearningStep:  cfg.Rules.LearningStep,
		RewardWindow:  cfg.Rules.RewardWindow,
	})
	if cfg.Rules.RuleDir != "" {
		ruleSet, err := rules.LoadRuleDir(cfg.Rules.RuleDir)
		if err != nil {
			return nil, fmt.Errorf("load rules from %s: %w", cfg.Rules.RuleDir, err)
		}
		ruleEngine.ReplaceRules(ruleSet)
	}

	bayesEngine := bayes.NewEngine(cfg.Bayes.DecisionThreshold)
	rlEngine := rl.NewEngine(rl.Options{
		LearningRate:   cfg.RL.LearningRate,
		DiscountFactor: cfg.RL.DiscountFactor,
		Epsilon:        cfg.RL.Epsilon,
		EpsilonMin:     cfg.RL.EpsilonMin,
		EpsilonDecay:   cfg.RL.EpsilonDecay,
		BufferSize:     cfg.RL.BufferSize,
	})
	planEngine := planner.NewEngine(planner.Options{
		MaxPlanLength: cfg.Planner.MaxPlanLength,
		SearchTimeout: cfg.Planner.SearchTimeout,
		StepDuration:  cfg.Planner.StepDuration,
	})

	reasoner, err := meta.NewReasoner(meta.Options{
		MaxFallbacks:        cfg.Meta.MaxFallbacks,
		FallbackPenalty:     cfg.Meta.FallbackPenalty,
		HistoryCap:          cfg.Meta.HistoryCap,
		DeliberativeTimeout: cfg.Meta.DeliberativeTimeout,
	}, ruleEngine, bayesEngine, rlEngine, planEngine)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		reasoner: reasoner,
		rules:    ruleEngine,
		bayes:    bayesEngine,
		rl:       rlEngine,
		planner:  planEngine,
	}

	storePath := cfg.Store.Path
	if !filepath.IsAbs(storePath) {
		storePath = filepath.Join(workspace, storePath)
	}
	learned, err := store.NewLearnedStore(storePath)
	if err != nil {
		return nil, fmt.Errorf("open learned store: %w", err)
	}
	rt.store = learned

	if err := rt.restore(ctx); err != nil {
		learned.Close()
		return nil, err
	}

	if cfg.Rules.WatchRules && cfg.Rules.RuleDir != "" {
		watcher, err := rules.NewWatcher(cfg.Rules.RuleDir, ruleEngine)
		if err != nil {
			logging.Boot("rule watcher unavailable: %v", err)
		} else if err := watcher.Start(ctx); err != nil {
			logging.Boot("rule watcher failed to start: %v", err)
		} else {
			rt.watcher = watcher
		}
	}

	return rt, nil
}

// restore loads persisted learned state into the engines.
func (rt *runtime) restore(ctx context.Context) error {
	var qtable map[string]map[string]float64
	if found, err := store.LoadJSON(ctx, rt.store, rl.ParadigmName, &qtable); err != nil {
		return err
	} else if found {
		rt.rl.Agent().Restore(qtable)
	}

	var weights map[string]rules.RuleWeights
	if found, err := store.LoadJSON(ctx, rt.store, rules.ParadigmName, &weights); err != nil {
		return err
	} else if found {
		rt.rules.ImportWeights(weights)
	}

	var cpts map[string]bayes.NodeTable
	if found, err := store.LoadJSON(ctx, rt.store, bayes.ParadigmName, &cpts); err != nil {
		return err
	} else if found {
		rt.bayes.Network().ImportCPTs(cpts)
	}

	return nil
}

// persist saves every engine's learned state and archives the in-memory
// decision history.
func (rt *runtime) persist(ctx context.Context) error {
	if err := store.SaveJSON(ctx, rt.store, rl.ParadigmName, rt.rl.Agent().Snapshot()); err != nil {
		return err
	}
	if err := store.SaveJSON(ctx, rt.store, rules.ParadigmName, rt.rules.ExportWeights()); err != nil {
		return err
	}
	if err := store.SaveJSON(ctx, rt.store, bayes.ParadigmName, rt.bayes.Network().ExportCPTs()); err != nil {
		return err
	}
	return rt.store.ArchiveDecisions(ctx, rt.reasoner.History())
}

func (rt *runtime) close() {
	if rt.watcher != nil {
		rt.watcher.Stop()
	}
	if rt.store != nil {
		rt.store.Close()
	}
}

// withRuntime runs fn against a fully wired runtime, persisting learned
// state afterwards.
func withRuntime(fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := fn(ctx, rt); err != nil {
		return err
	}
	return rt.persist(ctx)
}
