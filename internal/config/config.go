// Package config loads and validates the engine configuration. Settings come
// from an optional YAML file, overlaid with NOESIS_* environment variables,
// on top of built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration, one section per engine concern.
type Config struct {
	Meta    MetaConfig    `yaml:"meta"`
	Rules   RulesConfig   `yaml:"rules"`
	Bayes   BayesConfig   `yaml:"bayes"`
	RL      RLConfig      `yaml:"rl"`
	Planner PlannerConfig `yaml:"planner"`
	Store   StoreConfig   `yaml:"store"`
}

// MetaConfig configures the meta-reasoner.
type MetaConfig struct {
	MaxFallbacks        int           `yaml:"max_fallbacks"`
	FallbackPenalty     float64       `yaml:"fallback_penalty"`
	HistoryCap          int           `yaml:"history_cap"`
	DeliberativeTimeout time.Duration `yaml:"deliberative_timeout"`
}

// RulesConfig configures the rule engine.
type RulesConfig struct {
	ConflictStrategy string        `yaml:"conflict_strategy"`
	MaxIterations    int           `yaml:"max_iterations"`
	LearningStep     float64       `yaml:"learning_step"`
	RewardWindow     time.Duration `yaml:"reward_window"`
	RuleDir          string        `yaml:"rule_dir"`
	WatchRules       bool          `yaml:"watch_rules"`
}

// BayesConfig configures the probabilistic engine.
type BayesConfig struct {
	DecisionThreshold float64 `yaml:"decision_threshold"`
}

// RLConfig configures the Q-learning engine.
type RLConfig struct {
	LearningRate   float64 `yaml:"learning_rate"`
	DiscountFactor float64 `yaml:"discount_factor"`
	Epsilon        float64 `yaml:"epsilon"`
	EpsilonMin     float64 `yaml:"epsilon_min"`
	EpsilonDecay   float64 `yaml:"epsilon_decay"`
	BufferSize     int     `yaml:"buffer_size"`
}

// PlannerConfig configures the planning engine.
type PlannerConfig struct {
	MaxPlanLength int           `yaml:"max_plan_length"`
	SearchTimeout time.Duration `yaml:"search_timeout"`
	StepDuration  time.Duration `yaml:"step_duration"`
}

// StoreConfig configures learned-state persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Meta: MetaConfig{
			MaxFallbacks:        2,
			FallbackPenalty:     0.8,
			HistoryCap:          100,
			DeliberativeTimeout: 2 * time.Second,
		},
		Rules: RulesConfig{
			ConflictStrategy: "priority",
			MaxIterations:    10,
			LearningStep:     0.05,
			RewardWindow:     60 * time.Second,
		},
		Bayes: BayesConfig{
			DecisionThreshold: 0.6,
		},
		RL: RLConfig{
			LearningRate:   0.1,
			DiscountFactor: 0.9,
			Epsilon:        0.3,
			EpsilonMin:     0.01,
			EpsilonDecay:   0.995,
			BufferSize:     1000,
		},
		Planner: PlannerConfig{
			MaxPlanLength: 10,
			SearchTimeout: 5 * time.Second,
			StepDuration:  30 * time.Second,
		},
		Store: StoreConfig{
			Path: ".noesis/learned.db",
		},
	}
}

// Load reads a YAML config file over the defaults, then applies environment
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Meta.Validate(); err != nil {
		return fmt.Errorf("meta: %w", err)
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if err := c.Bayes.Validate(); err != nil {
		return fmt.Errorf("bayes: %w", err)
	}
	if err := c.RL.Validate(); err != nil {
		return fmt.Errorf("rl: %w", err)
	}
	if err := c.Planner.Validate(); err != nil {
		return fmt.Errorf("planner: %w", err)
	}
	return nil
}

// Validate checks the meta section.
func (c MetaConfig) Validate() error {
	if c.MaxFallbacks < 0 {
		return fmt.Errorf("max_fallbacks must be >= 0, got %d", c.MaxFallbacks)
	}
	if c.FallbackPenalty <= 0 || c.FallbackPenalty >= 1 {
		return fmt.Errorf("fallback_penalty must be in (0,1), got %.2f", c.FallbackPenalty)
	}
	if c.HistoryCap <= 0 {
		return fmt.Errorf("history_cap must be positive, got %d", c.HistoryCap)
	}
	return nil
}

// Validate checks the rules section.
func (c RulesConfig) Validate() error {
	switch c.ConflictStrategy {
	case "priority", "specificity", "recency":
	default:
		return fmt.Errorf("unknown conflict_strategy %q", c.ConflictStrategy)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.LearningStep <= 0 || c.LearningStep > 0.5 {
		return fmt.Errorf("learning_step must be in (0,0.5], got %.3f", c.LearningStep)
	}
	return nil
}

// Validate checks the bayes section.
func (c BayesConfig) Validate() error {
	if c.DecisionThreshold <= 0 || c.DecisionThreshold >= 1 {
		return fmt.Errorf("decision_threshold must be in (0,1), got %.2f", c.DecisionThreshold)
	}
	return nil
}

// Validate checks the rl section.
func (c RLConfig) Validate() error {
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("learning_rate must be in (0,1], got %.3f", c.LearningRate)
	}
	if c.DiscountFactor <= 0 || c.DiscountFactor >= 1 {
		return fmt.Errorf("discount_factor must be in (0,1), got %.3f", c.DiscountFactor)
	}
	if c.Epsilon <= 0 || c.Epsilon > 1 {
		return fmt.Errorf("epsilon must be in (0,1], got %.3f", c.Epsilon)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive, got %d", c.BufferSize)
	}
	return nil
}

// Validate checks the planner section.
func (c PlannerConfig) Validate() error {
	if c.MaxPlanLength <= 0 {
		return fmt.Errorf("max_plan_length must be positive, got %d", c.MaxPlanLength)
	}
	if c.SearchTimeout <= 0 {
		return fmt.Errorf("search_timeout must be positive, got %s", c.SearchTimeout)
	}
	return nil
}

// applyEnv overlays NOESIS_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("NOESIS_CONFLICT_STRATEGY"); v != "" {
		c.Rules.ConflictStrategy = v
	}
	if v := os.Getenv("NOESIS_RULE_DIR"); v != "" {
		c.Rules.RuleDir = v
	}
	if v := os.Getenv("NOESIS_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v, ok := envFloat("NOESIS_DECISION_THRESHOLD"); ok {
		c.Bayes.DecisionThreshold = v
	}
	if v, ok := envFloat("NOESIS_EPSILON"); ok {
		c.RL.Epsilon = v
	}
	if v, ok := envFloat("NOESIS_LEARNING_RATE"); ok {
		c.RL.LearningRate = v
	}
	if v, ok := envInt("NOESIS_MAX_PLAN_LENGTH"); ok {
		c.Planner.MaxPlanLength = v
	}
	if v, ok := envInt("NOESIS_HISTORY_CAP"); ok {
		c.Meta.HistoryCap = v
	}
}

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
