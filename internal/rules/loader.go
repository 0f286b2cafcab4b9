package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"noesis/internal/logging"
)

// ruleFile is the YAML shape of a rule definition file.
type ruleFile struct {
	Rules []*Rule `yaml:"rules"`
}

// LoadRuleFile parses one YAML rule file.
func LoadRuleFile(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", filepath.Base(path), err)
	}

	for _, r := range rf.Rules {
		if r.Name == "" {
			return nil, fmt.Errorf("rule file %s: rule without name", filepath.Base(path))
		}
		if len(r.Conditions) == 0 {
			return nil, fmt.Errorf("rule %s: no conditions", r.Name)
		}
		if len(r.Actions) == 0 {
			return nil, fmt.Errorf("rule %s: no actions", r.Name)
		}
		for _, c := range r.Conditions {
			if c.Type == ConditionExpr {
				if err := c.Expr.Validate(); err != nil {
					return nil, fmt.Errorf("rule %s: %w", r.Name, err)
				}
			}
		}
		r.Normalize()
	}

	return rf.Rules, nil
}

// LoadRuleDir loads every *.yaml/*.yml file in a directory, merged with the
// built-in defaults. File rules override defaults with the same id.
func LoadRuleDir(dir string) ([]*Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rule dir: %w", err)
	}

	merged := make(map[string]*Rule)
	for _, r := range DefaultRules() {
		r.Normalize()
		merged[r.ID] = r
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		fileRules, err := LoadRuleFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		for _, r := range fileRules {
			merged[r.ID] = r
		}
		logging.Rules("LoadRuleDir: loaded %d rules from %s", len(fileRules), name)
	}

	out := make([]*Rule, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
