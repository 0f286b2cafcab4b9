// Package bayes implements the probabilistic reasoning engine: a directed
// acyclic Bayesian network with conditional probability tables, threshold
// decisions, and empirical-frequency learning.
package bayes

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"noesis/internal/logging"
)

// Node is one random variable. States[0] is the node's positive state; CPT
// entries give the probability of that state conditioned on parent states.
type Node struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	States   []string `json:"states"`
	Parents  []string `json:"parents"`
	Children []string `json:"children"`
	// CPT maps a canonical "parentID=state,..." key to P(States[0] | parents).
	CPT map[string]float64 `json:"cpt"`
	// Seen and Positive accumulate observation counts per CPT key across
	// learning calls; a learned CPT entry is Positive/Seen, so one sample
	// shifts the frequency instead of replacing it.
	Seen     map[string]int `json:"seen,omitempty"`
	Positive map[string]int `json:"positive,omitempty"`
}

// Network is the DAG of nodes. Parent/child links are kept symmetric by
// AddEdge; the structure is guarded for concurrent query/learn.
type Network struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{nodes: make(map[string]*Node)}
}

// AddNode registers a variable. States must be non-empty; the first state is
// the positive outcome.
func (n *Network) AddNode(id, name string, states []string) error {
	if id == "" {
		return fmt.Errorf("node id required")
	}
	if len(states) == 0 {
		return fmt.Errorf("node %s: at least one state required", id)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.nodes[id]; exists {
		return fmt.Errorf("node %s already exists", id)
	}
	n.nodes[id] = &Node{
		ID:       id,
		Name:     name,
		States:   append([]string(nil), states...),
		CPT:      make(map[string]float64),
		Seen:     make(map[string]int),
		Positive: make(map[string]int),
	}
	logging.BayesDebug("AddNode: %s states=%v", id, states)
	return nil
}

// AddEdge links parent -> child, keeping both adjacency lists consistent.
// Edges that would create a cycle are rejected.
func (n *Network) AddEdge(parentID, childID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	parent, ok := n.nodes[parentID]
	if !ok {
		return fmt.Errorf("unknown parent node %s", parentID)
	}
	child, ok := n.nodes[childID]
	if !ok {
		return fmt.Errorf("unknown child node %s", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self edge on %s", parentID)
	}
	if n.reachableLocked(childID, parentID) {
		return fmt.Errorf("edge %s -> %s would create a cycle", parentID, childID)
	}

	if !contains(child.Parents, parentID) {
		child.Parents = append(child.Parents, parentID)
		sort.Strings(child.Parents)
	}
	if !contains(parent.Children, childID) {
		parent.Children = append(parent.Children, childID)
		sort.Strings(parent.Children)
	}
	logging.BayesDebug("AddEdge: %s -> %s", parentID, childID)
	return nil
}

// reachableLocked reports whether target is reachable from start via child
// links.
func (n *Network) reachableLocked(start, target string) bool {
	if start == target {
		return true
	}
	seen := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		node, ok := n.nodes[cur]
		if !ok {
			continue
		}
		for _, c := range node.Children {
			if c == target {
				return true
			}
			stack = append(stack, c)
		}
	}
	return false
}

// SetProbability sets one CPT entry. parentStates maps parent id to state;
// every listed parent must be a real parent of the node.
func (n *Network) SetProbability(nodeID string, parentStates map[string]string, p float64) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("probability %v out of range", p)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	node, ok := n.nodes[nodeID]
	if !ok {
		return fmt.Errorf("unknown node %s", nodeID)
	}
	for pid := range parentStates {
		if !contains(node.Parents, pid) {
			return fmt.Errorf("node %s has no parent %s", nodeID, pid)
		}
	}

	node.CPT[conditionKey(parentStates)] = p
	return nil
}

// Node returns a copy of the node with the given id.
func (n *Network) Node(id string) (Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	node, ok := n.nodes[id]
	if !ok {
		return Node{}, false
	}
	cp := *node
	cp.States = append([]string(nil), node.States...)
	cp.Parents = append([]string(nil), node.Parents...)
	cp.Children = append([]string(nil), node.Children...)
	cp.CPT = make(map[string]float64, len(node.CPT))
	for k, v := range node.CPT {
		cp.CPT[k] = v
	}
	cp.Seen = make(map[string]int, len(node.Seen))
	for k, v := range node.Seen {
		cp.Seen[k] = v
	}
	cp.Positive = make(map[string]int, len(node.Positive))
	for k, v := range node.Positive {
		cp.Positive[k] = v
	}
	return cp, true
}

// NodeIDs returns all node ids, sorted.
func (n *Network) NodeIDs() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := make([]string, 0, len(n.nodes))
	for id := range n.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Query computes, for every node, the probability of its positive state given
// the evidence. Evidence nodes are pinned to 0 or 1; other nodes look up the
// CPT entry matching the parents' evidence states, defaulting to 0.5.
func (n *Network) Query(evidence map[string]string) map[string]float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()

	result := make(map[string]float64, len(n.nodes))
	for id, node := range n.nodes {
		if state, ok := evidence[id]; ok {
			if state == node.States[0] {
				result[id] = 1.0
			} else {
				result[id] = 0.0
			}
			continue
		}

		parentStates := make(map[string]string)
		for _, pid := range node.Parents {
			if state, ok := evidence[pid]; ok {
				parentStates[pid] = state
			}
		}
		key := conditionKey(parentStates)
		if p, ok := node.CPT[key]; ok {
			result[id] = p
		} else {
			result[id] = 0.5
		}
	}
	return result
}

// LearnFromSamples folds observations into every node's running counts and
// recomputes the CPT as the empirical frequency of the positive state per
// parent-state combination. Counts persist across calls, so a single sample
// shifts the learned frequency instead of overwriting it. Updates directly
// adjust future queries.
func (n *Network) LearnFromSamples(samples []map[string]string) {
	if len(samples) == 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for id, node := range n.nodes {
		touched := make(map[string]bool)

		for _, sample := range samples {
			state, ok := sample[id]
			if !ok {
				continue
			}
			parentStates := make(map[string]string)
			complete := true
			for _, pid := range node.Parents {
				ps, ok := sample[pid]
				if !ok {
					complete = false
					break
				}
				parentStates[pid] = ps
			}
			if !complete {
				continue
			}
			key := conditionKey(parentStates)
			node.Seen[key]++
			if state == node.States[0] {
				node.Positive[key]++
			}
			touched[key] = true
		}

		for key := range touched {
			node.CPT[key] = float64(node.Positive[key]) / float64(node.Seen[key])
		}
	}

	logging.Bayes("LearnFromSamples: updated CPTs from %d samples", len(samples))
}

// NodeTable is one node's persisted learned state: the CPT plus the
// observation counts backing its learned entries.
type NodeTable struct {
	CPT      map[string]float64 `json:"cpt"`
	Seen     map[string]int     `json:"seen,omitempty"`
	Positive map[string]int     `json:"positive,omitempty"`
}

// ExportCPTs returns every node's learned tables, keyed by node id, for
// persistence. Counts travel with the CPT so restored frequencies keep
// shifting instead of resetting.
func (n *Network) ExportCPTs() map[string]NodeTable {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make(map[string]NodeTable, len(n.nodes))
	for id, node := range n.nodes {
		table := NodeTable{
			CPT:      make(map[string]float64, len(node.CPT)),
			Seen:     make(map[string]int, len(node.Seen)),
			Positive: make(map[string]int, len(node.Positive)),
		}
		for k, v := range node.CPT {
			table.CPT[k] = v
		}
		for k, v := range node.Seen {
			table.Seen[k] = v
		}
		for k, v := range node.Positive {
			table.Positive[k] = v
		}
		out[id] = table
	}
	return out
}

// ImportCPTs overlays persisted tables onto matching nodes. Entries for
// nodes that no longer exist are ignored.
func (n *Network) ImportCPTs(tables map[string]NodeTable) {
	n.mu.Lock()
	defer n.mu.Unlock()

	applied := 0
	for id, table := range tables {
		node, ok := n.nodes[id]
		if !ok {
			continue
		}
		for k, v := range table.CPT {
			node.CPT[k] = v
		}
		for k, v := range table.Seen {
			node.Seen[k] = v
		}
		for k, v := range table.Positive {
			node.Positive[k] = v
		}
		applied++
	}
	logging.Bayes("ImportCPTs: restored tables for %d nodes", applied)
}

// conditionKey builds the canonical "parentID=state,..." CPT key, sorted by
// parent id so key construction is order independent.
func conditionKey(parentStates map[string]string) string {
	if len(parentStates) == 0 {
		return ""
	}
	parts := make([]string, 0, len(parentStates))
	for pid, state := range parentStates {
		parts = append(parts, pid+"="+state)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
