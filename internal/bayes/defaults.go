package bayes

// DefaultNetwork builds the standard agent decision network: four evidence
// variables feeding two decision variables.
func DefaultNetwork() *Network {
	n := NewNetwork()

	// Evidence nodes
	must(n.AddNode("message_type", "Message Type", []string{"question", "command", "statement"}))
	must(n.AddNode("context_clear", "Context Clear", []string{"true", "false"}))
	must(n.AddNode("goal_present", "Goal Present", []string{"true", "false"}))
	must(n.AddNode("urgency", "Urgency", []string{"high", "low"}))

	// Decision nodes
	must(n.AddNode("should_respond", "Should Respond", []string{"true", "false"}))
	must(n.AddNode("should_plan", "Should Plan", []string{"true", "false"}))

	must(n.AddEdge("message_type", "should_respond"))
	must(n.AddEdge("context_clear", "should_respond"))
	must(n.AddEdge("goal_present", "should_plan"))
	must(n.AddEdge("urgency", "should_plan"))

	// P(should_respond | message_type, context_clear)
	respond := []struct {
		mt string
		cc string
		p  float64
	}{
		{"question", "true", 0.95},
		{"question", "false", 0.75},
		{"command", "true", 0.9},
		{"command", "false", 0.7},
		{"statement", "true", 0.4},
		{"statement", "false", 0.25},
	}
	for _, r := range respond {
		must(n.SetProbability("should_respond", map[string]string{
			"message_type":  r.mt,
			"context_clear": r.cc,
		}, r.p))
	}

	// P(should_plan | goal_present, urgency)
	plan := []struct {
		gp string
		u  string
		p  float64
	}{
		{"true", "high", 0.9},
		{"true", "low", 0.75},
		{"false", "high", 0.3},
		{"false", "low", 0.1},
	}
	for _, r := range plan {
		must(n.SetProbability("should_plan", map[string]string{
			"goal_present": r.gp,
			"urgency":      r.u,
		}, r.p))
	}

	return n
}

// DecisionNodes lists the network nodes that map to agent actions.
func DecisionNodes() []string {
	return []string{"should_respond", "should_plan"}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
