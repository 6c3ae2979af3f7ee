package engine

import (
	"fmt"
	"strings"
)

// RuleResult is the outcome of one validation rule.
type RuleResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// Report is the batched result of running every validation rule.
type Report struct {
	Valid bool                  `json:"valid"`
	Rules map[string]RuleResult `json:"rules"`
}

// Rule names, stable across snapshots and the debug export.
const (
	RuleCurrentNodeExists = "currentNodeExists"
	RuleEdgesValid        = "edgesValid"
	RulePhaseConsistent   = "phaseConsistent"
	RuleVisitedNodesExist = "visitedNodesExist"
)

// Validate runs the four rules against current state. Pure: no side effects,
// no mutation.
func (e *Engine) Validate() Report {
	r := Report{Valid: true, Rules: map[string]RuleResult{
		RuleCurrentNodeExists: e.ruleCurrentNodeExists(),
		RuleEdgesValid:        e.ruleEdgesValid(),
		RulePhaseConsistent:   e.rulePhaseConsistent(),
		RuleVisitedNodesExist: e.ruleVisitedNodesExist(),
	}}
	for _, res := range r.Rules {
		if !res.Valid {
			r.Valid = false
		}
	}
	return r
}

func (e *Engine) ruleCurrentNodeExists() RuleResult {
	if _, ok := e.graph.FindNode(e.state.CurrentNodeID); !ok {
		return RuleResult{Message: fmt.Sprintf("current node %q does not exist", e.state.CurrentNodeID)}
	}
	return RuleResult{Valid: true}
}

func (e *Engine) ruleEdgesValid() RuleResult {
	var bad []string
	for _, edge := range e.graph.Edges() {
		if _, ok := e.graph.FindNode(edge.FromID); !ok {
			bad = append(bad, fmt.Sprintf("%s: from %q missing", edge.ID, edge.FromID))
			continue
		}
		if _, ok := e.graph.FindNode(edge.ToID); !ok && !edge.Generated {
			bad = append(bad, fmt.Sprintf("%s: to %q missing and not a promise edge", edge.ID, edge.ToID))
		}
	}
	if len(bad) > 0 {
		return RuleResult{Message: strings.Join(bad, "; ")}
	}
	return RuleResult{Valid: true}
}

func (e *Engine) rulePhaseConsistent() RuleResult {
	if !validPhase(e.state.Phase) {
		return RuleResult{Message: fmt.Sprintf("unknown phase %q", e.state.Phase)}
	}
	return RuleResult{Valid: true}
}

func (e *Engine) ruleVisitedNodesExist() RuleResult {
	var bad []string
	for id := range e.state.Visited {
		if _, ok := e.graph.FindNode(id); !ok {
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		return RuleResult{Message: fmt.Sprintf("visited nodes missing: %s", strings.Join(bad, ", "))}
	}
	return RuleResult{Valid: true}
}
