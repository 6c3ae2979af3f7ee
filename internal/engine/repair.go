package engine

import "github.com/JuggernautLabs/storyforge/internal/story"

// AutoRepair mutates state until the validation rules pass again, discarding
// as little progress as possible. It is idempotent: a second call on the same
// state fixes nothing. Repair never runs implicitly inside a transition; the
// one exception is the bounded repair-then-retry branch in RequestChoices.
//
// Returns the number of issues fixed. Zero is a valid, reportable outcome.
func (e *Engine) AutoRepair() int {
	done := e.beginAudit("autoRepair", nil)
	fixes := 0

	// Drop edges whose endpoints cannot be resolved.
	fixes += e.graph.RemoveEdges(func(c story.Choice) bool {
		if _, ok := e.graph.FindNode(c.FromID); !ok {
			return true
		}
		if _, ok := e.graph.FindNode(c.ToID); !ok && !c.Generated {
			return true
		}
		return false
	})

	// A dangling current node falls back to the seed.
	if _, ok := e.graph.FindNode(e.state.CurrentNodeID); !ok {
		e.state.CurrentNodeID = e.state.SeedNodeID
		e.state.Phase = PhaseWaitingForChoices
		fixes++
	}

	if !validPhase(e.state.Phase) {
		e.state.Phase = PhaseWaitingForChoices
		fixes++
	}

	for id := range e.state.Visited {
		if _, ok := e.graph.FindNode(id); !ok {
			delete(e.state.Visited, id)
			fixes++
		}
	}

	if _, ok := e.state.Visited[e.state.SeedNodeID]; !ok {
		e.state.Visited[e.state.SeedNodeID] = struct{}{}
		fixes++
	}

	if fixes > 0 {
		e.emit("state.repaired", "", map[string]interface{}{"fixes": fixes})
	}
	done("ok")
	return fixes
}
