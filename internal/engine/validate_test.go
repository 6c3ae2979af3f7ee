package engine

import (
	"context"
	"testing"

	"github.com/JuggernautLabs/storyforge/internal/events"
	"github.com/JuggernautLabs/storyforge/internal/generate"
	"github.com/JuggernautLabs/storyforge/internal/story"
)

func corruptSnapshot() *Snapshot {
	return &Snapshot{
		Version: SnapshotVersion,
		Graph: GraphSnapshot{
			Nodes: []story.Node{{ID: SeedNodeID, Label: "Start"}},
			Edges: []story.Choice{
				// from a node that does not exist
				{ID: "bad-from", FromID: "ghost", ToID: SeedNodeID},
				// to a node that does not exist, and not a promise edge
				{ID: "bad-to", FromID: SeedNodeID, ToID: "ghost", Generated: false},
				// promise edge: allowed
				{ID: "promise", FromID: SeedNodeID, ToID: "future", Generated: true},
			},
		},
		Session: StateSnapshot{
			SeedNodeID:     SeedNodeID,
			CurrentNodeID:  "ghost",
			Phase:          "warping",
			Level:          2,
			Gold:           30,
			VisitedNodeIDs: []string{SeedNodeID, "ghost"},
		},
	}
}

func TestValidationRulesFlagCorruption(t *testing.T) {
	e, _ := newTestEngine(&stubGenerator{})

	g := story.NewGraph()
	g.AddNode(story.Node{ID: SeedNodeID})
	e.graph = g
	e.state.CurrentNodeID = "ghost"
	e.state.Phase = "warping"
	e.state.Visited["ghost"] = struct{}{}
	e.graph.AddEdges([]story.Choice{{ID: "bad", FromID: "ghost", ToID: SeedNodeID}})

	report := e.Validate()
	if report.Valid {
		t.Fatalf("expected validation to fail")
	}
	for _, rule := range []string{RuleCurrentNodeExists, RuleEdgesValid, RulePhaseConsistent, RuleVisitedNodesExist} {
		if report.Rules[rule].Valid {
			t.Errorf("expected rule %s to fail", rule)
		}
		if report.Rules[rule].Message == "" {
			t.Errorf("expected rule %s to carry a message", rule)
		}
	}
}

func TestPromiseEdgesAreValid(t *testing.T) {
	e, _ := newTestEngine(&stubGenerator{})
	e.Graph().AddEdges([]story.Choice{
		{ID: "promise", FromID: SeedNodeID, ToID: "future", Generated: true},
	})

	report := e.Validate()
	if !report.Rules[RuleEdgesValid].Valid {
		t.Errorf("expected promise edge to pass edgesValid: %s", report.Rules[RuleEdgesValid].Message)
	}
}

func TestAutoRepairFixesCorruptSnapshot(t *testing.T) {
	e, _ := newTestEngine(&stubGenerator{})

	fixes, err := e.Adopt(corruptSnapshot())
	if err != nil {
		t.Fatalf("Adopt failed: %v", err)
	}
	if fixes == 0 {
		t.Fatalf("expected repair fixes, got 0")
	}

	st := e.State()
	if st.CurrentNodeID != SeedNodeID {
		t.Errorf("expected current node reset to seed, got %s", st.CurrentNodeID)
	}
	if st.Phase != PhaseWaitingForChoices {
		t.Errorf("expected phase forced to waiting_for_choices, got %s", st.Phase)
	}
	if st.Gold != 30 || st.Level != 2 {
		t.Errorf("expected unrelated progress preserved, got gold=%d level=%d", st.Gold, st.Level)
	}
	for _, id := range st.VisitedNodeIDs {
		if id == "ghost" {
			t.Errorf("expected ghost removed from visited set")
		}
	}

	if !e.Validate().Valid {
		t.Errorf("expected state to validate after repair: %+v", e.Validate())
	}
	// The promise edge survives; the broken ones do not.
	if _, ok := e.Graph().FindEdge("promise"); !ok {
		t.Errorf("expected promise edge to survive repair")
	}
	if _, ok := e.Graph().FindEdge("bad-from"); ok {
		t.Errorf("expected bad-from edge removed")
	}
	if _, ok := e.Graph().FindEdge("bad-to"); ok {
		t.Errorf("expected bad-to edge removed")
	}
}

func TestAutoRepairIsAFixedPoint(t *testing.T) {
	e, _ := newTestEngine(&stubGenerator{})

	if _, err := e.Adopt(corruptSnapshot()); err != nil {
		t.Fatalf("Adopt failed: %v", err)
	}
	// Adopt already repaired once; a second pass fixes nothing.
	if fixes := e.AutoRepair(); fixes != 0 {
		t.Errorf("expected 0 fixes on second repair, got %d", fixes)
	}
}

func TestAutoRepairOnHealthyStateReportsZero(t *testing.T) {
	e, _ := newTestEngine(&stubGenerator{})
	if fixes := e.AutoRepair(); fixes != 0 {
		t.Errorf("expected 0 fixes on fresh session, got %d", fixes)
	}
}

func TestRepairEmitsEventOnlyWhenFixing(t *testing.T) {
	e, bus := newTestEngine(&stubGenerator{})

	repaired := 0
	bus.Listen(func(ev events.Event) {
		if ev.Type == "state.repaired" {
			repaired++
		}
	})

	e.AutoRepair()
	if repaired != 0 {
		t.Errorf("expected no state.repaired event on clean repair")
	}

	e.state.Visited["ghost"] = struct{}{}
	e.AutoRepair()
	if repaired != 1 {
		t.Errorf("expected one state.repaired event, got %d", repaired)
	}
}

func TestInvariantHoldsAcrossPlaythrough(t *testing.T) {
	gen := &stubGenerator{choices: []generate.ChoiceDescriptor{
		{Label: "Advance", Cost: 1, RewardXP: 5},
	}}
	e, _ := newTestEngine(gen)

	for i := 0; i < 10; i++ {
		choices, err := e.RequestChoices(context.Background())
		if err != nil {
			t.Fatalf("step %d: RequestChoices failed: %v", i, err)
		}
		if err := e.SelectChoice(context.Background(), choices[0].ID); err != nil {
			t.Fatalf("step %d: SelectChoice failed: %v", i, err)
		}
		if report := e.Validate(); !report.Valid {
			t.Fatalf("step %d: invariant broken: %+v", i, report)
		}
	}
}
