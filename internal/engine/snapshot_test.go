package engine

import (
	"context"
	"testing"

	"github.com/JuggernautLabs/storyforge/internal/generate"
)

// memStore is an in-memory snapshot store for tests.
type memStore struct {
	data []byte
}

func (m *memStore) Load() ([]byte, error) { return m.data, nil }
func (m *memStore) Save(d []byte) error   { m.data = append([]byte(nil), d...); return nil }
func (m *memStore) Clear() error          { m.data = nil; return nil }

func TestSnapshotRoundTrip(t *testing.T) {
	gen := &stubGenerator{choices: []generate.ChoiceDescriptor{
		{Label: "Advance", Cost: 10, RewardXP: 15},
	}}
	e, _ := newTestEngine(gen)

	choices, _ := e.RequestChoices(context.Background())
	if err := e.SelectChoice(context.Background(), choices[0].ID); err != nil {
		t.Fatalf("SelectChoice failed: %v", err)
	}

	store := &memStore{}
	if err := e.Persist(store); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	restored := New(gen, nil, Options{})
	if err := restored.Restore(store); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	orig, got := e.State(), restored.State()
	if got.CurrentNodeID != orig.CurrentNodeID {
		t.Errorf("current node: expected %s, got %s", orig.CurrentNodeID, got.CurrentNodeID)
	}
	if got.Level != orig.Level || got.Experience != orig.Experience || got.Gold != orig.Gold {
		t.Errorf("stats drifted: expected %d/%d/%d, got %d/%d/%d",
			orig.Level, orig.Experience, orig.Gold, got.Level, got.Experience, got.Gold)
	}
	if len(got.VisitedNodeIDs) > len(orig.VisitedNodeIDs) {
		t.Errorf("restored visited set grew: %v vs %v", got.VisitedNodeIDs, orig.VisitedNodeIDs)
	}
	if !restored.Validate().Valid {
		t.Errorf("expected restored state to validate")
	}
}

func TestRestoreMissingSnapshotKeepsFreshSession(t *testing.T) {
	e, _ := newTestEngine(&stubGenerator{})
	if err := e.Restore(&memStore{}); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if e.State().CurrentNodeID != SeedNodeID {
		t.Errorf("expected fresh session to remain")
	}
}

func TestRestoreUnparseableSnapshotFallsBack(t *testing.T) {
	gen := &stubGenerator{choices: []generate.ChoiceDescriptor{{Label: "Advance"}}}
	e, _ := newTestEngine(gen)

	choices, _ := e.RequestChoices(context.Background())
	e.SelectChoice(context.Background(), choices[0].ID)

	store := &memStore{data: []byte("{not json")}
	if err := e.Restore(store); err != nil {
		t.Fatalf("Restore should not fail hard on bad data: %v", err)
	}

	st := e.State()
	if st.CurrentNodeID != SeedNodeID || st.Gold != 50 {
		t.Errorf("expected fallback to fresh session, got %+v", st)
	}
}

func TestRestoreUnsupportedVersionFallsBack(t *testing.T) {
	e, _ := newTestEngine(&stubGenerator{})
	store := &memStore{data: []byte(`{"version": 99}`)}
	if err := e.Restore(store); err != nil {
		t.Fatalf("Restore should not fail hard on unknown version: %v", err)
	}
	if e.State().CurrentNodeID != SeedNodeID {
		t.Errorf("expected fresh session after version rejection")
	}
}

func TestGhostCurrentNodeRepairedOnLoad(t *testing.T) {
	e, _ := newTestEngine(&stubGenerator{})

	snap := e.Snapshot()
	snap.Session.CurrentNodeID = "ghost"

	fixes, err := e.Adopt(snap)
	if err != nil {
		t.Fatalf("Adopt failed: %v", err)
	}
	if fixes == 0 {
		t.Errorf("expected at least one fix")
	}
	st := e.State()
	if st.CurrentNodeID != SeedNodeID {
		t.Errorf("expected current node repaired to seed, got %s", st.CurrentNodeID)
	}
	if st.Phase != PhaseWaitingForChoices {
		t.Errorf("expected phase waiting_for_choices, got %s", st.Phase)
	}
}
