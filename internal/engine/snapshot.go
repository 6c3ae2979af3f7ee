package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JuggernautLabs/storyforge/internal/story"
)

// SnapshotVersion is the current serialized snapshot schema version.
const SnapshotVersion = 1

// Snapshot is the versioned serialized form of a session. Loaded snapshots
// are untrusted input: they pass through validation and repair before the
// engine adopts them.
type Snapshot struct {
	Version int           `json:"version"`
	SavedAt string        `json:"saved_at"`
	Graph   GraphSnapshot `json:"graph"`
	Session StateSnapshot `json:"session"`
}

// GraphSnapshot is the serialized story graph.
type GraphSnapshot struct {
	Nodes []story.Node   `json:"nodes"`
	Edges []story.Choice `json:"edges"`
}

// Store abstracts the persistence medium for snapshots. Load returns nil
// data when no snapshot exists.
type Store interface {
	Load() ([]byte, error)
	Save(data []byte) error
	Clear() error
}

// Snapshot exports the current session for persistence.
func (e *Engine) Snapshot() *Snapshot {
	return &Snapshot{
		Version: SnapshotVersion,
		SavedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Graph: GraphSnapshot{
			Nodes: e.graph.Nodes(),
			Edges: e.graph.Edges(),
		},
		Session: e.State(),
	}
}

// Adopt replaces graph and session with the snapshot's content, then runs
// validation and auto-repair so invariants hold regardless of what was
// persisted. The in-flight guard is never adopted from a snapshot. Returns
// the number of repair fixes applied.
func (e *Engine) Adopt(snap *Snapshot) (int, error) {
	if snap == nil {
		return 0, fmt.Errorf("nil snapshot")
	}
	if snap.Version != SnapshotVersion {
		return 0, fmt.Errorf("unsupported snapshot version: %d", snap.Version)
	}

	g := story.NewGraph()
	for _, n := range snap.Graph.Nodes {
		g.AddNode(n)
	}
	g.AddEdges(snap.Graph.Edges)

	// Make sure the seed exists whatever the snapshot says; repair needs a
	// node to fall back to.
	seedID := snap.Session.SeedNodeID
	if seedID == "" {
		seedID = SeedNodeID
	}
	if _, ok := g.FindNode(seedID); !ok {
		seedID = SeedNodeID
		g.AddNode(story.Node{ID: SeedNodeID, Label: e.opts.SeedLabel, Body: e.opts.SeedBody})
	}

	visited := make(map[string]struct{}, len(snap.Session.VisitedNodeIDs))
	for _, id := range snap.Session.VisitedNodeIDs {
		visited[id] = struct{}{}
	}

	level := snap.Session.Level
	if level < 1 {
		level = 1
	}

	e.graph = g
	e.state = sessionState{
		SeedNodeID:    seedID,
		CurrentNodeID: snap.Session.CurrentNodeID,
		Phase:         snap.Session.Phase,
		Level:         level,
		Experience:    snap.Session.Experience,
		Gold:          snap.Session.Gold,
		Inventory:     append([]InventoryItem(nil), snap.Session.Inventory...),
		Visited:       visited,
		IsOver:        snap.Session.IsOver,
		IsWin:         snap.Session.IsWin,
		EndMessage:    snap.Session.EndMessage,
	}

	return e.AutoRepair(), nil
}

// Restore loads a snapshot from the store and adopts it. A missing snapshot
// leaves the fresh session in place. An unparseable or unsupported snapshot
// falls back to a fresh session with a recorded warning; it is never fatal.
func (e *Engine) Restore(store Store) error {
	data, err := store.Load()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if data == nil {
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		e.emitLevel("warn", "system.error", "snapshot unparseable, starting fresh",
			map[string]interface{}{"error": err.Error()})
		e.Reset()
		return nil
	}

	if _, err := e.Adopt(&snap); err != nil {
		e.emitLevel("warn", "system.error", "snapshot rejected, starting fresh",
			map[string]interface{}{"error": err.Error()})
		e.Reset()
		return nil
	}
	return nil
}

// Persist saves the current session to the store.
func (e *Engine) Persist(store Store) error {
	data, err := json.Marshal(e.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := store.Save(data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// DebugData is the read-only diagnostic dump.
type DebugData struct {
	State          StateSnapshot  `json:"state"`
	Validation     Report         `json:"validation"`
	AuditLog       []AuditEntry   `json:"audit_log"`
	CurrentChoices []story.Choice `json:"current_choices"`
}

// ExportDebugData returns state, validation, the audit log, and the current
// choices. No side effects.
func (e *Engine) ExportDebugData() DebugData {
	return DebugData{
		State:          e.State(),
		Validation:     e.Validate(),
		AuditLog:       e.AuditLog(),
		CurrentChoices: e.CurrentChoices(),
	}
}
