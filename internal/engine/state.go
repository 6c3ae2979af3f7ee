package engine

import "errors"

// Phase is the engine's position in the generation/choice cycle. game_over is
// a legal persisted value so old snapshots validate; live termination is
// tracked via IsOver, orthogonal to phase.
type Phase string

const (
	PhaseWaitingForChoices Phase = "waiting_for_choices"
	PhaseGeneratingChoices Phase = "generating_choices"
	PhaseChoosing          Phase = "choosing"
	PhaseAdvancing         Phase = "advancing"
	PhaseGameOver          Phase = "game_over"
)

// validPhase reports whether p is one of the five defined phase values.
func validPhase(p Phase) bool {
	switch p {
	case PhaseWaitingForChoices, PhaseGeneratingChoices, PhaseChoosing, PhaseAdvancing, PhaseGameOver:
		return true
	}
	return false
}

// InventoryItem is a carried item. Quantity is decremented when a consumable
// is spent; the item is removed entirely at zero.
type InventoryItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Consumable bool   `json:"consumable"`
	Quantity   int    `json:"quantity"`
}

// sessionState is the engine-owned mutable session. Only the engine touches
// it; callers see copies via StateSnapshot.
type sessionState struct {
	SeedNodeID         string
	CurrentNodeID      string
	Phase              Phase
	Level              int
	Experience         int
	Gold               int
	Inventory          []InventoryItem
	Visited            map[string]struct{}
	IsOver             bool
	IsWin              bool
	EndMessage         string
	GenerationInFlight bool
	GenerationID       uint64
	LastError          string
	ErrorCount         int
}

// Precondition violations. State is never mutated when one of these is
// returned; callers re-check affordability/phase and retry.
var (
	ErrGameOver           = errors.New("game is over")
	ErrWrongPhase         = errors.New("operation not legal in current phase")
	ErrGenerationInFlight = errors.New("generation already in flight")
	ErrUnknownChoice      = errors.New("choice does not exist at current node")
	ErrCannotAfford       = errors.New("choice is not affordable")
	ErrStaleGeneration    = errors.New("generation result arrived for a superseded request")
)

// StateSnapshot is an immutable copy of session state, attached to every
// lifecycle event and audit entry.
type StateSnapshot struct {
	CurrentNodeID      string          `json:"current_node_id"`
	SeedNodeID         string          `json:"seed_node_id"`
	Phase              Phase           `json:"phase"`
	Level              int             `json:"level"`
	Experience         int             `json:"experience"`
	Gold               int             `json:"gold"`
	Inventory          []InventoryItem `json:"inventory"`
	VisitedNodeIDs     []string        `json:"visited_node_ids"`
	IsOver             bool            `json:"is_over"`
	IsWin              bool            `json:"is_win"`
	EndMessage         string          `json:"end_message,omitempty"`
	GenerationInFlight bool            `json:"generation_in_flight"`
	LastError          string          `json:"last_error,omitempty"`
	ErrorCount         int             `json:"error_count"`
	NodeCount          int             `json:"node_count"`
	EdgeCount          int             `json:"edge_count"`
}
