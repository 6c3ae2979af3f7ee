// Package engine implements the narrative state machine: a single-writer
// runtime that owns the story graph and session state, calls out to a content
// generator at its two suspension points, and emits a lifecycle event for
// every transition.
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/JuggernautLabs/storyforge/internal/events"
	"github.com/JuggernautLabs/storyforge/internal/generate"
	"github.com/JuggernautLabs/storyforge/internal/story"
)

// SeedNodeID is the fixed id of the node that exists at session start.
const SeedNodeID = "seed"

// Options tunes the session economy and seed content.
type Options struct {
	SeedLabel        string
	SeedBody         string
	StartingGold     int
	XPPerLevel       int
	LevelBonusGold   int
	VictoryBonusGold int
	AuditSize        int
}

func (o Options) withDefaults() Options {
	if o.SeedLabel == "" {
		o.SeedLabel = "The Journey Begins"
	}
	if o.SeedBody == "" {
		o.SeedBody = "You stand at the mouth of a dark cave. Faint light flickers somewhere inside."
	}
	if o.StartingGold == 0 {
		o.StartingGold = 50
	}
	if o.XPPerLevel == 0 {
		o.XPPerLevel = 100
	}
	if o.LevelBonusGold == 0 {
		o.LevelBonusGold = 25
	}
	if o.VictoryBonusGold == 0 {
		o.VictoryBonusGold = 100
	}
	if o.AuditSize == 0 {
		o.AuditSize = 512
	}
	return o
}

// Engine owns the story graph and session state. It is not thread-safe: all
// operations must be invoked from one logical sequence. The only suspension
// points are the two generator calls.
type Engine struct {
	graph  *story.Graph
	state  sessionState
	gen    generate.Generator
	bus    *events.Bus
	opts   Options
	audit  *auditLog
	genSeq uint64
}

// New creates an engine with a fresh session: one seed node, empty edge set,
// default stats.
func New(gen generate.Generator, bus *events.Bus, opts Options) *Engine {
	e := &Engine{
		gen:  gen,
		bus:  bus,
		opts: opts.withDefaults(),
	}
	e.audit = newAuditLog(e.opts.AuditSize)
	e.initSession()
	return e
}

// initSession builds the seed graph and default session state without
// emitting events.
func (e *Engine) initSession() {
	g := story.NewGraph()
	g.AddNode(story.Node{
		ID:    SeedNodeID,
		Label: e.opts.SeedLabel,
		Body:  e.opts.SeedBody,
	})
	e.graph = g
	e.state = sessionState{
		SeedNodeID:    SeedNodeID,
		CurrentNodeID: SeedNodeID,
		Phase:         PhaseWaitingForChoices,
		Level:         1,
		Gold:          e.opts.StartingGold,
		Visited:       map[string]struct{}{SeedNodeID: {}},
	}
}

// Reset discards the session and graph and starts fresh.
func (e *Engine) Reset() {
	done := e.beginAudit("reset", nil)
	e.initSession()
	e.emit("state.reset", "", nil)
	done("ok")
}

// Graph exposes the graph for read-only queries.
func (e *Engine) Graph() *story.Graph {
	return e.graph
}

// State returns an immutable copy of session state.
func (e *Engine) State() StateSnapshot {
	visited := make([]string, 0, len(e.state.Visited))
	for id := range e.state.Visited {
		visited = append(visited, id)
	}
	sort.Strings(visited)

	inv := make([]InventoryItem, len(e.state.Inventory))
	copy(inv, e.state.Inventory)

	return StateSnapshot{
		CurrentNodeID:      e.state.CurrentNodeID,
		SeedNodeID:         e.state.SeedNodeID,
		Phase:              e.state.Phase,
		Level:              e.state.Level,
		Experience:         e.state.Experience,
		Gold:               e.state.Gold,
		Inventory:          inv,
		VisitedNodeIDs:     visited,
		IsOver:             e.state.IsOver,
		IsWin:              e.state.IsWin,
		EndMessage:         e.state.EndMessage,
		GenerationInFlight: e.state.GenerationInFlight,
		LastError:          e.state.LastError,
		ErrorCount:         e.state.ErrorCount,
		NodeCount:          e.graph.NodeCount(),
		EdgeCount:          e.graph.EdgeCount(),
	}
}

// CurrentChoices returns the outgoing edges of the current node.
func (e *Engine) CurrentChoices() []story.Choice {
	return e.graph.OutgoingEdges(e.state.CurrentNodeID)
}

// CanAfford reports whether the session can pay for a choice: enough gold,
// and the required item (if any) present. Pure; callers must not cache the
// result across mutations.
func (e *Engine) CanAfford(c story.Choice) bool {
	if c.Cost > e.state.Gold {
		return false
	}
	if c.RequiredItemID != "" && e.findItem(c.RequiredItemID) < 0 {
		return false
	}
	return true
}

func (e *Engine) findItem(itemID string) int {
	for i, item := range e.state.Inventory {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// GrantItem adds an item to the inventory, merging quantity with an existing
// stack of the same id.
func (e *Engine) GrantItem(item InventoryItem) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if i := e.findItem(item.ID); i >= 0 {
		e.state.Inventory[i].Quantity += item.Quantity
		return
	}
	e.state.Inventory = append(e.state.Inventory, item)
}

// RequestChoices drives waiting_for_choices -> generating_choices ->
// choosing. Generation is idempotent per node: if outgoing edges already
// exist the call returns them without invoking the generator, including the
// re-entrant call while already choosing.
func (e *Engine) RequestChoices(ctx context.Context) ([]story.Choice, error) {
	if e.state.IsOver {
		return nil, ErrGameOver
	}
	if e.state.GenerationInFlight {
		return nil, ErrGenerationInFlight
	}
	switch e.state.Phase {
	case PhaseWaitingForChoices, PhaseChoosing:
	default:
		return nil, fmt.Errorf("%w: %s", ErrWrongPhase, e.state.Phase)
	}

	node, ok := e.graph.FindNode(e.state.CurrentNodeID)
	if !ok {
		// Invalid state reached us outside a load; repair once and retry.
		if e.AutoRepair() == 0 {
			return nil, fmt.Errorf("current node %q not found and not repairable", e.state.CurrentNodeID)
		}
		node, ok = e.graph.FindNode(e.state.CurrentNodeID)
		if !ok {
			return nil, fmt.Errorf("current node %q not found after repair", e.state.CurrentNodeID)
		}
	}

	if existing := e.graph.OutgoingEdges(node.ID); len(existing) > 0 {
		e.state.Phase = PhaseChoosing
		return existing, nil
	}

	done := e.beginAudit("requestChoices", map[string]interface{}{"node_id": node.ID})

	reqID := e.beginGeneration()
	e.state.Phase = PhaseGeneratingChoices
	e.emit("generation.started", "", map[string]interface{}{"node_id": node.ID, "request_id": reqID})

	cs, err := e.gen.GenerateChoices(ctx, node, e.generatorContext())
	if err == nil {
		err = generate.ValidateChoiceSet(cs)
	}

	if !e.completeGeneration(reqID) {
		done("stale")
		return nil, ErrStaleGeneration
	}

	if err != nil {
		e.state.Phase = PhaseWaitingForChoices
		e.recordError(err)
		e.emitLevel("error", "generation.failed", err.Error(), map[string]interface{}{"node_id": node.ID})
		done("failed: " + err.Error())
		return nil, fmt.Errorf("generate choices for %s: %w", node.ID, err)
	}

	edges := e.materializeChoices(node.ID, cs)
	e.graph.AddEdges(edges)
	e.state.Phase = PhaseChoosing
	e.emit("generation.completed", "", map[string]interface{}{
		"node_id":    node.ID,
		"choices":    len(edges),
		"confidence": cs.Confidence,
	})
	done("ok")
	return edges, nil
}

// materializeChoices turns validated descriptors into edges with fresh ids.
// ToID is a promise node id not yet present in the graph.
func (e *Engine) materializeChoices(fromID string, cs *generate.ChoiceSet) []story.Choice {
	edges := make([]story.Choice, 0, len(cs.Choices))
	for _, d := range cs.Choices {
		risk := d.Risk
		if risk == "" {
			risk = story.RiskLow
		}
		edges = append(edges, story.Choice{
			ID:             uuid.NewString(),
			FromID:         fromID,
			ToID:           uuid.NewString(),
			Label:          d.Label,
			Cost:           d.Cost,
			RequiredItemID: d.RequiredItemID,
			Risk:           risk,
			RewardXP:       d.RewardXP,
			Winning:        d.Winning,
			Generated:      true,
		})
	}
	return edges
}

// SelectChoice drives choosing -> advancing -> waiting_for_choices. All
// preconditions are checked before any mutation; a violated precondition
// fails the call with state untouched.
func (e *Engine) SelectChoice(ctx context.Context, choiceID string) error {
	if e.state.IsOver {
		return ErrGameOver
	}
	if e.state.GenerationInFlight {
		return ErrGenerationInFlight
	}
	if e.state.Phase != PhaseChoosing {
		return fmt.Errorf("%w: %s", ErrWrongPhase, e.state.Phase)
	}
	choice, ok := e.graph.FindEdge(choiceID)
	if !ok || choice.FromID != e.state.CurrentNodeID {
		return ErrUnknownChoice
	}
	if !e.CanAfford(choice) {
		return ErrCannotAfford
	}

	done := e.beginAudit("selectChoice", map[string]interface{}{"choice_id": choiceID})

	fromNode, _ := e.graph.FindNode(choice.FromID)
	e.state.Phase = PhaseAdvancing
	e.emit("choice.started", "", map[string]interface{}{"choice_id": choice.ID, "to_id": choice.ToID})

	if _, exists := e.graph.FindNode(choice.ToID); !exists {
		reqID := e.beginGeneration()
		nd, err := e.gen.GenerateNode(ctx, choice, fromNode, e.generatorContext())
		if err == nil {
			err = generate.ValidateNode(nd)
		}
		if !e.completeGeneration(reqID) {
			done("stale")
			return ErrStaleGeneration
		}
		if err != nil {
			e.state.Phase = PhaseChoosing
			e.recordError(err)
			e.emitLevel("error", "choice.failed", err.Error(), map[string]interface{}{"choice_id": choice.ID})
			done("failed: " + err.Error())
			return fmt.Errorf("generate node for choice %s: %w", choice.ID, err)
		}
		e.graph.AddNode(story.Node{
			ID:        choice.ToID,
			Label:     nd.Label,
			Body:      nd.Body,
			Generated: true,
		})
	}

	levelsGained, won := e.applyConsequences(choice)

	e.state.CurrentNodeID = choice.ToID
	e.state.Visited[choice.ToID] = struct{}{}

	// Clear stale edges left over from a previous visit to the node we are
	// arriving at. Edges leaving the departed node stay for back-navigation.
	e.graph.RemoveEdges(func(c story.Choice) bool { return c.FromID == choice.ToID })

	e.state.Phase = PhaseWaitingForChoices

	e.emit("choice.completed", "", map[string]interface{}{
		"choice_id": choice.ID,
		"node_id":   choice.ToID,
	})
	if levelsGained > 0 {
		e.emit("player.level_up", "", map[string]interface{}{
			"levels_gained": levelsGained,
			"level":         e.state.Level,
		})
	}
	if won {
		e.emit("game.won", e.state.EndMessage, map[string]interface{}{"node_id": choice.ToID})
	}
	done("ok")
	return nil
}

// applyConsequences deducts cost, consumes the required item, resolves
// experience and level-ups, and handles a winning choice. Cost and item
// consumption come first so a level-up bonus is never reduced by the
// choice's own cost.
func (e *Engine) applyConsequences(c story.Choice) (levelsGained int, won bool) {
	e.state.Gold -= c.Cost

	if c.RequiredItemID != "" {
		if i := e.findItem(c.RequiredItemID); i >= 0 && e.state.Inventory[i].Consumable {
			e.state.Inventory[i].Quantity--
			if e.state.Inventory[i].Quantity <= 0 {
				e.state.Inventory = append(e.state.Inventory[:i], e.state.Inventory[i+1:]...)
			}
		}
	}

	e.state.Experience += c.RewardXP
	for e.state.Experience >= e.state.Level*e.opts.XPPerLevel {
		e.state.Level++
		e.state.Gold += e.opts.LevelBonusGold
		levelsGained++
	}

	if c.Winning {
		e.state.IsOver = true
		e.state.IsWin = true
		e.state.EndMessage = fmt.Sprintf("Victory! %s", c.Label)
		e.state.Gold += e.opts.VictoryBonusGold
		won = true
	}
	return levelsGained, won
}

func (e *Engine) generatorContext() generate.Context {
	visited := make([]string, 0, len(e.state.Visited))
	for id := range e.state.Visited {
		visited = append(visited, id)
	}
	sort.Strings(visited)
	return generate.Context{
		VisitedNodeIDs: visited,
		Nodes:          e.graph.Nodes(),
		Edges:          e.graph.Edges(),
	}
}

// beginGeneration stamps a fresh monotonic request id and raises the
// in-flight guard.
func (e *Engine) beginGeneration() uint64 {
	e.genSeq++
	e.state.GenerationInFlight = true
	e.state.GenerationID = e.genSeq
	return e.genSeq
}

// completeGeneration lowers the guard if reqID is still the current request.
// A result for a superseded request reports false and must be discarded.
func (e *Engine) completeGeneration(reqID uint64) bool {
	if !e.state.GenerationInFlight || e.state.GenerationID != reqID {
		return false
	}
	e.state.GenerationInFlight = false
	return true
}

func (e *Engine) recordError(err error) {
	e.state.LastError = err.Error()
	e.state.ErrorCount++
}

// LastError returns the most recent generator error message, if any.
func (e *Engine) LastError() string {
	return e.state.LastError
}

// ErrorCount returns the number of generator failures this session.
func (e *Engine) ErrorCount() int {
	return e.state.ErrorCount
}

func (e *Engine) emit(typ, msg string, fields map[string]interface{}) {
	e.emitLevel("info", typ, msg, fields)
}

func (e *Engine) emitLevel(level, typ, msg string, fields map[string]interface{}) {
	if e.bus == nil {
		return
	}
	ev := events.NewEvent(level, typ, msg, fields)
	ev.Snapshot = e.State()
	if err := e.bus.Emit(ev); err != nil {
		// Registry rejection is a programming bug; surface it in the session
		// error bookkeeping rather than crashing.
		e.recordError(err)
	}
}
