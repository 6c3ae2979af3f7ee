package events

import (
	"fmt"
	"time"
)

// Event is a single lifecycle notification. Snapshot carries an immutable
// copy of engine state at emission time for lifecycle events; system events
// leave it nil.
type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Type      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Snapshot  interface{}            `json:"snapshot,omitempty"`
}

// NewEvent builds an event stamped with the current UTC time.
func NewEvent(level, typ, msg string, fields map[string]interface{}) Event {
	return Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Type:      typ,
		Message:   msg,
		Fields:    fields,
	}
}

var allowedEvents = map[string]struct{}{
	// generation
	"generation.started":   {},
	"generation.completed": {},
	"generation.failed":    {},

	// choice
	"choice.started":   {},
	"choice.completed": {},
	"choice.failed":    {},

	// player
	"player.level_up": {},

	// game
	"game.won": {},

	// state
	"state.reset":    {},
	"state.repaired": {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

// Validate rejects event types outside the registered lifecycle set.
func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
