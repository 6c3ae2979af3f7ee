// Package generate defines the content-generator boundary. The engine never
// trusts generator output directly; descriptors are validated here before any
// graph mutation happens.
package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/JuggernautLabs/storyforge/internal/story"
)

// Context is the read-only view of session state handed to a generator so it
// can produce content consistent with the playthrough so far.
type Context struct {
	VisitedNodeIDs []string
	Nodes          []story.Node
	Edges          []story.Choice
}

// ChoiceDescriptor is a generator-proposed choice before the engine assigns
// ids and wires it into the graph.
type ChoiceDescriptor struct {
	Label          string          `json:"label"`
	Cost           int             `json:"cost"`
	RequiredItemID string          `json:"required_item_id,omitempty"`
	Risk           story.RiskLevel `json:"risk_level"`
	RewardXP       int             `json:"reward_experience"`
	Winning        bool            `json:"winning,omitempty"`
}

// ChoiceSet is the result of one choice-generation call.
type ChoiceSet struct {
	Choices    []ChoiceDescriptor `json:"choices"`
	Confidence float64            `json:"confidence"`
}

// NodeDescriptor is a generator-proposed node body for an accepted choice.
type NodeDescriptor struct {
	Label      string  `json:"label"`
	Body       string  `json:"body"`
	Confidence float64 `json:"confidence"`
}

// Generator produces story content asynchronously. Implementations must
// return an error on failure; a nil error with an empty choice set is a
// contract violation the engine treats as failure.
type Generator interface {
	GenerateChoices(ctx context.Context, node story.Node, gctx Context) (*ChoiceSet, error)
	GenerateNode(ctx context.Context, choice story.Choice, from story.Node, gctx Context) (*NodeDescriptor, error)
}

// ErrEmptyChoiceSet is returned when a generator produces zero choices.
var ErrEmptyChoiceSet = errors.New("generator returned empty choice set")

// ValidateChoiceSet checks a generator result before the engine trusts it.
func ValidateChoiceSet(cs *ChoiceSet) error {
	if cs == nil || len(cs.Choices) == 0 {
		return ErrEmptyChoiceSet
	}
	for i, c := range cs.Choices {
		if c.Label == "" {
			return fmt.Errorf("choice %d: missing label", i)
		}
		if c.Cost < 0 {
			return fmt.Errorf("choice %d: negative cost %d", i, c.Cost)
		}
		if c.RewardXP < 0 {
			return fmt.Errorf("choice %d: negative reward %d", i, c.RewardXP)
		}
		switch c.Risk {
		case story.RiskLow, story.RiskMedium, story.RiskHigh, "":
		default:
			return fmt.Errorf("choice %d: unknown risk level %q", i, c.Risk)
		}
	}
	return nil
}

// ValidateNode checks a generated node descriptor before the engine trusts it.
func ValidateNode(nd *NodeDescriptor) error {
	if nd == nil {
		return errors.New("generator returned nil node")
	}
	if nd.Label == "" && nd.Body == "" {
		return errors.New("generator returned empty node")
	}
	return nil
}
