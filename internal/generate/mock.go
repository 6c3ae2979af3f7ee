package generate

import (
	"context"
	"fmt"

	"github.com/JuggernautLabs/storyforge/internal/story"
)

// MockGenerator produces deterministic themed content without any external
// backend. It is the default engine for cmd/play and the test suite.
type MockGenerator struct {
	// depth counts node-generation calls so successive situations differ.
	depth int
}

// NewMockGenerator creates a mock generator.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

var mockChoiceTable = []ChoiceDescriptor{
	{Label: "Press on into the dark tunnel", Cost: 0, Risk: story.RiskMedium, RewardXP: 15},
	{Label: "Buy a torch from the wandering trader", Cost: 10, Risk: story.RiskLow, RewardXP: 10},
	{Label: "Climb the crumbling ledge", Cost: 5, Risk: story.RiskHigh, RewardXP: 30},
}

var mockSituations = []string{
	"The passage opens into a cavern lit by veins of glowing ore. Water drips somewhere out of sight.",
	"A rope bridge sways over a chasm. On the far side, a door stands ajar.",
	"You reach a circular chamber with ancient drawings on the walls and a pedestal at its center.",
	"A narrow stair spirals downward. Warm air rises from below, carrying the smell of smoke.",
}

// GenerateChoices returns a fixed set of three choices for any node.
func (m *MockGenerator) GenerateChoices(_ context.Context, node story.Node, _ Context) (*ChoiceSet, error) {
	choices := make([]ChoiceDescriptor, len(mockChoiceTable))
	copy(choices, mockChoiceTable)
	return &ChoiceSet{Choices: choices, Confidence: 0.9}, nil
}

// GenerateNode returns a situation drawn round-robin from the predefined
// table, labeled after the accepted choice.
func (m *MockGenerator) GenerateNode(_ context.Context, choice story.Choice, _ story.Node, _ Context) (*NodeDescriptor, error) {
	body := mockSituations[m.depth%len(mockSituations)]
	m.depth++
	return &NodeDescriptor{
		Label:      fmt.Sprintf("After: %s", choice.Label),
		Body:       body,
		Confidence: 0.85,
	}, nil
}
