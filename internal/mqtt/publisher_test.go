package mqtt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/JuggernautLabs/storyforge/internal/events"
)

// mockBroker records publishes for assertions.
type mockBroker struct {
	mu        sync.Mutex
	connected bool
	published []publishedMessage
}

type publishedMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func newMockBroker() *mockBroker {
	return &mockBroker{connected: true}
}

func (m *mockBroker) Publish(topic string, payload []byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMessage{topic: topic, payload: payload, retained: retained})
	return nil
}

func (m *mockBroker) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockBroker) messages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

func waitForMessages(t *testing.T, broker *mockBroker, n int) []publishedMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msgs := broker.messages()
		if len(msgs) >= n {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d published messages, got %d", n, len(broker.messages()))
	return nil
}

func TestPublisherForwardsEvents(t *testing.T) {
	bus := events.NewBus(0)
	broker := newMockBroker()
	pub := NewPublisher(broker, bus, "cave")
	pub.Start()
	defer pub.Stop()

	bus.EmitSystem("system.startup", "up", nil)

	msgs := waitForMessages(t, broker, 1)
	if msgs[0].topic != "storyforge/cave/events/system.startup" {
		t.Errorf("unexpected topic %s", msgs[0].topic)
	}
	if msgs[0].retained {
		t.Errorf("event messages should not be retained")
	}

	var e events.Event
	if err := json.Unmarshal(msgs[0].payload, &e); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if e.Type != "system.startup" || e.Message != "up" {
		t.Errorf("unexpected event payload: %+v", e)
	}
}

func TestPublisherRefreshesRetainedState(t *testing.T) {
	bus := events.NewBus(0)
	broker := newMockBroker()
	pub := NewPublisher(broker, bus, "cave")
	pub.Start()
	defer pub.Stop()

	e := events.NewEvent("info", "choice.completed", "", nil)
	e.Snapshot = map[string]interface{}{"level": 2}
	if err := bus.Emit(e); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	msgs := waitForMessages(t, broker, 2)
	if msgs[1].topic != "storyforge/cave/state" {
		t.Errorf("expected retained state topic, got %s", msgs[1].topic)
	}
	if !msgs[1].retained {
		t.Errorf("state topic should be retained")
	}
}

func TestPublisherSkipsWhenDisconnected(t *testing.T) {
	bus := events.NewBus(0)
	broker := newMockBroker()
	broker.connected = false

	pub := NewPublisher(broker, bus, "cave")
	pub.Start()

	bus.EmitSystem("system.startup", "", nil)

	// Give the forwarding goroutine a moment to see the event.
	time.Sleep(50 * time.Millisecond)
	pub.Stop()

	if len(broker.messages()) != 0 {
		t.Errorf("expected no publishes while disconnected, got %d", len(broker.messages()))
	}
}

func TestPublisherStopIsIdempotent(t *testing.T) {
	bus := events.NewBus(0)
	pub := NewPublisher(newMockBroker(), bus, "cave")

	pub.Stop() // never started

	pub.Start()
	pub.Start() // second start is a no-op
	pub.Stop()
	pub.Stop()
}
