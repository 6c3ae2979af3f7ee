package events

import (
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus(16)

	sub1 := bus.Subscribe()
	if bus.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", bus.SubscriberCount())
	}

	sub2 := bus.Subscribe()
	if bus.SubscriberCount() != 2 {
		t.Errorf("expected 2 subscribers, got %d", bus.SubscriberCount())
	}

	bus.Unsubscribe(sub1)
	if bus.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber after unsubscribe, got %d", bus.SubscriberCount())
	}

	bus.Unsubscribe(sub2)
	if bus.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after all unsubscribed, got %d", bus.SubscriberCount())
	}
}

func TestEmitRejectsUnknownEventType(t *testing.T) {
	bus := NewBus(16)
	if err := bus.Emit(NewEvent("info", "node.started", "", nil)); err == nil {
		t.Errorf("expected unknown event type to be rejected")
	}
}

func TestBroadcastToSubscribers(t *testing.T) {
	bus := NewBus(16)
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	if err := bus.Emit(NewEvent("info", "generation.started", "", map[string]interface{}{"node_id": "seed"})); err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	select {
	case e := <-sub:
		if e.Type != "generation.started" {
			t.Errorf("expected 'generation.started', got %q", e.Type)
		}
		if e.Fields["node_id"] != "seed" {
			t.Errorf("expected node_id 'seed', got %v", e.Fields["node_id"])
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for broadcast event")
	}
}

func TestListenerReceivesSynchronously(t *testing.T) {
	bus := NewBus(16)

	var seen []string
	unsubscribe := bus.Listen(func(e Event) {
		seen = append(seen, e.Type)
	})

	bus.Emit(NewEvent("info", "choice.started", "", nil))
	bus.Emit(NewEvent("info", "choice.completed", "", nil))

	if len(seen) != 2 {
		t.Fatalf("expected 2 events seen, got %d", len(seen))
	}
	if seen[0] != "choice.started" || seen[1] != "choice.completed" {
		t.Errorf("unexpected event order: %v", seen)
	}

	unsubscribe()
	bus.Emit(NewEvent("info", "state.reset", "", nil))
	if len(seen) != 2 {
		t.Errorf("expected no events after unsubscribe, got %d", len(seen))
	}
}

func TestListenerPanicDoesNotAbortEmit(t *testing.T) {
	bus := NewBus(16)

	bus.Listen(func(Event) { panic("listener bug") })

	received := false
	bus.Listen(func(Event) { received = true })

	if err := bus.Emit(NewEvent("info", "state.reset", "", nil)); err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if !received {
		t.Errorf("expected second listener to run despite first panicking")
	}
}

func TestRecentEvents(t *testing.T) {
	bus := NewBus(16)

	for i := 0; i < 10; i++ {
		bus.Emit(NewEvent("info", "generation.started", "", map[string]interface{}{"i": i}))
	}

	recent := bus.Recent(5)
	if len(recent) != 5 {
		t.Errorf("expected 5 recent events, got %d", len(recent))
	}
	if recent[0].Fields["i"] != 5 {
		t.Errorf("expected first recent event i=5, got %v", recent[0].Fields["i"])
	}

	all := bus.Recent(100)
	if len(all) != 10 {
		t.Errorf("expected 10 events when requesting 100, got %d", len(all))
	}

	zero := bus.Recent(0)
	if len(zero) != 10 {
		t.Errorf("expected 10 events when requesting 0, got %d", len(zero))
	}
}

func TestSinkFailureRecordedOnce(t *testing.T) {
	bus := NewBus(16)
	bus.SetSink(failingSink{})

	bus.Emit(NewEvent("info", "state.reset", "", nil))
	bus.Emit(NewEvent("info", "state.reset", "", nil))

	errors := 0
	for _, e := range bus.Recent(0) {
		if e.Type == "system.error" {
			errors++
		}
	}
	if errors != 1 {
		t.Errorf("expected exactly 1 system.error recorded, got %d", errors)
	}
}

type failingSink struct{}

func (failingSink) Append(Event) error { return errSink }

var errSink = &sinkError{}

type sinkError struct{}

func (*sinkError) Error() string { return "sink unavailable" }
