package mqtt

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/JuggernautLabs/storyforge/internal/events"
)

// Broker is the publishing surface the event publisher needs. *Client
// satisfies it; tests substitute a mock.
type Broker interface {
	Publish(topic string, payload []byte, retained bool) error
	IsConnected() bool
}

// Publisher forwards bus events to MQTT topics. Each event goes to
// storyforge/<story>/events/<type>; events carrying a state snapshot also
// refresh the retained storyforge/<story>/state topic so late joiners see
// the current session immediately.
type Publisher struct {
	broker  Broker
	bus     *events.Bus
	storyID string

	mu      sync.Mutex
	sub     events.Subscriber
	done    chan struct{}
	started bool
}

// NewPublisher creates a publisher; call Start to begin forwarding.
func NewPublisher(broker Broker, bus *events.Bus, storyID string) *Publisher {
	return &Publisher{
		broker:  broker,
		bus:     bus,
		storyID: storyID,
	}
}

// Start subscribes to the bus and forwards events until Stop is called.
// Starting twice is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.sub = p.bus.Subscribe()
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		for e := range p.sub {
			p.forward(e)
		}
	}()
}

// Stop unsubscribes from the bus and waits for the forwarding goroutine to
// drain.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	sub := p.sub
	done := p.done
	p.mu.Unlock()

	p.bus.Unsubscribe(sub)
	<-done
}

func (p *Publisher) forward(e events.Event) {
	if !p.broker.IsConnected() {
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		log.Printf("mqtt: failed to marshal event %s: %v", e.Type, err)
		return
	}

	topic := "storyforge/" + p.storyID + "/events/" + e.Type
	if err := p.broker.Publish(topic, payload, false); err != nil {
		log.Printf("mqtt: failed to publish %s: %v", topic, err)
		return
	}

	if e.Snapshot == nil {
		return
	}
	state, err := json.Marshal(e.Snapshot)
	if err != nil {
		return
	}
	stateTopic := "storyforge/" + p.storyID + "/state"
	if err := p.broker.Publish(stateTopic, state, true); err != nil {
		log.Printf("mqtt: failed to publish %s: %v", stateTopic, err)
	}
}
