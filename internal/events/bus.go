package events

import (
	"log"
	"sync"
)

// DefaultBufferSize is the size of the recent-events ring buffer.
const DefaultBufferSize = 256

// Listener receives events synchronously on the emitting goroutine. A panic
// inside a listener is recovered and logged; it never aborts the operation
// that emitted the event.
type Listener func(Event)

// Subscriber is a buffered channel fed by the bus for streaming consumers
// (websocket clients, MQTT publisher).
type Subscriber chan Event

// Sink receives every emitted event for durable storage. Append errors are
// reported once and then suppressed to avoid log spam.
type Sink interface {
	Append(e Event) error
}

// Bus fans out events to synchronous listeners, channel subscribers, the
// ring buffer, and an optional durable sink. A Bus is owned by whoever
// constructs it; there is no package-level instance.
type Bus struct {
	mu          sync.RWMutex
	listeners   map[int]Listener
	nextID      int
	subscribers map[Subscriber]struct{}
	buffer      *RingBuffer
	sink        Sink
	sinkErrored bool
	total       int64
}

// NewBus creates a bus with a ring buffer of the given size (0 uses the
// default).
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		listeners:   make(map[int]Listener),
		subscribers: make(map[Subscriber]struct{}),
		buffer:      NewRingBuffer(bufferSize),
	}
}

// SetSink attaches a durable sink. Pass nil to detach.
func (b *Bus) SetSink(s Sink) {
	b.mu.Lock()
	b.sink = s
	b.sinkErrored = false
	b.mu.Unlock()
}

// Listen registers a synchronous listener and returns an unsubscribe handle.
func (b *Bus) Listen(fn Listener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Subscribe adds a channel subscriber. The channel is buffered so a slow
// consumer cannot block Emit; overflow events are dropped for that consumer.
func (b *Bus) Subscribe() Subscriber {
	ch := make(Subscriber, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	_, ok := b.subscribers[sub]
	delete(b.subscribers, sub)
	b.mu.Unlock()
	if ok {
		close(sub)
	}
}

// CloseAllSubscribers removes and closes every channel subscriber.
func (b *Bus) CloseAllSubscribers() {
	b.mu.Lock()
	subs := b.subscribers
	b.subscribers = make(map[Subscriber]struct{})
	b.mu.Unlock()

	for sub := range subs {
		close(sub)
	}
}

// SubscriberCount returns the current number of channel subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Emit validates the event type, records the event, and fans it out.
func (b *Bus) Emit(e Event) error {
	if err := Validate(e.Type); err != nil {
		return err
	}

	b.buffer.Add(e)

	b.mu.Lock()
	b.total++
	b.mu.Unlock()

	b.mu.RLock()
	sink := b.sink
	sinkErrored := b.sinkErrored
	listeners := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	subs := make([]Subscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	if sink != nil {
		if err := sink.Append(e); err != nil && !sinkErrored {
			b.mu.Lock()
			b.sinkErrored = true
			b.mu.Unlock()
			// Record the failure directly in the buffer; going through Emit
			// again would recurse if the sink keeps failing.
			b.buffer.Add(NewEvent("error", "system.error", "event sink append failed",
				map[string]interface{}{"error": err.Error()}))
		}
	}

	for _, fn := range listeners {
		b.callListener(fn, e)
	}

	for _, sub := range subs {
		select {
		case sub <- e:
		default:
			// Buffer full, drop event for this slow subscriber
		}
	}

	return nil
}

func (b *Bus) callListener(fn Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event listener panic on %s: %v", e.Type, r)
		}
	}()
	fn(e)
}

// TotalCount returns the number of events emitted since the bus was created.
func (b *Bus) TotalCount() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

// Recent returns the last n events from the ring buffer. n <= 0 or n larger
// than what is buffered returns everything available.
func (b *Bus) Recent(n int) []Event {
	all := b.buffer.Snapshot()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Clear resets the ring buffer. Used for testing.
func (b *Bus) Clear() {
	b.buffer.Clear()
}

// EmitSystem is a convenience for system.* events outside the story
// lifecycle.
func (b *Bus) EmitSystem(typ, msg string, fields map[string]interface{}) {
	if err := b.Emit(NewEvent("info", typ, msg, fields)); err != nil {
		log.Printf("emit %s: %v", typ, err)
	}
}
