package led

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies what happened to the device.
type EventType string

// Event types.
const (
	EventLoaded          EventType = "loaded"
	EventLoadFailed      EventType = "load_failed"
	EventUnloaded        EventType = "unloaded"
	EventLevelChanged    EventType = "level_changed"
	EventCommandRejected EventType = "command_rejected"
)

// Source identifies what caused a level change.
type Source string

// Level change sources.
const (
	SourceLifecycle Source = "lifecycle"
	SourceCommand   Source = "command"
	SourceToggler   Source = "toggler"
)

// Event is one device occurrence.
type Event struct {
	Type   EventType `json:"type"`
	Device string    `json:"device"`
	Time   time.Time `json:"time"`

	// Level fields are set for EventLevelChanged. Active is the inverse of
	// High because the LED is wired active-low.
	Source Source `json:"source,omitempty"`
	High   bool   `json:"high"`
	Active bool   `json:"active"`

	// Command is the rejected control byte for EventCommandRejected.
	Command *byte `json:"command,omitempty"`

	// Error describes the failure for EventLoadFailed and EventCommandRejected.
	Error string `json:"error,omitempty"`
}

// Emitter accepts device events. Emit must not block: level events are
// emitted while the pin is locked.
type Emitter interface {
	Emit(e Event)
}

// Observer receives events dispatched by a Bus.
type Observer interface {
	HandleEvent(e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Event)

// HandleEvent implements Observer.
func (f ObserverFunc) HandleEvent(e Event) { f(e) }

// noopEmitter discards events.
type noopEmitter struct{}

func (noopEmitter) Emit(Event) {}

// DefaultBusBuffer is the event queue size used when none is given.
const DefaultBusBuffer = 256

// Bus fans events out to observers on a single dispatch goroutine.
//
// Emit never blocks: when the queue is full the event is dropped and
// counted. Observers run one at a time in subscription order, so a slow
// observer delays the others but never the emitter.
//
// Thread Safety: all methods are safe for concurrent use.
type Bus struct {
	logger Logger
	queue  chan Event

	mu        sync.RWMutex
	observers []Observer
	closed    bool

	dropped atomic.Uint64
	done    chan struct{}
	once    sync.Once
}

// NewBus creates and starts a bus with the given queue size.
func NewBus(buffer int, logger Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBusBuffer
	}
	if logger == nil {
		logger = noopLogger{}
	}
	b := &Bus{
		logger: logger,
		queue:  make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe adds an observer. Events already queued are delivered to it.
func (b *Bus) Subscribe(o Observer) {
	b.mu.Lock()
	b.observers = append(b.observers, o)
	b.mu.Unlock()
}

// Emit queues e for delivery. It is a no-op after Close.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	select {
	case b.queue <- e:
	default:
		if n := b.dropped.Add(1); n == 1 || n%100 == 0 {
			b.logger.Warn("event queue full, dropping events", "dropped", n, "type", string(e.Type))
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close stops accepting events, delivers those already queued and waits for
// the dispatcher to exit.
func (b *Bus) Close() {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.queue)
		b.mu.Unlock()
	})
	<-b.done
}

// dispatch delivers queued events until the queue is closed.
func (b *Bus) dispatch() {
	defer close(b.done)
	for e := range b.queue {
		b.mu.RLock()
		observers := b.observers
		b.mu.RUnlock()

		for _, o := range observers {
			b.deliver(o, e)
		}
	}
}

// deliver runs one observer, containing any panic.
func (b *Bus) deliver(o Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event observer panicked", "type", string(e.Type), "panic", r)
		}
	}()
	o.HandleEvent(e)
}
