package eventbus

import (
	"sync"

	"go.uber.org/zap"
)

// Kind identifies an event type carried by the bus.
type Kind int

const (
	// FeedChanged fires after a page append; OldCount is the pre-append
	// length, so consumers can compute the inserted range [OldCount, new).
	FeedChanged Kind = iota + 1
	// AvatarChanged fires when the avatar URL is resolved; URL carries it.
	AvatarChanged
)

// Event is the payload delivered to subscribed handlers.
type Event struct {
	Kind     Kind
	OldCount int
	URL      string
}

// Handler consumes events on the bus dispatch goroutine. Handlers must not
// block; long work belongs on the consumer's own goroutine.
type Handler func(Event)

// Subscription identifies a registered handler for later removal.
type Subscription struct {
	kind Kind
	id   uint64
}

// Bus delivers session events to subscribers. Publication is non-blocking;
// delivery happens in publish order on a single dispatch goroutine, which
// keeps handlers single-threaded from the consumer's point of view.
type Bus struct {
	logger *zap.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[Kind]map[uint64]Handler
	closed bool

	queue chan Event
	done  chan struct{}
}

// New constructs a running Bus.
func New(logger *zap.Logger) *Bus {
	b := &Bus{
		logger: logger,
		subs:   make(map[Kind]map[uint64]Handler),
		queue:  make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

// Subscribe registers a handler for the given kind.
func (b *Bus) Subscribe(kind Kind, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[uint64]Handler)
	}
	b.subs[kind][id] = handler
	return Subscription{kind: kind, id: id}
}

// Unsubscribe removes a previously registered handler. Safe to call twice.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if handlers, ok := b.subs[sub.kind]; ok {
		delete(handlers, sub.id)
	}
}

// Publish enqueues the event for delivery to all current subscribers. Events
// published after Close, or while the queue is saturated, are dropped with a
// warning rather than blocking the publisher.
func (b *Bus) Publish(event Event) {
	// The send stays under the mutex so Close cannot close the queue
	// between the flag check and the send.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- event:
	default:
		b.log().Warn("event queue full, dropping event", zap.Int("kind", int(event.Kind)))
	}
}

// Close stops the dispatch goroutine after draining queued events.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()
	<-b.done
}

func (b *Bus) run() {
	for event := range b.queue {
		b.dispatch(event)
	}
	close(b.done)
}

func (b *Bus) dispatch(event Event) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[event.Kind]))
	for _, h := range b.subs[event.Kind] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(event)
	}
}

func (b *Bus) log() *zap.Logger {
	if b != nil && b.logger != nil {
		return b.logger
	}
	return zap.L()
}
