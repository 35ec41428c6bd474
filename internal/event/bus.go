// Package event provides the pub/sub backbone that fans permission,
// approval, and document events out to connected sessions, built on
// watermill's gochannel pub/sub.
package event

import (
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventType identifies the kind of event.
type EventType string

const (
	DocumentCreated       EventType = "document.created"
	DocumentChangeApplied EventType = "document.change.applied"
	DocumentReverted      EventType = "document.reverted"
	ApprovalRequested     EventType = "approval.requested"
	ApprovalResolved      EventType = "approval.resolved"
	PermissionUpdated     EventType = "permission.updated"
	UsageRecorded         EventType = "usage.recorded"
)

// Event is a typed event with its payload.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber receives events.
type Subscriber func(Event)

// Broadcaster is the interface the core components publish through. The
// document and approval layers depend on this, not on Bus directly.
type Broadcaster interface {
	Publish(Event)
	PublishSync(Event)
}

type entry struct {
	id uint64
	fn Subscriber
}

// Bus is an in-process event bus. Subscribers are tracked directly so
// payloads keep their Go types; the watermill gochannel underneath is the
// transport seam for a future distributed backend.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	byType map[EventType][]entry
	global []entry

	nextID uint64
	closed bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 100},
			watermill.NopLogger{},
		),
		byType: make(map[EventType][]entry),
	}
}

// Subscribe registers fn for one event type and returns an unsubscribe
// function.
func (b *Bus) Subscribe(t EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := atomic.AddUint64(&b.nextID, 1)
	b.byType[t] = append(b.byType[t], entry{id: id, fn: fn})
	return func() { b.remove(t, id) }
}

// SubscribeAll registers fn for every event and returns an unsubscribe
// function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := atomic.AddUint64(&b.nextID, 1)
	b.global = append(b.global, entry{id: id, fn: fn})
	return func() { b.removeGlobal(id) }
}

func (b *Bus) remove(t EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.byType[t]
	for i, e := range subs {
		if e.id == id {
			b.byType[t] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) removeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.global {
		if e.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			return
		}
	}
}

func (b *Bus) collect(t EventType) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	subs := make([]Subscriber, 0, len(b.byType[t])+len(b.global))
	for _, e := range b.byType[t] {
		subs = append(subs, e.fn)
	}
	for _, e := range b.global {
		subs = append(subs, e.fn)
	}
	return subs
}

// Publish delivers ev to all subscribers, each on its own goroutine.
func (b *Bus) Publish(ev Event) {
	for _, fn := range b.collect(ev.Type) {
		go fn(ev)
	}
}

// PublishSync delivers ev to all subscribers in the caller's goroutine,
// preserving publication order. Used for document change events, which must
// reach the presentation surface in Apply order.
func (b *Bus) PublishSync(ev Event) {
	for _, fn := range b.collect(ev.Type) {
		fn(ev)
	}
}

// Close shuts down the bus; further publishes are dropped.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.byType = make(map[EventType][]entry)
	b.global = nil
	b.mu.Unlock()
	return b.pubsub.Close()
}
