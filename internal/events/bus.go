package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// bufferSize bounds each subscriber's channel so a publisher never blocks
// waiting on a slow consumer.
const bufferSize = 256

// Bus is a per-execution, many-producer many-consumer event bus keyed by
// execution id and fed over SSE. A slow subscriber drops its oldest
// buffered event rather than blocking a publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[string]*subscriber
}

type subscriber struct {
	mu sync.Mutex
	ch chan Event
}

func (s *subscriber) send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}

// NewBus builds an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[string]*subscriber)}
}

// Subscription is a live handle returned by Subscribe; Events delivers
// both the catch-up snapshot (if any) and subsequent live events, in
// that order, until Close is called.
type Subscription struct {
	Events      <-chan Event
	id          string
	executionID string
	bus         *Bus
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if m, ok := s.bus.subs[s.executionID]; ok {
		delete(m, s.id)
		if len(m) == 0 {
			delete(s.bus.subs, s.executionID)
		}
	}
}

// Subscribe attaches a new subscriber to executionID's stream. catchup is
// a caller-synthesized snapshot (typically the already-terminal nodes of
// an in-progress execution) enqueued ahead of anything published after
// this call returns, so a subscriber that attaches late still sees a
// consistent history instead of picking up mid-stream.
func (b *Bus) Subscribe(executionID string, catchup []Event) *Subscription {
	ch := make(chan Event, bufferSize)
	for _, ev := range catchup {
		select {
		case ch <- ev:
		default:
		}
	}
	sub := &subscriber{ch: ch}
	id := uuid.NewString()

	b.mu.Lock()
	if b.subs[executionID] == nil {
		b.subs[executionID] = make(map[string]*subscriber)
	}
	b.subs[executionID][id] = sub
	b.mu.Unlock()

	return &Subscription{Events: ch, id: id, executionID: executionID, bus: b}
}

// Publish delivers ev to every current subscriber of ev.ExecutionID.
// Publish never blocks on a slow consumer (subscriber.send drops oldest).
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.RLock()
	m := b.subs[ev.ExecutionID]
	subs := make([]*subscriber, 0, len(m))
	for _, s := range m {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.send(ev)
	}
}

// CloseExecution drops all bookkeeping for executionID (called once the
// execution reaches a terminal status and no further events will be
// published for it). It does not close subscriber channels — subscribers
// detach via Subscription.Close when their HTTP request ends.
func (b *Bus) CloseExecution(executionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, executionID)
}
