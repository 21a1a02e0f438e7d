package progress

import (
	"sync"
	"time"

	"github.com/SAM252003/Nehoris/internal/logging"
)

// DefaultHeartbeat is the interval between ping events on idle streams.
const DefaultHeartbeat = 15 * time.Second

// subscriberBuffer bounds each subscriber channel. A subscriber that falls
// this far behind is dropped rather than allowed to stall publishers.
const subscriberBuffer = 64

// Broker fans progress events out to subscribers for one campaign.
type Broker struct {
	mu        sync.Mutex
	subs      map[*Subscription]struct{}
	lastEvent *Event
	rows      []Row
	heartbeat time.Duration
	closed    bool
}

// NewBroker creates a broker with the default heartbeat interval.
func NewBroker() *Broker {
	return NewBrokerWithHeartbeat(DefaultHeartbeat)
}

// NewBrokerWithHeartbeat creates a broker with an explicit heartbeat
// interval. A non-positive interval disables heartbeats.
func NewBrokerWithHeartbeat(interval time.Duration) *Broker {
	return &Broker{
		subs:      make(map[*Subscription]struct{}),
		heartbeat: interval,
	}
}

// Subscription is one attached listener. Close it when done; the broker
// also closes it when the broker shuts down.
type Subscription struct {
	broker *Broker
	done   chan struct{}
	once   sync.Once

	sendMu sync.Mutex // serializes sends against channel close
	ch     chan Event
	closed bool
}

// Events returns the channel events arrive on. It is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close detaches the subscription and closes its event channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.broker.remove(s)
	})
}

// trySend delivers without blocking. False means the channel is closed or
// the subscriber has stopped draining.
func (s *Subscription) trySend(event Event) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- event:
		return true
	default:
		return false
	}
}

func (s *Subscription) closeChan() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Subscribe attaches a listener. The last published event, if any, is
// replayed immediately so late joiners learn the current state. A pump
// goroutine emits ping events while the stream is idle.
func (b *Broker) Subscribe() *Subscription {
	sub := &Subscription{
		broker: b,
		ch:     make(chan Event, subscriberBuffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.closeChan()
		return sub
	}
	b.subs[sub] = struct{}{}
	if b.lastEvent != nil {
		sub.trySend(*b.lastEvent)
	}
	heartbeat := b.heartbeat
	b.mu.Unlock()

	if heartbeat > 0 {
		go sub.pump(heartbeat)
	}
	return sub
}

func (s *Subscription) pump(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			// A full buffer just skips the ping.
			s.trySend(Event{Type: EventPing, Timestamp: time.Now()})
		}
	}
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	sub.closeChan()
}

// Publish appends row events to the row log and remembers any other event
// type as the replay event, then fans the event out. Row events never
// overwrite the replay event: a late joiner should see the current state,
// not a stale row. Subscribers with full buffers are dropped so a dead
// client can never block the audit.
func (b *Broker) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if event.Type == EventRow {
		if event.Row != nil {
			b.rows = append(b.rows, *event.Row)
		}
	} else {
		b.lastEvent = &event
	}
	// Snapshot before fanout so slow-subscriber removal can't mutate the
	// set mid-iteration.
	targets := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		if !sub.trySend(event) {
			logging.ProgressDebug("dropping slow subscriber")
			sub.Close()
		}
	}
}

// SnapshotRows returns a copy of the accumulated row log.
func (b *Broker) SnapshotRows() []Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Row, len(b.rows))
	copy(out, b.rows)
	return out
}

// ClearRows discards the accumulated row log.
func (b *Broker) ClearRows() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = nil
}

// Close shuts the broker down and closes all subscriptions. Further
// publishes are ignored; further subscribes get an already-closed channel.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
