package events

import (
	"sync"

	"assetmanager/internal/logger"
)

const defaultSubscriberBuffer = 64

// Broker is an in-process fan-out of queued notifications. Slow subscribers
// lose events rather than stall the engine; they can replay from the
// durable queue_events table by sequence.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]chan DataPointQueued
	nextID int
	buffer int
}

// NewBroker creates a Broker whose subscriber channels hold buffer events.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Broker{subs: make(map[int]chan DataPointQueued), buffer: buffer}
}

// Subscribe registers a listener. The returned cancel func closes the channel.
func (b *Broker) Subscribe() (<-chan DataPointQueued, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan DataPointQueued, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish implements Publisher.
func (b *Broker) Publish(event DataPointQueued) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			logger.Get().Warnw("dropping queued notification for slow subscriber",
				"subscriber", id,
				"asset_id", event.AssetID,
				"sequence", event.Sequence,
			)
		}
	}
}
