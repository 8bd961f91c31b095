// Package events fans DataPointQueued notifications out to listeners that
// drive the external approval workflow.
package events

import (
	"time"
)

// DataPointQueued is emitted once for every reading that is held for approval.
type DataPointQueued struct {
	AssetID  uint64    `json:"asset_id"`
	Index    int       `json:"index"`
	Name     string    `json:"name"`
	Value    int64     `json:"value"`
	Sequence uint64    `json:"sequence"`
	QueuedAt time.Time `json:"queued_at"`
}

// Publisher delivers queued notifications. Implementations must not block
// the caller for long; delivery failures are theirs to log.
type Publisher interface {
	Publish(event DataPointQueued)
}

// Publishers fans a notification out to several publishers in order.
type Publishers []Publisher

// Publish implements Publisher.
func (p Publishers) Publish(event DataPointQueued) {
	for _, pub := range p {
		if pub != nil {
			pub.Publish(event)
		}
	}
}

// Nop discards notifications.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(DataPointQueued) {}
