package registry

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventPromotionCreated EventType = "promotion_created"
	EventPromotionDeleted EventType = "promotion_deleted"
	EventCustomerRemoved  EventType = "customer_removed"
	EventPromotionApplied EventType = "promotion_applied"
)

// Event is emitted once per committed mutation.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Slot      uint64    `json:"slot"`
	Name      string    `json:"name"`
	Customer  string    `json:"customer,omitempty"`
	Usage     int64     `json:"usage,omitempty"`
	Customers int64     `json:"customers"`
	Time      time.Time `json:"time"`
}

// Listener receives committed events in commit order. It runs while the registry
// holds its write lock and must not block or call back into the registry.
type Listener func(Event)

func newEvent(typ EventType, p *Promotion, now time.Time) Event {
	name := p.Name
	if name == "" {
		name = p.DeletedName
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Slot:      p.Slot,
		Name:      name,
		Customers: p.CurrentCustomerCount,
		Time:      now,
	}
}
