package database

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"promoreg/internal/registry"
)

type usageDoc struct {
	Customer string `bson:"customer"`
	Count    int64  `bson:"count"`
}

// promotionDoc stores usage as a list because customer ids may contain characters
// that are not valid in document keys.
type promotionDoc struct {
	Slot                 uint64     `bson:"slot"`
	Name                 string     `bson:"name"`
	DeletedName          string     `bson:"deleted_name,omitempty"`
	Description          string     `bson:"description"`
	Expiry               time.Time  `bson:"expiry"`
	MaxCustomers         int64      `bson:"max_customers"`
	MaxUsesPerCustomer   int64      `bson:"max_uses_per_customer"`
	CurrentCustomerCount int64      `bson:"current_customer_count"`
	Participants         []string   `bson:"participants"`
	Usage                []usageDoc `bson:"usage"`
	CreatedAt            time.Time  `bson:"created_at"`
	DeletedAt            time.Time  `bson:"deleted_at,omitempty"`
	UpdatedAt            time.Time  `bson:"updated_at"`
}

// eventDoc is keyed by an ObjectID so journal order follows insertion order.
type eventDoc struct {
	Seq       primitive.ObjectID `bson:"_id,omitempty"`
	ID        string             `bson:"event_id"`
	Type      string             `bson:"type"`
	Slot      uint64             `bson:"slot"`
	Name      string             `bson:"name"`
	Customer  string             `bson:"customer,omitempty"`
	Usage     int64              `bson:"usage"`
	Customers int64              `bson:"customers"`
	Time      time.Time          `bson:"time"`
}

func toDoc(p *registry.Promotion) promotionDoc {
	usage := make([]usageDoc, 0, len(p.Usage))
	for customer, count := range p.Usage {
		usage = append(usage, usageDoc{Customer: customer, Count: count})
	}
	sort.Slice(usage, func(i, j int) bool {
		return usage[i].Customer < usage[j].Customer
	})
	participants := p.Participants
	if participants == nil {
		participants = []string{}
	}
	return promotionDoc{
		Slot:                 p.Slot,
		Name:                 p.Name,
		DeletedName:          p.DeletedName,
		Description:          p.Description,
		Expiry:               p.Expiry,
		MaxCustomers:         p.MaxCustomers,
		MaxUsesPerCustomer:   p.MaxUsesPerCustomer,
		CurrentCustomerCount: p.CurrentCustomerCount,
		Participants:         participants,
		Usage:                usage,
		CreatedAt:            p.CreatedAt,
		DeletedAt:            p.DeletedAt,
		UpdatedAt:            time.Now().UTC(),
	}
}

func (d *promotionDoc) toPromotion() *registry.Promotion {
	usage := make(map[string]int64, len(d.Usage))
	for _, u := range d.Usage {
		usage[u.Customer] = u.Count
	}
	participants := d.Participants
	if participants == nil {
		participants = []string{}
	}
	return &registry.Promotion{
		Slot:                 d.Slot,
		Name:                 d.Name,
		DeletedName:          d.DeletedName,
		Description:          d.Description,
		Expiry:               d.Expiry.UTC(),
		MaxCustomers:         d.MaxCustomers,
		MaxUsesPerCustomer:   d.MaxUsesPerCustomer,
		CurrentCustomerCount: d.CurrentCustomerCount,
		Participants:         participants,
		Usage:                usage,
		CreatedAt:            d.CreatedAt.UTC(),
		DeletedAt:            d.DeletedAt.UTC(),
	}
}

func eventToDoc(e registry.Event) eventDoc {
	return eventDoc{
		Seq:       primitive.NewObjectID(),
		ID:        e.ID,
		Type:      string(e.Type),
		Slot:      e.Slot,
		Name:      e.Name,
		Customer:  e.Customer,
		Usage:     e.Usage,
		Customers: e.Customers,
		Time:      e.Time,
	}
}

func (d *eventDoc) toEvent() registry.Event {
	return registry.Event{
		ID:        d.ID,
		Type:      registry.EventType(d.Type),
		Slot:      d.Slot,
		Name:      d.Name,
		Customer:  d.Customer,
		Usage:     d.Usage,
		Customers: d.Customers,
		Time:      d.Time.UTC(),
	}
}
