package registry

import (
	"strings"
	"time"
)

// UsageRemoved marks a customer who was active at least once and was then removed.
// Zero means the customer never joined.
const UsageRemoved int64 = -1

// Promotion is one slot of the registry arena. A slot whose Name is empty is a
// tombstone: either deleted (DeletedAt set) or never created.
type Promotion struct {
	Slot                 uint64           `json:"slot"`
	Name                 string           `json:"name"`
	DeletedName          string           `json:"deleted_name,omitempty"`
	Description          string           `json:"description"`
	Expiry               time.Time        `json:"expiry"`
	MaxCustomers         int64            `json:"max_customers"`
	MaxUsesPerCustomer   int64            `json:"max_uses_per_customer"`
	CurrentCustomerCount int64            `json:"current_customer_count"`
	Participants         []string         `json:"participants"`
	Usage                map[string]int64 `json:"usage"`
	CreatedAt            time.Time        `json:"created_at"`
	DeletedAt            time.Time        `json:"deleted_at,omitempty"`
}

// PromotionSpec carries the owner supplied fields of a new promotion.
type PromotionSpec struct {
	Name               string
	Description        string
	Expiry             time.Time
	MaxCustomers       int64
	MaxUsesPerCustomer int64
}

func (s PromotionSpec) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrInvalidName
	}
	if s.MaxCustomers <= 0 || s.MaxUsesPerCustomer <= 0 {
		return ErrInvalidLimits
	}
	if s.Expiry.IsZero() {
		return ErrInvalidExpiry
	}
	return nil
}

func (p *Promotion) IsTombstone() bool {
	return p == nil || p.Name == ""
}

func (p *Promotion) IsDeleted() bool {
	return p != nil && p.Name == "" && !p.DeletedAt.IsZero()
}

// ExpiredAt reports whether the promotion is inert at the given moment.
func (p *Promotion) ExpiredAt(now time.Time) bool {
	return !now.Before(p.Expiry)
}

// UsageOf returns the signed usage counter of a customer.
func (p *Promotion) UsageOf(customer string) int64 {
	return p.Usage[customer]
}

// IsActive reports whether the customer currently counts against MaxCustomers.
func (p *Promotion) IsActive(customer string) bool {
	return p.Usage[customer] > 0
}

func (p *Promotion) clone() *Promotion {
	if p == nil {
		return nil
	}
	c := *p
	c.Participants = append([]string(nil), p.Participants...)
	c.Usage = make(map[string]int64, len(p.Usage))
	for k, v := range p.Usage {
		c.Usage[k] = v
	}
	return &c
}

// check verifies the per-promotion invariants: the active count matches the number
// of positive counters, no counter exceeds the usage cap and the active count stays
// within capacity.
func (p *Promotion) check() error {
	var active int64
	for _, usage := range p.Usage {
		if usage > p.MaxUsesPerCustomer {
			return ErrCorruptState
		}
		if usage < UsageRemoved {
			return ErrCorruptState
		}
		if usage > 0 {
			active++
		}
	}
	if active != p.CurrentCustomerCount || p.CurrentCustomerCount > p.MaxCustomers {
		return ErrCorruptState
	}
	return nil
}
