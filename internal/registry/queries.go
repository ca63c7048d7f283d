package registry

import (
	"github.com/samber/lo"
)

func (r *Registry) Owner() string {
	return r.owner
}

func (r *Registry) Policy() Policy {
	return r.policy
}

// Exists reports whether a live promotion carries the name.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[name]
	return ok
}

// SlotOf resolves a live promotion name to its slot.
func (r *Registry) SlotOf(name string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slot, ok := r.index[name]
	if !ok {
		return 0, ErrPromotionNotFound
	}
	return slot, nil
}

// Promotion returns a copy of any slot ever created, tombstones included.
func (r *Registry) Promotion(slot uint64) (*Promotion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.slot(slot)
	if err != nil {
		return nil, err
	}
	return p.clone(), nil
}

// Participants returns the historical participant ledger. It includes removed
// customers; use Usage or ActiveCustomers to tell who is active now.
func (r *Registry) Participants(slot uint64) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.slot(slot)
	if err != nil {
		return nil, err
	}
	return append([]string{}, p.Participants...), nil
}

// ActiveCustomers returns the participants with a positive usage counter, in join order.
func (r *Registry) ActiveCustomers(slot uint64) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.slot(slot)
	if err != nil {
		return nil, err
	}
	return lo.Filter(p.Participants, func(c string, _ int) bool {
		return p.IsActive(c)
	}), nil
}

// Usage returns the signed usage counter of a customer in a slot.
func (r *Registry) Usage(slot uint64, customer string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.slot(slot)
	if err != nil {
		return 0, err
	}
	return p.UsageOf(customer), nil
}

// Promotions lists live promotions ordered by slot.
func (r *Registry) Promotions() []*Promotion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	live := lo.Filter(r.slots, func(p *Promotion, _ int) bool {
		return !p.IsTombstone()
	})
	return lo.Map(live, func(p *Promotion, _ int) *Promotion {
		return p.clone()
	})
}

// Len is the number of slots ever allocated.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots) - 1
}

// Expired reports whether the slot's promotion is past its expiry.
func (r *Registry) Expired(slot uint64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.slot(slot)
	if err != nil {
		return false, err
	}
	return p.ExpiredAt(r.clock.Now()), nil
}

// slot returns a created slot, deleted or not. Caller holds r.mu.
func (r *Registry) slot(slot uint64) (*Promotion, error) {
	if slot == 0 || slot >= uint64(len(r.slots)) {
		return nil, ErrPromotionNotFound
	}
	p := r.slots[slot]
	if p.IsTombstone() && !p.IsDeleted() {
		return nil, ErrPromotionNotFound
	}
	return p, nil
}
