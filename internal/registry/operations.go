package registry

import (
	"context"
	"strings"
)

// CreatePromotion allocates the next slot for a new promotion and returns it.
func (r *Registry) CreatePromotion(ctx context.Context, caller string, spec PromotionSpec) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireOwner(caller); err != nil {
		return 0, err
	}
	spec.Name = strings.TrimSpace(spec.Name)
	if err := spec.validate(); err != nil {
		return 0, err
	}
	if _, ok := r.index[spec.Name]; ok {
		return 0, ErrDuplicatePromotion
	}

	now := r.clock.Now()
	p := &Promotion{
		Slot:               uint64(len(r.slots)),
		Name:               spec.Name,
		Description:        spec.Description,
		Expiry:             spec.Expiry,
		MaxCustomers:       spec.MaxCustomers,
		MaxUsesPerCustomer: spec.MaxUsesPerCustomer,
		Participants:       []string{},
		Usage:              map[string]int64{},
		CreatedAt:          now,
	}
	if err := r.commit(ctx, p, newEvent(EventPromotionCreated, p, now)); err != nil {
		return 0, err
	}
	r.index[p.Name] = p.Slot
	return p.Slot, nil
}

// ApplyToCustomer records one redemption and returns the customer's resulting usage.
//
// A customer whose counter is not positive joins (or rejoins) the active set and
// needs a free capacity seat; only a first-time join is appended to Participants.
func (r *Registry) ApplyToCustomer(ctx context.Context, caller, customer string, slot uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireOwner(caller); err != nil {
		return 0, err
	}
	if customer == "" {
		return 0, ErrInvalidCustomer
	}
	current, err := r.redeemable(slot)
	if err != nil {
		return 0, err
	}

	usage := current.Usage[customer]
	if usage <= 0 && current.CurrentCustomerCount >= current.MaxCustomers {
		return 0, ErrCapacityExceeded
	}
	if usage >= current.MaxUsesPerCustomer {
		return 0, ErrUsageLimitExceeded
	}

	p := current.clone()
	if usage <= 0 {
		p.CurrentCustomerCount++
		if usage == 0 {
			p.Participants = append(p.Participants, customer)
		}
		usage = 0
	}
	usage++
	p.Usage[customer] = usage

	evt := newEvent(EventPromotionApplied, p, r.clock.Now())
	evt.Customer = customer
	evt.Usage = usage
	if err = r.commit(ctx, p, evt); err != nil {
		return 0, err
	}
	return usage, nil
}

// RemoveCustomer drops an active customer from the active set. Participants is an
// append-only ledger and is left untouched.
func (r *Registry) RemoveCustomer(ctx context.Context, caller, customer string, slot uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if customer == "" {
		return ErrInvalidCustomer
	}
	current, err := r.redeemable(slot)
	if err != nil {
		return err
	}
	if current.Usage[customer] <= 0 {
		return ErrCustomerNotActive
	}

	p := current.clone()
	p.Usage[customer] = UsageRemoved
	p.CurrentCustomerCount--

	evt := newEvent(EventCustomerRemoved, p, r.clock.Now())
	evt.Customer = customer
	evt.Usage = UsageRemoved
	return r.commit(ctx, p, evt)
}

// DeletePromotion tombstones a slot and frees its name. The usage history stays
// readable by slot.
func (r *Registry) DeletePromotion(ctx context.Context, caller string, slot uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireOwner(caller); err != nil {
		return err
	}
	current, err := r.live(slot)
	if err != nil {
		return err
	}
	now := r.clock.Now()
	if !r.policy.AllowExpiredDelete && current.ExpiredAt(now) {
		return ErrPromotionExpired
	}

	p := current.clone()
	p.DeletedName = p.Name
	p.Name = ""
	p.DeletedAt = now

	if err = r.commit(ctx, p, newEvent(EventPromotionDeleted, p, now)); err != nil {
		return err
	}
	delete(r.index, p.DeletedName)
	return nil
}
