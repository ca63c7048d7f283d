// Package registry holds the promotion state of one shop and enforces its capacity
// and usage limits. Every mutation is serialized on the registry write lock and is
// committed only after the optional Store has accepted it.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"promoreg/lib/clock"
	"promoreg/lib/sl"
)

// Store persists a promotion slot together with the event that produced it.
// A returned error aborts the mutation.
type Store interface {
	SavePromotion(ctx context.Context, p *Promotion, evt Event) error
}

// Policy holds the switches for behaviors that are a shop decision.
type Policy struct {
	AllowExpiredDelete bool
}

type Option func(*Registry)

func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

func WithStore(s Store) Option {
	return func(r *Registry) {
		r.store = s
	}
}

func WithPolicy(p Policy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

func WithListener(l Listener) Option {
	return func(r *Registry) {
		if l != nil {
			r.listeners = append(r.listeners, l)
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		r.log = log.With(sl.Module("registry"))
	}
}

type Registry struct {
	owner     string
	mu        sync.RWMutex
	slots     []*Promotion // slot 0 is reserved
	index     map[string]uint64
	clock     clock.Clock
	store     Store
	policy    Policy
	listeners []Listener
	log       *slog.Logger
}

// New creates an empty registry owned by owner.
func New(owner string, opts ...Option) (*Registry, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner identity is empty")
	}
	r := &Registry{
		owner: owner,
		slots: []*Promotion{nil},
		index: make(map[string]uint64),
		clock: clock.System(),
		log:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Restore rebuilds a registry from stored slots. Missing slots are kept as
// never-created tombstones so slot numbers stay stable.
func Restore(owner string, promotions []*Promotion, opts ...Option) (*Registry, error) {
	r, err := New(owner, opts...)
	if err != nil {
		return nil, err
	}
	var maxSlot uint64
	seen := make(map[uint64]struct{}, len(promotions))
	for _, p := range promotions {
		if p == nil || p.Slot == 0 {
			return nil, fmt.Errorf("%w: promotion without slot", ErrCorruptState)
		}
		if _, ok := seen[p.Slot]; ok {
			return nil, fmt.Errorf("%w: slot %d stored twice", ErrCorruptState, p.Slot)
		}
		seen[p.Slot] = struct{}{}
		if p.Slot > maxSlot {
			maxSlot = p.Slot
		}
	}
	r.slots = make([]*Promotion, maxSlot+1)
	for i := range r.slots {
		if i > 0 {
			r.slots[i] = &Promotion{Slot: uint64(i), Usage: map[string]int64{}}
		}
	}
	for _, p := range promotions {
		c := p.clone()
		if c.Usage == nil {
			c.Usage = map[string]int64{}
		}
		if err = c.check(); err != nil {
			return nil, fmt.Errorf("slot %d: %w", c.Slot, err)
		}
		if !c.IsTombstone() {
			if _, ok := r.index[c.Name]; ok {
				return nil, fmt.Errorf("%w: duplicate live name %q", ErrCorruptState, c.Name)
			}
			r.index[c.Name] = c.Slot
		}
		r.slots[c.Slot] = c
	}
	r.log.With(
		slog.Int("slots", len(r.slots)-1),
		slog.Int("live", len(r.index)),
	).Info("registry restored")
	return r, nil
}

// commit persists the prepared slot and swaps it into the arena. Caller holds r.mu.
func (r *Registry) commit(ctx context.Context, p *Promotion, evt Event) error {
	if r.store != nil {
		if err := r.store.SavePromotion(ctx, p, evt); err != nil {
			r.log.With(
				sl.Slot(p.Slot),
				slog.String("event", string(evt.Type)),
				sl.Err(err),
			).Error("store rejected mutation")
			return fmt.Errorf("save promotion: %w", err)
		}
	}
	if p.Slot == uint64(len(r.slots)) {
		r.slots = append(r.slots, p)
	} else {
		r.slots[p.Slot] = p
	}
	for _, l := range r.listeners {
		l(evt)
	}
	r.log.With(
		sl.Slot(p.Slot),
		slog.String("event", string(evt.Type)),
		slog.Int64("customers", p.CurrentCustomerCount),
	).Debug("committed")
	return nil
}

// live returns the slot when it holds a non-tombstoned promotion. Caller holds r.mu.
func (r *Registry) live(slot uint64) (*Promotion, error) {
	if slot == 0 || slot >= uint64(len(r.slots)) {
		return nil, ErrPromotionNotFound
	}
	p := r.slots[slot]
	if p.IsTombstone() {
		return nil, ErrPromotionNotFound
	}
	return p, nil
}

// redeemable returns the live, unexpired slot. Caller holds r.mu.
func (r *Registry) redeemable(slot uint64) (*Promotion, error) {
	p, err := r.live(slot)
	if err != nil {
		return nil, err
	}
	if p.ExpiredAt(r.clock.Now()) {
		return nil, ErrPromotionExpired
	}
	return p, nil
}
