package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promoreg/lib/clock"
)

type memStore struct {
	fail   bool
	saved  map[uint64]*Promotion
	events []Event
}

func newMemStore() *memStore {
	return &memStore{saved: map[uint64]*Promotion{}}
}

func (m *memStore) SavePromotion(_ context.Context, p *Promotion, evt Event) error {
	if m.fail {
		return errors.New("store unavailable")
	}
	m.saved[p.Slot] = p.clone()
	m.events = append(m.events, evt)
	return nil
}

func (m *memStore) all() []*Promotion {
	out := make([]*Promotion, 0, len(m.saved))
	for _, p := range m.saved {
		out = append(out, p)
	}
	return out
}

func TestStoreFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	var events []Event
	reg, err := New(owner,
		WithClock(clock.NewManual(epoch)),
		WithStore(store),
		WithListener(func(e Event) { events = append(events, e) }),
	)
	require.NoError(t, err)

	slot, err := reg.CreatePromotion(ctx, owner, PromotionSpec{
		Name: "ATOM", Expiry: epoch.Add(time.Hour), MaxCustomers: 2, MaxUsesPerCustomer: 2,
	})
	require.NoError(t, err)
	_, err = reg.ApplyToCustomer(ctx, owner, "A", slot)
	require.NoError(t, err)

	store.fail = true
	before, err := reg.Promotion(slot)
	require.NoError(t, err)

	_, err = reg.ApplyToCustomer(ctx, owner, "B", slot)
	assert.Error(t, err)
	assert.Error(t, reg.RemoveCustomer(ctx, owner, "A", slot))
	assert.Error(t, reg.DeletePromotion(ctx, owner, slot))
	_, err = reg.CreatePromotion(ctx, owner, PromotionSpec{
		Name: "NEXT", Expiry: epoch.Add(time.Hour), MaxCustomers: 1, MaxUsesPerCustomer: 1,
	})
	assert.Error(t, err)

	after, err := reg.Promotion(slot)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.True(t, reg.Exists("ATOM"))
	assert.False(t, reg.Exists("NEXT"))
	assert.Equal(t, 1, reg.Len())
	assert.Len(t, events, 2)

	store.fail = false
	next, err := reg.CreatePromotion(ctx, owner, PromotionSpec{
		Name: "NEXT", Expiry: epoch.Add(time.Hour), MaxCustomers: 1, MaxUsesPerCustomer: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next)
}

func TestRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	reg, err := New(owner, WithClock(clock.NewManual(epoch)), WithStore(store))
	require.NoError(t, err)

	spec := PromotionSpec{Expiry: epoch.Add(time.Hour), MaxCustomers: 3, MaxUsesPerCustomer: 2}
	spec.Name = "ONE"
	one, err := reg.CreatePromotion(ctx, owner, spec)
	require.NoError(t, err)
	spec.Name = "TWO"
	two, err := reg.CreatePromotion(ctx, owner, spec)
	require.NoError(t, err)
	_, err = reg.ApplyToCustomer(ctx, owner, "A", one)
	require.NoError(t, err)
	_, err = reg.ApplyToCustomer(ctx, owner, "B", one)
	require.NoError(t, err)
	require.NoError(t, reg.RemoveCustomer(ctx, owner, "B", one))
	require.NoError(t, reg.DeletePromotion(ctx, owner, two))

	restored, err := Restore(owner, store.all(), WithClock(clock.NewManual(epoch)))
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Len())
	assert.True(t, restored.Exists("ONE"))
	assert.False(t, restored.Exists("TWO"))

	usage, err := restored.Usage(one, "B")
	require.NoError(t, err)
	assert.Equal(t, UsageRemoved, usage)

	// a restored registry continues slot numbering after the highest stored slot
	spec.Name = "TWO"
	three, err := restored.CreatePromotion(ctx, owner, spec)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), three)
}

func TestRestoreRejectsInconsistentState(t *testing.T) {
	broken := &Promotion{
		Slot: 1, Name: "BAD", Expiry: epoch, MaxCustomers: 1, MaxUsesPerCustomer: 1,
		CurrentCustomerCount: 2, Usage: map[string]int64{"a": 1},
	}
	_, err := Restore(owner, []*Promotion{broken})
	assert.ErrorIs(t, err, ErrCorruptState)

	dup := []*Promotion{
		{Slot: 1, Name: "SAME", MaxCustomers: 1, MaxUsesPerCustomer: 1, Usage: map[string]int64{}},
		{Slot: 3, Name: "SAME", MaxCustomers: 1, MaxUsesPerCustomer: 1, Usage: map[string]int64{}},
	}
	_, err = Restore(owner, dup)
	assert.ErrorIs(t, err, ErrCorruptState)

	sameSlot := []*Promotion{
		{Slot: 2, Name: "FIRST", MaxCustomers: 1, MaxUsesPerCustomer: 1, Usage: map[string]int64{}},
		{Slot: 2, Name: "SECOND", MaxCustomers: 1, MaxUsesPerCustomer: 1, Usage: map[string]int64{}},
	}
	_, err = Restore(owner, sameSlot)
	assert.ErrorIs(t, err, ErrCorruptState)
}

func TestRestoreKeepsGapsAsTombstones(t *testing.T) {
	reg, err := Restore(owner, []*Promotion{
		{Slot: 3, Name: "THIRD", Expiry: epoch, MaxCustomers: 1, MaxUsesPerCustomer: 1, Usage: map[string]int64{}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())
	_, err = reg.Promotion(2)
	assert.ErrorIs(t, err, ErrPromotionNotFound)
	slot, err := reg.SlotOf("THIRD")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), slot)
}
