package registry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"promoreg/lib/clock"
)

const owner = "shop-owner"

var epoch = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type RegistrySuite struct {
	suite.Suite
	ctx    context.Context
	clock  *clock.Manual
	events []Event
	reg    *Registry
}

func TestRegistry(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewManual(epoch)
	s.events = nil
	reg, err := New(owner,
		WithClock(s.clock),
		WithListener(func(e Event) { s.events = append(s.events, e) }),
	)
	s.Require().NoError(err)
	s.reg = reg
}

func (s *RegistrySuite) create(name string, maxCustomers, maxUses int64) uint64 {
	slot, err := s.reg.CreatePromotion(s.ctx, owner, PromotionSpec{
		Name:               name,
		Description:        "test " + name,
		Expiry:             epoch.Add(30 * 24 * time.Hour),
		MaxCustomers:       maxCustomers,
		MaxUsesPerCustomer: maxUses,
	})
	s.Require().NoError(err)
	return slot
}

func (s *RegistrySuite) apply(customer string, slot uint64) (int64, error) {
	return s.reg.ApplyToCustomer(s.ctx, owner, customer, slot)
}

func (s *RegistrySuite) count(slot uint64) int64 {
	p, err := s.reg.Promotion(slot)
	s.Require().NoError(err)
	return p.CurrentCustomerCount
}

func (s *RegistrySuite) TestTenPercentOffScenario() {
	slot := s.create("10%OFF", 3, 3)

	for _, c := range []string{"A", "B", "C"} {
		usage, err := s.apply(c, slot)
		s.Require().NoError(err)
		s.Equal(int64(1), usage)
	}
	s.Equal(int64(3), s.count(slot))

	_, err := s.apply("D", slot)
	s.ErrorIs(err, ErrCapacityExceeded)

	s.Require().NoError(s.reg.RemoveCustomer(s.ctx, owner, "A", slot))
	s.Equal(int64(2), s.count(slot))

	usage, err := s.apply("D", slot)
	s.Require().NoError(err)
	s.Equal(int64(1), usage)
	s.Equal(int64(3), s.count(slot))

	// A rejoining needs a free seat first
	_, err = s.apply("A", slot)
	s.ErrorIs(err, ErrCapacityExceeded)
	s.Require().NoError(s.reg.RemoveCustomer(s.ctx, owner, "C", slot))

	usage, err = s.apply("A", slot)
	s.Require().NoError(err)
	s.Equal(int64(1), usage)
	s.Equal(int64(3), s.count(slot))

	for want := int64(2); want <= 3; want++ {
		usage, err = s.apply("B", slot)
		s.Require().NoError(err)
		s.Equal(want, usage)
	}
	_, err = s.apply("B", slot)
	s.ErrorIs(err, ErrUsageLimitExceeded)

	participants, err := s.reg.Participants(slot)
	s.Require().NoError(err)
	s.Equal([]string{"A", "B", "C", "D"}, participants)

	active, err := s.reg.ActiveCustomers(slot)
	s.Require().NoError(err)
	s.Equal([]string{"A", "B", "D"}, active)

	usageC, err := s.reg.Usage(slot, "C")
	s.Require().NoError(err)
	s.Equal(UsageRemoved, usageC)
}

func (s *RegistrySuite) TestCreateValidation() {
	cases := []struct {
		name string
		spec PromotionSpec
		want error
	}{
		{"empty name", PromotionSpec{Name: "  ", Expiry: epoch, MaxCustomers: 1, MaxUsesPerCustomer: 1}, ErrInvalidName},
		{"zero customers", PromotionSpec{Name: "x", Expiry: epoch, MaxCustomers: 0, MaxUsesPerCustomer: 1}, ErrInvalidLimits},
		{"negative uses", PromotionSpec{Name: "x", Expiry: epoch, MaxCustomers: 1, MaxUsesPerCustomer: -1}, ErrInvalidLimits},
		{"no expiry", PromotionSpec{Name: "x", MaxCustomers: 1, MaxUsesPerCustomer: 1}, ErrInvalidExpiry},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.reg.CreatePromotion(s.ctx, owner, tc.spec)
			s.ErrorIs(err, tc.want)
		})
	}
	s.Equal(0, s.reg.Len())
	s.Empty(s.events)
}

func (s *RegistrySuite) TestNameUniqueness() {
	first := s.create("SUMMER", 5, 1)
	s.Equal(uint64(1), first)

	_, err := s.reg.CreatePromotion(s.ctx, owner, PromotionSpec{
		Name: "SUMMER", Expiry: epoch.Add(time.Hour), MaxCustomers: 1, MaxUsesPerCustomer: 1,
	})
	s.ErrorIs(err, ErrDuplicatePromotion)

	_, err = s.apply("A", first)
	s.Require().NoError(err)
	s.Require().NoError(s.reg.DeletePromotion(s.ctx, owner, first))
	s.False(s.reg.Exists("SUMMER"))

	second := s.create("SUMMER", 5, 1)
	s.Equal(uint64(2), second)
	s.True(s.reg.Exists("SUMMER"))

	slot, err := s.reg.SlotOf("SUMMER")
	s.Require().NoError(err)
	s.Equal(second, slot)

	// the tombstone keeps its history
	old, err := s.reg.Promotion(first)
	s.Require().NoError(err)
	s.True(old.IsDeleted())
	s.Equal("SUMMER", old.DeletedName)
	s.Equal(int64(1), old.Usage["A"])

	_, err = s.apply("A", first)
	s.ErrorIs(err, ErrPromotionNotFound)
	s.ErrorIs(s.reg.DeletePromotion(s.ctx, owner, first), ErrPromotionNotFound)

	live := s.reg.Promotions()
	s.Require().Len(live, 1)
	s.Equal(second, live[0].Slot)
}

func (s *RegistrySuite) TestRemovalReversibility() {
	slot := s.create("BACK", 2, 5)
	for i := 0; i < 3; i++ {
		_, err := s.apply("A", slot)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.reg.RemoveCustomer(s.ctx, owner, "A", slot))
	s.Equal(int64(0), s.count(slot))

	usage, err := s.apply("A", slot)
	s.Require().NoError(err)
	s.Equal(int64(1), usage)
	s.Equal(int64(1), s.count(slot))

	participants, err := s.reg.Participants(slot)
	s.Require().NoError(err)
	s.Equal([]string{"A"}, participants)
}

func (s *RegistrySuite) TestRemoveInactiveCustomer() {
	slot := s.create("GONE", 2, 2)
	s.ErrorIs(s.reg.RemoveCustomer(s.ctx, owner, "never", slot), ErrCustomerNotActive)

	_, err := s.apply("A", slot)
	s.Require().NoError(err)
	s.Require().NoError(s.reg.RemoveCustomer(s.ctx, owner, "A", slot))
	s.ErrorIs(s.reg.RemoveCustomer(s.ctx, owner, "A", slot), ErrCustomerNotActive)
	s.Equal(int64(0), s.count(slot))
}

func (s *RegistrySuite) TestAccessControl() {
	slot := s.create("OWNED", 2, 2)
	_, err := s.apply("A", slot)
	s.Require().NoError(err)
	before, err := s.reg.Promotion(slot)
	s.Require().NoError(err)
	eventsBefore := len(s.events)

	for _, caller := range []string{"", "intruder"} {
		_, err = s.reg.CreatePromotion(s.ctx, caller, PromotionSpec{
			Name: "X", Expiry: epoch.Add(time.Hour), MaxCustomers: 1, MaxUsesPerCustomer: 1,
		})
		s.ErrorIs(err, ErrNotOwner)
		_, err = s.reg.ApplyToCustomer(s.ctx, caller, "B", slot)
		s.ErrorIs(err, ErrNotOwner)
		s.ErrorIs(s.reg.RemoveCustomer(s.ctx, caller, "A", slot), ErrNotOwner)
		s.ErrorIs(s.reg.DeletePromotion(s.ctx, caller, slot), ErrNotOwner)
	}

	after, err := s.reg.Promotion(slot)
	s.Require().NoError(err)
	s.Equal(before, after)
	s.False(s.reg.Exists("X"))
	s.Len(s.events, eventsBefore)
}

func (s *RegistrySuite) TestExpiryGate() {
	slot := s.create("SHORT", 10, 10)
	_, err := s.apply("A", slot)
	s.Require().NoError(err)

	s.clock.Set(epoch.Add(30 * 24 * time.Hour))

	_, err = s.apply("B", slot)
	s.ErrorIs(err, ErrPromotionExpired)
	_, err = s.apply("A", slot)
	s.ErrorIs(err, ErrPromotionExpired)
	s.ErrorIs(s.reg.RemoveCustomer(s.ctx, owner, "A", slot), ErrPromotionExpired)
	s.ErrorIs(s.reg.DeletePromotion(s.ctx, owner, slot), ErrPromotionExpired)

	expired, err := s.reg.Expired(slot)
	s.Require().NoError(err)
	s.True(expired)
	s.True(s.reg.Exists("SHORT"))
}

func (s *RegistrySuite) TestExpiredDeleteAllowedByPolicy() {
	reg, err := New(owner, WithClock(s.clock), WithPolicy(Policy{AllowExpiredDelete: true}))
	s.Require().NoError(err)
	slot, err := reg.CreatePromotion(s.ctx, owner, PromotionSpec{
		Name: "OLD", Expiry: epoch.Add(time.Minute), MaxCustomers: 1, MaxUsesPerCustomer: 1,
	})
	s.Require().NoError(err)

	s.clock.Advance(time.Hour)
	s.Require().NoError(reg.DeletePromotion(s.ctx, owner, slot))
	s.False(reg.Exists("OLD"))
}

func (s *RegistrySuite) TestEvents() {
	slot := s.create("EVT", 2, 2)
	_, err := s.apply("A", slot)
	s.Require().NoError(err)
	s.Require().NoError(s.reg.RemoveCustomer(s.ctx, owner, "A", slot))
	s.Require().NoError(s.reg.DeletePromotion(s.ctx, owner, slot))

	s.Require().Len(s.events, 4)
	s.Equal(EventPromotionCreated, s.events[0].Type)
	s.Equal(EventPromotionApplied, s.events[1].Type)
	s.Equal("A", s.events[1].Customer)
	s.Equal(int64(1), s.events[1].Usage)
	s.Equal(int64(1), s.events[1].Customers)
	s.Equal(EventCustomerRemoved, s.events[2].Type)
	s.Equal(UsageRemoved, s.events[2].Usage)
	s.Equal(EventPromotionDeleted, s.events[3].Type)
	s.Equal("EVT", s.events[3].Name)
	for _, e := range s.events {
		s.Equal(slot, e.Slot)
		s.NotEmpty(e.ID)
	}
}

func (s *RegistrySuite) TestUnknownSlot() {
	_, err := s.apply("A", 0)
	s.ErrorIs(err, ErrPromotionNotFound)
	_, err = s.apply("A", 7)
	s.ErrorIs(err, ErrPromotionNotFound)
	_, err = s.reg.Promotion(7)
	s.ErrorIs(err, ErrPromotionNotFound)
	_, err = s.reg.SlotOf("nope")
	s.ErrorIs(err, ErrPromotionNotFound)
	_, err = s.apply("", 1)
	s.ErrorIs(err, ErrInvalidCustomer)
}

func (s *RegistrySuite) TestReturnedCopiesAreDetached() {
	slot := s.create("COPY", 2, 2)
	_, err := s.apply("A", slot)
	s.Require().NoError(err)

	p, err := s.reg.Promotion(slot)
	s.Require().NoError(err)
	p.Usage["A"] = 99
	p.Participants[0] = "Z"

	usage, err := s.reg.Usage(slot, "A")
	s.Require().NoError(err)
	s.Equal(int64(1), usage)
}

// randomized apply/remove sequences keep the capacity and usage invariants
func TestInvariantsUnderRandomSequences(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	customers := []string{"a", "b", "c", "d", "e", "f", "g"}

	for round := 0; round < 20; round++ {
		reg, err := New(owner, WithClock(clock.NewManual(epoch)))
		require.NoError(t, err)
		maxCustomers := int64(rng.Intn(4) + 1)
		maxUses := int64(rng.Intn(3) + 1)
		slot, err := reg.CreatePromotion(ctx, owner, PromotionSpec{
			Name: "R", Expiry: epoch.Add(time.Hour), MaxCustomers: maxCustomers, MaxUsesPerCustomer: maxUses,
		})
		require.NoError(t, err)

		for step := 0; step < 200; step++ {
			c := customers[rng.Intn(len(customers))]
			before, _ := reg.Usage(slot, c)
			if rng.Intn(3) == 0 {
				err = reg.RemoveCustomer(ctx, owner, c, slot)
				if before > 0 {
					require.NoError(t, err)
				} else {
					require.ErrorIs(t, err, ErrCustomerNotActive)
				}
			} else {
				_, err = reg.ApplyToCustomer(ctx, owner, c, slot)
				if errors.Is(err, ErrUsageLimitExceeded) {
					after, _ := reg.Usage(slot, c)
					require.Equal(t, before, after)
				}
			}

			p, err := reg.Promotion(slot)
			require.NoError(t, err)
			require.NoError(t, p.check(), "round %d step %d", round, step)
			assert.LessOrEqual(t, p.CurrentCustomerCount, maxCustomers)
			seen := map[string]bool{}
			for _, id := range p.Participants {
				require.False(t, seen[id], "duplicate participant %s", id)
				seen[id] = true
			}
		}
	}
}

func TestConcurrentApplyRespectsCapacity(t *testing.T) {
	ctx := context.Background()
	reg, err := New(owner)
	require.NoError(t, err)
	slot, err := reg.CreatePromotion(ctx, owner, PromotionSpec{
		Name: "FLASH", Expiry: time.Now().Add(time.Hour), MaxCustomers: 5, MaxUsesPerCustomer: 1,
	})
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		capacity int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := reg.ApplyToCustomer(ctx, owner, fmt.Sprintf("user_%d", i), slot)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrCapacityExceeded):
				capacity++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 45, capacity)
	p, err := reg.Promotion(slot)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.CurrentCustomerCount)
	assert.Len(t, p.Participants, 5)
}

func TestConcurrentSameCustomerRespectsUsageCap(t *testing.T) {
	ctx := context.Background()
	reg, err := New(owner)
	require.NoError(t, err)
	slot, err := reg.CreatePromotion(ctx, owner, PromotionSpec{
		Name: "DIP", Expiry: time.Now().Add(time.Hour), MaxCustomers: 100, MaxUsesPerCustomer: 3,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = reg.ApplyToCustomer(ctx, owner, "same", slot)
		}()
	}
	wg.Wait()

	usage, err := reg.Usage(slot, "same")
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage)
	participants, err := reg.Participants(slot)
	require.NoError(t, err)
	assert.Equal(t, []string{"same"}, participants)
}

func TestNewRequiresOwner(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "capacity_exceeded", Kind(fmt.Errorf("wrapped: %w", ErrCapacityExceeded)))
	assert.Equal(t, "not_owner", Kind(ErrNotOwner))
	assert.Equal(t, "", Kind(errors.New("other")))
}
