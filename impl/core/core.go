package core

import (
	"context"
	"fmt"
	"log/slog"

	"promoreg/entity"
	"promoreg/internal/metrics"
	"promoreg/internal/registry"
	"promoreg/lib/clock"
	"promoreg/lib/sl"
)

type AuthService interface {
	UserByToken(token string) (*entity.User, error)
}

// Journal reads the persisted event history of a slot.
type Journal interface {
	Events(ctx context.Context, slot uint64, limit int64) ([]registry.Event, error)
}

// Core adapts the registry to the HTTP handlers: it maps requests to registry
// commands, builds response views and records rejections.
type Core struct {
	reg     *registry.Registry
	clock   clock.Clock
	auth    AuthService
	journal Journal
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(reg *registry.Registry, clk clock.Clock, log *slog.Logger) *Core {
	if reg == nil {
		panic("registry is nil")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Core{
		reg:   reg,
		clock: clk,
		log:   log.With(sl.Module("core")),
	}
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) SetJournal(journal Journal) {
	c.journal = journal
}

func (c *Core) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

func (c *Core) AuthenticateByToken(token string) (*entity.User, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.UserByToken(token)
}

func (c *Core) rejected(operation string, err error) error {
	c.metrics.Rejected(operation, err)
	return err
}

func (c *Core) CreatePromotion(ctx context.Context, caller string, req *entity.CreatePromotion) (*entity.Created, error) {
	slot, err := c.reg.CreatePromotion(ctx, caller, registry.PromotionSpec{
		Name:               req.Name,
		Description:        req.Description,
		Expiry:             req.Expiry.UTC(),
		MaxCustomers:       req.MaxCustomers,
		MaxUsesPerCustomer: req.MaxUsesPerCustomer,
	})
	if err != nil {
		return nil, c.rejected("create", err)
	}
	p, err := c.reg.Promotion(slot)
	if err != nil {
		return nil, err
	}
	return &entity.Created{Slot: slot, Name: p.Name}, nil
}

func (c *Core) ApplyToCustomer(ctx context.Context, caller string, slot uint64, customer string) (*entity.CustomerUsage, error) {
	usage, err := c.reg.ApplyToCustomer(ctx, caller, customer, slot)
	if err != nil {
		return nil, c.rejected("apply", err)
	}
	return usageView(slot, customer, usage), nil
}

func (c *Core) RemoveCustomer(ctx context.Context, caller string, slot uint64, customer string) (*entity.CustomerUsage, error) {
	if err := c.reg.RemoveCustomer(ctx, caller, customer, slot); err != nil {
		return nil, c.rejected("remove", err)
	}
	return usageView(slot, customer, registry.UsageRemoved), nil
}

func (c *Core) DeletePromotion(ctx context.Context, caller string, slot uint64) error {
	if err := c.reg.DeletePromotion(ctx, caller, slot); err != nil {
		return c.rejected("delete", err)
	}
	return nil
}

func (c *Core) Owner() *entity.Owner {
	return &entity.Owner{Owner: c.reg.Owner()}
}

func (c *Core) PromotionExists(name string) *entity.Existence {
	slot, err := c.reg.SlotOf(name)
	if err != nil {
		return &entity.Existence{Name: name}
	}
	return &entity.Existence{Name: name, Exists: true, Slot: slot}
}

func (c *Core) PromotionByName(name string) (*entity.Promotion, error) {
	slot, err := c.reg.SlotOf(name)
	if err != nil {
		return nil, err
	}
	return c.PromotionBySlot(slot)
}

func (c *Core) PromotionBySlot(slot uint64) (*entity.Promotion, error) {
	p, err := c.reg.Promotion(slot)
	if err != nil {
		return nil, err
	}
	view := c.promotionView(p)
	view.Participants = p.Participants
	return view, nil
}

func (c *Core) Promotions() []*entity.Promotion {
	list := c.reg.Promotions()
	views := make([]*entity.Promotion, 0, len(list))
	for _, p := range list {
		views = append(views, c.promotionView(p))
	}
	return views
}

func (c *Core) Participants(slot uint64) ([]string, error) {
	return c.reg.Participants(slot)
}

func (c *Core) ActiveCustomers(slot uint64) ([]string, error) {
	return c.reg.ActiveCustomers(slot)
}

func (c *Core) CustomerUsage(slot uint64, customer string) (*entity.CustomerUsage, error) {
	usage, err := c.reg.Usage(slot, customer)
	if err != nil {
		return nil, err
	}
	return usageView(slot, customer, usage), nil
}

func (c *Core) Events(ctx context.Context, slot uint64, limit int64) ([]registry.Event, error) {
	if c.journal == nil {
		return nil, registry.ErrJournalUnavailable
	}
	if _, err := c.reg.Promotion(slot); err != nil {
		return nil, err
	}
	return c.journal.Events(ctx, slot, limit)
}

func (c *Core) promotionView(p *registry.Promotion) *entity.Promotion {
	view := &entity.Promotion{
		Slot:                 p.Slot,
		Name:                 p.Name,
		Description:          p.Description,
		Expiry:               p.Expiry,
		Expired:              p.ExpiredAt(c.clock.Now()),
		Deleted:              p.IsDeleted(),
		DeletedName:          p.DeletedName,
		MaxCustomers:         p.MaxCustomers,
		MaxUsesPerCustomer:   p.MaxUsesPerCustomer,
		CurrentCustomerCount: p.CurrentCustomerCount,
		CreatedAt:            p.CreatedAt,
	}
	if p.IsDeleted() {
		deletedAt := p.DeletedAt
		view.DeletedAt = &deletedAt
	}
	return view
}

func usageView(slot uint64, customer string, usage int64) *entity.CustomerUsage {
	return &entity.CustomerUsage{
		Slot:       slot,
		CustomerId: customer,
		Usage:      usage,
		Active:     usage > 0,
		Removed:    usage == registry.UsageRemoved,
	}
}
