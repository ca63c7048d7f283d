package entity

import (
	"net/http"
	"time"

	"promoreg/lib/validate"
)

// CreatePromotion is the owner request for a new promotion.
type CreatePromotion struct {
	Name               string    `json:"name" validate:"required,max=128"`
	Description        string    `json:"description" validate:"omitempty,max=4096"`
	Expiry             time.Time `json:"expiry" validate:"required"`
	MaxCustomers       int64     `json:"max_customers" validate:"required,gt=0"`
	MaxUsesPerCustomer int64     `json:"max_uses_per_customer" validate:"required,gt=0"`
}

func (p *CreatePromotion) Bind(_ *http.Request) error {
	return validate.Struct(p)
}

// CustomerRequest names the customer of an apply or remove command.
type CustomerRequest struct {
	CustomerId string `json:"customer_id" validate:"required,max=256"`
}

func (c *CustomerRequest) Bind(_ *http.Request) error {
	return validate.Struct(c)
}

// Promotion is the public view of a registry slot.
type Promotion struct {
	Slot                 uint64     `json:"slot"`
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	Expiry               time.Time  `json:"expiry"`
	Expired              bool       `json:"expired"`
	Deleted              bool       `json:"deleted"`
	DeletedName          string     `json:"deleted_name,omitempty"`
	MaxCustomers         int64      `json:"max_customers"`
	MaxUsesPerCustomer   int64      `json:"max_uses_per_customer"`
	CurrentCustomerCount int64      `json:"current_customer_count"`
	Participants         []string   `json:"participants,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	DeletedAt            *time.Time `json:"deleted_at,omitempty"`
}

type Created struct {
	Slot uint64 `json:"slot"`
	Name string `json:"name"`
}

type Existence struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
	Slot   uint64 `json:"slot,omitempty"`
}

// CustomerUsage reports the signed usage counter: 0 never joined, -1 removed.
type CustomerUsage struct {
	Slot       uint64 `json:"slot"`
	CustomerId string `json:"customer_id"`
	Usage      int64  `json:"usage"`
	Active     bool   `json:"active"`
	Removed    bool   `json:"removed"`
}

type Owner struct {
	Owner string `json:"owner"`
}
