package domain

import (
	"context"
	"time"
)

// Rider is an internal delivery-capable staff member.
type Rider struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"isActive"`
	Workload  int       `json:"workload"` // derived: orders ready_to_ship or shipped
	CreatedAt time.Time `json:"createdAt"`
}

type RiderRepository interface {
	GetByID(ctx context.Context, id string) (*Rider, error)
	List(ctx context.Context, activeOnly bool) ([]Rider, error)
	Create(ctx context.Context, rider *Rider) error
}
