// Package storage defines the entity store contract consumed by the
// resolution pipeline. The pipeline itself never contains business SQL; every
// read goes through one of these adapter operations, each of which is
// fallible, possibly slow, and externally owned.
package storage

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrNotFound is returned by single-entity writes targeting a missing row.
// Batch reads never return it; a missing key yields a nil value at its
// position instead, so the caller decides null-handling policy.
var ErrNotFound = errors.New("storage: entity not found")

// ErrCollision is returned when creating an entity whose id already exists.
var ErrCollision = errors.New("storage: id collision")

type User struct {
	ID        string
	Email     string
	Name      string
	IsSeller  bool
	CreatedAt time.Time
}

type Product struct {
	ID          string
	SellerID    string
	Name        string
	Description string
	PriceCents  int64
	CreatedAt   time.Time
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type OrderItem struct {
	ProductID      string
	Quantity       int
	UnitPriceCents int64
}

type Order struct {
	ID         string
	UserID     string
	Status     OrderStatus
	TotalCents int64
	Items      []OrderItem
	CreatedAt  time.Time
}

// ProductFilter narrows a product search. Zero values mean "no constraint".
type ProductFilter struct {
	SellerID      string
	MinPriceCents *int64
	MaxPriceCents *int64
}

// Fingerprint renders the filter as stable strings for cursor namespacing and
// cache keys.
func (f ProductFilter) Fingerprint() []string {
	parts := []string{"seller=" + f.SellerID}
	if f.MinPriceCents != nil {
		parts = append(parts, "min="+strconv.FormatInt(*f.MinPriceCents, 10))
	}
	if f.MaxPriceCents != nil {
		parts = append(parts, "max="+strconv.FormatInt(*f.MaxPriceCents, 10))
	}
	return parts
}

// Datastore is the complete adapter surface the gateway consumes. Batch
// operations return values in key order with nil at missing positions;
// relationship operations partition rows per owner key. Every result set uses
// a fixed sort order (creation time, then id) so offsets are stable.
type Datastore interface {
	UserByIDs(ctx context.Context, ids []string) ([]*User, error)
	ProductByIDs(ctx context.Context, ids []string) ([]*Product, error)
	OrderByIDs(ctx context.Context, ids []string) ([]*Order, error)

	ProductsBySellerIDs(ctx context.Context, sellerIDs []string) (map[string][]*Product, error)
	OrdersByUserIDs(ctx context.Context, userIDs []string) (map[string][]*Order, error)

	// SearchProducts returns one window of matching rows plus the total
	// match count for pagination.
	SearchProducts(ctx context.Context, term string, filter ProductFilter, limit, offset int) ([]*Product, int, error)

	CreateOrder(ctx context.Context, order *Order) error
	UpdateOrderStatus(ctx context.Context, id string, status OrderStatus) (*Order, error)

	// IsReady reports whether the datastore is reachable, for health checks.
	IsReady(ctx context.Context) (bool, error)

	Close()
}
