// Package memory provides a map-backed Datastore for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mercatolabs/mercato/pkg/storage"
)

// Datastore implements storage.Datastore entirely in process memory.
type Datastore struct {
	mu       sync.RWMutex
	users    map[string]*storage.User
	products map[string]*storage.Product
	orders   map[string]*storage.Order
}

var _ storage.Datastore = (*Datastore)(nil)

func New() *Datastore {
	return &Datastore{
		users:    make(map[string]*storage.User),
		products: make(map[string]*storage.Product),
		orders:   make(map[string]*storage.Order),
	}
}

// AddUser seeds a user. Missing ids and timestamps are filled in.
func (d *Datastore) AddUser(user *storage.User) *storage.User {
	d.mu.Lock()
	defer d.mu.Unlock()

	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	stored := *user
	d.users[stored.ID] = &stored
	return &stored
}

// AddProduct seeds a product. Missing ids and timestamps are filled in.
func (d *Datastore) AddProduct(product *storage.Product) *storage.Product {
	d.mu.Lock()
	defer d.mu.Unlock()

	if product.ID == "" {
		product.ID = ulid.Make().String()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	stored := *product
	d.products[stored.ID] = &stored
	return &stored
}

func (d *Datastore) UserByIDs(_ context.Context, ids []string) ([]*storage.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.User, len(ids))
	for i, id := range ids {
		if user, ok := d.users[id]; ok {
			copied := *user
			out[i] = &copied
		}
	}
	return out, nil
}

func (d *Datastore) ProductByIDs(_ context.Context, ids []string) ([]*storage.Product, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.Product, len(ids))
	for i, id := range ids {
		if product, ok := d.products[id]; ok {
			copied := *product
			out[i] = &copied
		}
	}
	return out, nil
}

func (d *Datastore) OrderByIDs(_ context.Context, ids []string) ([]*storage.Order, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.Order, len(ids))
	for i, id := range ids {
		if order, ok := d.orders[id]; ok {
			copied := *order
			out[i] = &copied
		}
	}
	return out, nil
}

func (d *Datastore) ProductsBySellerIDs(_ context.Context, sellerIDs []string) (map[string][]*storage.Product, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	wanted := make(map[string]bool, len(sellerIDs))
	for _, id := range sellerIDs {
		wanted[id] = true
	}

	grouped := make(map[string][]*storage.Product)
	for _, product := range d.products {
		if wanted[product.SellerID] {
			copied := *product
			grouped[product.SellerID] = append(grouped[product.SellerID], &copied)
		}
	}
	for _, products := range grouped {
		sortProducts(products)
	}
	return grouped, nil
}

func (d *Datastore) OrdersByUserIDs(_ context.Context, userIDs []string) (map[string][]*storage.Order, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}

	grouped := make(map[string][]*storage.Order)
	for _, order := range d.orders {
		if wanted[order.UserID] {
			copied := *order
			grouped[order.UserID] = append(grouped[order.UserID], &copied)
		}
	}
	for _, orders := range grouped {
		sort.Slice(orders, func(i, j int) bool {
			if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
				return orders[i].ID < orders[j].ID
			}
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		})
	}
	return grouped, nil
}

func (d *Datastore) SearchProducts(_ context.Context, term string, filter storage.ProductFilter, limit, offset int) ([]*storage.Product, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	term = strings.ToLower(term)

	var matches []*storage.Product
	for _, product := range d.products {
		if term != "" &&
			!strings.Contains(strings.ToLower(product.Name), term) &&
			!strings.Contains(strings.ToLower(product.Description), term) {
			continue
		}
		if filter.SellerID != "" && product.SellerID != filter.SellerID {
			continue
		}
		if filter.MinPriceCents != nil && product.PriceCents < *filter.MinPriceCents {
			continue
		}
		if filter.MaxPriceCents != nil && product.PriceCents > *filter.MaxPriceCents {
			continue
		}
		copied := *product
		matches = append(matches, &copied)
	}

	sortProducts(matches)
	total := len(matches)

	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

func (d *Datastore) CreateOrder(_ context.Context, order *storage.Order) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if order.ID == "" {
		order.ID = ulid.Make().String()
	}
	if _, ok := d.orders[order.ID]; ok {
		return storage.ErrCollision
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	stored := *order
	stored.Items = append([]storage.OrderItem(nil), order.Items...)
	d.orders[stored.ID] = &stored
	return nil
}

func (d *Datastore) UpdateOrderStatus(_ context.Context, id string, status storage.OrderStatus) (*storage.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	order, ok := d.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	order.Status = status
	copied := *order
	return &copied, nil
}

func (d *Datastore) IsReady(context.Context) (bool, error) {
	return true, nil
}

func (d *Datastore) Close() {}

func sortProducts(products []*storage.Product) {
	sort.Slice(products, func(i, j int) bool {
		if products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].ID < products[j].ID
		}
		return products[i].CreatedAt.Before(products[j].CreatedAt)
	})
}
