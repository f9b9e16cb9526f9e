package server

import (
	"context"
	"time"

	"github.com/mercatolabs/mercato/internal/dataloader"
	"github.com/mercatolabs/mercato/internal/gqlerrors"
	"github.com/mercatolabs/mercato/internal/metrics"
	"github.com/mercatolabs/mercato/pkg/storage"
)

type loadersContextKey struct{}

// Loaders is the per-request batch loader registry. One is built for every
// inbound request and carried in the request context; loaders are never shared
// across requests, so memoized values cannot leak between callers.
type Loaders struct {
	Users    *dataloader.Loader[string, *storage.User]
	Products *dataloader.Loader[string, *storage.Product]
	Orders   *dataloader.Loader[string, *storage.Order]

	ProductsBySeller *dataloader.Loader[string, []*storage.Product]
	OrdersByUser     *dataloader.Loader[string, []*storage.Order]
}

// NewLoaders builds a fresh registry over the given datastore. Every fetch
// failure is wrapped as UPSTREAM_UNAVAILABLE so it surfaces on the awaiting
// fields with the right taxonomy code.
func NewLoaders(ds storage.Datastore, wait time.Duration, maxBatch int) *Loaders {
	opts := func(name string) []dataloader.Option {
		return []dataloader.Option{
			dataloader.WithWait(wait),
			dataloader.WithMaxBatch(maxBatch),
			dataloader.WithDispatchObserver(func(batchSize int) {
				metrics.BatchSize.WithLabelValues(name).Observe(float64(batchSize))
			}),
		}
	}

	return &Loaders{
		Users: dataloader.New(func(ctx context.Context, ids []string) ([]*storage.User, error) {
			users, err := ds.UserByIDs(ctx, ids)
			if err != nil {
				return nil, gqlerrors.UpstreamUnavailable(err)
			}
			return users, nil
		}, opts("users")...),

		Products: dataloader.New(func(ctx context.Context, ids []string) ([]*storage.Product, error) {
			products, err := ds.ProductByIDs(ctx, ids)
			if err != nil {
				return nil, gqlerrors.UpstreamUnavailable(err)
			}
			return products, nil
		}, opts("products")...),

		Orders: dataloader.New(func(ctx context.Context, ids []string) ([]*storage.Order, error) {
			orders, err := ds.OrderByIDs(ctx, ids)
			if err != nil {
				return nil, gqlerrors.UpstreamUnavailable(err)
			}
			return orders, nil
		}, opts("orders")...),

		ProductsBySeller: dataloader.NewGrouped(func(ctx context.Context, sellerIDs []string) (map[string][]*storage.Product, error) {
			grouped, err := ds.ProductsBySellerIDs(ctx, sellerIDs)
			if err != nil {
				return nil, gqlerrors.UpstreamUnavailable(err)
			}
			return grouped, nil
		}, opts("products_by_seller")...),

		OrdersByUser: dataloader.NewGrouped(func(ctx context.Context, userIDs []string) (map[string][]*storage.Order, error) {
			grouped, err := ds.OrdersByUserIDs(ctx, userIDs)
			if err != nil {
				return nil, gqlerrors.UpstreamUnavailable(err)
			}
			return grouped, nil
		}, opts("orders_by_user")...),
	}
}

// WithLoaders attaches the registry to the request context.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, loadersContextKey{}, l)
}

// LoadersFromContext returns the registry attached to the request context.
// Resolvers run only under the graphql endpoint, which always attaches one.
func LoadersFromContext(ctx context.Context) (*Loaders, bool) {
	l, ok := ctx.Value(loadersContextKey{}).(*Loaders)
	return l, ok
}
