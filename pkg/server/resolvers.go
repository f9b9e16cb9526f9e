package server

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/oklog/ulid/v2"

	"github.com/mercatolabs/mercato/internal/authz"
	"github.com/mercatolabs/mercato/internal/gqlerrors"
	"github.com/mercatolabs/mercato/pkg/pagination"
	"github.com/mercatolabs/mercato/pkg/storage"
)

// searchWindow is the cached shape of one product search page.
type searchWindow struct {
	Rows  []*storage.Product `json:"rows"`
	Total int                `json:"total"`
}

// orderWindow is the cached shape of one user's order list.
type orderWindow struct {
	Rows  []*storage.Order `json:"rows"`
	Total int              `json:"total"`
}

func loadersFrom(p graphql.ResolveParams) (*Loaders, error) {
	l, ok := LoadersFromContext(p.Context)
	if !ok {
		return nil, gqlerrors.UpstreamUnavailable(errors.New("loader registry missing from request context"))
	}
	return l, nil
}

// coerceInt accepts both already-coerced ints and raw json numbers, which is
// what variable values decode to.
func coerceInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func intArg(p graphql.ResolveParams, name string) *int {
	if v, ok := coerceInt(p.Args[name]); ok {
		return &v
	}
	return nil
}

func stringArg(p graphql.ResolveParams, name string) *string {
	if v, ok := p.Args[name].(string); ok {
		return &v
	}
	return nil
}

// window resolves the connection args against the paginator, mapping cursor
// failures to the malformed-request code.
func (s *Server) window(p graphql.ResolveParams, fingerprint uint64) (offset, limit int, err error) {
	offset, limit, err = s.paginator.Window(intArg(p, "first"), stringArg(p, "after"), fingerprint)
	if err != nil {
		return 0, 0, gqlerrors.MalformedRequest("%v", err)
	}
	return offset, limit, nil
}

// sliceConnection pages an already-loaded row slice.
func sliceConnection[T any](pg *pagination.Paginator, rows []T, offset, limit int, fingerprint uint64) pagination.Connection[T] {
	total := len(rows)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return pagination.Paginate(pg, rows[start:end], offset, limit, total, fingerprint)
}

func userSource(p graphql.ResolveParams) (*storage.User, error) {
	if user, ok := p.Source.(*storage.User); ok && user != nil {
		return user, nil
	}
	return nil, fmt.Errorf("unexpected source type %T for user field", p.Source)
}

func orderSource(p graphql.ResolveParams) (*storage.Order, error) {
	if order, ok := p.Source.(*storage.Order); ok && order != nil {
		return order, nil
	}
	return nil, fmt.Errorf("unexpected source type %T for order field", p.Source)
}

func (s *Server) resolveMe(p graphql.ResolveParams) (interface{}, error) {
	id, err := authz.RequireIdentity(p.Context)
	if err != nil {
		return nil, err
	}

	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}
	user, err := loaders.Users.Load(p.Context, id.SubjectID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return user, nil
}

func (s *Server) resolveUser(p graphql.ResolveParams) (interface{}, error) {
	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}
	user, err := loaders.Users.Load(p.Context, p.Args["id"].(string))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return user, nil
}

// resolveUserEmail gates the one PII field of the user type. Non-owners see
// a FORBIDDEN field error while the rest of the user still resolves.
func (s *Server) resolveUserEmail(p graphql.ResolveParams) (interface{}, error) {
	user, err := userSource(p)
	if err != nil {
		return nil, err
	}
	if _, err := authz.RequireOwnerOrPrivileged(p.Context, user.ID); err != nil {
		return nil, err
	}
	return user.Email, nil
}

func (s *Server) resolveUserOrders(p graphql.ResolveParams) (interface{}, error) {
	user, err := userSource(p)
	if err != nil {
		return nil, err
	}
	if _, err := authz.RequireOwnerOrPrivileged(p.Context, user.ID); err != nil {
		return nil, err
	}

	fingerprint := pagination.Fingerprint("user.orders", user.ID)
	offset, limit, err := s.window(p, fingerprint)
	if err != nil {
		return nil, err
	}

	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}
	wait := loaders.OrdersByUser.LoadThunk(p.Context, user.ID)
	return func() (interface{}, error) {
		orders, err := wait(p.Context)
		if err != nil {
			return nil, err
		}
		return sliceConnection(s.paginator, orders, offset, limit, fingerprint), nil
	}, nil
}

func (s *Server) resolveUserProducts(p graphql.ResolveParams) (interface{}, error) {
	user, err := userSource(p)
	if err != nil {
		return nil, err
	}

	fingerprint := pagination.Fingerprint("user.products", user.ID)
	offset, limit, err := s.window(p, fingerprint)
	if err != nil {
		return nil, err
	}

	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}
	wait := loaders.ProductsBySeller.LoadThunk(p.Context, user.ID)
	return func() (interface{}, error) {
		products, err := wait(p.Context)
		if err != nil {
			return nil, err
		}
		return sliceConnection(s.paginator, products, offset, limit, fingerprint), nil
	}, nil
}

func (s *Server) resolveProduct(p graphql.ResolveParams) (interface{}, error) {
	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}
	product, err := loaders.Products.Load(p.Context, p.Args["id"].(string))
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, nil
	}
	return product, nil
}

// resolveProductSeller enqueues the seller key synchronously and hands the
// executor a thunk. The executor collects thunks from every sibling field
// before forcing any of them, so all sellers of a product page land in one
// batch regardless of how many distinct sellers the page spans.
func (s *Server) resolveProductSeller(p graphql.ResolveParams) (interface{}, error) {
	product, ok := p.Source.(*storage.Product)
	if !ok || product == nil {
		return nil, fmt.Errorf("unexpected source type %T for product field", p.Source)
	}

	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}
	wait := loaders.Users.LoadThunk(p.Context, product.SellerID)
	return func() (interface{}, error) {
		seller, err := wait(p.Context)
		if err != nil {
			return nil, err
		}
		if seller == nil {
			return nil, nil
		}
		return seller, nil
	}, nil
}

// resolveProducts serves the storefront search. Resolved windows are cached as
// fragments keyed by the full search shape; any cache failure is a miss.
func (s *Server) resolveProducts(p graphql.ResolveParams) (interface{}, error) {
	var term string
	if v := stringArg(p, "search"); v != nil {
		term = *v
	}

	filter := storage.ProductFilter{}
	if v := stringArg(p, "sellerId"); v != nil {
		filter.SellerID = *v
	}
	if v := intArg(p, "minPriceCents"); v != nil {
		min := int64(*v)
		filter.MinPriceCents = &min
	}
	if v := intArg(p, "maxPriceCents"); v != nil {
		max := int64(*v)
		filter.MaxPriceCents = &max
	}

	shape := append([]string{"products", "term=" + term}, filter.Fingerprint()...)
	fingerprint := pagination.Fingerprint(shape...)

	offset, limit, err := s.window(p, fingerprint)
	if err != nil {
		return nil, err
	}

	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}

	key := fragmentKey(append(shape, strconv.Itoa(offset), strconv.Itoa(limit))...)

	var win searchWindow
	if !s.respCache.get(p.Context, "products", key, &win) {
		rows, total, err := s.datastore.SearchProducts(p.Context, term, filter, limit, offset)
		if err != nil {
			return nil, gqlerrors.UpstreamUnavailable(err)
		}
		win = searchWindow{Rows: rows, Total: total}
		s.respCache.set(p.Context, "products", key, win)
	}

	for _, product := range win.Rows {
		loaders.Products.Prime(product.ID, product)
	}

	return pagination.Paginate(s.paginator, win.Rows, offset, limit, win.Total, fingerprint), nil
}

func (s *Server) resolveOrder(p graphql.ResolveParams) (interface{}, error) {
	if _, err := authz.RequireIdentity(p.Context); err != nil {
		return nil, err
	}

	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}
	id := p.Args["id"].(string)
	order, err := loaders.Orders.Load(p.Context, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, gqlerrors.NotFound("order %s not found", id)
	}

	if _, err := authz.RequireOwnerOrPrivileged(p.Context, order.UserID); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Server) resolveOrderUser(p graphql.ResolveParams) (interface{}, error) {
	order, err := orderSource(p)
	if err != nil {
		return nil, err
	}

	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}
	wait := loaders.Users.LoadThunk(p.Context, order.UserID)
	return func() (interface{}, error) {
		user, err := wait(p.Context)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, nil
		}
		return user, nil
	}, nil
}

func (s *Server) resolveOrderItemProduct(p graphql.ResolveParams) (interface{}, error) {
	item, ok := p.Source.(storage.OrderItem)
	if !ok {
		return nil, fmt.Errorf("unexpected source type %T for order item field", p.Source)
	}

	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}
	wait := loaders.Products.LoadThunk(p.Context, item.ProductID)
	return func() (interface{}, error) {
		product, err := wait(p.Context)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, nil
		}
		return product, nil
	}, nil
}

func ordersNamespace(userID string) string {
	return "orders:" + userID
}

func (s *Server) resolveMyOrders(p graphql.ResolveParams) (interface{}, error) {
	id, err := authz.RequireIdentity(p.Context)
	if err != nil {
		return nil, err
	}

	fingerprint := pagination.Fingerprint("myOrders", id.SubjectID)
	offset, limit, err := s.window(p, fingerprint)
	if err != nil {
		return nil, err
	}

	namespace := ordersNamespace(id.SubjectID)
	key := fragmentKey(id.SubjectID, strconv.Itoa(offset), strconv.Itoa(limit))

	var win orderWindow
	if s.respCache.get(p.Context, namespace, key, &win) {
		return pagination.Paginate(s.paginator, win.Rows, offset, limit, win.Total, fingerprint), nil
	}

	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}
	orders, err := loaders.OrdersByUser.Load(p.Context, id.SubjectID)
	if err != nil {
		return nil, err
	}

	conn := sliceConnection(s.paginator, orders, offset, limit, fingerprint)

	rows := make([]*storage.Order, 0, len(conn.Edges))
	for _, edge := range conn.Edges {
		rows = append(rows, edge.Node)
	}
	s.respCache.set(p.Context, namespace, key, orderWindow{Rows: rows, Total: conn.TotalCount})

	return conn, nil
}

func (s *Server) resolveCreateOrder(p graphql.ResolveParams) (interface{}, error) {
	id, err := authz.RequireIdentity(p.Context)
	if err != nil {
		return nil, err
	}

	input, _ := p.Args["input"].(map[string]interface{})
	rawItems, _ := input["items"].([]interface{})
	if len(rawItems) == 0 {
		return nil, gqlerrors.MalformedRequest("order must contain at least one item")
	}

	productIDs := make([]string, 0, len(rawItems))
	quantities := make([]int, 0, len(rawItems))
	for _, raw := range rawItems {
		item, _ := raw.(map[string]interface{})
		productID, _ := item["productId"].(string)
		quantity, _ := coerceInt(item["quantity"])
		if quantity < 1 {
			return nil, gqlerrors.MalformedRequest("item quantity must be at least 1")
		}
		productIDs = append(productIDs, productID)
		quantities = append(quantities, quantity)
	}

	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}
	products, err := loaders.Products.LoadMany(p.Context, productIDs)
	if err != nil {
		return nil, err
	}

	order := &storage.Order{
		ID:        ulid.Make().String(),
		UserID:    id.SubjectID,
		Status:    storage.OrderStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	for i, product := range products {
		if product == nil {
			return nil, gqlerrors.NotFound("product %s not found", productIDs[i])
		}
		order.Items = append(order.Items, storage.OrderItem{
			ProductID:      product.ID,
			Quantity:       quantities[i],
			UnitPriceCents: product.PriceCents,
		})
		order.TotalCents += product.PriceCents * int64(quantities[i])
	}

	if err := s.datastore.CreateOrder(p.Context, order); err != nil {
		return nil, gqlerrors.UpstreamUnavailable(err)
	}

	loaders.Orders.Prime(order.ID, order)
	s.respCache.invalidate(p.Context, ordersNamespace(id.SubjectID))

	return order, nil
}

func (s *Server) resolveCancelOrder(p graphql.ResolveParams) (interface{}, error) {
	if _, err := authz.RequireIdentity(p.Context); err != nil {
		return nil, err
	}

	loaders, err := loadersFrom(p)
	if err != nil {
		return nil, err
	}
	id := p.Args["id"].(string)
	order, err := loaders.Orders.Load(p.Context, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, gqlerrors.NotFound("order %s not found", id)
	}

	if _, err := authz.RequireOwnerOrPrivileged(p.Context, order.UserID); err != nil {
		return nil, err
	}

	switch order.Status {
	case storage.OrderStatusCancelled:
		return order, nil
	case storage.OrderStatusShipped:
		return nil, gqlerrors.MalformedRequest("order %s has shipped and can no longer be cancelled", id)
	}

	updated, err := s.datastore.UpdateOrderStatus(p.Context, id, storage.OrderStatusCancelled)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, gqlerrors.NotFound("order %s not found", id)
		}
		return nil, gqlerrors.UpstreamUnavailable(err)
	}

	s.respCache.invalidate(p.Context, ordersNamespace(order.UserID))

	return updated, nil
}
