package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mercatolabs/mercato/internal/authn"
	"github.com/mercatolabs/mercato/internal/persisted"
	"github.com/mercatolabs/mercato/pkg/cache"
	"github.com/mercatolabs/mercato/pkg/identity"
	"github.com/mercatolabs/mercato/pkg/storage"
	"github.com/mercatolabs/mercato/pkg/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingDatastore struct {
	storage.Datastore

	mu    sync.Mutex
	calls map[string]int
}

func newCountingDatastore(inner storage.Datastore) *countingDatastore {
	return &countingDatastore{Datastore: inner, calls: make(map[string]int)}
}

func (c *countingDatastore) inc(name string) {
	c.mu.Lock()
	c.calls[name]++
	c.mu.Unlock()
}

func (c *countingDatastore) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *countingDatastore) UserByIDs(ctx context.Context, ids []string) ([]*storage.User, error) {
	c.inc("UserByIDs")
	return c.Datastore.UserByIDs(ctx, ids)
}

func (c *countingDatastore) ProductByIDs(ctx context.Context, ids []string) ([]*storage.Product, error) {
	c.inc("ProductByIDs")
	return c.Datastore.ProductByIDs(ctx, ids)
}

func (c *countingDatastore) SearchProducts(ctx context.Context, term string, filter storage.ProductFilter, limit, offset int) ([]*storage.Product, int, error) {
	c.inc("SearchProducts")
	return c.Datastore.SearchProducts(ctx, term, filter, limit, offset)
}

type flakyDatastore struct {
	storage.Datastore
	failUsers bool
}

func (f *flakyDatastore) UserByIDs(ctx context.Context, ids []string) ([]*storage.User, error) {
	if f.failUsers {
		return nil, errors.New("connection refused")
	}
	return f.Datastore.UserByIDs(ctx, ids)
}

// staticAuthenticator resolves fixed bearer tokens, standing in for a real
// verifier in tests.
type staticAuthenticator struct {
	tokens map[string]*identity.Identity
}

func (s *staticAuthenticator) Authenticate(_ context.Context, bearer string) (*identity.Identity, error) {
	if bearer == "" {
		return nil, nil
	}
	if id, ok := s.tokens[bearer]; ok {
		return id, nil
	}
	return nil, authn.ErrInvalidToken
}

func (s *staticAuthenticator) Close() {}

type failingCache struct{}

var _ cache.Cache = (*failingCache)(nil)

func (failingCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("cache connection lost")
}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache connection lost")
}

func (failingCache) Del(context.Context, ...string) error {
	return errors.New("cache connection lost")
}

func (failingCache) Exists(context.Context, ...string) (bool, error) {
	return false, errors.New("cache connection lost")
}

func (failingCache) Close() error { return nil }

type fixture struct {
	srv     *Server
	handler http.Handler

	seller *storage.User
	buyer  *storage.User
	admin  *storage.User

	products []*storage.Product
	order    *storage.Order
}

// newFixture seeds one seller with three products and one existing order for
// the buyer, then builds a server over the given datastore wrapper.
func newFixture(t *testing.T, wrap func(storage.Datastore) storage.Datastore, opts ...Option) *fixture {
	t.Helper()

	ds := memory.New()

	f := &fixture{}
	f.seller = ds.AddUser(&storage.User{Name: "Mira", Email: "mira@example.com", IsSeller: true})
	f.buyer = ds.AddUser(&storage.User{Name: "Tom", Email: "tom@example.com"})
	f.admin = ds.AddUser(&storage.User{Name: "Root", Email: "root@example.com"})

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"walnut desk", "walnut chair", "oak shelf"} {
		f.products = append(f.products, ds.AddProduct(&storage.Product{
			SellerID:   f.seller.ID,
			Name:       name,
			PriceCents: int64(1000 * (i + 1)),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	f.order = &storage.Order{
		ID:         "order-1",
		UserID:     f.buyer.ID,
		Status:     storage.OrderStatusPending,
		TotalCents: 1000,
		Items: []storage.OrderItem{
			{ProductID: f.products[0].ID, Quantity: 1, UnitPriceCents: 1000},
		},
		CreatedAt: base,
	}
	require.NoError(t, ds.CreateOrder(context.Background(), f.order))

	var backing storage.Datastore = ds
	if wrap != nil {
		backing = wrap(ds)
	}

	auth := &staticAuthenticator{tokens: map[string]*identity.Identity{
		"seller-token": {SubjectID: f.seller.ID},
		"buyer-token":  {SubjectID: f.buyer.ID},
		"admin-token":  {SubjectID: f.admin.ID, IsPrivileged: true},
	}}

	srv, err := New(append([]Option{
		WithDatastore(backing),
		WithAuthenticator(auth),
	}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	f.srv = srv
	f.handler = srv.Handler()
	return f
}

type gqlResponse struct {
	Data   map[string]interface{} `json:"data"`
	Errors []gqlResponseError     `json:"errors"`
}

type gqlResponseError struct {
	Message    string                 `json:"message"`
	Extensions map[string]interface{} `json:"extensions"`
}

func (r gqlResponse) code(i int) string {
	if i >= len(r.Errors) || r.Errors[i].Extensions == nil {
		return ""
	}
	code, _ := r.Errors[i].Extensions["code"].(string)
	return code
}

func post(t *testing.T, handler http.Handler, token string, body map[string]interface{}) (int, gqlResponse) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func query(t *testing.T, handler http.Handler, token, q string, variables map[string]interface{}) gqlResponse {
	t.Helper()
	_, resp := post(t, handler, token, map[string]interface{}{"query": q, "variables": variables})
	return resp
}

const productsWithSellers = `{
	products(first: 5) {
		totalCount
		edges { node { name seller { name } } }
	}
}`

func TestProductsResolveSellersThroughOneBatch(t *testing.T) {
	var counting *countingDatastore
	f := newFixture(t, func(ds storage.Datastore) storage.Datastore {
		counting = newCountingDatastore(ds)
		return counting
	})

	resp := query(t, f.handler, "", productsWithSellers, nil)
	require.Empty(t, resp.Errors)

	products := resp.Data["products"].(map[string]interface{})
	require.Equal(t, float64(3), products["totalCount"])
	edges := products["edges"].([]interface{})
	require.Len(t, edges, 3)
	for _, edge := range edges {
		node := edge.(map[string]interface{})["node"].(map[string]interface{})
		seller := node["seller"].(map[string]interface{})
		require.Equal(t, "Mira", seller["name"])
	}

	// three products, one shared seller, exactly one user fetch
	require.Equal(t, 1, counting.count("UserByIDs"))
	require.Equal(t, 1, counting.count("SearchProducts"))
}

func TestDistinctSellersResolveThroughOneBatch(t *testing.T) {
	ds := memory.New()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"Ana", "Ben", "Cleo"} {
		seller := ds.AddUser(&storage.User{Name: name, Email: name + "@example.com", IsSeller: true})
		ds.AddProduct(&storage.Product{
			SellerID:   seller.ID,
			Name:       "lamp by " + name,
			PriceCents: int64(1000 * (i + 1)),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	counting := newCountingDatastore(ds)

	srv, err := New(WithDatastore(counting))
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	resp := query(t, srv.Handler(), "", productsWithSellers, nil)
	require.Empty(t, resp.Errors)

	edges := resp.Data["products"].(map[string]interface{})["edges"].([]interface{})
	require.Len(t, edges, 3)
	sellers := make(map[string]bool)
	for _, edge := range edges {
		node := edge.(map[string]interface{})["node"].(map[string]interface{})
		sellers[node["seller"].(map[string]interface{})["name"].(string)] = true
	}
	require.Len(t, sellers, 3)

	// three distinct seller keys still coalesce into one batched user fetch
	require.Equal(t, 1, counting.count("UserByIDs"))
}

func TestConcurrentRequestsShareNoLoaderState(t *testing.T) {
	var counting *countingDatastore
	f := newFixture(t, func(ds storage.Datastore) storage.Datastore {
		counting = newCountingDatastore(ds)
		return counting
	})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			raw, _ := json.Marshal(map[string]interface{}{"query": productsWithSellers})
			req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(raw))
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			var resp gqlResponse
			assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Empty(t, resp.Errors)
		}()
	}
	wg.Wait()

	// each request builds its own registry, so the seller is fetched once per
	// request rather than once per process
	require.Equal(t, 2, counting.count("UserByIDs"))
}

func TestPersistedQueryProtocol(t *testing.T) {
	f := newFixture(t, nil)

	const q = `{ products(first: 1) { totalCount } }`
	hash := persisted.Digest(q)

	t.Run("unknown_hash_misses", func(t *testing.T) {
		_, resp := post(t, f.handler, "", map[string]interface{}{"hash": hash})
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "PERSISTED_QUERY_NOT_FOUND", resp.code(0))
	})

	t.Run("hash_with_body_registers", func(t *testing.T) {
		_, resp := post(t, f.handler, "", map[string]interface{}{"query": q, "hash": hash})
		require.Empty(t, resp.Errors)
	})

	t.Run("hash_only_resolves_after_registration", func(t *testing.T) {
		_, resp := post(t, f.handler, "", map[string]interface{}{"hash": hash})
		require.Empty(t, resp.Errors)
		require.Equal(t, float64(3), resp.Data["products"].(map[string]interface{})["totalCount"])
	})

	t.Run("extensions_hash_accepted", func(t *testing.T) {
		_, resp := post(t, f.handler, "", map[string]interface{}{
			"extensions": map[string]interface{}{
				"persistedQuery": map[string]interface{}{"sha256Hash": hash},
			},
		})
		require.Empty(t, resp.Errors)
	})

	t.Run("digest_mismatch_rejected", func(t *testing.T) {
		_, resp := post(t, f.handler, "", map[string]interface{}{"query": q, "hash": persisted.Digest("something else")})
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "MALFORMED_REQUEST", resp.code(0))
	})

	t.Run("neither_query_nor_hash", func(t *testing.T) {
		_, resp := post(t, f.handler, "", map[string]interface{}{})
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "MALFORMED_REQUEST", resp.code(0))
	})

	t.Run("shared_tier_failure_is_a_miss", func(t *testing.T) {
		store := persisted.New(persisted.WithSharedTier(failingCache{}))
		t.Cleanup(store.Close)

		broken := newFixture(t, nil, WithPersistedQueryStore(store))
		_, resp := post(t, broken.handler, "", map[string]interface{}{"hash": hash})
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "PERSISTED_QUERY_NOT_FOUND", resp.code(0))
	})
}

func TestShapeGuardRejectsOversizedQueries(t *testing.T) {
	f := newFixture(t, nil, WithQueryBounds(3, 1000, 10))

	resp := query(t, f.handler, "", productsWithSellers, nil)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, "SHAPE_REJECTED", resp.code(0))

	resp = query(t, f.handler, "seller-token", `{ me { name } }`, nil)
	require.Empty(t, resp.Errors)
}

func TestUnparseableQueryRejected(t *testing.T) {
	f := newFixture(t, nil)

	resp := query(t, f.handler, "", `{ products(`, nil)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, "MALFORMED_REQUEST", resp.code(0))
}

func TestAuthenticationEstablishesIdentityOnce(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("anonymous_me_unauthenticated", func(t *testing.T) {
		resp := query(t, f.handler, "", `{ me { name } }`, nil)
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "UNAUTHENTICATED", resp.code(0))
	})

	t.Run("valid_token_resolves", func(t *testing.T) {
		resp := query(t, f.handler, "buyer-token", `{ me { name email } }`, nil)
		require.Empty(t, resp.Errors)
		me := resp.Data["me"].(map[string]interface{})
		require.Equal(t, "Tom", me["name"])
		require.Equal(t, "tom@example.com", me["email"])
	})

	t.Run("invalid_token_degrades_to_anonymous", func(t *testing.T) {
		resp := query(t, f.handler, "garbage-token", `{ me { name } }`, nil)
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "UNAUTHENTICATED", resp.code(0))
	})
}

func TestOwnershipGuards(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("foreign_email_forbidden_but_name_resolves", func(t *testing.T) {
		resp := query(t, f.handler, "buyer-token",
			`query($id: ID!) { user(id: $id) { name email } }`,
			map[string]interface{}{"id": f.seller.ID})

		require.Len(t, resp.Errors, 1)
		require.Equal(t, "FORBIDDEN", resp.code(0))

		user := resp.Data["user"].(map[string]interface{})
		require.Equal(t, "Mira", user["name"])
		require.Nil(t, user["email"])
	})

	t.Run("privileged_reads_any_email", func(t *testing.T) {
		resp := query(t, f.handler, "admin-token",
			`query($id: ID!) { user(id: $id) { email } }`,
			map[string]interface{}{"id": f.seller.ID})
		require.Empty(t, resp.Errors)
		require.Equal(t, "mira@example.com", resp.Data["user"].(map[string]interface{})["email"])
	})

	t.Run("order_requires_owner", func(t *testing.T) {
		resp := query(t, f.handler, "seller-token",
			`query($id: ID!) { order(id: $id) { id } }`,
			map[string]interface{}{"id": f.order.ID})
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "FORBIDDEN", resp.code(0))

		resp = query(t, f.handler, "buyer-token",
			`query($id: ID!) { order(id: $id) { id totalCents } }`,
			map[string]interface{}{"id": f.order.ID})
		require.Empty(t, resp.Errors)
	})

	t.Run("my_orders_requires_identity", func(t *testing.T) {
		resp := query(t, f.handler, "", `{ myOrders(first: 5) { totalCount } }`, nil)
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "UNAUTHENTICATED", resp.code(0))
	})
}

func TestCursorPaging(t *testing.T) {
	f := newFixture(t, nil)

	const page = `query($first: Int, $after: String) {
		products(first: $first, after: $after) {
			totalCount
			edges { node { name } cursor }
			pageInfo { hasNextPage hasPreviousPage endCursor }
		}
	}`

	resp := query(t, f.handler, "", page, map[string]interface{}{"first": 2})
	require.Empty(t, resp.Errors)

	conn := resp.Data["products"].(map[string]interface{})
	require.Len(t, conn["edges"].([]interface{}), 2)
	pageInfo := conn["pageInfo"].(map[string]interface{})
	require.True(t, pageInfo["hasNextPage"].(bool))
	require.False(t, pageInfo["hasPreviousPage"].(bool))
	endCursor := pageInfo["endCursor"].(string)
	require.NotEmpty(t, endCursor)

	resp = query(t, f.handler, "", page, map[string]interface{}{"first": 2, "after": endCursor})
	require.Empty(t, resp.Errors)

	conn = resp.Data["products"].(map[string]interface{})
	pageInfo = conn["pageInfo"].(map[string]interface{})
	require.False(t, pageInfo["hasNextPage"].(bool))
	require.True(t, pageInfo["hasPreviousPage"].(bool))
	require.Len(t, conn["edges"].([]interface{}), 1)

	t.Run("garbage_cursor_rejected", func(t *testing.T) {
		resp := query(t, f.handler, "", page, map[string]interface{}{"after": "not-a-cursor"})
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "MALFORMED_REQUEST", resp.code(0))
	})

	t.Run("cursor_bound_to_filter_shape", func(t *testing.T) {
		const filtered = `query($after: String) {
			products(search: "walnut", after: $after) { totalCount }
		}`
		resp := query(t, f.handler, "", filtered, map[string]interface{}{"after": endCursor})
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "MALFORMED_REQUEST", resp.code(0))
	})
}

func TestResponseCache(t *testing.T) {
	t.Run("caches_search_windows", func(t *testing.T) {
		var counting *countingDatastore
		engine := cache.NewInMemory()
		defer engine.Close()

		f := newFixture(t, func(ds storage.Datastore) storage.Datastore {
			counting = newCountingDatastore(ds)
			return counting
		}, WithResponseCache(engine, time.Minute))

		for i := 0; i < 3; i++ {
			resp := query(t, f.handler, "", `{ products(first: 2) { totalCount } }`, nil)
			require.Empty(t, resp.Errors)
		}
		require.Equal(t, 1, counting.count("SearchProducts"))
	})

	t.Run("failures_degrade_to_miss", func(t *testing.T) {
		var counting *countingDatastore
		f := newFixture(t, func(ds storage.Datastore) storage.Datastore {
			counting = newCountingDatastore(ds)
			return counting
		}, WithResponseCache(failingCache{}, time.Minute))

		for i := 0; i < 2; i++ {
			resp := query(t, f.handler, "", `{ products(first: 2) { totalCount edges { node { name } } } }`, nil)
			require.Empty(t, resp.Errors)
			require.Equal(t, float64(3), resp.Data["products"].(map[string]interface{})["totalCount"])
		}
		// every lookup missed, so the store was consulted every time
		require.Equal(t, 2, counting.count("SearchProducts"))
	})
}

func TestUpstreamFailurePartitionsPerField(t *testing.T) {
	f := newFixture(t, func(ds storage.Datastore) storage.Datastore {
		return &flakyDatastore{Datastore: ds, failUsers: true}
	})

	resp := query(t, f.handler, "", productsWithSellers, nil)

	require.NotEmpty(t, resp.Errors)
	require.Equal(t, "UPSTREAM_UNAVAILABLE", resp.code(0))

	// the product list itself still resolves; only the seller fields are null
	products := resp.Data["products"].(map[string]interface{})
	require.Equal(t, float64(3), products["totalCount"])
	edges := products["edges"].([]interface{})
	require.Len(t, edges, 3)
	for _, edge := range edges {
		node := edge.(map[string]interface{})["node"].(map[string]interface{})
		require.NotEmpty(t, node["name"])
		require.Nil(t, node["seller"])
	}
}

func TestCreateAndCancelOrder(t *testing.T) {
	f := newFixture(t, nil)

	const create = `mutation($input: CreateOrderInput!) {
		createOrder(input: $input) {
			id status totalCents
			items { quantity unitPriceCents product { name } }
		}
	}`

	input := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"productId": f.products[0].ID, "quantity": 2},
			map[string]interface{}{"productId": f.products[2].ID, "quantity": 1},
		},
	}

	t.Run("requires_identity", func(t *testing.T) {
		resp := query(t, f.handler, "", create, map[string]interface{}{"input": input})
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "UNAUTHENTICATED", resp.code(0))
	})

	var orderID string

	t.Run("prices_come_from_the_catalog", func(t *testing.T) {
		resp := query(t, f.handler, "buyer-token", create, map[string]interface{}{"input": input})
		require.Empty(t, resp.Errors)

		order := resp.Data["createOrder"].(map[string]interface{})
		orderID = order["id"].(string)
		require.Equal(t, "PENDING", order["status"])
		// 2 x 1000 + 1 x 3000
		require.Equal(t, float64(5000), order["totalCents"])
		require.Len(t, order["items"].([]interface{}), 2)
	})

	t.Run("unknown_product_not_found", func(t *testing.T) {
		resp := query(t, f.handler, "buyer-token", create, map[string]interface{}{"input": map[string]interface{}{
			"items": []interface{}{map[string]interface{}{"productId": "missing", "quantity": 1}},
		}})
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "NOT_FOUND", resp.code(0))
	})

	t.Run("zero_quantity_rejected", func(t *testing.T) {
		resp := query(t, f.handler, "buyer-token", create, map[string]interface{}{"input": map[string]interface{}{
			"items": []interface{}{map[string]interface{}{"productId": f.products[0].ID, "quantity": 0}},
		}})
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "MALFORMED_REQUEST", resp.code(0))
	})

	const cancel = `mutation($id: ID!) { cancelOrder(id: $id) { id status } }`

	t.Run("non_owner_cannot_cancel", func(t *testing.T) {
		resp := query(t, f.handler, "seller-token", cancel, map[string]interface{}{"id": orderID})
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "FORBIDDEN", resp.code(0))
	})

	t.Run("owner_cancels", func(t *testing.T) {
		resp := query(t, f.handler, "buyer-token", cancel, map[string]interface{}{"id": orderID})
		require.Empty(t, resp.Errors)
		require.Equal(t, "CANCELLED", resp.Data["cancelOrder"].(map[string]interface{})["status"])
	})

	t.Run("cancel_is_idempotent", func(t *testing.T) {
		resp := query(t, f.handler, "buyer-token", cancel, map[string]interface{}{"id": orderID})
		require.Empty(t, resp.Errors)
		require.Equal(t, "CANCELLED", resp.Data["cancelOrder"].(map[string]interface{})["status"])
	})
}

func TestMutationsInvalidateOrderFragments(t *testing.T) {
	engine := cache.NewInMemory()
	defer engine.Close()

	f := newFixture(t, nil, WithResponseCache(engine, time.Minute))

	const myOrders = `{ myOrders(first: 5) { totalCount } }`

	resp := query(t, f.handler, "buyer-token", myOrders, nil)
	require.Empty(t, resp.Errors)
	require.Equal(t, float64(1), resp.Data["myOrders"].(map[string]interface{})["totalCount"])

	create := map[string]interface{}{
		"query": `mutation($input: CreateOrderInput!) { createOrder(input: $input) { id } }`,
		"variables": map[string]interface{}{"input": map[string]interface{}{
			"items": []interface{}{map[string]interface{}{"productId": f.products[0].ID, "quantity": 1}},
		}},
	}
	_, createResp := post(t, f.handler, "buyer-token", create)
	require.Empty(t, createResp.Errors)

	resp = query(t, f.handler, "buyer-token", myOrders, nil)
	require.Empty(t, resp.Errors)
	require.Equal(t, float64(2), resp.Data["myOrders"].(map[string]interface{})["totalCount"])
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
