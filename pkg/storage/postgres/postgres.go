// Package postgres provides a PostgreSQL-backed implementation of
// storage.Datastore.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver.
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mercatolabs/mercato/pkg/logger"
	"github.com/mercatolabs/mercato/pkg/storage"
	"github.com/mercatolabs/mercato/pkg/storage/sqlcommon"
)

var tracer = otel.Tracer("mercato/pkg/storage/postgres")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "postgres."+name)
}

// Datastore implements storage.Datastore on top of PostgreSQL.
type Datastore struct {
	stbl             sq.StatementBuilderType
	db               *sql.DB
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
}

var _ storage.Datastore = (*Datastore)(nil)

// New opens a connection to the database at uri and waits for it to become
// reachable.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	db, err := sqlcommon.Open("pgx", uri, cfg)
	if err != nil {
		return nil, err
	}

	d := &Datastore{
		stbl:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(db),
		db:     db,
		logger: cfg.Logger,
	}

	if cfg.ExportMetrics {
		d.dbStatsCollector = sqlcommon.RegisterDBStatsCollector(db, "mercato")
	}

	return d, nil
}

func (d *Datastore) UserByIDs(ctx context.Context, ids []string) ([]*storage.User, error) {
	ctx, span := startTrace(ctx, "UserByIDs")
	defer span.End()

	rows, err := d.stbl.
		Select("id", "email", "name", "is_seller", "created_at").
		From("users").
		Where(sq.Eq{"id": ids}).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*storage.User, len(ids))
	for rows.Next() {
		var user storage.User
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.IsSeller, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		byID[user.ID] = &user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	out := make([]*storage.User, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out, nil
}

func (d *Datastore) ProductByIDs(ctx context.Context, ids []string) ([]*storage.Product, error) {
	ctx, span := startTrace(ctx, "ProductByIDs")
	defer span.End()

	rows, err := d.stbl.
		Select("id", "seller_id", "name", "description", "price_cents", "created_at").
		From("products").
		Where(sq.Eq{"id": ids}).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*storage.Product, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		byID[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	out := make([]*storage.Product, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out, nil
}

func (d *Datastore) OrderByIDs(ctx context.Context, ids []string) ([]*storage.Order, error) {
	ctx, span := startTrace(ctx, "OrderByIDs")
	defer span.End()

	rows, err := d.stbl.
		Select("id", "user_id", "status", "total_cents", "created_at").
		From("orders").
		Where(sq.Eq{"id": ids}).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	byID := make(map[string]*storage.Order, len(ids))
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		byID[order.ID] = order
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	_ = rows.Close()

	if err := d.attachItems(ctx, byID); err != nil {
		return nil, err
	}

	out := make([]*storage.Order, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out, nil
}

func (d *Datastore) ProductsBySellerIDs(ctx context.Context, sellerIDs []string) (map[string][]*storage.Product, error) {
	ctx, span := startTrace(ctx, "ProductsBySellerIDs")
	defer span.End()

	rows, err := d.stbl.
		Select("id", "seller_id", "name", "description", "price_cents", "created_at").
		From("products").
		Where(sq.Eq{"seller_id": sellerIDs}).
		OrderBy("created_at", "id").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query products by seller: %w", err)
	}
	defer func() { _ = rows.Close() }()

	grouped := make(map[string][]*storage.Product)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		grouped[product.SellerID] = append(grouped[product.SellerID], product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products by seller: %w", err)
	}
	return grouped, nil
}

func (d *Datastore) OrdersByUserIDs(ctx context.Context, userIDs []string) (map[string][]*storage.Order, error) {
	ctx, span := startTrace(ctx, "OrdersByUserIDs")
	defer span.End()

	rows, err := d.stbl.
		Select("id", "user_id", "status", "total_cents", "created_at").
		From("orders").
		Where(sq.Eq{"user_id": userIDs}).
		OrderBy("created_at", "id").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query orders by user: %w", err)
	}

	byID := make(map[string]*storage.Order)
	var ordered []*storage.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		byID[order.ID] = order
		ordered = append(ordered, order)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate orders by user: %w", err)
	}
	_ = rows.Close()

	if err := d.attachItems(ctx, byID); err != nil {
		return nil, err
	}

	grouped := make(map[string][]*storage.Order)
	for _, order := range ordered {
		grouped[order.UserID] = append(grouped[order.UserID], order)
	}
	return grouped, nil
}

func (d *Datastore) SearchProducts(ctx context.Context, term string, filter storage.ProductFilter, limit, offset int) ([]*storage.Product, int, error) {
	ctx, span := startTrace(ctx, "SearchProducts")
	defer span.End()

	conds := sq.And{}
	if term != "" {
		pattern := "%" + term + "%"
		conds = append(conds, sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"description": pattern},
		})
	}
	if filter.SellerID != "" {
		conds = append(conds, sq.Eq{"seller_id": filter.SellerID})
	}
	if filter.MinPriceCents != nil {
		conds = append(conds, sq.GtOrEq{"price_cents": *filter.MinPriceCents})
	}
	if filter.MaxPriceCents != nil {
		conds = append(conds, sq.LtOrEq{"price_cents": *filter.MaxPriceCents})
	}

	var total int
	if err := d.stbl.
		Select("COUNT(*)").
		From("products").
		Where(conds).
		QueryRowContext(ctx).
		Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := d.stbl.
		Select("id", "seller_id", "name", "description", "price_cents", "created_at").
		From("products").
		Where(conds).
		OrderBy("created_at", "id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		QueryContext(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("search products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*storage.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product search: %w", err)
	}
	return out, total, nil
}

func (d *Datastore) CreateOrder(ctx context.Context, order *storage.Order) error {
	ctx, span := startTrace(ctx, "CreateOrder")
	defer span.End()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stbl := d.stbl.RunWith(tx)

	if _, err := stbl.
		Insert("orders").
		Columns("id", "user_id", "status", "total_cents", "created_at").
		Values(order.ID, order.UserID, order.Status, order.TotalCents, order.CreatedAt).
		ExecContext(ctx); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if len(order.Items) > 0 {
		insert := stbl.
			Insert("order_items").
			Columns("order_id", "product_id", "quantity", "unit_price_cents")
		for _, item := range order.Items {
			insert = insert.Values(order.ID, item.ProductID, item.Quantity, item.UnitPriceCents)
		}
		if _, err := insert.ExecContext(ctx); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

func (d *Datastore) UpdateOrderStatus(ctx context.Context, id string, status storage.OrderStatus) (*storage.Order, error) {
	ctx, span := startTrace(ctx, "UpdateOrderStatus")
	defer span.End()

	var order storage.Order
	err := d.stbl.
		Update("orders").
		Set("status", status).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id, user_id, status, total_cents, created_at").
		QueryRowContext(ctx).
		Scan(&order.ID, &order.UserID, &order.Status, &order.TotalCents, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	byID := map[string]*storage.Order{order.ID: &order}
	if err := d.attachItems(ctx, byID); err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *Datastore) IsReady(ctx context.Context) (bool, error) {
	if err := d.db.PingContext(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Datastore) Close() {
	_ = d.db.Close()

	if d.dbStatsCollector != nil {
		prometheus.Unregister(d.dbStatsCollector)
	}
}

// attachItems loads the order_items rows for every order in byID.
func (d *Datastore) attachItems(ctx context.Context, byID map[string]*storage.Order) error {
	if len(byID) == 0 {
		return nil
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := d.stbl.
		Select("order_id", "product_id", "quantity", "unit_price_cents").
		From("order_items").
		Where(sq.Eq{"order_id": ids}).
		OrderBy("order_id", "product_id").
		QueryContext(ctx)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var item storage.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity, &item.UnitPriceCents); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if order, ok := byID[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}
	return nil
}

func scanProduct(rows *sql.Rows) (*storage.Product, error) {
	var product storage.Product
	if err := rows.Scan(&product.ID, &product.SellerID, &product.Name, &product.Description, &product.PriceCents, &product.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &product, nil
}

func scanOrder(rows *sql.Rows) (*storage.Order, error) {
	var order storage.Order
	if err := rows.Scan(&order.ID, &order.UserID, &order.Status, &order.TotalCents, &order.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &order, nil
}
