package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"storefront/internal/models"
)

// CreateOrder writes the order and its items in one transaction. Unique
// violations come back as ErrDuplicateOrderID or ErrDuplicateIdempotencyKey.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (order_id, flow, total_items, subtotal, delivery_charge, total_price,
			customer_name, customer_phone, secondary_phone, customer_email, customer_address,
			delivery_location, payment_method, transaction_id, order_status, idempotency_key)
		VALUES (:order_id, :flow, :total_items, :subtotal, :delivery_charge, :total_price,
			:customer_name, :customer_phone, :secondary_phone, :customer_email, :customer_address,
			:delivery_location, :payment_method, :transaction_id, :order_status, :idempotency_key)
		RETURNING id, created_at, updated_at`

	query, args, err := tx.BindNamed(query, order)
	if err != nil {
		return err
	}
	row := tx.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return classifyUnique(err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, product_name, size, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			item.OrderID, item.ProductID, item.ProductName, item.Size, item.Quantity, item.UnitPrice, item.Subtotal)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return classifyUnique(tx.Commit())
}

// GetOrderByOrderID retrieves an order and its items by public order id
func (s *Store) GetOrderByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE order_id = $1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key; a miss is
// (nil, nil).
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns orders newest first, optionally filtered by status,
// with their items and the total match count.
func (s *Store) ListOrders(ctx context.Context, status string, pageNum, pageSize int) ([]models.Order, int, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		where = " WHERE order_status = $1"
		args = append(args, status)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	limit, offset := page(pageNum, pageSize, 200)
	orders := []models.Order{}
	query := fmt.Sprintf("SELECT * FROM orders%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", where, limit, offset)
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := s.attachItems(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *Store) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		o.Items = []models.OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	query, args, err := sqlx.In("SELECT * FROM order_items WHERE order_id IN (?) ORDER BY id", ids)
	if err != nil {
		return err
	}
	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	for _, it := range items {
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return nil
}

// UpdateOrderStatus moves an order from one status to another. The update
// only applies while the stored status still equals from; otherwise
// ErrStatusChanged is returned.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, from, to string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"UPDATE orders SET order_status = $1, updated_at = NOW() WHERE order_id = $2 AND order_status = $3 RETURNING *",
		to, orderID, from)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatusChanged
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderStats computes the dashboard summary in one pass
func (s *Store) OrderStats(ctx context.Context) (models.OrderStats, error) {
	var stats models.OrderStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE order_status IN ('pending', 'confirmed')) AS processing,
			COUNT(*) FILTER (WHERE order_status = 'delivered') AS delivered,
			COALESCE(SUM(total_price) FILTER (WHERE order_status = 'delivered'), 0) AS revenue
		FROM orders`)
	return stats, err
}
