package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"
)

func (s *Store) CreateCustomOrder(ctx context.Context, co *models.CustomOrder) error {
	query := `
		INSERT INTO custom_orders (customer_name, customer_phone, customer_email, customer_address, designs, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		co.CustomerName, co.CustomerPhone, co.CustomerEmail, co.CustomerAddress, co.Designs, co.Status,
	).Scan(&co.ID, &co.CreatedAt, &co.UpdatedAt)
}

func (s *Store) ListCustomOrders(ctx context.Context, status string) ([]models.CustomOrder, error) {
	orders := []models.CustomOrder{}
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &orders, "SELECT * FROM custom_orders ORDER BY created_at DESC, id DESC")
	} else {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT * FROM custom_orders WHERE status = $1 ORDER BY created_at DESC, id DESC", status)
	}
	return orders, err
}

func (s *Store) UpdateCustomOrderStatus(ctx context.Context, id int64, status string) (*models.CustomOrder, error) {
	var co models.CustomOrder
	err := s.db.GetContext(ctx, &co,
		"UPDATE custom_orders SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING *", status, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("custom order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &co, nil
}
