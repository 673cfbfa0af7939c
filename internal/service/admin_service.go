package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/report"
	"storefront/internal/store"
	"storefront/internal/util"
)

const (
	exportPageSize    = 200
	maxStatusAttempts = 3
)

// OrderAdminService is the back-office view of orders.
type OrderAdminService struct {
	orders   OrderRepository
	stats    *StatsProjector
	notifier ChangeNotifier
	shop     report.Shop
	logger   *zap.Logger
}

func NewOrderAdminService(orders OrderRepository, stats *StatsProjector, notifier ChangeNotifier, shop report.Shop) *OrderAdminService {
	return &OrderAdminService{
		orders:   orders,
		stats:    stats,
		notifier: notifier,
		shop:     shop,
		logger:   util.GetLogger(),
	}
}

type OrderPage struct {
	Orders   []models.Order `json:"orders"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// List returns orders newest first.
func (s *OrderAdminService) List(ctx context.Context, status string, page, pageSize int) (*OrderPage, error) {
	if status != "" && !models.IsValidOrderStatus(status) {
		return nil, ErrInvalidStatus
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	orders, total, err := s.orders.ListOrders(ctx, status, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return &OrderPage{Orders: orders, Total: total, Page: page, PageSize: pageSize}, nil
}

// Get retrieves an order by its public order id.
func (s *OrderAdminService) Get(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orders.GetOrderByOrderID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

// SetStatus moves an order to status. Delivered and cancelled orders are
// final; asking for the status an order already has changes nothing.
func (s *OrderAdminService) SetStatus(ctx context.Context, orderID, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderAdminService.SetStatus")
	var err error
	defer func() { util.EndSpan(span, err) }()

	if !models.IsValidOrderStatus(status) {
		err = ErrInvalidStatus
		return nil, err
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		var current *models.Order
		current, err = s.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current.Status == status {
			return current, nil
		}
		if models.IsTerminalOrderStatus(current.Status) {
			err = ErrTerminalStatus
			return nil, err
		}

		var updated *models.Order
		updated, err = s.orders.UpdateOrderStatus(ctx, orderID, current.Status, status)
		if errors.Is(err, store.ErrStatusChanged) {
			continue
		}
		if err != nil {
			s.logger.Error("Failed to update order status", zap.String("order_id", orderID), zap.Error(err))
			err = &PersistenceError{Op: "update order status", Err: err}
			return nil, err
		}

		util.OrderStatusTransitions.WithLabelValues(current.Status, status).Inc()
		s.logger.Info("Order status changed",
			zap.String("order_id", orderID),
			zap.String("from", current.Status),
			zap.String("to", status))
		s.notifier.Publish(ctx, models.CollectionOrders, models.ChangeUpdate, orderID, updated)
		return updated, nil
	}

	err = &PersistenceError{Op: "update order status", Conflict: true, Err: store.ErrStatusChanged}
	return nil, err
}

// Stats returns the dashboard summary.
func (s *OrderAdminService) Stats(ctx context.Context) (models.OrderStats, error) {
	return s.stats.Stats(ctx)
}

// ExportCSV writes every order matching status to w.
func (s *OrderAdminService) ExportCSV(ctx context.Context, w io.Writer, status string) error {
	if status != "" && !models.IsValidOrderStatus(status) {
		return ErrInvalidStatus
	}
	var all []models.Order
	for page := 1; ; page++ {
		orders, total, err := s.orders.ListOrders(ctx, status, page, exportPageSize)
		if err != nil {
			return fmt.Errorf("failed to list orders: %w", err)
		}
		all = append(all, orders...)
		if len(orders) == 0 || len(all) >= total {
			break
		}
	}
	return report.WriteOrdersCSV(w, all)
}

// Invoice renders the PDF invoice of an order.
func (s *OrderAdminService) Invoice(ctx context.Context, orderID string) ([]byte, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return report.Invoice(order, s.shop)
}
