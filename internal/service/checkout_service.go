package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/store"
	"storefront/internal/util"
)

const (
	defaultCheckoutLockTTL = 30 * time.Second
	idempotencyTTL         = 24 * time.Hour
)

// CheckoutService turns a validated form into one persisted order.
type CheckoutService struct {
	orders   OrderRepository
	products ProductRepository
	carts    *CartService
	guard    CheckoutGuard
	ids      OrderIDGenerator
	rates    pricing.DeliveryRates
	notifier ChangeNotifier
	lockTTL  time.Duration
	logger   *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	orders OrderRepository,
	products ProductRepository,
	carts *CartService,
	guard CheckoutGuard,
	ids OrderIDGenerator,
	rates pricing.DeliveryRates,
	notifier ChangeNotifier,
) *CheckoutService {
	return &CheckoutService{
		orders:   orders,
		products: products,
		carts:    carts,
		guard:    guard,
		ids:      ids,
		rates:    rates,
		notifier: notifier,
		lockTTL:  defaultCheckoutLockTTL,
		logger:   util.GetLogger(),
	}
}

// SubmissionStatus is the observable state of one checkout attempt.
type SubmissionStatus string

const (
	SubmissionIdle       SubmissionStatus = "idle"
	SubmissionSubmitting SubmissionStatus = "submitting"
	SubmissionSucceeded  SubmissionStatus = "succeeded"
	SubmissionFailed     SubmissionStatus = "failed"
)

// Submission holds a cart checkout form across attempts. The form is only
// reset once an order has been written; after a failure it still holds
// what the customer typed so the attempt can be repeated as is.
type Submission struct {
	mu     sync.Mutex
	form   checkout.CartCheckout
	status SubmissionStatus
	order  *models.Order
	err    error
}

func NewSubmission(form checkout.CartCheckout) *Submission {
	return &Submission{form: form, status: SubmissionIdle}
}

func (s *Submission) Form() checkout.CartCheckout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

func (s *Submission) Status() SubmissionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Submission) Order() *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

func (s *Submission) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Submission) begin() (checkout.CartCheckout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == SubmissionSubmitting {
		return s.form, false
	}
	s.status = SubmissionSubmitting
	s.err = nil
	return s.form, true
}

func (s *Submission) finish(order *models.Order, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status = SubmissionFailed
		s.err = err
		return
	}
	s.status = SubmissionSucceeded
	s.order = order
	s.form = checkout.CartCheckout{}
}

// Submit runs the cart checkout for sub against the cart stored under cartID.
func (s *CheckoutService) Submit(ctx context.Context, cartID string, sub *Submission) (*models.Order, error) {
	form, ok := sub.begin()
	if !ok {
		return nil, ErrCheckoutInProgress
	}
	order, err := s.CheckoutCart(ctx, cartID, form)
	sub.finish(order, err)
	return order, err
}

// CheckoutCart places an order for every line of the stored cart.
func (s *CheckoutService) CheckoutCart(ctx context.Context, cartID string, form checkout.CartCheckout) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CheckoutCart")
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = checkout.ValidateCheckoutDetails(&form); err != nil {
		util.CheckoutValidationFailures.WithLabelValues(models.OrderFlowCart).Inc()
		return nil, err
	}

	c, err := s.carts.Load(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	lines := c.Lines()

	if err = checkout.ValidateCartCheckout(&form, lines); err != nil {
		util.CheckoutValidationFailures.WithLabelValues(models.OrderFlowCart).Inc()
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, lineItem(l))
	}

	order, replayed, err := s.place(ctx, models.OrderFlowCart, form.Details, items)
	if err != nil {
		return nil, err
	}
	if replayed {
		// The cart may hold new lines that the earlier order never saw.
		return order, nil
	}

	if cerr := s.carts.Clear(context.WithoutCancel(ctx), cartID); cerr != nil {
		s.logger.Error("Failed to clear cart after checkout",
			zap.String("cart_id", cartID),
			zap.String("order_id", order.OrderID),
			zap.Error(cerr))
	}
	return order, nil
}

// BuyNow places a single-line order for a product straight from its page.
// The price is resolved at submission time.
func (s *CheckoutService) BuyNow(ctx context.Context, form checkout.BuyNow) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.BuyNow")
	var err error
	defer func() { util.EndSpan(span, err) }()

	form.Normalize()
	if err = checkout.ValidateBuyNow(&form); err != nil {
		util.CheckoutValidationFailures.WithLabelValues(models.OrderFlowBuyNow).Inc()
		return nil, err
	}

	product, err := s.products.GetProductByID(ctx, form.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		err = ErrProductNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if !product.HasSize(form.Size) {
		err = &checkout.ValidationError{Fields: map[string]string{"size": "is not offered for this product"}}
		util.CheckoutValidationFailures.WithLabelValues(models.OrderFlowBuyNow).Inc()
		return nil, err
	}

	price, warnings := pricing.Resolve(product)
	logWarnings(s.logger, product.ID, warnings)

	item := models.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Size:        form.Size,
		Quantity:    form.Quantity,
		UnitPrice:   price,
		Subtotal:    price * int64(form.Quantity),
	}
	order, _, err := s.place(ctx, models.OrderFlowBuyNow, form.Details, []models.OrderItem{item})
	return order, err
}

func lineItem(l cart.Line) models.OrderItem {
	return models.OrderItem{
		ProductID:   l.Product.ID,
		ProductName: l.Product.Name,
		Size:        l.Size,
		Quantity:    l.Quantity,
		UnitPrice:   l.SelectedPrice,
		Subtotal:    l.Subtotal(),
	}
}

// place computes totals, assigns an order id and writes the order. A
// repeated idempotency key returns the order already written for it and
// reports replayed.
func (s *CheckoutService) place(ctx context.Context, flow string, d checkout.Details, items []models.OrderItem) (order *models.Order, replayed bool, err error) {
	if d.IdempotencyKey != "" {
		if existing := s.cachedReplay(ctx, d.IdempotencyKey); existing != nil {
			s.replayed(existing, d.IdempotencyKey)
			return existing, true, nil
		}
		existing, lerr := s.orders.GetOrderByIdempotencyKey(ctx, d.IdempotencyKey)
		if lerr != nil {
			return nil, false, &PersistenceError{Op: "check idempotency key", Err: lerr}
		}
		if existing != nil {
			s.replayed(existing, d.IdempotencyKey)
			return existing, true, nil
		}

		lockKey := "checkout:" + d.IdempotencyKey
		token, err := s.guard.AcquireLock(ctx, lockKey, s.lockTTL)
		switch {
		case err != nil:
			s.logger.Warn("Checkout lock unavailable, relying on unique key",
				zap.String("idempotency_key", d.IdempotencyKey), zap.Error(err))
		case token == "":
			return nil, false, ErrCheckoutInProgress
		default:
			defer func() {
				if rerr := s.guard.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); rerr != nil {
					s.logger.Warn("Failed to release checkout lock", zap.String("key", lockKey), zap.Error(rerr))
				}
			}()
		}
	}

	var subtotal int64
	var totalItems int
	for _, it := range items {
		subtotal += it.Subtotal
		totalItems += it.Quantity
	}
	totals, err := s.rates.Totals(subtotal, d.DeliveryLocation, d.PaymentMethod)
	if err != nil {
		return nil, false, &checkout.ValidationError{Fields: map[string]string{"delivery_location": err.Error()}}
	}

	orderID, err := s.ids.Generate(d.Address)
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate order id: %w", err)
	}

	order = &models.Order{
		OrderID:          orderID,
		Flow:             flow,
		TotalItems:       totalItems,
		Subtotal:         totals.Subtotal,
		DeliveryCharge:   totals.DeliveryCharge,
		TotalPrice:       totals.Total,
		CustomerName:     d.Name,
		CustomerPhone:    d.Phone,
		SecondaryPhone:   d.SecondaryPhone,
		CustomerEmail:    d.Email,
		CustomerAddress:  d.Address,
		DeliveryLocation: d.DeliveryLocation,
		PaymentMethod:    d.PaymentMethod,
		TransactionID:    d.TransactionID,
		Status:           models.OrderStatusPending,
		Items:            items,
	}
	if d.IdempotencyKey != "" {
		key := d.IdempotencyKey
		order.IdempotencyKey = &key
	}

	// The write is not abandoned once dispatched.
	persistCtx := context.WithoutCancel(ctx)
	start := time.Now()
	err = s.orders.CreateOrder(persistCtx, order)
	util.OrderPersistLatency.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
	case errors.Is(err, store.ErrDuplicateIdempotencyKey):
		existing, lerr := s.orders.GetOrderByIdempotencyKey(persistCtx, d.IdempotencyKey)
		if lerr != nil || existing == nil {
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
			return nil, false, &PersistenceError{Op: "create order", Conflict: true, Err: err}
		}
		s.replayed(existing, d.IdempotencyKey)
		return existing, true, nil
	case errors.Is(err, store.ErrDuplicateOrderID):
		util.OrdersFailedTotal.WithLabelValues("order_id_conflict").Inc()
		s.logger.Error("Order id collision", zap.String("order_id", orderID), zap.Error(err))
		return nil, false, &PersistenceError{Op: "create order", Conflict: true, Err: err}
	default:
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		s.logger.Error("Failed to create order", zap.String("order_id", orderID), zap.Error(err))
		return nil, false, &PersistenceError{Op: "create order", Err: err}
	}

	if order.IdempotencyKey != nil {
		if cerr := s.guard.SetIdempotencyKey(persistCtx, *order.IdempotencyKey, order.OrderID, idempotencyTTL); cerr != nil {
			s.logger.Warn("Failed to cache idempotency key", zap.String("order_id", order.OrderID), zap.Error(cerr))
		}
	}

	util.OrdersCreatedTotal.WithLabelValues(flow, order.PaymentMethod).Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.OrderID),
		zap.String("flow", flow),
		zap.Int64("total", order.TotalPrice))

	s.notifier.Publish(persistCtx, models.CollectionOrders, models.ChangeInsert, order.OrderID, order)
	return order, false, nil
}

// cachedReplay looks the key up in the fast cache. Any miss or error falls
// through to the record store.
func (s *CheckoutService) cachedReplay(ctx context.Context, key string) *models.Order {
	orderID, err := s.guard.GetIdempotencyKey(ctx, key)
	if err != nil || orderID == "" {
		return nil
	}
	order, err := s.orders.GetOrderByOrderID(ctx, orderID)
	if err != nil {
		return nil
	}
	return order
}

func (s *CheckoutService) replayed(order *models.Order, key string) {
	util.OrdersReplayedTotal.Inc()
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.String("order_id", order.OrderID))
}

func logWarnings(logger *zap.Logger, productID int64, warnings []pricing.ConsistencyWarning) {
	for _, w := range warnings {
		util.PricingWarningsTotal.Inc()
		logger.Warn("Pricing inconsistency", zap.Int64("product_id", productID), zap.String("warning", w.String()))
	}
}
