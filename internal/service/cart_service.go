package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
)

// CartService loads a cart, applies one mutation and writes it back.
// Concurrent writers to the same cart id are not coordinated; the last
// write wins.
type CartService struct {
	products ProductRepository
	storage  CartStorage
	ttl      time.Duration
	logger   *zap.Logger
}

func NewCartService(products ProductRepository, storage CartStorage, ttl time.Duration) *CartService {
	return &CartService{
		products: products,
		storage:  storage,
		ttl:      ttl,
		logger:   util.GetLogger(),
	}
}

// CartView is the cart as rendered to the shopper.
type CartView struct {
	CartID     string      `json:"cart_id"`
	Items      []cart.Line `json:"items"`
	TotalItems int         `json:"total_items"`
	Subtotal   int64       `json:"subtotal"`
}

func view(cartID string, c *cart.Cart) *CartView {
	return &CartView{
		CartID:     cartID,
		Items:      c.Lines(),
		TotalItems: c.TotalItems(),
		Subtotal:   c.TotalPrice(),
	}
}

// Load returns the stored cart. Missing or corrupt state is an empty cart.
func (s *CartService) Load(ctx context.Context, cartID string) (*cart.Cart, error) {
	data, err := s.storage.LoadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	c, derr := cart.Load(data)
	if derr != nil {
		util.CartCorruptLoadsTotal.Inc()
		s.logger.Warn("Discarding corrupt cart", zap.String("cart_id", cartID), zap.Error(derr))
	}
	return c, nil
}

func (s *CartService) save(ctx context.Context, cartID string, c *cart.Cart) error {
	data, err := cart.Encode(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return s.storage.SaveCart(ctx, cartID, data, s.ttl)
}

// Get returns the current cart view. Viewing a cart keeps it alive.
func (s *CartService) Get(ctx context.Context, cartID string) (*CartView, error) {
	c, err := s.Load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !c.IsEmpty() {
		if _, terr := s.storage.TouchCart(ctx, cartID, s.ttl); terr != nil {
			s.logger.Warn("Failed to extend cart TTL", zap.String("cart_id", cartID), zap.Error(terr))
		}
	}
	return view(cartID, c), nil
}

// Add puts quantity units of a product size into the cart.
func (s *CartService) Add(ctx context.Context, cartID string, productID int64, size string, quantity int) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Add")
	var err error
	defer func() { util.EndSpan(span, err) }()

	c, err := s.Load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err = s.addFromCatalog(ctx, c, productID, size, quantity); err != nil {
		return nil, err
	}
	if err = s.save(ctx, cartID, c); err != nil {
		return nil, err
	}
	util.CartMutationsTotal.WithLabelValues("add").Inc()
	return view(cartID, c), nil
}

func (s *CartService) addFromCatalog(ctx context.Context, c *cart.Cart, productID int64, size string, quantity int) error {
	product, err := s.lookup(ctx)(productID)
	if err != nil {
		return err
	}
	_, err = c.Add(product, size, quantity)
	return cartInputError(err)
}

func (s *CartService) lookup(ctx context.Context) cart.ProductLookup {
	return func(productID int64) (*models.Product, error) {
		product, err := s.products.GetProductByID(ctx, productID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return product, err
	}
}

// cartInputError turns cart rule violations into field errors.
func cartInputError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cart.ErrInvalidQuantity):
		return &checkout.ValidationError{Fields: map[string]string{"quantity": "must be at least 1"}}
	case errors.Is(err, cart.ErrUnknownSize):
		return &checkout.ValidationError{Fields: map[string]string{"size": "is not offered for this product"}}
	}
	return err
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line; a
// positive quantity for a line that is gone adds it back at today's price.
func (s *CartService) UpdateQuantity(ctx context.Context, cartID string, productID int64, size string, quantity int) (*CartView, error) {
	c, err := s.Load(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if err := cartInputError(c.SetQuantity(productID, size, quantity, s.lookup(ctx))); err != nil {
		return nil, err
	}

	if err := s.save(ctx, cartID, c); err != nil {
		return nil, err
	}
	util.CartMutationsTotal.WithLabelValues("update").Inc()
	return view(cartID, c), nil
}

// Remove drops a line; removing an absent line is not an error.
func (s *CartService) Remove(ctx context.Context, cartID string, productID int64, size string) (*CartView, error) {
	c, err := s.Load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if c.Remove(productID, size) {
		if err := s.save(ctx, cartID, c); err != nil {
			return nil, err
		}
		util.CartMutationsTotal.WithLabelValues("remove").Inc()
	}
	return view(cartID, c), nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, cartID string) error {
	if err := s.save(ctx, cartID, cart.New()); err != nil {
		return err
	}
	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	return nil
}
