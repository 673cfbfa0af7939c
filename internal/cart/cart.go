// Package cart holds a shopper's line items keyed by (product, size).
//
// A line's selected price is captured when the line is created and never
// re-resolved afterwards, so a mid-session catalog change does not move the
// price the shopper already saw.
package cart

import (
	"errors"
	"fmt"
	"sync"

	"storefront/internal/models"
	"storefront/internal/pricing"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrUnknownSize     = errors.New("size is not offered for this product")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrNilProduct      = errors.New("product is required")
)

// ProductSnapshot is the product data a line needs for display and checkout.
type ProductSnapshot struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Color    string   `json:"color,omitempty"`
	Price    int64    `json:"price"`
	Images   []string `json:"images,omitempty"`
	Sizes    []string `json:"sizes,omitempty"`
}

// Line is one (product, size) entry.
type Line struct {
	Product       ProductSnapshot `json:"product"`
	Size          string          `json:"size"`
	Quantity      int             `json:"quantity"`
	SelectedPrice int64           `json:"selected_price"`
}

// Subtotal is selected price times quantity.
func (l Line) Subtotal() int64 {
	return l.SelectedPrice * int64(l.Quantity)
}

// Key identifies a line
type Key struct {
	ProductID int64
	Size      string
}

func (l Line) key() Key { return Key{ProductID: l.Product.ID, Size: l.Size} }

// Cart is an ordered list of lines; append order is display order.
type Cart struct {
	mu    sync.RWMutex
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

func snapshot(p *models.Product) ProductSnapshot {
	return ProductSnapshot{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Color:    p.Color,
		Price:    p.Price,
		Images:   append([]string(nil), p.Images...),
		Sizes:    append([]string(nil), p.Sizes...),
	}
}

func (c *Cart) indexOf(k Key) int {
	for i := range c.lines {
		if c.lines[i].key() == k {
			return i
		}
	}
	return -1
}

// Add merges quantity into an existing (product, size) line, or appends a new
// line priced at the product's effective price.
func (c *Cart) Add(p *models.Product, size string, quantity int) (Line, error) {
	if p == nil {
		return Line{}, ErrNilProduct
	}
	if quantity <= 0 {
		return Line{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	if !p.HasSize(size) {
		return Line{}, fmt.Errorf("%w: %q", ErrUnknownSize, size)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(Key{ProductID: p.ID, Size: size}); i >= 0 {
		c.lines[i].Quantity += quantity
		return c.lines[i], nil
	}

	line := Line{
		Product:       snapshot(p),
		Size:          size,
		Quantity:      quantity,
		SelectedPrice: pricing.EffectivePrice(p),
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line. Updating a line that is not in the cart returns ErrLineNotFound.
func (c *Cart) UpdateQuantity(productID int64, size string, quantity int) error {
	if quantity <= 0 {
		c.Remove(productID, size)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(Key{ProductID: productID, Size: size})
	if i < 0 {
		return ErrLineNotFound
	}
	c.lines[i].Quantity = quantity
	return nil
}

// ProductLookup returns the current catalog entry for a product.
type ProductLookup func(productID int64) (*models.Product, error)

// SetQuantity behaves like UpdateQuantity, except that a positive quantity
// for a line that is not in the cart adds a fresh line for the product
// returned by lookup, priced now.
func (c *Cart) SetQuantity(productID int64, size string, quantity int, lookup ProductLookup) error {
	err := c.UpdateQuantity(productID, size, quantity)
	if !errors.Is(err, ErrLineNotFound) {
		return err
	}
	p, err := lookup(productID)
	if err != nil {
		return err
	}
	_, err = c.Add(p, size, quantity)
	return err
}

// Remove deletes the matching line and reports whether one existed.
func (c *Cart) Remove(productID int64, size string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(Key{ProductID: productID, Size: size})
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

// Lines returns a copy of the lines in display order.
func (c *Cart) Lines() []Line {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Line(nil), c.lines...)
}

// Line looks up a single line.
func (c *Cart) Line(productID int64, size string) (Line, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.indexOf(Key{ProductID: productID, Size: size})
	if i < 0 {
		return Line{}, false
	}
	return c.lines[i], true
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines) == 0
}

// TotalItems is the sum of quantities.
func (c *Cart) TotalItems() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, l := range c.lines {
		total += l.Quantity
	}
	return total
}

// TotalPrice is the subtotal: sum of selected price times quantity.
func (c *Cart) TotalPrice() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, l := range c.lines {
		total += l.Subtotal()
	}
	return total
}
