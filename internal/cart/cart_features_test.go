package cart_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"storefront/internal/cart"
	"storefront/internal/models"
)

type cartTestContext struct {
	products map[int64]*models.Product
	cart     *cart.Cart
	stored   []byte
	err      error
}

func (c *cartTestContext) reset() {
	c.products = map[int64]*models.Product{}
	c.cart = cart.New()
	c.stored = nil
	c.err = nil
}

func (c *cartTestContext) aDiscountedProduct(id int, name string, price, pct int, sizes string) error {
	p := &models.Product{ID: int64(id), Name: name, Price: int64(price), Sizes: strings.Split(sizes, ",")}
	p.DiscountPercentage = decimal.NewNullDecimal(decimal.NewFromInt(int64(pct)))
	c.products[p.ID] = p
	return nil
}

func (c *cartTestContext) aProduct(id int, name string, price int, sizes string) error {
	c.products[int64(id)] = &models.Product{ID: int64(id), Name: name, Price: int64(price), Sizes: strings.Split(sizes, ",")}
	return nil
}

func (c *cartTestContext) product(id int) (*models.Product, error) {
	p, ok := c.products[int64(id)]
	if !ok {
		return nil, fmt.Errorf("unknown product %d", id)
	}
	return p, nil
}

func (c *cartTestContext) iAdd(qty, id int, size string) error {
	p, err := c.product(id)
	if err != nil {
		return err
	}
	_, c.err = c.cart.Add(p, size, qty)
	return nil
}

func (c *cartTestContext) productIsRepriced(id, price int) error {
	p, err := c.product(id)
	if err != nil {
		return err
	}
	p.Price = int64(price)
	return nil
}

func (c *cartTestContext) iSetQuantity(id int, size string, qty int) error {
	c.err = c.cart.SetQuantity(int64(id), size, qty, func(productID int64) (*models.Product, error) {
		return c.product(int(productID))
	})
	return nil
}

func (c *cartTestContext) theCartHasLines(n int) error {
	if got := len(c.cart.Lines()); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (c *cartTestContext) lineHasQuantity(id int, size string, qty int) error {
	l, ok := c.cart.Line(int64(id), size)
	if !ok {
		return fmt.Errorf("no line for product %d size %s", id, size)
	}
	if l.Quantity != qty {
		return fmt.Errorf("expected quantity %d, got %d", qty, l.Quantity)
	}
	return nil
}

func (c *cartTestContext) lineHasSelectedPrice(id int, size string, price int) error {
	l, ok := c.cart.Line(int64(id), size)
	if !ok {
		return fmt.Errorf("no line for product %d size %s", id, size)
	}
	if l.SelectedPrice != int64(price) {
		return fmt.Errorf("expected selected price %d, got %d", price, l.SelectedPrice)
	}
	return nil
}

func (c *cartTestContext) totalItems(n int) error {
	if got := c.cart.TotalItems(); got != n {
		return fmt.Errorf("expected %d items, got %d", n, got)
	}
	return nil
}

func (c *cartTestContext) totalPrice(n int) error {
	if got := c.cart.TotalPrice(); got != int64(n) {
		return fmt.Errorf("expected total price %d, got %d", n, got)
	}
	return nil
}

func (c *cartTestContext) theCartIsEmpty() error {
	if !c.cart.IsEmpty() {
		return fmt.Errorf("expected empty cart, got %d lines", len(c.cart.Lines()))
	}
	return nil
}

func (c *cartTestContext) theLastOperationFailed() error {
	if c.err == nil {
		return errors.New("expected an error")
	}
	return nil
}

func (c *cartTestContext) storedCartState(raw string) error {
	c.stored = []byte(raw)
	return nil
}

func (c *cartTestContext) iLoadTheStoredCart() error {
	c.cart, c.err = cart.Load(c.stored)
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &cartTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^a product (\d+) "([^"]*)" priced (\d+) with (\d+) percent off in sizes "([^"]*)"$`, tc.aDiscountedProduct)
	ctx.Step(`^a product (\d+) "([^"]*)" priced (\d+) in sizes "([^"]*)"$`, tc.aProduct)
	ctx.Step(`^stored cart state "([^"]*)"$`, tc.storedCartState)

	ctx.Step(`^I add (-?\d+) of product (\d+) in size "([^"]*)"$`, tc.iAdd)
	ctx.Step(`^product (\d+) is repriced to (\d+)$`, tc.productIsRepriced)
	ctx.Step(`^I set the quantity of product (\d+) size "([^"]*)" to (-?\d+)$`, tc.iSetQuantity)
	ctx.Step(`^I load the stored cart$`, tc.iLoadTheStoredCart)

	ctx.Step(`^the cart has (\d+) lines?$`, tc.theCartHasLines)
	ctx.Step(`^line for product (\d+) size "([^"]*)" has quantity (\d+)$`, tc.lineHasQuantity)
	ctx.Step(`^line for product (\d+) size "([^"]*)" has selected price (\d+)$`, tc.lineHasSelectedPrice)
	ctx.Step(`^the cart total items is (\d+)$`, tc.totalItems)
	ctx.Step(`^the cart total price is (\d+)$`, tc.totalPrice)
	ctx.Step(`^the cart is empty$`, tc.theCartIsEmpty)
	ctx.Step(`^the last operation failed$`, tc.theLastOperationFailed)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/cart.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
