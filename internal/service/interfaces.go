package service

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
)

// ProductRepository is the catalog side of the record store.
type ProductRepository interface {
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, int, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	AppendProductImages(ctx context.Context, id int64, urls []string) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListOrders(ctx context.Context, status string, page, pageSize int) ([]models.Order, int, error)
	UpdateOrderStatus(ctx context.Context, orderID, from, to string) (*models.Order, error)
	OrderStats(ctx context.Context) (models.OrderStats, error)
}

type CustomOrderRepository interface {
	CreateCustomOrder(ctx context.Context, co *models.CustomOrder) error
	ListCustomOrders(ctx context.Context, status string) ([]models.CustomOrder, error)
	UpdateCustomOrderStatus(ctx context.Context, id int64, status string) (*models.CustomOrder, error)
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, status string) ([]models.Message, error)
	UpdateMessageStatus(ctx context.Context, id int64, status string, notes *string) (*models.Message, error)
}

// CartStorage keeps serialized carts keyed by cart id.
type CartStorage interface {
	LoadCart(ctx context.Context, cartID string) ([]byte, error)
	SaveCart(ctx context.Context, cartID string, data []byte, ttl time.Duration) error
	TouchCart(ctx context.Context, cartID string, ttl time.Duration) (bool, error)
	DeleteCart(ctx context.Context, cartID string) error
}

// CheckoutGuard holds off concurrent submissions of one idempotency key and
// remembers which order a key produced. An empty lock token means the lock
// is held by someone else; an empty order id means the key is unknown.
type CheckoutGuard interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
	GetIdempotencyKey(ctx context.Context, key string) (string, error)
	SetIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error
}

type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	PublicURL(path string) string
}

// ChangeNotifier announces a completed write. It never fails the caller.
type ChangeNotifier interface {
	Publish(ctx context.Context, collection, eventType, recordID string, record interface{})
}

type OrderIDGenerator interface {
	Generate(address string) (string, error)
}
