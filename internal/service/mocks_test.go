package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
)

type memProducts struct {
	mu       sync.Mutex
	products map[int64]*models.Product
	nextID   int64
}

func newMemProducts(ps ...*models.Product) *memProducts {
	m := &memProducts{products: map[int64]*models.Product{}, nextID: 100}
	for _, p := range ps {
		m.products[p.ID] = p
	}
	return m
}

func (m *memProducts) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, p := range m.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *memProducts) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) CreateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memProducts) UpdateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memProducts) AppendProductImages(ctx context.Context, id int64, urls []string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.Images = append(p.Images, urls...)
	cp := *p
	return &cp, nil
}

func (m *memProducts) DeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

type memOrders struct {
	mu        sync.Mutex
	orders    []*models.Order
	createErr error
	stats     models.OrderStats
	statsErr  error
	creates   int
}

func (m *memOrders) CreateOrder(ctx context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.orders {
		if existing.OrderID == o.OrderID {
			return store.ErrDuplicateOrderID
		}
		if o.IdempotencyKey != nil && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *o.IdempotencyKey {
			return store.ErrDuplicateIdempotencyKey
		}
	}
	o.ID = int64(len(m.orders) + 1)
	o.CreatedAt = time.Now()
	cp := *o
	m.orders = append(m.orders, &cp)
	return nil
}

func (m *memOrders) find(pred func(*models.Order) bool) *models.Order {
	for _, o := range m.orders {
		if pred(o) {
			cp := *o
			return &cp
		}
	}
	return nil
}

func (m *memOrders) GetOrderByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o := m.find(func(o *models.Order) bool { return o.OrderID == orderID }); o != nil {
		return o, nil
	}
	return nil, fmt.Errorf("order %s: %w", orderID, store.ErrNotFound)
}

func (m *memOrders) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(func(o *models.Order) bool {
		return o.IdempotencyKey != nil && *o.IdempotencyKey == key
	}), nil
}

func (m *memOrders) ListOrders(ctx context.Context, status string, page, pageSize int) ([]models.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.Order
	for i := len(m.orders) - 1; i >= 0; i-- {
		if status == "" || m.orders[i].Status == status {
			matched = append(matched, *m.orders[i])
		}
	}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []models.Order{}, len(matched), nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (m *memOrders) UpdateOrderStatus(ctx context.Context, orderID, from, to string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderID == orderID {
			if o.Status != from {
				return nil, store.ErrStatusChanged
			}
			o.Status = to
			cp := *o
			return &cp, nil
		}
	}
	return nil, store.ErrStatusChanged
}

func (m *memOrders) OrderStats(ctx context.Context) (models.OrderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats, m.statsErr
}

type memCarts struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	err     error
	touches int
	loads   int
}

func newMemCarts() *memCarts { return &memCarts{blobs: map[string][]byte{}} }

func (m *memCarts) LoadCart(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return m.blobs[id], m.err
}

func (m *memCarts) SaveCart(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.blobs[id] = data
	return nil
}

func (m *memCarts) TouchCart(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touches++
	_, ok := m.blobs[id]
	return ok, nil
}

func (m *memCarts) DeleteCart(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, id)
	return nil
}

type memLocker struct {
	mu   sync.Mutex
	held map[string]string
	keys map[string]string
	err  error
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]string{}, keys: map[string]string{}}
}

func (l *memLocker) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	return l.keys[key], nil
}

func (l *memLocker) SetIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.keys[key] = orderID
	return nil
}

func (l *memLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	if _, ok := l.held[key]; ok {
		return "", nil
	}
	l.held[key] = "tok-" + key
	return l.held[key], nil
}

func (l *memLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

type memBlobs struct {
	mu      sync.Mutex
	files   map[string][]byte
	failOn  func(path string) bool
	deleted []string
}

func newMemBlobs() *memBlobs { return &memBlobs{files: map[string][]byte{}} }

func (b *memBlobs) Upload(ctx context.Context, p string, data []byte) error {
	if b.failOn != nil && b.failOn(p) {
		return errors.New("bucket unavailable")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[p] = data
	return nil
}

func (b *memBlobs) Delete(ctx context.Context, p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, p)
	b.deleted = append(b.deleted, p)
	return nil
}

func (b *memBlobs) PublicURL(p string) string { return "https://cdn.test/" + p }

type published struct {
	Collection string
	EventType  string
	RecordID   string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *recordingNotifier) Publish(ctx context.Context, collection, eventType, recordID string, record interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{collection, eventType, recordID})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type seqIDs struct {
	ids []string
	n   int
}

func (s *seqIDs) Generate(address string) (string, error) {
	id := s.ids[s.n%len(s.ids)]
	s.n++
	return id, nil
}

var errNotFoundStore = fmt.Errorf("record: %w", store.ErrNotFound)
