package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/report"
)

func seedOrder(t *testing.T, orders *memOrders, id, status string, total int64) {
	t.Helper()
	require.NoError(t, orders.CreateOrder(context.Background(), &models.Order{
		OrderID:    id,
		Status:     status,
		TotalPrice: total,
		Items:      []models.OrderItem{{ProductID: 1, ProductName: "Zip Hoodie", Size: "M", Quantity: 1, UnitPrice: total, Subtotal: total}},
	}))
}

func TestSetStatusTransitions(t *testing.T) {
	orders := &memOrders{}
	notifier := &recordingNotifier{}
	svc := NewOrderAdminService(orders, NewStatsProjector(orders), notifier, report.Shop{Name: "Shop"})
	ctx := context.Background()
	seedOrder(t, orders, "XSABC0000A0001", models.OrderStatusPending, 870)

	o, err := svc.SetStatus(ctx, "XSABC0000A0001", models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, o.Status)

	o, err = svc.SetStatus(ctx, "XSABC0000A0001", models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, o.Status)
	assert.Equal(t, 1, notifier.count())

	_, err = svc.SetStatus(ctx, "XSABC0000A0001", models.OrderStatusDelivered)
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, "XSABC0000A0001", models.OrderStatusPending)
	assert.ErrorIs(t, err, ErrTerminalStatus)

	_, err = svc.SetStatus(ctx, "XSABC0000A0001", "lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, "XSNOPE000A0001", models.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestExportCSVAndInvoice(t *testing.T) {
	orders := &memOrders{}
	svc := NewOrderAdminService(orders, NewStatsProjector(orders), &recordingNotifier{}, report.Shop{Name: "Shop"})
	ctx := context.Background()
	seedOrder(t, orders, "XSABC0000A0001", models.OrderStatusPending, 870)
	seedOrder(t, orders, "XSABC0000A0002", models.OrderStatusDelivered, 1720)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, &buf, ""))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, "XSABC0000A0002", rows[1][0])

	pdf, err := svc.Invoice(ctx, "XSABC0000A0001")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	_, err = svc.Invoice(ctx, "XSNOPE000A0001")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestStatsProjectorRefetchesOnEveryChange(t *testing.T) {
	orders := &memOrders{stats: models.OrderStats{Total: 2, Processing: 1, Delivered: 1, Revenue: 1720}}
	p := NewStatsProjector(orders)
	ctx := context.Background()

	stats, err := p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)

	record, _ := json.Marshal(models.Order{OrderID: "XSABC0000A0003", Status: models.OrderStatusPending, TotalPrice: 500})
	ev := &models.ChangeEvent{EventID: "e1", Collection: models.CollectionOrders, EventType: models.ChangeInsert, Record: record}

	orders.statsErr = errors.New("db unavailable")
	assert.Error(t, p.HandleChange(ctx, ev))
	stats, _ = p.Stats(ctx)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Processing)

	orders.statsErr = nil
	orders.stats = models.OrderStats{Total: 3, Processing: 2, Delivered: 1, Revenue: 1720}
	require.NoError(t, p.HandleChange(ctx, ev))
	require.NoError(t, p.HandleChange(ctx, ev))
	stats, _ = p.Stats(ctx)
	assert.Equal(t, orders.stats, stats)

	require.NoError(t, p.HandleChange(ctx, &models.ChangeEvent{Collection: models.CollectionMessages}))
}

func TestStatsProjectorRecountsWithoutChangeEvents(t *testing.T) {
	orders := &memOrders{stats: models.OrderStats{Total: 2, Processing: 2}}
	p := NewStatsProjector(orders)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }
	ctx := context.Background()

	stats, err := p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)

	// An order lands but its change event never arrives.
	orders.stats = models.OrderStats{Total: 3, Processing: 3}
	stats, _ = p.Stats(ctx)
	assert.Equal(t, int64(2), stats.Total)

	clock = clock.Add(defaultStatsMaxAge)
	stats, err = p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)

	orders.statsErr = errors.New("db unavailable")
	clock = clock.Add(defaultStatsMaxAge)
	stats, err = p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
}

func TestStatsProjectorFirstLoadError(t *testing.T) {
	p := NewStatsProjector(&memOrders{statsErr: errors.New("db unavailable")})
	_, err := p.Stats(context.Background())
	assert.Error(t, err)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.White), imaging.PNG))
	return buf.Bytes()
}

func TestCatalogListAndCreate(t *testing.T) {
	products := newMemProducts(hoodie(), tee())
	blobs := newMemBlobs()
	notifier := &recordingNotifier{}
	svc := NewCatalogService(products, blobs, notifier, 12)
	ctx := context.Background()

	page, err := svc.List(ctx, CatalogQuery{PriceRange: "all"})
	require.NoError(t, err)
	require.Len(t, page.Products, 2)
	assert.Equal(t, int64(500), page.Products[0].EffectivePrice)
	assert.Equal(t, int64(800), page.Products[1].EffectivePrice)
	assert.True(t, page.Products[1].OnSale)
	assert.Equal(t, 12, page.PageSize)

	_, err = svc.List(ctx, CatalogQuery{PriceRange: "cheap"})
	var verr *checkout.ValidationError
	require.True(t, errors.As(err, &verr))

	fifteen := decimal.NewFromInt(15)
	view, err := svc.Create(ctx, checkout.ProductForm{
		Name:     "Retro Jersey",
		Category: models.CategoryJerseys,
		Price:    950,
		Discount: pricing.DiscountInput{Percentage: &fifteen, LastEdited: pricing.AuthorityPercentage},
		Color:    models.ColorNavy,
		Sizes:    []string{"m", "l"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(808), view.EffectivePrice)
	assert.True(t, view.DiscountPrice.Valid)
	assert.Equal(t, []string{"M", "L"}, []string(view.Sizes))
	assert.Equal(t, 1, notifier.count())

	_, err = svc.Create(ctx, checkout.ProductForm{Name: "Bad", Category: "Socks", Price: 100, Color: models.ColorBlack, Sizes: []string{"M"}})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "category")
}

func TestCatalogUploadImage(t *testing.T) {
	products := newMemProducts(hoodie())
	blobs := newMemBlobs()
	svc := NewCatalogService(products, blobs, &recordingNotifier{}, 0)
	ctx := context.Background()

	view, err := svc.UploadImage(ctx, 1, "Front View.PNG", pngBytes(t, 40, 20))
	require.NoError(t, err)
	require.Len(t, view.Images, 1)
	assert.True(t, strings.HasPrefix(view.Images[0], "https://cdn.test/products/1/"))
	assert.True(t, strings.HasSuffix(view.Images[0], "-front_view.jpg"))
	assert.Len(t, blobs.files, 2)

	blobs.failOn = func(string) bool { return true }
	_, err = svc.UploadImage(ctx, 1, "back.png", pngBytes(t, 10, 10))
	var uerr *UploadError
	assert.True(t, errors.As(err, &uerr))

	_, err = svc.UploadImage(ctx, 1, "notes.txt", []byte("not an image"))
	var verr *checkout.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = svc.UploadImage(ctx, 77, "x.png", pngBytes(t, 10, 10))
	assert.ErrorIs(t, err, ErrProductNotFound)
}

type memCustomOrders struct {
	created []*models.CustomOrder
	err     error
}

func (m *memCustomOrders) CreateCustomOrder(ctx context.Context, co *models.CustomOrder) error {
	if m.err != nil {
		return m.err
	}
	co.ID = int64(len(m.created) + 1)
	m.created = append(m.created, co)
	return nil
}

func (m *memCustomOrders) ListCustomOrders(ctx context.Context, status string) ([]models.CustomOrder, error) {
	out := []models.CustomOrder{}
	for _, co := range m.created {
		if status == "" || co.Status == status {
			out = append(out, *co)
		}
	}
	return out, nil
}

func (m *memCustomOrders) UpdateCustomOrderStatus(ctx context.Context, id int64, status string) (*models.CustomOrder, error) {
	for _, co := range m.created {
		if co.ID == id {
			co.Status = status
			cp := *co
			return &cp, nil
		}
	}
	return nil, errNotFoundStore
}

func customForm(n int) checkout.CustomOrder {
	f := checkout.CustomOrder{Name: "Karim", Phone: "+8801812345678", Address: "Agrabad, Chattogram 4100"}
	for i := 0; i < n; i++ {
		f.Designs = append(f.Designs, checkout.DesignUpload{
			Filename:     "My Logo.PNG",
			ContentType:  "image/png",
			Size:         3,
			Instructions: " front, centered ",
			Content:      []byte{1, 2, 3},
		})
	}
	return f
}

func TestCustomOrderSubmit(t *testing.T) {
	repo := &memCustomOrders{}
	blobs := newMemBlobs()
	svc := NewCustomOrderService(repo, blobs, &recordingNotifier{}, 1<<20)

	co, err := svc.Submit(context.Background(), customForm(3))
	require.NoError(t, err)
	assert.Equal(t, models.CustomStatusPendingReview, co.Status)
	require.Len(t, co.Designs, 3)
	for _, d := range co.Designs {
		assert.True(t, strings.HasPrefix(d.DesignURL, "https://cdn.test/custom-designs/"))
		assert.True(t, strings.HasSuffix(d.DesignURL, "-my_logo.png"))
		assert.Equal(t, "front, centered", d.Instructions)
	}
	assert.Len(t, blobs.files, 3)
}

func TestCustomOrderUploadFailureWritesNothing(t *testing.T) {
	repo := &memCustomOrders{}
	blobs := newMemBlobs()
	blobs.failOn = func(p string) bool { return strings.Contains(p, "-1-") }
	svc := NewCustomOrderService(repo, blobs, &recordingNotifier{}, 1<<20)

	_, err := svc.Submit(context.Background(), customForm(3))
	var uerr *UploadError
	require.True(t, errors.As(err, &uerr))
	assert.Empty(t, repo.created)
	assert.Empty(t, blobs.files)
}

func TestCustomOrderPersistenceFailureRemovesUploads(t *testing.T) {
	repo := &memCustomOrders{err: errors.New("connection reset")}
	blobs := newMemBlobs()
	svc := NewCustomOrderService(repo, blobs, &recordingNotifier{}, 1<<20)

	_, err := svc.Submit(context.Background(), customForm(2))
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Empty(t, blobs.files)
	assert.Len(t, blobs.deleted, 2)
}

func TestCustomOrderValidationAndStatus(t *testing.T) {
	repo := &memCustomOrders{}
	svc := NewCustomOrderService(repo, newMemBlobs(), &recordingNotifier{}, 2)
	ctx := context.Background()

	_, err := svc.Submit(ctx, customForm(1))
	var verr *checkout.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "designs[0].size")

	svc.maxBytes = 0
	co, err := svc.Submit(ctx, customForm(1))
	require.NoError(t, err)

	updated, err := svc.SetStatus(ctx, co.ID, models.CustomStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.CustomStatusApproved, updated.Status)

	_, err = svc.SetStatus(ctx, co.ID, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = svc.SetStatus(ctx, 99, models.CustomStatusShipped)
	assert.ErrorIs(t, err, ErrCustomOrderNotFound)
}

type memMessages struct {
	stored []*models.Message
}

func (m *memMessages) CreateMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = int64(len(m.stored) + 1)
	m.stored = append(m.stored, msg)
	return nil
}

func (m *memMessages) ListMessages(ctx context.Context, status string) ([]models.Message, error) {
	out := []models.Message{}
	for _, msg := range m.stored {
		if status == "" || msg.Status == status {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *memMessages) UpdateMessageStatus(ctx context.Context, id int64, status string, notes *string) (*models.Message, error) {
	for _, msg := range m.stored {
		if msg.ID == id {
			msg.Status = status
			if notes != nil {
				msg.AdminNotes = *notes
			}
			cp := *msg
			return &cp, nil
		}
	}
	return nil, errNotFoundStore
}

func TestMessages(t *testing.T) {
	repo := &memMessages{}
	svc := NewMessageService(repo, &recordingNotifier{})
	ctx := context.Background()

	m, err := svc.Send(ctx, checkout.Contact{FirstName: "Ana", LastName: "Roy", Email: "ana@example.com", Subject: "Sizing", Message: "Do hoodies run large?"})
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusUnread, m.Status)

	notes := "sent size chart"
	m, err = svc.SetStatus(ctx, m.ID, models.MessageStatusReplied, &notes)
	require.NoError(t, err)
	assert.Equal(t, "sent size chart", m.AdminNotes)

	unread, err := svc.List(ctx, models.MessageStatusUnread)
	require.NoError(t, err)
	assert.Empty(t, unread)

	_, err = svc.SetStatus(ctx, 9, models.MessageStatusRead, nil)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = svc.Send(ctx, checkout.Contact{FirstName: "Ana"})
	var verr *checkout.ValidationError
	assert.True(t, errors.As(err, &verr))
}
