package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/blob"
	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/store"
	"storefront/internal/util"
)

// CatalogService serves the storefront catalog and the admin product editor.
type CatalogService struct {
	products ProductRepository
	blobs    BlobStore
	notifier ChangeNotifier
	pageSize int
	logger   *zap.Logger
}

func NewCatalogService(products ProductRepository, blobs BlobStore, notifier ChangeNotifier, pageSize int) *CatalogService {
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}
	return &CatalogService{
		products: products,
		blobs:    blobs,
		notifier: notifier,
		pageSize: pageSize,
		logger:   util.GetLogger(),
	}
}

// ProductView is a product together with the price charged today.
type ProductView struct {
	models.Product
	EffectivePrice int64 `json:"effective_price"`
	OnSale         bool  `json:"on_sale"`
}

// CatalogQuery is the storefront listing query.
type CatalogQuery struct {
	Categories []string
	Colors     []string
	PriceRange string
	Search     string
	Page       int
	PageSize   int
}

type ProductPage struct {
	Products []ProductView `json:"products"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

func (s *CatalogService) present(p *models.Product) ProductView {
	price, warnings := pricing.Resolve(p)
	logWarnings(s.logger, p.ID, warnings)
	return ProductView{Product: *p, EffectivePrice: price, OnSale: price < p.Price}
}

// List returns one page of the filtered catalog, newest first.
func (s *CatalogService) List(ctx context.Context, q CatalogQuery) (*ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.List")
	var err error
	defer func() { util.EndSpan(span, err) }()

	rng, err := pricing.ParsePriceRange(q.PriceRange)
	if err != nil {
		err = &checkout.ValidationError{Fields: map[string]string{"price_range": err.Error()}}
		return nil, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = s.pageSize
	}
	if q.PageSize > store.MaxPageSize {
		q.PageSize = store.MaxPageSize
	}

	products, total, err := s.products.ListProducts(ctx, store.ProductFilter{
		Categories: q.Categories,
		Colors:     q.Colors,
		Range:      rng,
		Search:     strings.TrimSpace(q.Search),
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	views := make([]ProductView, 0, len(products))
	for i := range products {
		views = append(views, s.present(&products[i]))
	}
	return &ProductPage{Products: views, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// Get returns a single product.
func (s *CatalogService) Get(ctx context.Context, id int64) (*ProductView, error) {
	p, err := s.products.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	v := s.present(p)
	return &v, nil
}

// apply copies a validated form onto p. The two discount inputs are
// reconciled into one consistent pair before anything is stored.
func (s *CatalogService) apply(p *models.Product, f *checkout.ProductForm) error {
	if err := checkout.ValidateProduct(f); err != nil {
		util.CheckoutValidationFailures.WithLabelValues("product").Inc()
		return err
	}
	discount, warnings, err := pricing.Reconcile(f.Price, f.Discount)
	if err != nil {
		return &checkout.ValidationError{Fields: map[string]string{"discount": err.Error()}}
	}
	logWarnings(s.logger, p.ID, warnings)

	p.Name = f.Name
	p.Description = f.Description
	p.Category = f.Category
	p.Price = f.Price
	p.DiscountPercentage = discount.Percentage
	p.DiscountPrice = discount.Price
	p.Color = f.Color
	p.Sizes = f.Sizes
	p.Stock = f.Stock
	return nil
}

// Create adds a product to the catalog.
func (s *CatalogService) Create(ctx context.Context, f checkout.ProductForm) (*ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Create")
	var err error
	defer func() { util.EndSpan(span, err) }()

	p := &models.Product{}
	if err = s.apply(p, &f); err != nil {
		return nil, err
	}
	if err = s.products.CreateProduct(ctx, p); err != nil {
		s.logger.Error("Failed to create product", zap.String("name", p.Name), zap.Error(err))
		return nil, &PersistenceError{Op: "create product", Err: err}
	}

	s.logger.Info("Product created", zap.Int64("product_id", p.ID))
	s.notifier.Publish(ctx, models.CollectionProducts, models.ChangeInsert, strconv.FormatInt(p.ID, 10), p)
	v := s.present(p)
	return &v, nil
}

// Update replaces the editable fields of a product.
func (s *CatalogService) Update(ctx context.Context, id int64, f checkout.ProductForm) (*ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Update")
	var err error
	defer func() { util.EndSpan(span, err) }()

	p, err := s.products.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		err = ErrProductNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if err = s.apply(p, &f); err != nil {
		return nil, err
	}
	if err = s.products.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = ErrProductNotFound
			return nil, err
		}
		s.logger.Error("Failed to update product", zap.Int64("product_id", id), zap.Error(err))
		return nil, &PersistenceError{Op: "update product", Err: err}
	}

	s.notifier.Publish(ctx, models.CollectionProducts, models.ChangeUpdate, strconv.FormatInt(p.ID, 10), p)
	v := s.present(p)
	return &v, nil
}

// UploadImage normalises an image, stores it with a thumbnail and appends
// its public URL to the product.
func (s *CatalogService) UploadImage(ctx context.Context, id int64, filename string, data []byte) (*ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UploadImage")
	var err error
	defer func() { util.EndSpan(span, err) }()

	if _, err = s.products.GetProductByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = ErrProductNotFound
		}
		return nil, err
	}

	processed, err := blob.ProcessImage(data)
	if err != nil {
		err = &checkout.ValidationError{Fields: map[string]string{"image": "is not a readable image"}}
		return nil, err
	}

	safe := blob.SafeFilename(filename)
	name := strings.TrimSuffix(safe, path.Ext(safe))
	p := fmt.Sprintf("products/%d/%d-%s.jpg", id, time.Now().UnixMilli(), name)
	if err = s.blobs.Upload(ctx, p, processed.Image); err != nil {
		util.UploadsFailedTotal.WithLabelValues("product_image").Inc()
		s.logger.Error("Failed to upload product image", zap.String("path", p), zap.Error(err))
		err = &UploadError{Path: p, Err: err}
		return nil, err
	}
	thumb := blob.ThumbnailPath(p)
	if terr := s.blobs.Upload(ctx, thumb, processed.Thumbnail); terr != nil {
		util.UploadsFailedTotal.WithLabelValues("thumbnail").Inc()
		s.logger.Warn("Failed to upload thumbnail", zap.String("path", thumb), zap.Error(terr))
	}

	product, err := s.products.AppendProductImages(ctx, id, []string{s.blobs.PublicURL(p)})
	if err != nil {
		s.cleanup(p, thumb)
		err = &PersistenceError{Op: "append product image", Err: err}
		return nil, err
	}

	s.notifier.Publish(ctx, models.CollectionProducts, models.ChangeUpdate, strconv.FormatInt(id, 10), product)
	v := s.present(product)
	return &v, nil
}

// Delete removes a product from the catalog.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	err := s.products.DeleteProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return &PersistenceError{Op: "delete product", Err: err}
	}
	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	s.notifier.Publish(ctx, models.CollectionProducts, models.ChangeDelete, strconv.FormatInt(id, 10), map[string]int64{"id": id})
	return nil
}

// cleanup removes uploads that ended up with no record pointing at them.
func (s *CatalogService) cleanup(paths ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, p := range paths {
		if err := s.blobs.Delete(ctx, p); err != nil {
			s.logger.Warn("Failed to remove orphaned upload", zap.String("path", p), zap.Error(err))
		}
	}
}
