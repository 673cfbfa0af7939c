package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/blob"
	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
)

const maxParallelUploads = 4

// CustomOrderService takes custom design requests. Every design is in the
// blob store before the request record is written.
type CustomOrderService struct {
	repo     CustomOrderRepository
	blobs    BlobStore
	notifier ChangeNotifier
	maxBytes int64
	now      func() time.Time
	logger   *zap.Logger
}

func NewCustomOrderService(repo CustomOrderRepository, blobs BlobStore, notifier ChangeNotifier, maxBytes int64) *CustomOrderService {
	return &CustomOrderService{
		repo:     repo,
		blobs:    blobs,
		notifier: notifier,
		maxBytes: maxBytes,
		now:      time.Now,
		logger:   util.GetLogger(),
	}
}

// Submit validates the form, uploads its designs and records the request
// as pending review.
func (s *CustomOrderService) Submit(ctx context.Context, form checkout.CustomOrder) (*models.CustomOrder, error) {
	ctx, span := util.StartSpan(ctx, "CustomOrderService.Submit")
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = checkout.ValidateCustomOrder(&form, s.maxBytes); err != nil {
		util.CheckoutValidationFailures.WithLabelValues("custom_order").Inc()
		return nil, err
	}

	designs, paths, err := s.uploadDesigns(ctx, form.Designs)
	if err != nil {
		return nil, err
	}

	co := &models.CustomOrder{
		CustomerName:    form.Name,
		CustomerPhone:   form.Phone,
		CustomerEmail:   form.Email,
		CustomerAddress: form.Address,
		Designs:         designs,
		Status:          models.CustomStatusPendingReview,
	}
	if err = s.repo.CreateCustomOrder(context.WithoutCancel(ctx), co); err != nil {
		s.logger.Error("Failed to create custom order", zap.Error(err))
		s.discard(paths)
		err = &PersistenceError{Op: "create custom order", Err: err}
		return nil, err
	}

	s.logger.Info("Custom order received", zap.Int64("id", co.ID), zap.Int("designs", len(designs)))
	s.notifier.Publish(ctx, models.CollectionCustomOrders, models.ChangeInsert, strconv.FormatInt(co.ID, 10), co)
	return co, nil
}

// uploadDesigns uploads every design concurrently. If any upload fails the
// ones that made it are removed and the first failure is returned. On
// success the blob paths are returned alongside the designs.
func (s *CustomOrderService) uploadDesigns(ctx context.Context, uploads []checkout.DesignUpload) (models.DesignList, []string, error) {
	stamp := s.now().UnixMilli()
	designs := make(models.DesignList, len(uploads))

	var mu sync.Mutex
	var done []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)
	for i, u := range uploads {
		i, u := i, u
		p := fmt.Sprintf("custom-designs/%d-%d-%s", stamp, i, blob.SafeFilename(u.Filename))
		g.Go(func() error {
			if err := s.blobs.Upload(gctx, p, u.Content); err != nil {
				return &UploadError{Path: p, Err: err}
			}
			mu.Lock()
			done = append(done, p)
			mu.Unlock()
			designs[i] = models.Design{DesignURL: s.blobs.PublicURL(p), Instructions: u.Instructions}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		util.UploadsFailedTotal.WithLabelValues("custom_design").Inc()
		var uerr *UploadError
		if errors.As(err, &uerr) {
			s.logger.Error("Design upload failed", zap.String("path", uerr.Path), zap.Error(uerr.Err))
		}
		s.discard(done)
		return nil, nil, err
	}
	return designs, done, nil
}

func (s *CustomOrderService) discard(paths []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, p := range paths {
		if err := s.blobs.Delete(ctx, p); err != nil {
			s.logger.Warn("Failed to remove orphaned design", zap.String("path", p), zap.Error(err))
		}
	}
}

// List returns custom orders newest first, optionally by status.
func (s *CustomOrderService) List(ctx context.Context, status string) ([]models.CustomOrder, error) {
	if status != "" && !models.IsValidCustomOrderStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListCustomOrders(ctx, status)
}

// SetStatus moves a custom order to status.
func (s *CustomOrderService) SetStatus(ctx context.Context, id int64, status string) (*models.CustomOrder, error) {
	if !models.IsValidCustomOrderStatus(status) {
		return nil, ErrInvalidStatus
	}
	co, err := s.repo.UpdateCustomOrderStatus(ctx, id, status)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCustomOrderNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "update custom order", Err: err}
	}
	s.notifier.Publish(ctx, models.CollectionCustomOrders, models.ChangeUpdate, strconv.FormatInt(id, 10), co)
	return co, nil
}
