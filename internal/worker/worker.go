package worker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"
)

// StatsSink recounts the dashboard after an order change.
type StatsSink interface {
	HandleChange(ctx context.Context, ev *models.ChangeEvent) error
}

// Broadcaster forwards change events to connected admin screens.
type Broadcaster interface {
	Publish(ctx context.Context, ev *models.ChangeEvent) error
}

// ChangeFeedWorker consumes the change topic and drives the admin views.
type ChangeFeedWorker struct {
	consumer *broker.Consumer
	handler  *broker.ChangeHandler
	logger   *zap.Logger
}

// NewChangeFeedWorker creates a new change feed worker
func NewChangeFeedWorker(consumer *broker.Consumer, stats StatsSink, fanout Broadcaster) *ChangeFeedWorker {
	logger := util.GetLogger()
	handler := broker.NewChangeHandler(logger)

	handler.On(models.CollectionOrders, stats.HandleChange)
	handler.On("*", fanout.Publish)

	return &ChangeFeedWorker{
		consumer: consumer,
		handler:  handler,
		logger:   logger,
	}
}

// Handle processes one message from the change topic.
func (w *ChangeFeedWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.handler.HandleMessage(ctx, msg)
}

// Start starts the worker
func (w *ChangeFeedWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting change feed worker")
	return w.consumer.StartConsuming(ctx, w.Handle)
}

// Stop stops the worker
func (w *ChangeFeedWorker) Stop() error {
	w.logger.Info("Stopping change feed worker")
	return w.consumer.Close()
}

// Every runs fn on each tick until ctx is done.
func Every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
