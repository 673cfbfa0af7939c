package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/util"
)

type publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// ChangePublisher announces record store writes on the change feed.
type ChangePublisher struct {
	producer publisher
	logger   *zap.Logger
	timeout  time.Duration
}

// NewChangePublisher creates a new change publisher
func NewChangePublisher(producer publisher, logger *zap.Logger) *ChangePublisher {
	return &ChangePublisher{producer: producer, logger: logger, timeout: 5 * time.Second}
}

// Publish emits a change event. Failures are logged and swallowed; the
// write that triggered the event has already succeeded.
func (cp *ChangePublisher) Publish(ctx context.Context, collection, eventType, recordID string, record interface{}) {
	event, err := NewChangeEvent(collection, eventType, recordID, record)
	if err != nil {
		cp.logger.Error("Failed to build change event", zap.Error(err), zap.String("collection", collection))
		util.ChangeEventsPublished.WithLabelValues(collection, "error").Inc()
		return
	}

	value, err := json.Marshal(event)
	if err != nil {
		cp.logger.Error("Failed to marshal change event", zap.Error(err))
		util.ChangeEventsPublished.WithLabelValues(collection, "error").Inc()
		return
	}

	// detached from the request so a client disconnect does not drop the event
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cp.timeout)
	defer cancel()

	key := fmt.Sprintf("%s:%s", collection, recordID)
	if err := cp.producer.Publish(pubCtx, key, value); err != nil {
		cp.logger.Warn("Failed to publish change event",
			zap.Error(err),
			zap.String("collection", collection),
			zap.String("event_type", eventType),
			zap.String("record_id", recordID),
		)
		util.ChangeEventsPublished.WithLabelValues(collection, "error").Inc()
		return
	}
	util.ChangeEventsPublished.WithLabelValues(collection, "ok").Inc()
}

// NewChangeEvent builds an event carrying a JSON snapshot of record.
func NewChangeEvent(collection, eventType, recordID string, record interface{}) (*models.ChangeEvent, error) {
	event := &models.ChangeEvent{
		EventID:    uuid.NewString(),
		Collection: collection,
		EventType:  eventType,
		RecordID:   recordID,
		Timestamp:  time.Now().UTC(),
	}
	if record != nil {
		raw, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		event.Record = raw
	}
	return event, nil
}

// ChangeHandler routes change events to per-collection callbacks.
type ChangeHandler struct {
	handlers map[string][]func(context.Context, *models.ChangeEvent) error
	logger   *zap.Logger
}

// NewChangeHandler creates a new change handler
func NewChangeHandler(logger *zap.Logger) *ChangeHandler {
	return &ChangeHandler{
		handlers: make(map[string][]func(context.Context, *models.ChangeEvent) error),
		logger:   logger,
	}
}

// On registers fn for a collection; "*" receives every event.
func (h *ChangeHandler) On(collection string, fn func(context.Context, *models.ChangeEvent) error) {
	h.handlers[collection] = append(h.handlers[collection], fn)
}

// HandleMessage decodes a change event and runs its callbacks. Every
// callback runs; the first error is returned.
func (h *ChangeHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.ChangeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal change event: %w", err)
	}

	h.logger.Debug("Handling change event",
		zap.String("event_id", event.EventID),
		zap.String("collection", event.Collection),
		zap.String("event_type", event.EventType),
	)

	var firstErr error
	run := func(fns []func(context.Context, *models.ChangeEvent) error) {
		for _, fn := range fns {
			if err := fn(ctx, &event); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	run(h.handlers[event.Collection])
	run(h.handlers["*"])
	return firstErr
}
