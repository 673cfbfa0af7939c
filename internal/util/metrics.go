package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Total number of orders persisted",
	}, []string{"flow", "payment_method"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_failed_total",
		Help: "Total number of failed order submissions",
	}, []string{"reason"})

	OrdersReplayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_replayed_total",
		Help: "Submissions answered from an earlier order with the same idempotency key",
	})

	CheckoutValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_validation_failures_total",
		Help: "Form submissions rejected by validation",
	}, []string{"form"})

	OrderPersistLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_order_persist_latency_seconds",
		Help:    "Latency of the order write transaction",
		Buckets: prometheus.DefBuckets,
	})

	UploadsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_uploads_failed_total",
		Help: "Blob uploads that failed",
	}, []string{"kind"})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Cart mutations by operation",
	}, []string{"op"})

	CartCorruptLoadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_corrupt_loads_total",
		Help: "Stored carts that failed to decode and were reset",
	})

	PricingWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_pricing_consistency_warnings_total",
		Help: "Discount percentage and price disagreements seen",
	})

	OrderStatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_status_transitions_total",
		Help: "Admin order status changes",
	}, []string{"from", "to"})

	ChangeEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_change_events_published_total",
		Help: "Change feed publish attempts",
	}, []string{"collection", "result"})

	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_feed_subscribers",
		Help: "Connected admin realtime subscribers",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
