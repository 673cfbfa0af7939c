package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/auth"
	"storefront/internal/feed"
	"storefront/internal/service"
	"storefront/internal/util"
)

const cartHeader = "X-Cart-ID"

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	catalog      *service.CatalogService
	carts        *service.CartService
	checkout     *service.CheckoutService
	customOrders *service.CustomOrderService
	messages     *service.MessageService
	orders       *service.OrderAdminService
	auth         *auth.Authenticator
	hub          *feed.Hub
	limiter      *RateLimiter
	maxUpload    int64
	checks       map[string]ReadinessCheck
}

// Services groups what the handlers call into.
type Services struct {
	Catalog      *service.CatalogService
	Carts        *service.CartService
	Checkout     *service.CheckoutService
	CustomOrders *service.CustomOrderService
	Messages     *service.MessageService
	Orders       *service.OrderAdminService
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, authenticator *auth.Authenticator, hub *feed.Hub, limiter *RateLimiter, maxUpload int64, checks map[string]ReadinessCheck) *Handler {
	return &Handler{
		catalog:      svc.Catalog,
		carts:        svc.Carts,
		checkout:     svc.Checkout,
		customOrders: svc.CustomOrders,
		messages:     svc.Messages,
		orders:       svc.Orders,
		auth:         authenticator,
		hub:          hub,
		limiter:      limiter,
		maxUpload:    maxUpload,
		checks:       checks,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		cart := v1.Group("/cart", cartID())
		{
			cart.GET("", h.getCart)
			cart.POST("/items", h.addCartItem)
			cart.PATCH("/items", h.updateCartItem)
			cart.DELETE("/items/:product_id/:size", h.removeCartItem)
			cart.DELETE("", h.clearCart)
		}

		limited := v1.Group("", h.limiter.Limit())
		{
			limited.POST("/checkout", cartID(), h.checkoutCart)
			limited.POST("/buy-now", h.buyNow)
			limited.POST("/custom-orders", h.submitCustomOrder)
			limited.POST("/contact", h.sendMessage)
			limited.POST("/admin/login", h.login)
		}

		admin := v1.Group("/admin", auth.RequireAdmin(h.auth))
		{
			admin.GET("/session", h.session)
			admin.GET("/stats", h.stats)
			admin.GET("/feed", h.feed)

			admin.GET("/orders", h.listOrders)
			admin.GET("/orders/:order_id", h.getOrder)
			admin.PATCH("/orders/:order_id/status", h.setOrderStatus)
			admin.GET("/orders/:order_id/invoice", h.invoice)
			admin.GET("/exports/orders.csv", h.exportOrders)

			admin.POST("/products", h.createProduct)
			admin.PUT("/products/:id", h.updateProduct)
			admin.DELETE("/products/:id", h.deleteProduct)
			admin.POST("/products/:id/images", h.uploadProductImage)

			admin.GET("/custom-orders", h.listCustomOrders)
			admin.PATCH("/custom-orders/:id/status", h.setCustomOrderStatus)

			admin.GET("/messages", h.listMessages)
			admin.PATCH("/messages/:id/status", h.setMessageStatus)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers.
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// cartID assigns a cart id to first-time shoppers and echoes it back.
func cartID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(cartHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Set(cartHeader, id)
		c.Header(cartHeader, id)
		c.Next()
	}
}

func cartIDFrom(c *gin.Context) string {
	return c.GetString(cartHeader)
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
