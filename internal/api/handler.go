package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"live-commerce/internal/models"
	"live-commerce/internal/realtime"
	"live-commerce/internal/service"
	"live-commerce/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	sellerHeader = "X-Seller-ID"
	sellerKey    = "seller_id"
)

// ReadinessCheck reports whether a dependency is usable
type ReadinessCheck func(ctx context.Context) error

// LockCheck fails while orders are being accepted without inventory reservations
func LockCheck(lock *service.InventoryLock) ReadinessCheck {
	return func(context.Context) error {
		if lock.Degraded() {
			return errors.New("no lock store, reservations disabled")
		}
		return nil
	}
}

// Handler contains HTTP handlers
type Handler struct {
	orders        *service.OrderService
	sessions      *service.SessionService
	payments      *service.PaymentService
	messages      service.MessageStore
	hub           *realtime.Hub
	defaultSeller string
	checks        map[string]ReadinessCheck
	logger        *zap.Logger
}

// NewHandler creates a new HTTP handler. hub may be nil.
func NewHandler(
	orders *service.OrderService,
	sessions *service.SessionService,
	payments *service.PaymentService,
	messages service.MessageStore,
	hub *realtime.Hub,
	defaultSeller string,
) *Handler {
	return &Handler{
		orders:        orders,
		sessions:      sessions,
		payments:      payments,
		messages:      messages,
		hub:           hub,
		defaultSeller: defaultSeller,
		checks:        make(map[string]ReadinessCheck),
		logger:        util.Component("api"),
	}
}

// AddReadinessCheck registers a dependency for /ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine, allowedOrigins []string) {
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(allowedOrigins))
	router.Use(prometheusMiddleware())
	router.Use(h.requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api", h.sellerMiddleware())

	orders := apiGroup.Group("/orders")
	{
		orders.POST("", h.createOrder)
		orders.GET("", h.listOrders)
		orders.GET("/:order_id", h.getOrder)
		orders.PUT("/:order_id/status", h.updateOrderStatus)
		orders.POST("/:order_id/dispatch", h.dispatchOrder)
		orders.GET("/:order_id/messages", h.getOrderMessages)
		orders.GET("/:order_id/payment", h.getOrderPayment)
	}

	live := apiGroup.Group("/live/sessions")
	{
		live.POST("", h.startSession)
		live.GET("", h.listSessions)
		live.GET("/:session_id", h.getSession)
		live.POST("/:session_id/end", h.endSession)
		live.POST("/:session_id/pin", h.pinProduct)
		live.GET("/:session_id/pins", h.listPins)
		live.POST("/:session_id/comments", h.addComment)
		live.GET("/:session_id/comments", h.listComments)
		live.GET("/:session_id/ws", h.watchSession)
	}

	payments := apiGroup.Group("/payments")
	{
		payments.POST("/create-payment-link/:order_id", h.createPaymentLink)
		payments.GET("/transactions", h.listTransactions)
		payments.POST("/webhook/razorpay", h.razorpayWebhook)
		payments.GET("/demo/:payment_id", h.demoPayment)
		payments.POST("/demo/:payment_id/complete", h.completeDemoPayment)
		payments.POST("/demo/:payment_id/cancel", h.cancelDemoPayment)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports each dependency; a failing one degrades the service
// rather than taking it down, so the response stays 200 with details
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := make(gin.H, len(h.checks))
	status := "ready"
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"dependencies": deps,
		"time":         time.Now().Unix(),
	})
}

func (h *Handler) sellerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		seller := strings.TrimSpace(c.GetHeader(sellerHeader))
		if seller == "" {
			seller = h.defaultSeller
		}
		c.Set(sellerKey, seller)
		c.Next()
	}
}

func sellerID(c *gin.Context) string {
	return c.GetString(sellerKey)
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", sellerHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	var origins []string
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			cfg.AllowAllOrigins = true
			origins = nil
			break
		}
		if o != "" {
			origins = append(origins, o)
		}
	}
	if !cfg.AllowAllOrigins {
		if len(origins) == 0 {
			cfg.AllowAllOrigins = true
		} else {
			cfg.AllowOrigins = origins
			cfg.AllowCredentials = true
		}
	}
	return cors.New(cfg)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}

// writeError maps domain errors onto HTTP status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrOutOfStock):
		status = http.StatusConflict
	case errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrUnauthorized):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}
