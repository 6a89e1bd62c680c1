package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of live orders created",
	})

	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Total number of order attempts rejected",
	}, []string{"reason"})

	OrderStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_changes_total",
		Help: "Total number of order status transitions",
	}, []string{"to"})

	InventoryLockLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_lock_latency_seconds",
		Help:    "Latency of inventory lock acquisition",
		Buckets: prometheus.DefBuckets,
	})

	InventoryLockDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_lock_degraded_total",
		Help: "Lock operations that fell through because Redis was unavailable",
	}, []string{"op"})

	InventoryLocksReleasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_locks_released_total",
		Help: "Total number of inventory locks released early",
	}, []string{"reason"})

	PaymentLinksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_links_total",
		Help: "Total number of payment links issued",
	}, []string{"mode"})

	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconciliations_total",
		Help: "Total number of payment reconciliation attempts",
	}, []string{"source", "result"})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of customer notifications attempted",
	}, []string{"template", "status"})

	FollowUpFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "followup_failures_total",
		Help: "Total number of failed asynchronous follow-up steps",
	}, []string{"step"})

	ExpirySweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expiry_sweep_notices_total",
		Help: "Total number of reminder and expiry notices produced by the sweeper",
	}, []string{"kind"})

	SessionRevenueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_revenue_rupees_total",
		Help: "Order value accumulated into live sessions",
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
