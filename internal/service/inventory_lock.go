package service

import (
	"context"
	"fmt"
	"time"

	"live-commerce/internal/models"
	"live-commerce/internal/redisclient"
	"live-commerce/internal/util"

	"go.uber.org/zap"
)

// InventoryLock reserves one saree unit per order for a bounded window.
// With no backend, or when the backend fails, every call succeeds as a no-op:
// order intake stays available while locking is lost.
type InventoryLock struct {
	backend      LockBackend
	ttl          time.Duration
	reminderLead time.Duration
	logger       *zap.Logger
}

// NewInventoryLock creates a lock manager. backend may be nil for degraded mode.
func NewInventoryLock(backend LockBackend, ttl, reminderLead time.Duration) *InventoryLock {
	l := &InventoryLock{
		backend:      backend,
		ttl:          ttl,
		reminderLead: reminderLead,
		logger:       util.Component("inventory_lock"),
	}
	if backend == nil {
		l.logger.Warn("Inventory locking disabled, no lock store available")
	}
	return l
}

// TTL is the reservation window
func (l *InventoryLock) TTL() time.Duration {
	return l.ttl
}

// Degraded reports whether locking is disabled outright
func (l *InventoryLock) Degraded() bool {
	return l.backend == nil
}

// Acquire reserves productID for orderID. stock is re-checked atomically with the set.
func (l *InventoryLock) Acquire(ctx context.Context, productID, orderID string, stock int) error {
	ctx, span := util.StartSpan(ctx, "InventoryLock.Acquire", "product_id", productID, "order_id", orderID)
	defer span.End()

	if l.backend == nil {
		l.degraded("acquire", productID, nil)
		return nil
	}

	start := time.Now()
	defer func() {
		util.InventoryLockLatency.Observe(time.Since(start).Seconds())
	}()

	var remindAt time.Time
	if l.reminderLead > 0 && l.reminderLead < l.ttl {
		remindAt = time.Now().Add(l.ttl - l.reminderLead)
	}

	code, err := l.backend.AcquireLock(ctx, productID, orderID, l.ttl, remindAt, stock)
	if err != nil {
		l.degraded("acquire", productID, err)
		return nil
	}

	switch code {
	case redisclient.AcquireOK:
		return nil
	case redisclient.AcquireOutOfStock:
		return fmt.Errorf("saree %s: %w", productID, models.ErrOutOfStock)
	default:
		return fmt.Errorf("saree %s is reserved by another order: %w", productID, models.ErrConflict)
	}
}

// Peek returns the order currently holding productID, if any
func (l *InventoryLock) Peek(ctx context.Context, productID string) (string, bool) {
	if l.backend == nil {
		return "", false
	}
	holder, found, err := l.backend.PeekLock(ctx, productID)
	if err != nil {
		l.degraded("peek", productID, err)
		return "", false
	}
	return holder, found
}

// Remaining returns how long orderID still holds productID; zero if it does not
func (l *InventoryLock) Remaining(ctx context.Context, productID, orderID string) time.Duration {
	holder, found := l.Peek(ctx, productID)
	if !found || holder != orderID {
		return 0
	}
	ttl, err := l.backend.LockTTL(ctx, productID)
	if err != nil {
		l.degraded("ttl", productID, err)
		return 0
	}
	return ttl
}

// Release drops the reservation if orderID still holds it
func (l *InventoryLock) Release(ctx context.Context, productID, orderID, reason string) bool {
	ctx, span := util.StartSpan(ctx, "InventoryLock.Release", "product_id", productID, "order_id", orderID)
	defer span.End()

	if l.backend == nil {
		l.degraded("release", productID, nil)
		return false
	}

	released, err := l.backend.ReleaseLock(ctx, productID, orderID)
	if err != nil {
		l.degraded("release", productID, err)
		return false
	}
	if released {
		util.InventoryLocksReleasedTotal.WithLabelValues(reason).Inc()
		l.logger.Info("Inventory lock released",
			zap.String("product_id", productID),
			zap.String("order_id", orderID),
			zap.String("reason", reason))
	}
	return released
}

func (l *InventoryLock) degraded(op, productID string, err error) {
	util.InventoryLockDegradedTotal.WithLabelValues(op).Inc()
	if err == nil {
		return
	}
	l.logger.Warn("Lock store unavailable, continuing without lock",
		zap.String("op", op),
		zap.String("product_id", productID),
		zap.Error(err))
}
