package worker

import (
	"context"
	"math"
	"time"

	"live-commerce/internal/models"
	"live-commerce/internal/service"
	"live-commerce/internal/util"

	"go.uber.org/zap"
)

const sweepBatch = 100

// ExpiryIndex pops order ids whose reminder or lock expiry is due
type ExpiryIndex interface {
	PopReminders(ctx context.Context, now time.Time, limit int) ([]string, error)
	PopExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type orderReader interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
}

type transactionReader interface {
	GetTransactionByOrder(ctx context.Context, orderID string) (*models.PaymentTransaction, error)
}

// ExpirySweeper sends payment reminders and booking-expired notices for
// reservations nearing or past their end. Orders are never mutated.
type ExpirySweeper struct {
	index    ExpiryIndex
	orders   orderReader
	payments transactionReader
	notifier service.Notifier
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewExpirySweeper creates a sweeper; interval <= 0 disables Run
func NewExpirySweeper(index ExpiryIndex, orders orderReader, payments transactionReader, notifier service.Notifier, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		index:    index,
		orders:   orders,
		payments: payments,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
		logger:   util.Component("expiry_sweeper"),
	}
}

// Run sweeps on every tick until ctx is cancelled
func (s *ExpirySweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("Expiry sweeper disabled")
		return nil
	}

	s.logger.Info("Starting expiry sweeper", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep processes everything due now and reports how many notices went out
func (s *ExpirySweeper) Sweep(ctx context.Context) (reminded, expired int) {
	now := s.now()

	reminders, err := s.index.PopReminders(ctx, now, sweepBatch)
	if err != nil {
		s.logger.Warn("Failed to pop due reminders", zap.Error(err))
	}
	for _, orderID := range reminders {
		if s.remind(ctx, orderID, now) {
			reminded++
		}
	}

	expiries, err := s.index.PopExpired(ctx, now, sweepBatch)
	if err != nil {
		s.logger.Warn("Failed to pop expired reservations", zap.Error(err))
	}
	for _, orderID := range expiries {
		if s.expire(ctx, orderID) {
			expired++
		}
	}

	if reminded > 0 || expired > 0 {
		s.logger.Info("Expiry sweep finished",
			zap.Int("reminded", reminded),
			zap.Int("expired", expired))
	}
	return reminded, expired
}

// pendingOnline loads an order that still waits on an online payment
func (s *ExpirySweeper) pendingOnline(ctx context.Context, orderID string) *models.Order {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		s.logger.Warn("Swept order not found", zap.String("order_id", orderID), zap.Error(err))
		return nil
	}
	if !order.AwaitingPayment() || !order.PaymentMethod.NeedsPaymentLink() {
		return nil
	}
	return order
}

func (s *ExpirySweeper) remind(ctx context.Context, orderID string, now time.Time) bool {
	order := s.pendingOnline(ctx, orderID)
	if order == nil {
		return false
	}

	left := order.ExpiresAt.Sub(now)
	if left <= 0 {
		return false
	}

	txn, err := s.payments.GetTransactionByOrder(ctx, orderID)
	if err != nil || txn.Status != models.TransactionStatusPending {
		s.logger.Info("No open payment link to remind about", zap.String("order_id", orderID))
		return false
	}

	minutes := int(math.Ceil(left.Minutes()))
	s.notifier.PaymentReminder(ctx, order, minutes, txn.PaymentLink)
	util.ExpirySweepsTotal.WithLabelValues("reminder").Inc()
	return true
}

func (s *ExpirySweeper) expire(ctx context.Context, orderID string) bool {
	order := s.pendingOnline(ctx, orderID)
	if order == nil {
		return false
	}
	s.notifier.BookingExpired(ctx, order)
	util.ExpirySweepsTotal.WithLabelValues("expired").Inc()
	return true
}
