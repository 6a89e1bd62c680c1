package service

import (
	"context"
	"errors"
	"fmt"

	"live-commerce/internal/models"
	"live-commerce/internal/util"

	"go.uber.org/zap"
)

// FollowUpService runs the side effects of a new order after the caller has
// its response: payment link plus order-interest message for online methods,
// COD confirmation for cash orders.
type FollowUpService struct {
	orders   OrderStore
	payments PaymentStore
	issuer   *PaymentService
	notifier Notifier
	logger   *zap.Logger
}

// NewFollowUpService creates a follow-up handler
func NewFollowUpService(orders OrderStore, payments PaymentStore, issuer *PaymentService, notifier Notifier) *FollowUpService {
	return &FollowUpService{
		orders:   orders,
		payments: payments,
		issuer:   issuer,
		notifier: notifier,
		logger:   util.Component("followup"),
	}
}

// HandleOrderCreated is safe to run more than once per order: a pending
// transaction already issued for the order is reused.
func (f *FollowUpService) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	ctx, span := util.StartSpan(ctx, "FollowUpService.HandleOrderCreated", "order_id", event.OrderID)
	defer span.End()

	order, err := f.orders.GetOrder(ctx, event.OrderID)
	if err != nil {
		util.FollowUpFailuresTotal.WithLabelValues("load_order").Inc()
		util.RecordError(span, err)
		return fmt.Errorf("failed to load order %s: %w", event.OrderID, err)
	}

	if !order.AwaitingPayment() {
		f.logger.Info("Order no longer awaiting payment, skipping follow-up",
			zap.String("order_id", order.OrderID),
			zap.String("order_status", string(order.OrderStatus)),
			zap.String("payment_status", string(order.PaymentStatus)))
		return nil
	}

	if order.PaymentMethod == models.PaymentMethodCOD {
		f.notifier.CODConfirmation(ctx, order)
		return nil
	}

	if !order.PaymentMethod.NeedsPaymentLink() {
		return nil
	}

	txn, err := f.payments.GetTransactionByOrder(ctx, order.OrderID)
	switch {
	case err == nil && txn.Status == models.TransactionStatusPending:
		f.logger.Info("Reusing issued payment link",
			zap.String("order_id", order.OrderID),
			zap.String("reference_id", txn.ReferenceID))
	case err == nil || errors.Is(err, models.ErrNotFound):
		txn, err = f.issuer.IssueLink(ctx, order)
		if err != nil {
			util.FollowUpFailuresTotal.WithLabelValues("payment_link").Inc()
			util.RecordError(span, err)
			return err
		}
	default:
		util.FollowUpFailuresTotal.WithLabelValues("load_transaction").Inc()
		return fmt.Errorf("failed to look up payment for %s: %w", order.OrderID, err)
	}

	f.notifier.OrderInterest(ctx, order, txn.PaymentLink)
	return nil
}
