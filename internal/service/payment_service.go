package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"live-commerce/internal/models"
	"live-commerce/internal/payment"
	"live-commerce/internal/store"
	"live-commerce/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Razorpay webhook event that carries a paid payment link
const EventPaymentLinkPaid = "payment_link.paid"

// Reconciliation sources
const (
	SourceWebhook = "webhook"
	SourceDemo    = "demo"
)

// PaymentService issues payment links and reconciles completed payments
type PaymentService struct {
	orders        OrderStore
	payments      PaymentStore
	catalog       CatalogStore
	issuer        payment.LinkIssuer
	notifier      Notifier
	lock          *InventoryLock
	publisher     EventPublisher
	webhookSecret string
	stockPolicy   string
	logger        *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	orders OrderStore,
	payments PaymentStore,
	catalog CatalogStore,
	issuer payment.LinkIssuer,
	notifier Notifier,
	lock *InventoryLock,
	publisher EventPublisher,
	webhookSecret string,
	stockPolicy string,
) *PaymentService {
	ps := &PaymentService{
		orders:        orders,
		payments:      payments,
		catalog:       catalog,
		issuer:        issuer,
		notifier:      notifier,
		lock:          lock,
		publisher:     publisher,
		webhookSecret: webhookSecret,
		stockPolicy:   stockPolicy,
		logger:        util.Component("payment_service"),
	}
	if webhookSecret == "" {
		ps.logger.Warn("No webhook secret configured, webhook events are trusted without verification")
	}
	return ps
}

// IssueLink asks the gateway for a payment link and records the transaction
func (ps *PaymentService) IssueLink(ctx context.Context, order *models.Order) (*models.PaymentTransaction, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.IssueLink", "order_id", order.OrderID)
	defer span.End()

	link, err := ps.issuer.CreateLink(ctx, payment.LinkRequest{
		OrderID:       order.OrderID,
		Amount:        order.Amount,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.PhoneNumber,
		Description:   fmt.Sprintf("Payment for Saree %s", order.SareeCode),
		ExpireBy:      order.ExpiresAt,
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to create payment link: %w", err)
	}

	txn := &models.PaymentTransaction{
		OrderID:     order.OrderID,
		Gateway:     link.Gateway,
		Amount:      order.Amount,
		Status:      models.TransactionStatusPending,
		PaymentLink: link.URL,
		ReferenceID: link.ReferenceID,
		Mock:        link.Mock,
	}
	if err := ps.payments.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to record payment transaction: %w", err)
	}

	ps.logger.Info("Payment link issued",
		zap.String("order_id", order.OrderID),
		zap.String("reference_id", txn.ReferenceID),
		zap.Bool("mock", txn.Mock))
	return txn, nil
}

// CreatePaymentLink re-issues a link for one of the seller's unpaid orders
func (ps *PaymentService) CreatePaymentLink(ctx context.Context, sellerID, orderID string) (*models.PaymentTransaction, error) {
	order, err := ps.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	if order.PaymentStatus == models.PaymentStatusCompleted {
		return nil, fmt.Errorf("order %s is already paid: %w", orderID, models.ErrConflict)
	}
	if order.OrderStatus == models.OrderStatusCancelled {
		return nil, fmt.Errorf("order %s is cancelled: %w", orderID, models.ErrConflict)
	}
	return ps.IssueLink(ctx, order)
}

// GetOrderPayment returns the latest transaction for one of the seller's orders
func (ps *PaymentService) GetOrderPayment(ctx context.Context, sellerID, orderID string) (*models.PaymentTransaction, error) {
	order, err := ps.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	return ps.payments.GetTransactionByOrder(ctx, orderID)
}

// ListTransactions returns the seller's payment transactions
func (ps *PaymentService) ListTransactions(ctx context.Context, sellerID string) ([]models.PaymentTransaction, error) {
	return ps.payments.ListTransactions(ctx, sellerID)
}

// ConfirmByReference applies a completed payment to the transaction and its order.
// A reference that was already completed is not notified again. A payment for a
// cancelled order is recorded for refund without any fulfilment side effects.
func (ps *PaymentService) ConfirmByReference(ctx context.Context, referenceID, source string) (*store.PaymentCompletion, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ConfirmByReference", "reference_id", referenceID, "source", source)
	defer span.End()

	completion, err := ps.payments.CompletePayment(ctx, referenceID)
	if err != nil {
		util.RecordError(span, err)
		result := "error"
		if errors.Is(err, models.ErrNotFound) {
			result = "not_found"
		}
		util.ReconciliationsTotal.WithLabelValues(source, result).Inc()
		return nil, err
	}

	if completion.AlreadyCompleted {
		util.ReconciliationsTotal.WithLabelValues(source, "duplicate").Inc()
		ps.logger.Info("Payment already reconciled",
			zap.String("reference_id", referenceID),
			zap.String("order_id", completion.Order.OrderID))
		return completion, nil
	}

	order := completion.Order
	if completion.OrderCancelled {
		util.ReconciliationsTotal.WithLabelValues(source, "paid_after_cancel").Inc()
		ps.logger.Warn("Payment received for cancelled order, refund required",
			zap.String("reference_id", referenceID),
			zap.String("order_id", order.OrderID),
			zap.String("amount", completion.Transaction.Amount.String()),
			zap.String("source", source))
		return completion, nil
	}

	util.ReconciliationsTotal.WithLabelValues(source, "completed").Inc()
	ps.logger.Info("Payment reconciled",
		zap.String("reference_id", referenceID),
		zap.String("order_id", order.OrderID),
		zap.String("source", source))

	if ps.stockPolicy == StockPolicyOnPayment {
		if err := ps.catalog.DecrementStock(ctx, order.SareeID); err != nil {
			ps.logger.Error("Failed to take stock for paid order",
				zap.String("order_id", order.OrderID),
				zap.String("saree_id", order.SareeID),
				zap.Error(err))
		}
		ps.lock.Release(ctx, order.SareeID, order.OrderID, "paid")
	}

	ps.notifier.PaymentConfirmation(ctx, order)

	event := &models.PaymentConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentConfirmed,
			Timestamp: time.Now().UTC(),
		},
		OrderID:     order.OrderID,
		ReferenceID: referenceID,
		Gateway:     completion.Transaction.Gateway,
		Amount:      completion.Transaction.Amount,
	}
	if err := ps.publisher.PublishPaymentConfirmed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentConfirmed event",
			zap.String("order_id", order.OrderID),
			zap.Error(err))
	}

	return completion, nil
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		PaymentLink struct {
			Entity struct {
				ID          string `json:"id"`
				ReferenceID string `json:"reference_id"`
				Status      string `json:"status"`
			} `json:"entity"`
		} `json:"payment_link"`
	} `json:"payload"`
}

// HandleWebhook verifies and applies a gateway event. Unknown events and
// unknown references are acknowledged without effect.
func (ps *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	if ps.webhookSecret != "" && !payment.VerifySignature(ps.webhookSecret, body, signature) {
		util.ReconciliationsTotal.WithLabelValues(SourceWebhook, "bad_signature").Inc()
		ps.logger.Warn("Rejected webhook with invalid signature")
		return fmt.Errorf("webhook signature mismatch: %w", models.ErrUnauthorized)
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("malformed webhook payload: %w", models.ErrInvalidInput)
	}

	if event.Event != EventPaymentLinkPaid {
		ps.logger.Info("Ignoring webhook event", zap.String("event", event.Event))
		return nil
	}

	referenceID := event.Payload.PaymentLink.Entity.ID
	if referenceID == "" {
		ps.logger.Warn("Paid webhook without payment link id")
		return nil
	}

	_, err := ps.ConfirmByReference(ctx, referenceID, SourceWebhook)
	if errors.Is(err, models.ErrNotFound) {
		ps.logger.Warn("Webhook for unknown payment reference",
			zap.String("reference_id", referenceID),
			zap.Error(err))
		return nil
	}
	return err
}

// CompleteDemo confirms a mock payment from the demo page
func (ps *PaymentService) CompleteDemo(ctx context.Context, paymentID string) (*store.PaymentCompletion, error) {
	return ps.ConfirmByReference(ctx, payment.MockReferencePrefix+paymentID, SourceDemo)
}

// CancelDemo cancels a mock payment; the order keeps its state
func (ps *PaymentService) CancelDemo(ctx context.Context, paymentID string) (*models.PaymentTransaction, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CancelDemo", "payment_id", paymentID)
	defer span.End()

	txn, err := ps.payments.CancelTransaction(ctx, payment.MockReferencePrefix+paymentID)
	if err != nil {
		return nil, err
	}
	ps.logger.Info("Demo payment cancelled",
		zap.String("reference_id", txn.ReferenceID),
		zap.String("order_id", txn.OrderID))
	return txn, nil
}

// DemoDetails returns the mock transaction and its order for the demo page
func (ps *PaymentService) DemoDetails(ctx context.Context, paymentID string) (*models.PaymentTransaction, *models.Order, error) {
	txn, err := ps.payments.GetTransactionByReference(ctx, payment.MockReferencePrefix+paymentID)
	if err != nil {
		return nil, nil, err
	}
	order, err := ps.orders.GetOrder(ctx, txn.OrderID)
	if err != nil {
		return txn, nil, err
	}
	return txn, order, nil
}
