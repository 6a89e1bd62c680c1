package notify

import (
	"context"
	"time"

	"live-commerce/internal/models"
	"live-commerce/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MessageLogger persists outbound notifications
type MessageLogger interface {
	LogMessage(ctx context.Context, msg *models.MessageLog) error
}

// Notifier renders customer notifications, sends them and records them.
// Delivery failures are logged and counted, never returned.
type Notifier struct {
	sender      Sender
	messages    MessageLogger
	codCharge   decimal.Decimal
	holdMinutes int
	logger      *zap.Logger
}

func NewNotifier(sender Sender, messages MessageLogger, codCharge decimal.Decimal, lockTTL time.Duration) *Notifier {
	return &Notifier{
		sender:      sender,
		messages:    messages,
		codCharge:   codCharge,
		holdMinutes: int(lockTTL.Round(time.Minute) / time.Minute),
		logger:      util.Component("notifier"),
	}
}

func (n *Notifier) OrderInterest(ctx context.Context, order *models.Order, paymentLink string) string {
	return n.deliver(ctx, order, OrderInterest(order.CustomerName, order.SareeCode, order.Amount, paymentLink, n.holdMinutes))
}

func (n *Notifier) PaymentConfirmation(ctx context.Context, order *models.Order) string {
	return n.deliver(ctx, order, PaymentConfirmation(order.OrderID, order.SareeCode, order.Amount))
}

func (n *Notifier) PaymentReminder(ctx context.Context, order *models.Order, minutesLeft int, paymentLink string) string {
	return n.deliver(ctx, order, PaymentReminder(order.SareeCode, minutesLeft, paymentLink))
}

func (n *Notifier) BookingExpired(ctx context.Context, order *models.Order) string {
	return n.deliver(ctx, order, BookingExpired(order.SareeCode))
}

func (n *Notifier) CODConfirmation(ctx context.Context, order *models.Order) string {
	return n.deliver(ctx, order, CODConfirmation(order.OrderID, order.SareeCode, order.Amount, n.codCharge))
}

func (n *Notifier) DispatchUpdate(ctx context.Context, order *models.Order, trackingID string) string {
	return n.deliver(ctx, order, DispatchUpdate(order.OrderID, trackingID))
}

// deliver sends msg and records it, returning the delivery status
func (n *Notifier) deliver(ctx context.Context, order *models.Order, msg Message) string {
	status := models.DeliveryStatusFailed
	receipt, err := n.sender.Send(ctx, order.PhoneNumber, msg.Template, msg.Text)
	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("order_id", order.OrderID),
			zap.String("template", msg.Template),
			zap.Error(err))
	} else {
		status = receipt.Status
	}
	util.NotificationsSentTotal.WithLabelValues(msg.Template, status).Inc()

	entry := &models.MessageLog{
		OrderID:        order.OrderID,
		PhoneNumber:    order.PhoneNumber,
		MessageType:    msg.Kind,
		Direction:      "outbound",
		Content:        msg.Text,
		DeliveryStatus: status,
		TemplateName:   msg.Template,
	}
	if err := n.messages.LogMessage(ctx, entry); err != nil {
		n.logger.Error("Failed to log notification",
			zap.String("order_id", order.OrderID),
			zap.String("template", msg.Template),
			zap.Error(err))
	}

	n.logger.Info("Notification processed",
		zap.String("order_id", order.OrderID),
		zap.String("template", msg.Template),
		zap.String("status", status))
	return status
}
