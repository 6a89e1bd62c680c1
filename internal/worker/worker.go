package worker

import (
	"context"

	"live-commerce/internal/broker"
	"live-commerce/internal/models"
	"live-commerce/internal/util"

	"go.uber.org/zap"
)

// FollowUpHandler runs the asynchronous side effects of a new order
type FollowUpHandler interface {
	HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
}

// FollowUpFunc adapts a plain function to FollowUpHandler
type FollowUpFunc func(ctx context.Context, event *models.OrderCreatedEvent) error

func (f FollowUpFunc) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return f(ctx, event)
}

// EventConsumer delivers broker messages to a handler until stopped
type EventConsumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// FollowUpWorker consumes order events from Kafka and runs follow-ups
type FollowUpWorker struct {
	consumer     EventConsumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewFollowUpWorker creates a new follow-up worker
func NewFollowUpWorker(consumer EventConsumer, followUp FollowUpHandler) *FollowUpWorker {
	w := &FollowUpWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.Component("followup_worker"),
	}

	w.eventHandler.OnOrderCreated(func(ctx context.Context, event *models.OrderCreatedEvent) error {
		if err := followUp.HandleOrderCreated(ctx, event); err != nil {
			util.FollowUpFailuresTotal.WithLabelValues("handler").Inc()
			return err
		}
		return nil
	})
	w.eventHandler.OnPaymentConfirmed(func(_ context.Context, event *models.PaymentConfirmedEvent) error {
		w.logger.Debug("Payment confirmed", zap.String("order_id", event.OrderID))
		return nil
	})
	w.eventHandler.OnOrderStatusChanged(func(_ context.Context, event *models.OrderStatusChangedEvent) error {
		w.logger.Debug("Order status changed",
			zap.String("order_id", event.OrderID),
			zap.String("to", string(event.To)))
		return nil
	})

	return w
}

// Start starts the worker
func (w *FollowUpWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting follow-up worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *FollowUpWorker) Stop() error {
	w.logger.Info("Stopping follow-up worker")
	return w.consumer.Close()
}
