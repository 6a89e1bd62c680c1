package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"live-commerce/internal/models"
	"live-commerce/internal/util"

	"go.uber.org/zap"
)

var (
	ErrQueueFull         = errors.New("follow-up queue is full")
	ErrDispatcherStopped = errors.New("follow-up dispatcher is stopped")
)

// LocalDispatcher runs follow-ups in a bounded pool of goroutines inside the
// API process. It implements the order event publisher used by the services.
type LocalDispatcher struct {
	handler    FollowUpHandler
	jobs       chan *models.OrderCreatedEvent
	workers    int
	jobTimeout time.Duration

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewLocalDispatcher creates a dispatcher; call Start before publishing
func NewLocalDispatcher(handler FollowUpHandler, workers, queueSize int) *LocalDispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers
	}
	return &LocalDispatcher{
		handler:    handler,
		jobs:       make(chan *models.OrderCreatedEvent, queueSize),
		workers:    workers,
		jobTimeout: 30 * time.Second,
		logger:     util.Component("dispatcher"),
	}
}

// Start launches the worker goroutines
func (d *LocalDispatcher) Start() {
	d.logger.Info("Starting follow-up dispatcher", zap.Int("workers", d.workers))
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
}

func (d *LocalDispatcher) run() {
	defer d.wg.Done()
	for event := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), d.jobTimeout)
		if err := d.handler.HandleOrderCreated(ctx, event); err != nil {
			util.FollowUpFailuresTotal.WithLabelValues("handler").Inc()
			d.logger.Error("Follow-up failed",
				zap.String("order_id", event.OrderID),
				zap.Error(err))
		}
		cancel()
	}
}

// Stop refuses new work, drains the queue and waits for the workers
func (d *LocalDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Follow-up dispatcher stopped")
}

// PublishOrderCreated queues the event without blocking the caller
func (d *LocalDispatcher) PublishOrderCreated(_ context.Context, event *models.OrderCreatedEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.jobs <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// PublishPaymentConfirmed has no local consumers
func (d *LocalDispatcher) PublishPaymentConfirmed(_ context.Context, event *models.PaymentConfirmedEvent) error {
	d.logger.Debug("Payment confirmed", zap.String("order_id", event.OrderID))
	return nil
}

// PublishOrderStatusChanged has no local consumers
func (d *LocalDispatcher) PublishOrderStatusChanged(_ context.Context, event *models.OrderStatusChangedEvent) error {
	d.logger.Debug("Order status changed",
		zap.String("order_id", event.OrderID),
		zap.String("to", string(event.To)))
	return nil
}
