package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"live-commerce/internal/models"
	"live-commerce/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles live order intake and the order status lifecycle
type OrderService struct {
	catalog     CatalogStore
	orders      OrderStore
	sessions    SessionStore
	lock        *InventoryLock
	publisher   EventPublisher
	notifier    Notifier
	stockPolicy string
	logger      *zap.Logger
	now         func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	catalog CatalogStore,
	orders OrderStore,
	sessions SessionStore,
	lock *InventoryLock,
	publisher EventPublisher,
	notifier Notifier,
	stockPolicy string,
) *OrderService {
	return &OrderService{
		catalog:     catalog,
		orders:      orders,
		sessions:    sessions,
		lock:        lock,
		publisher:   publisher,
		notifier:    notifier,
		stockPolicy: stockPolicy,
		logger:      util.Component("order_service"),
		now:         time.Now,
	}
}

// CreateOrderRequest represents a request to create a live order
type CreateOrderRequest struct {
	SareeCode     string               `json:"saree_code" binding:"required"`
	LiveSessionID string               `json:"live_session_id" binding:"required"`
	CustomerName  string               `json:"customer_name" binding:"required"`
	PhoneNumber   string               `json:"phone_number" binding:"required"`
	Address       *string              `json:"address,omitempty"`
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
}

// GenerateOrderID builds ORD-<UTC YYYYMMDD>-<8 uppercase alphanumerics>
func GenerateOrderID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

// CreateOrder validates the saree and session, reserves the saree under a new
// order id, persists the order and hands follow-up work to the publisher.
func (s *OrderService) CreateOrder(ctx context.Context, sellerID string, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder", "saree_code", req.SareeCode)
	defer span.End()

	if !req.PaymentMethod.Valid() {
		util.OrdersRejectedTotal.WithLabelValues("invalid_input").Inc()
		return nil, fmt.Errorf("payment method %q: %w", req.PaymentMethod, models.ErrInvalidInput)
	}

	product, err := s.catalog.GetProductByCode(ctx, sellerID, req.SareeCode)
	if err != nil {
		s.reject(err)
		return nil, err
	}
	if product.StockQuantity <= 0 {
		util.OrdersRejectedTotal.WithLabelValues("out_of_stock").Inc()
		return nil, fmt.Errorf("saree %s: %w", product.SareeCode, models.ErrOutOfStock)
	}

	session, err := s.sessions.GetSession(ctx, req.LiveSessionID)
	if err != nil {
		s.reject(err)
		return nil, err
	}
	if session.SellerID != sellerID {
		util.OrdersRejectedTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("live session %s: %w", req.LiveSessionID, models.ErrNotFound)
	}
	if session.Status != models.SessionStatusActive {
		util.OrdersRejectedTotal.WithLabelValues("session_ended").Inc()
		return nil, fmt.Errorf("live session %s has ended: %w", session.ID, models.ErrConflict)
	}

	if holder, found := s.lock.Peek(ctx, product.ID); found {
		util.OrdersRejectedTotal.WithLabelValues("locked").Inc()
		s.logger.Info("Saree already reserved",
			zap.String("saree_code", product.SareeCode),
			zap.String("holder", holder))
		return nil, fmt.Errorf("saree %s is reserved by another order: %w", product.SareeCode, models.ErrConflict)
	}

	now := s.now().UTC()
	order := &models.Order{
		OrderID:       GenerateOrderID(now),
		SellerID:      sellerID,
		LiveSessionID: session.ID,
		SareeID:       product.ID,
		SareeCode:     product.SareeCode,
		CustomerName:  req.CustomerName,
		PhoneNumber:   req.PhoneNumber,
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: models.PaymentStatusPending,
		OrderStatus:   models.OrderStatusPending,
		Amount:        product.Price,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(s.lock.TTL()),
	}

	if err := s.lock.Acquire(ctx, product.ID, order.OrderID, product.StockQuantity); err != nil {
		s.reject(err)
		return nil, err
	}

	if s.stockPolicy == StockPolicyOnOrder {
		if err := s.catalog.DecrementStock(ctx, product.ID); err != nil {
			s.lock.Release(ctx, product.ID, order.OrderID, "compensation")
			s.reject(err)
			return nil, fmt.Errorf("failed to take stock: %w", err)
		}
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.lock.Release(ctx, product.ID, order.OrderID, "compensation")
		if s.stockPolicy == StockPolicyOnOrder {
			if rerr := s.catalog.RestoreStock(ctx, product.ID); rerr != nil {
				s.logger.Error("Failed to restore stock after failed order insert",
					zap.String("product_id", product.ID),
					zap.Error(rerr))
			}
		}
		util.OrdersRejectedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.OrderID),
		zap.String("saree_code", order.SareeCode),
		zap.String("payment_method", string(order.PaymentMethod)))

	if err := s.sessions.RecordOrder(ctx, session.ID, order.Amount); err != nil {
		s.logger.Error("Failed to record order on session",
			zap.String("order_id", order.OrderID),
			zap.String("session_id", session.ID),
			zap.Error(err))
	} else {
		util.SessionRevenueTotal.Add(order.Amount.InexactFloat64())
	}

	event := models.NewOrderCreatedEvent(uuid.New().String(), order)
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		util.FollowUpFailuresTotal.WithLabelValues("publish").Inc()
		s.logger.Error("Failed to publish OrderCreated event",
			zap.String("order_id", order.OrderID),
			zap.Error(err))
	}

	return order, nil
}

func (s *OrderService) reject(err error) {
	reason := "error"
	switch {
	case errors.Is(err, models.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, models.ErrOutOfStock):
		reason = "out_of_stock"
	case errors.Is(err, models.ErrConflict):
		reason = "locked"
	}
	util.OrdersRejectedTotal.WithLabelValues(reason).Inc()
}

// GetOrder retrieves one of the seller's orders
func (s *OrderService) GetOrder(ctx context.Context, sellerID, orderID string) (*models.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	return order, nil
}

// ReservationRemaining reports how long the order still holds its saree
func (s *OrderService) ReservationRemaining(ctx context.Context, order *models.Order) time.Duration {
	if !order.AwaitingPayment() {
		return 0
	}
	return s.lock.Remaining(ctx, order.SareeID, order.OrderID)
}

// ListOrders returns the seller's orders newest first, optionally filtered by status
func (s *OrderService) ListOrders(ctx context.Context, sellerID string, status models.OrderStatus) ([]models.Order, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("order status %q: %w", status, models.ErrInvalidInput)
	}
	return s.orders.ListOrders(ctx, sellerID, status)
}

// UpdateStatus moves an order forward through its lifecycle
func (s *OrderService) UpdateStatus(ctx context.Context, sellerID, orderID string, status models.OrderStatus) (*models.Order, error) {
	return s.transition(ctx, sellerID, orderID, status, nil)
}

// Dispatch marks the order shipped, stores the tracking id and tells the customer
func (s *OrderService) Dispatch(ctx context.Context, sellerID, orderID, trackingID string) (*models.Order, error) {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return nil, fmt.Errorf("tracking id is required: %w", models.ErrInvalidInput)
	}

	order, err := s.transition(ctx, sellerID, orderID, models.OrderStatusShipped, &trackingID)
	if err != nil {
		return nil, err
	}

	s.notifier.DispatchUpdate(ctx, order, trackingID)
	return order, nil
}

func (s *OrderService) transition(ctx context.Context, sellerID, orderID string, to models.OrderStatus, trackingID *string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus", "order_id", orderID, "status", string(to))
	defer span.End()

	if !to.Valid() {
		return nil, fmt.Errorf("order status %q: %w", to, models.ErrInvalidInput)
	}

	order, err := s.GetOrder(ctx, sellerID, orderID)
	if err != nil {
		return nil, err
	}

	from := order.OrderStatus
	if !from.CanTransition(to) {
		return nil, fmt.Errorf("order %s cannot move from %s to %s: %w", orderID, from, to, models.ErrInvalidTransition)
	}
	if from == to && trackingID == nil {
		return order, nil
	}

	updated, err := s.orders.UpdateOrderStatus(ctx, sellerID, orderID, from, to, trackingID)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	if from == to {
		return updated, nil
	}

	util.OrderStatusChangesTotal.WithLabelValues(string(to)).Inc()
	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	if to == models.OrderStatusCancelled || to == models.OrderStatusShipped || to == models.OrderStatusDelivered {
		s.lock.Release(ctx, updated.SareeID, updated.OrderID, string(to))
	}

	event := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStatusChanged,
			Timestamp: time.Now().UTC(),
		},
		OrderID: orderID,
		From:    from,
		To:      to,
	}
	if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event",
			zap.String("order_id", orderID),
			zap.Error(err))
	}

	return updated, nil
}
