package store

import (
	"context"
	"database/sql"
	"fmt"

	"live-commerce/internal/models"

	"github.com/google/uuid"
)

// CreateOrder persists a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	query := `
		INSERT INTO live_orders (
			id, order_id, seller_id, live_session_id, saree_id, saree_code,
			customer_name, phone_number, address, payment_method, payment_status,
			order_status, amount, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := s.db.ExecContext(ctx, query,
		order.ID, order.OrderID, order.SellerID, order.LiveSessionID, order.SareeID, order.SareeCode,
		order.CustomerName, order.PhoneNumber, order.Address, order.PaymentMethod, order.PaymentStatus,
		order.OrderStatus, order.Amount, order.CreatedAt, order.UpdatedAt, order.ExpiresAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("order %s already exists: %w", order.OrderID, models.ErrConflict)
	}
	return err
}

// GetOrder retrieves an order by its public order id
func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM live_orders WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns a seller's orders newest first, optionally filtered by status
func (s *Store) ListOrders(ctx context.Context, sellerID string, status models.OrderStatus) ([]models.Order, error) {
	orders := []models.Order{}
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT * FROM live_orders WHERE seller_id = $1 ORDER BY created_at DESC LIMIT $2",
			sellerID, listLimit)
	} else {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT * FROM live_orders WHERE seller_id = $1 AND order_status = $2 ORDER BY created_at DESC LIMIT $3",
			sellerID, status, listLimit)
	}
	return orders, err
}

// UpdateOrderStatus moves a seller's order from one status to another.
// The update only applies while the order is still in from; a concurrent
// change surfaces as ErrConflict. trackingID is stored when non-nil.
func (s *Store) UpdateOrderStatus(ctx context.Context, sellerID, orderID string, from, to models.OrderStatus, trackingID *string) (*models.Order, error) {
	query := `
		UPDATE live_orders
		SET order_status = $1, tracking_id = COALESCE($2, tracking_id), updated_at = NOW()
		WHERE seller_id = $3 AND order_id = $4 AND order_status = $5
		RETURNING *`

	var order models.Order
	err := s.db.GetContext(ctx, &order, query, to, trackingID, sellerID, orderID, from)
	if err == sql.ErrNoRows {
		var exists bool
		if err := s.db.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM live_orders WHERE seller_id = $1 AND order_id = $2)",
			sellerID, orderID); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("order %s changed concurrently: %w", orderID, models.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
