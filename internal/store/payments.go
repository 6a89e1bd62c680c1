package store

import (
	"context"
	"database/sql"
	"fmt"

	"live-commerce/internal/models"

	"github.com/google/uuid"
)

// PaymentCompletion is the outcome of reconciling one reference id.
// OrderCancelled is set when the money arrived for an order that had already
// been cancelled; the payment is recorded but the order stays cancelled.
type PaymentCompletion struct {
	Transaction      *models.PaymentTransaction
	Order            *models.Order
	AlreadyCompleted bool
	OrderCancelled   bool
}

// CreateTransaction records a payment link issuance
func (s *Store) CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}

	query := `
		INSERT INTO payment_transactions (id, order_id, gateway, amount, status, payment_link, reference_id, mock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := s.db.QueryRowxContext(ctx, query,
		txn.ID, txn.OrderID, txn.Gateway, txn.Amount, txn.Status, txn.PaymentLink, txn.ReferenceID, txn.Mock,
	).Scan(&txn.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("reference %s already issued: %w", txn.ReferenceID, models.ErrConflict)
	}
	return err
}

// GetTransactionByReference retrieves a transaction by gateway reference id
func (s *Store) GetTransactionByReference(ctx context.Context, referenceID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := s.db.GetContext(ctx, &txn,
		"SELECT * FROM payment_transactions WHERE reference_id = $1", referenceID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment reference %s: %w", referenceID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetTransactionByOrder returns the latest transaction issued for an order
func (s *Store) GetTransactionByOrder(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := s.db.GetContext(ctx, &txn,
		"SELECT * FROM payment_transactions WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment for order %s: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListTransactions returns a seller's transactions newest first
func (s *Store) ListTransactions(ctx context.Context, sellerID string) ([]models.PaymentTransaction, error) {
	txns := []models.PaymentTransaction{}
	err := s.db.SelectContext(ctx, &txns, `
		SELECT t.* FROM payment_transactions t
		JOIN live_orders o ON o.order_id = t.order_id
		WHERE o.seller_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2`, sellerID, listLimit)
	return txns, err
}

// CompletePayment marks the transaction completed and confirms its order in one
// database transaction. A reference that is already completed is reported as
// such; the order update is still applied so a half-reconciled order heals.
func (s *Store) CompletePayment(ctx context.Context, referenceID string) (*PaymentCompletion, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var txn models.PaymentTransaction
	err = tx.GetContext(ctx, &txn,
		"SELECT * FROM payment_transactions WHERE reference_id = $1 FOR UPDATE", referenceID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment reference %s: %w", referenceID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock transaction: %w", err)
	}

	already := txn.Status == models.TransactionStatusCompleted
	if !already {
		err = tx.GetContext(ctx, &txn, `
			UPDATE payment_transactions
			SET status = 'completed', completed_at = NOW()
			WHERE id = $1
			RETURNING *`, txn.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to complete transaction: %w", err)
		}
	}

	var order models.Order
	err = tx.GetContext(ctx, &order, `
		UPDATE live_orders
		SET payment_status = 'completed',
		    order_status = CASE WHEN order_status = 'pending' THEN 'confirmed' ELSE order_status END,
		    updated_at = NOW()
		WHERE order_id = $1
		RETURNING *`, txn.OrderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", txn.OrderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &PaymentCompletion{
		Transaction:      &txn,
		Order:            &order,
		AlreadyCompleted: already,
		OrderCancelled:   order.OrderStatus == models.OrderStatusCancelled,
	}, nil
}

// CancelTransaction marks a not-yet-completed transaction cancelled. The order is untouched.
func (s *Store) CancelTransaction(ctx context.Context, referenceID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := s.db.GetContext(ctx, &txn, `
		UPDATE payment_transactions
		SET status = 'cancelled', cancelled_at = COALESCE(cancelled_at, NOW())
		WHERE reference_id = $1 AND status <> 'completed'
		RETURNING *`, referenceID)
	if err == sql.ErrNoRows {
		existing, err := s.GetTransactionByReference(ctx, referenceID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("payment reference %s is %s: %w", referenceID, existing.Status, models.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
