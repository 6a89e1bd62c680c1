package store

import (
	"context"
	"database/sql"
	"fmt"

	"live-commerce/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateSession starts a live session record
func (s *Store) CreateSession(ctx context.Context, session *models.LiveSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}

	query := `
		INSERT INTO live_sessions (id, seller_id, platforms, title, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING start_time, total_orders, total_revenue`

	return s.db.QueryRowxContext(ctx, query,
		session.ID, session.SellerID, session.Platforms, session.Title, session.Status,
	).Scan(&session.StartTime, &session.TotalOrders, &session.TotalRevenue)
}

// GetSession retrieves a live session by ID
func (s *Store) GetSession(ctx context.Context, id string) (*models.LiveSession, error) {
	var session models.LiveSession
	err := s.db.GetContext(ctx, &session, "SELECT * FROM live_sessions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("live session %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns a seller's sessions, most recent first
func (s *Store) ListSessions(ctx context.Context, sellerID string) ([]models.LiveSession, error) {
	sessions := []models.LiveSession{}
	err := s.db.SelectContext(ctx, &sessions,
		"SELECT * FROM live_sessions WHERE seller_id = $1 ORDER BY start_time DESC LIMIT $2",
		sellerID, listLimit)
	return sessions, err
}

// EndSession marks a seller's session ended. Ending twice keeps the first end time.
func (s *Store) EndSession(ctx context.Context, sellerID, id string) (*models.LiveSession, error) {
	query := `
		UPDATE live_sessions
		SET status = $1, end_time = COALESCE(end_time, NOW())
		WHERE id = $2 AND seller_id = $3
		RETURNING *`

	var session models.LiveSession
	err := s.db.GetContext(ctx, &session, query, models.SessionStatusEnded, id, sellerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("live session %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// RecordOrder adds one order and its amount to the session totals in a single statement
func (s *Store) RecordOrder(ctx context.Context, sessionID string, amount decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE live_sessions SET total_orders = total_orders + 1, total_revenue = total_revenue + $1 WHERE id = $2",
		amount, sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("live session %s: %w", sessionID, models.ErrNotFound)
	}
	return nil
}

// CreatePin appends a product pin to a session's log
func (s *Store) CreatePin(ctx context.Context, pin *models.ProductPin) error {
	if pin.ID == "" {
		pin.ID = uuid.New().String()
	}
	return s.db.QueryRowxContext(ctx,
		"INSERT INTO product_pins (id, live_session_id, saree_id, saree_code) VALUES ($1, $2, $3, $4) RETURNING timestamp",
		pin.ID, pin.LiveSessionID, pin.SareeID, pin.SareeCode,
	).Scan(&pin.Timestamp)
}

// ListPins returns a session's pins, latest first
func (s *Store) ListPins(ctx context.Context, sessionID string) ([]models.ProductPin, error) {
	pins := []models.ProductPin{}
	err := s.db.SelectContext(ctx, &pins,
		"SELECT * FROM product_pins WHERE live_session_id = $1 ORDER BY timestamp DESC LIMIT $2",
		sessionID, listLimit)
	return pins, err
}
