package store

import (
	"context"

	"live-commerce/internal/models"

	"github.com/google/uuid"
)

// LogMessage records an outbound notification
func (s *Store) LogMessage(ctx context.Context, msg *models.MessageLog) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Direction == "" {
		msg.Direction = "outbound"
	}
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO message_logs (id, order_id, phone_number, message_type, direction, content, delivery_status, template_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING timestamp`,
		msg.ID, msg.OrderID, msg.PhoneNumber, msg.MessageType, msg.Direction,
		msg.Content, msg.DeliveryStatus, msg.TemplateName,
	).Scan(&msg.Timestamp)
}

// ListMessages returns the notifications sent for an order, oldest first
func (s *Store) ListMessages(ctx context.Context, orderID string) ([]models.MessageLog, error) {
	msgs := []models.MessageLog{}
	err := s.db.SelectContext(ctx, &msgs,
		"SELECT * FROM message_logs WHERE order_id = $1 ORDER BY timestamp ASC LIMIT $2",
		orderID, listLimit)
	return msgs, err
}
