package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypePaymentConfirmed   = "PAYMENT_CONFIRMED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent carries everything the follow-up handler needs,
// so it never has to re-read the ledger for the happy path
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	SellerID      string          `json:"seller_id"`
	LiveSessionID string          `json:"live_session_id"`
	SareeCode     string          `json:"saree_code"`
	CustomerName  string          `json:"customer_name"`
	PhoneNumber   string          `json:"phone_number"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// OrderStatusChangedEvent published on explicit status updates
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID string      `json:"order_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
}

// PaymentConfirmedEvent published after reconciliation succeeds
type PaymentConfirmedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	ReferenceID string          `json:"reference_id"`
	Gateway     string          `json:"gateway"`
	Amount      decimal.Decimal `json:"amount"`
}

// NewOrderCreatedEvent builds the event for a freshly persisted order
func NewOrderCreatedEvent(eventID string, order *Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseEvent: BaseEvent{
			EventID:   eventID,
			EventType: EventTypeOrderCreated,
			Timestamp: time.Now().UTC(),
		},
		OrderID:       order.OrderID,
		SellerID:      order.SellerID,
		LiveSessionID: order.LiveSessionID,
		SareeCode:     order.SareeCode,
		CustomerName:  order.CustomerName,
		PhoneNumber:   order.PhoneNumber,
		PaymentMethod: order.PaymentMethod,
		Amount:        order.Amount,
		ExpiresAt:     order.ExpiresAt,
	}
}
