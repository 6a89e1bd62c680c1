package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product represents a saree in a seller's catalog
type Product struct {
	ID            string          `db:"id" json:"id"`
	SellerID      string          `db:"seller_id" json:"seller_id"`
	SareeCode     string          `db:"saree_code" json:"saree_code"`
	Price         decimal.Decimal `db:"price" json:"price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	Fabric        string          `db:"fabric" json:"fabric"`
	Color         string          `db:"color" json:"color"`
	Description   *string         `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Order represents a live order placed against a pinned saree
type Order struct {
	ID            string          `db:"id" json:"id"`
	OrderID       string          `db:"order_id" json:"order_id"`
	SellerID      string          `db:"seller_id" json:"seller_id"`
	LiveSessionID string          `db:"live_session_id" json:"live_session_id"`
	SareeID       string          `db:"saree_id" json:"saree_id"`
	SareeCode     string          `db:"saree_code" json:"saree_code"`
	CustomerName  string          `db:"customer_name" json:"customer_name"`
	PhoneNumber   string          `db:"phone_number" json:"phone_number"`
	Address       *string         `db:"address" json:"address,omitempty"`
	PaymentMethod PaymentMethod   `db:"payment_method" json:"payment_method"`
	PaymentStatus PaymentStatus   `db:"payment_status" json:"payment_status"`
	OrderStatus   OrderStatus     `db:"order_status" json:"order_status"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	TrackingID    *string         `db:"tracking_id" json:"tracking_id,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	ExpiresAt     time.Time       `db:"expires_at" json:"expires_at"`
}

// AwaitingPayment reports whether the order still holds a reservation nobody has paid for
func (o *Order) AwaitingPayment() bool {
	return o.OrderStatus == OrderStatusPending && o.PaymentStatus == PaymentStatusPending
}

// LiveSession aggregates order totals for one broadcast
type LiveSession struct {
	ID           string          `db:"id" json:"id"`
	SellerID     string          `db:"seller_id" json:"seller_id"`
	Platforms    pq.StringArray  `db:"platforms" json:"platforms"`
	Title        string          `db:"title" json:"title"`
	StartTime    time.Time       `db:"start_time" json:"start_time"`
	EndTime      *time.Time      `db:"end_time" json:"end_time"`
	TotalOrders  int             `db:"total_orders" json:"total_orders"`
	TotalRevenue decimal.Decimal `db:"total_revenue" json:"total_revenue"`
	Status       SessionStatus   `db:"status" json:"status"`
}

// PaymentTransaction is one payment-link issuance attempt
type PaymentTransaction struct {
	ID          string            `db:"id" json:"id"`
	OrderID     string            `db:"order_id" json:"order_id"`
	Gateway     string            `db:"gateway" json:"gateway"`
	Amount      decimal.Decimal   `db:"amount" json:"amount"`
	Status      TransactionStatus `db:"status" json:"status"`
	PaymentLink string            `db:"payment_link" json:"payment_link"`
	ReferenceID string            `db:"reference_id" json:"reference_id"`
	Mock        bool              `db:"mock" json:"mock"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	CompletedAt *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// ProductPin marks a saree as currently shown on a live session
type ProductPin struct {
	ID            string    `db:"id" json:"id"`
	LiveSessionID string    `db:"live_session_id" json:"live_session_id"`
	SareeID       string    `db:"saree_id" json:"saree_id"`
	SareeCode     string    `db:"saree_code" json:"saree_code"`
	Timestamp     time.Time `db:"timestamp" json:"timestamp"`
}

// MessageLog records an outbound customer notification
type MessageLog struct {
	ID             string    `db:"id" json:"id"`
	OrderID        string    `db:"order_id" json:"order_id"`
	PhoneNumber    string    `db:"phone_number" json:"phone_number"`
	MessageType    string    `db:"message_type" json:"message_type"`
	Direction      string    `db:"direction" json:"direction"`
	Content        string    `db:"content" json:"content"`
	DeliveryStatus string    `db:"delivery_status" json:"delivery_status"`
	TemplateName   string    `db:"template_name" json:"template_name"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
}

// PaymentMethod is how the customer settles an order
type PaymentMethod string

const (
	PaymentMethodUPI  PaymentMethod = "upi"
	PaymentMethodCOD  PaymentMethod = "cod"
	PaymentMethodCard PaymentMethod = "card"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodUPI, PaymentMethodCOD, PaymentMethodCard:
		return true
	}
	return false
}

// NeedsPaymentLink is true for methods settled online
func (m PaymentMethod) NeedsPaymentLink() bool {
	return m == PaymentMethodUPI || m == PaymentMethodCard
}

// PaymentStatus of an order
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// TransactionStatus of a payment transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// LiveComment is a viewer comment captured during a live session. A comment
// carrying a "BUY <code>" keyword is annotated with the saree it asks for.
type LiveComment struct {
	ID             string    `db:"id" json:"id"`
	LiveSessionID  string    `db:"live_session_id" json:"live_session_id"`
	Platform       Platform  `db:"platform" json:"platform"`
	Username       string    `db:"username" json:"username"`
	UserID         string    `db:"user_id" json:"user_id"`
	CommentText    string    `db:"comment_text" json:"comment_text"`
	MatchedKeyword *string   `db:"matched_keyword" json:"matched_keyword"`
	SareeCode      *string   `db:"saree_code" json:"saree_code"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
}

// SessionStatus of a live session
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

// Platform a live session streams to
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
)

// Valid reports whether p is a supported platform
func (p Platform) Valid() bool {
	switch p {
	case PlatformFacebook, PlatformYouTube, PlatformInstagram:
		return true
	}
	return false
}

// Message log delivery statuses
const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusMocked = "mocked"
	DeliveryStatusFailed = "failed"
)
