package service

import (
	"context"
	"time"

	"live-commerce/config"
	"live-commerce/internal/models"
	"live-commerce/internal/store"

	"github.com/shopspring/decimal"
)

// Stock policies
const (
	StockPolicyNone      = config.StockPolicyNone
	StockPolicyOnOrder   = config.StockPolicyOnOrder
	StockPolicyOnPayment = config.StockPolicyOnPayment
)

type CatalogStore interface {
	GetProductByCode(ctx context.Context, sellerID, sareeCode string) (*models.Product, error)
	DecrementStock(ctx context.Context, productID string) error
	RestoreStock(ctx context.Context, productID string) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, sellerID string, status models.OrderStatus) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, sellerID, orderID string, from, to models.OrderStatus, trackingID *string) (*models.Order, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, session *models.LiveSession) error
	GetSession(ctx context.Context, id string) (*models.LiveSession, error)
	ListSessions(ctx context.Context, sellerID string) ([]models.LiveSession, error)
	EndSession(ctx context.Context, sellerID, id string) (*models.LiveSession, error)
	RecordOrder(ctx context.Context, sessionID string, amount decimal.Decimal) error
	CreatePin(ctx context.Context, pin *models.ProductPin) error
	ListPins(ctx context.Context, sessionID string) ([]models.ProductPin, error)
}

type CommentStore interface {
	CreateComment(ctx context.Context, comment *models.LiveComment) error
	ListComments(ctx context.Context, sessionID string) ([]models.LiveComment, error)
}

type PaymentStore interface {
	CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error
	GetTransactionByReference(ctx context.Context, referenceID string) (*models.PaymentTransaction, error)
	GetTransactionByOrder(ctx context.Context, orderID string) (*models.PaymentTransaction, error)
	ListTransactions(ctx context.Context, sellerID string) ([]models.PaymentTransaction, error)
	CompletePayment(ctx context.Context, referenceID string) (*store.PaymentCompletion, error)
	CancelTransaction(ctx context.Context, referenceID string) (*models.PaymentTransaction, error)
}

type MessageStore interface {
	ListMessages(ctx context.Context, orderID string) ([]models.MessageLog, error)
}

// LockBackend is the atomic store behind the inventory lock manager
type LockBackend interface {
	AcquireLock(ctx context.Context, productID, orderID string, ttl time.Duration, remindAt time.Time, stock int) (int64, error)
	PeekLock(ctx context.Context, productID string) (string, bool, error)
	LockTTL(ctx context.Context, productID string) (time.Duration, error)
	ReleaseLock(ctx context.Context, productID, orderID string) (bool, error)
}

// EventPublisher hands order events to whatever runs the follow-up work
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// Notifier sends customer notifications; each call returns the delivery status
type Notifier interface {
	OrderInterest(ctx context.Context, order *models.Order, paymentLink string) string
	PaymentConfirmation(ctx context.Context, order *models.Order) string
	PaymentReminder(ctx context.Context, order *models.Order, minutesLeft int, paymentLink string) string
	BookingExpired(ctx context.Context, order *models.Order) string
	CODConfirmation(ctx context.Context, order *models.Order) string
	DispatchUpdate(ctx context.Context, order *models.Order, trackingID string) string
}

// SessionBroadcaster pushes pins and comments to live viewers
type SessionBroadcaster interface {
	BroadcastPin(sessionID string, pin *models.ProductPin)
	BroadcastComment(sessionID string, comment *models.LiveComment)
}
