package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"live-commerce/internal/models"
	"live-commerce/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemStore is an in-memory implementation of every store interface the
// services depend on, for tests outside the store package
type MemStore struct {
	mu           sync.Mutex
	products     map[string]*models.Product
	orders       map[string]*models.Order
	sessions     map[string]*models.LiveSession
	pins         []models.ProductPin
	comments     []models.LiveComment
	transactions []*models.PaymentTransaction
	messages     []models.MessageLog
	FailCreate   error
}

func NewMemStore() *MemStore {
	return &MemStore{
		products: make(map[string]*models.Product),
		orders:   make(map[string]*models.Order),
		sessions: make(map[string]*models.LiveSession),
	}
}

func (m *MemStore) AddProduct(sellerID, code string, price int64, stock int) *models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &models.Product{
		ID:            uuid.NewString(),
		SellerID:      sellerID,
		SareeCode:     code,
		Price:         decimal.NewFromInt(price),
		StockQuantity: stock,
	}
	m.products[p.ID] = p
	return p
}

func (m *MemStore) AddSession(sellerID string) *models.LiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.LiveSession{
		ID:           uuid.NewString(),
		SellerID:     sellerID,
		Platforms:    []string{"facebook"},
		Title:        "live",
		StartTime:    time.Now(),
		TotalRevenue: decimal.Zero,
		Status:       models.SessionStatusActive,
	}
	m.sessions[s.ID] = s
	return s
}

func (m *MemStore) GetProductByCode(_ context.Context, sellerID, code string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.SellerID == sellerID && p.SareeCode == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("saree %s: %w", code, models.ErrNotFound)
}

func (m *MemStore) DecrementStock(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.StockQuantity <= 0 {
		return fmt.Errorf("saree %s: %w", id, models.ErrOutOfStock)
	}
	p.StockQuantity--
	return nil
}

func (m *MemStore) RestoreStock(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; ok {
		p.StockQuantity++
	}
	return nil
}

func (m *MemStore) Stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].StockQuantity
}

func (m *MemStore) CreateOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate != nil {
		return m.FailCreate
	}
	if _, ok := m.orders[order.OrderID]; ok {
		return fmt.Errorf("order %s: %w", order.OrderID, models.ErrConflict)
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	cp := *order
	m.orders[order.OrderID] = &cp
	return nil
}

func (m *MemStore) GetOrder(_ context.Context, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (m *MemStore) ListOrders(_ context.Context, sellerID string, status models.OrderStatus) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if o.SellerID == sellerID && (status == "" || o.OrderStatus == status) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) UpdateOrderStatus(_ context.Context, sellerID, orderID string, from, to models.OrderStatus, trackingID *string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.SellerID != sellerID {
		return nil, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	if o.OrderStatus != from {
		return nil, fmt.Errorf("order %s: %w", orderID, models.ErrConflict)
	}
	o.OrderStatus = to
	if trackingID != nil {
		t := *trackingID
		o.TrackingID = &t
	}
	o.UpdatedAt = time.Now()
	cp := *o
	return &cp, nil
}

func (m *MemStore) CreateSession(_ context.Context, s *models.LiveSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.StartTime = time.Now()
	s.TotalRevenue = decimal.Zero
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemStore) GetSession(_ context.Context, id string) (*models.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("live session %s: %w", id, models.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) ListSessions(_ context.Context, sellerID string) ([]models.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.LiveSession{}
	for _, s := range m.sessions {
		if s.SellerID == sellerID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *MemStore) EndSession(_ context.Context, sellerID, id string) (*models.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.SellerID != sellerID {
		return nil, fmt.Errorf("live session %s: %w", id, models.ErrNotFound)
	}
	s.Status = models.SessionStatusEnded
	if s.EndTime == nil {
		now := time.Now()
		s.EndTime = &now
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) RecordOrder(_ context.Context, sessionID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("live session %s: %w", sessionID, models.ErrNotFound)
	}
	s.TotalOrders++
	s.TotalRevenue = s.TotalRevenue.Add(amount)
	return nil
}

func (m *MemStore) CreatePin(_ context.Context, pin *models.ProductPin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pin.ID = uuid.NewString()
	pin.Timestamp = time.Now()
	m.pins = append(m.pins, *pin)
	return nil
}

func (m *MemStore) ListPins(_ context.Context, sessionID string) ([]models.ProductPin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ProductPin{}
	for _, p := range m.pins {
		if p.LiveSessionID == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemStore) CreateComment(_ context.Context, c *models.LiveComment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[c.LiveSessionID]; !ok {
		return fmt.Errorf("live session %s: %w", c.LiveSessionID, models.ErrNotFound)
	}
	c.ID = uuid.NewString()
	c.Timestamp = time.Now()
	m.comments = append(m.comments, *c)
	return nil
}

func (m *MemStore) ListComments(_ context.Context, sessionID string) ([]models.LiveComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.LiveComment{}
	for i := len(m.comments) - 1; i >= 0; i-- {
		if m.comments[i].LiveSessionID == sessionID {
			out = append(out, m.comments[i])
		}
	}
	return out, nil
}

func (m *MemStore) CreateTransaction(_ context.Context, txn *models.PaymentTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transactions {
		if t.ReferenceID == txn.ReferenceID {
			return fmt.Errorf("reference %s: %w", txn.ReferenceID, models.ErrConflict)
		}
	}
	txn.ID = uuid.NewString()
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}
	txn.CreatedAt = time.Now()
	cp := *txn
	m.transactions = append(m.transactions, &cp)
	return nil
}

func (m *MemStore) findTxn(ref string) *models.PaymentTransaction {
	for _, t := range m.transactions {
		if t.ReferenceID == ref {
			return t
		}
	}
	return nil
}

func (m *MemStore) GetTransactionByReference(_ context.Context, ref string) (*models.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.findTxn(ref)
	if t == nil {
		return nil, fmt.Errorf("payment reference %s: %w", ref, models.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *MemStore) GetTransactionByOrder(_ context.Context, orderID string) (*models.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if m.transactions[i].OrderID == orderID {
			cp := *m.transactions[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("payment for order %s: %w", orderID, models.ErrNotFound)
}

func (m *MemStore) ListTransactions(_ context.Context, sellerID string) ([]models.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PaymentTransaction{}
	for _, t := range m.transactions {
		if o, ok := m.orders[t.OrderID]; ok && o.SellerID == sellerID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *MemStore) CompletePayment(_ context.Context, ref string) (*store.PaymentCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.findTxn(ref)
	if t == nil {
		return nil, fmt.Errorf("payment reference %s: %w", ref, models.ErrNotFound)
	}
	o, ok := m.orders[t.OrderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", t.OrderID, models.ErrNotFound)
	}

	already := t.Status == models.TransactionStatusCompleted
	if !already {
		now := time.Now()
		t.Status = models.TransactionStatusCompleted
		t.CompletedAt = &now
	}
	o.PaymentStatus = models.PaymentStatusCompleted
	if o.OrderStatus == models.OrderStatusPending {
		o.OrderStatus = models.OrderStatusConfirmed
	}
	tc, oc := *t, *o
	return &store.PaymentCompletion{
		Transaction:      &tc,
		Order:            &oc,
		AlreadyCompleted: already,
		OrderCancelled:   o.OrderStatus == models.OrderStatusCancelled,
	}, nil
}

func (m *MemStore) CancelTransaction(_ context.Context, ref string) (*models.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.findTxn(ref)
	if t == nil {
		return nil, fmt.Errorf("payment reference %s: %w", ref, models.ErrNotFound)
	}
	if t.Status == models.TransactionStatusCompleted {
		return nil, fmt.Errorf("payment reference %s: %w", ref, models.ErrConflict)
	}
	now := time.Now()
	t.Status = models.TransactionStatusCancelled
	t.CancelledAt = &now
	cp := *t
	return &cp, nil
}

func (m *MemStore) LogMessage(_ context.Context, msg *models.MessageLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *MemStore) ListMessages(_ context.Context, orderID string) ([]models.MessageLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.MessageLog{}
	for _, msg := range m.messages {
		if msg.OrderID == orderID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *MemStore) MessagesFor(orderID, template string) []models.MessageLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MessageLog
	for _, msg := range m.messages {
		if msg.OrderID == orderID && msg.TemplateName == template {
			out = append(out, msg)
		}
	}
	return out
}

