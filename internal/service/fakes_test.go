package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-commerce/config"
	"live-commerce/internal/models"
	"live-commerce/internal/notify"
	"live-commerce/internal/payment"
	"live-commerce/internal/redisclient"
	"live-commerce/internal/store/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// recordingPublisher keeps every event it is handed
type recordingPublisher struct {
	mu        sync.Mutex
	created   []*models.OrderCreatedEvent
	confirmed []*models.PaymentConfirmedEvent
	changed   []*models.OrderStatusChangedEvent
	err       error
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return p.err
}

func (p *recordingPublisher) PublishPaymentConfirmed(_ context.Context, e *models.PaymentConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, e)
	return p.err
}

func (p *recordingPublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, e)
	return p.err
}

// mockSender accepts every message as mocked
type mockSender struct{}

func (mockSender) Send(context.Context, string, string, string) (notify.Receipt, error) {
	return notify.Receipt{Status: models.DeliveryStatusMocked}, nil
}

type failingIssuer struct{}

func (failingIssuer) CreateLink(context.Context, payment.LinkRequest) (*payment.Link, error) {
	return nil, errors.New("gateway down")
}

const (
	testSeller       = "temp-seller-123"
	testSecret       = "whsec_test"
	testLockTTL      = 15 * time.Minute
	testReminderLead = 5 * time.Minute
)

// harness wires every service against the in-memory store and a miniredis lock store
type harness struct {
	store     *storetest.MemStore
	redis     *redisclient.Client
	mr        *miniredis.Miniredis
	lock      *InventoryLock
	publisher *recordingPublisher
	orders    *OrderService
	sessions  *SessionService
	payments  *PaymentService
	followUp  *FollowUpService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	stockPolicy   string
	degraded      bool
	issuer        payment.LinkIssuer
	webhookSecret string
}

func withStockPolicy(p string) harnessOption { return func(c *harnessConfig) { c.stockPolicy = p } }
func withDegradedLock() harnessOption        { return func(c *harnessConfig) { c.degraded = true } }
func withIssuer(i payment.LinkIssuer) harnessOption {
	return func(c *harnessConfig) { c.issuer = i }
}
func withWebhookSecret(secret string) harnessOption {
	return func(c *harnessConfig) { c.webhookSecret = secret }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{
		stockPolicy:   StockPolicyNone,
		issuer:        payment.NewRazorpayClient(config.PaymentConfig{}, "http://localhost:8080"),
		webhookSecret: testSecret,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &harness{store: storetest.NewMemStore(), publisher: &recordingPublisher{}}

	var backend LockBackend
	if !cfg.degraded {
		h.mr = miniredis.RunT(t)
		h.redis = redisclient.Wrap(redis.NewClient(&redis.Options{Addr: h.mr.Addr()}))
		t.Cleanup(func() { _ = h.redis.Close() })
		backend = h.redis
	}
	h.lock = NewInventoryLock(backend, testLockTTL, testReminderLead)

	notifier := notify.NewNotifier(mockSender{}, h.store, decimal.NewFromInt(50), testLockTTL)
	h.orders = NewOrderService(h.store, h.store, h.store, h.lock, h.publisher, notifier, cfg.stockPolicy)
	h.sessions = NewSessionService(h.store, h.store, h.store, nil)
	h.payments = NewPaymentService(h.store, h.store, h.store, cfg.issuer, notifier, h.lock, h.publisher, cfg.webhookSecret, cfg.stockPolicy)
	h.followUp = NewFollowUpService(h.store, h.store, h.payments, notifier)
	return h
}

// runFollowUps drives every published OrderCreated event through the follow-up handler
func (h *harness) runFollowUps(t *testing.T) {
	t.Helper()
	h.publisher.mu.Lock()
	events := append([]*models.OrderCreatedEvent(nil), h.publisher.created...)
	h.publisher.mu.Unlock()
	for _, e := range events {
		require.NoError(t, h.followUp.HandleOrderCreated(context.Background(), e))
	}
}

func orderRequest(code, sessionID string, method models.PaymentMethod) *CreateOrderRequest {
	return &CreateOrderRequest{
		SareeCode:     code,
		LiveSessionID: sessionID,
		CustomerName:  "Priya",
		PhoneNumber:   "+919876543210",
		PaymentMethod: method,
	}
}
