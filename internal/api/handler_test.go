package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"live-commerce/config"
	"live-commerce/internal/models"
	"live-commerce/internal/notify"
	"live-commerce/internal/payment"
	"live-commerce/internal/redisclient"
	"live-commerce/internal/service"
	"live-commerce/internal/store/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSeller = "temp-seller-123"
	testSecret = "whsec_api"
)

type nopPublisher struct{}

func (nopPublisher) PublishOrderCreated(context.Context, *models.OrderCreatedEvent) error {
	return nil
}

func (nopPublisher) PublishPaymentConfirmed(context.Context, *models.PaymentConfirmedEvent) error {
	return nil
}

func (nopPublisher) PublishOrderStatusChanged(context.Context, *models.OrderStatusChangedEvent) error {
	return nil
}

type mockSender struct{}

func (mockSender) Send(context.Context, string, string, string) (notify.Receipt, error) {
	return notify.Receipt{Status: models.DeliveryStatusMocked}, nil
}

type testServer struct {
	router   *gin.Engine
	store    *storetest.MemStore
	mr       *miniredis.Miniredis
	followUp *service.FollowUpService
	handler  *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithSecret(t, testSecret)
}

func newTestServerWithSecret(t *testing.T, webhookSecret string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := storetest.NewMemStore()
	mr := miniredis.RunT(t)
	rdb := redisclient.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rdb.Close() })

	lock := service.NewInventoryLock(rdb, 15*time.Minute, 5*time.Minute)
	notifier := notify.NewNotifier(mockSender{}, mem, decimal.NewFromInt(50), 15*time.Minute)
	issuer := payment.NewRazorpayClient(config.PaymentConfig{}, "http://localhost:8080")

	orders := service.NewOrderService(mem, mem, mem, lock, nopPublisher{}, notifier, service.StockPolicyNone)
	sessions := service.NewSessionService(mem, mem, mem, nil)
	payments := service.NewPaymentService(mem, mem, mem, issuer, notifier, lock, nopPublisher{}, webhookSecret, service.StockPolicyNone)

	handler := NewHandler(orders, sessions, payments, mem, nil, testSeller)
	handler.AddReadinessCheck("redis", rdb.Ping)
	handler.AddReadinessCheck("inventory_lock", LockCheck(lock))

	router := gin.New()
	handler.SetupRoutes(router, []string{"*"})

	return &testServer{
		router:   router,
		store:    mem,
		mr:       mr,
		followUp: service.NewFollowUpService(mem, mem, payments, notifier),
		handler:  handler,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) createOrder(t *testing.T, code, sessionID string, method models.PaymentMethod) *models.Order {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/orders", gin.H{
		"saree_code":      code,
		"live_session_id": sessionID,
		"customer_name":   "Priya",
		"phone_number":    "+919876543210",
		"payment_method":  method,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[models.Order](t, w)

	event := models.NewOrderCreatedEvent("evt-"+order.OrderID, &order)
	require.NoError(t, s.followUp.HandleOrderCreated(context.Background(), event))
	return &order
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "ready", body["status"])

	s.mr.Close()
	w = s.do(t, http.MethodGet, "/ready", nil)
	body = decode[map[string]interface{}](t, w)
	assert.Equal(t, "degraded", body["status"])
}

func TestLockCheck(t *testing.T) {
	degraded := service.NewInventoryLock(nil, 15*time.Minute, 5*time.Minute)
	assert.Error(t, LockCheck(degraded)(context.Background()))

	mr := miniredis.RunT(t)
	rdb := redisclient.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rdb.Close() })
	assert.NoError(t, LockCheck(service.NewInventoryLock(rdb, 15*time.Minute, 5*time.Minute))(context.Background()))
}

func TestCreateOrderEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.store.AddProduct(testSeller, "SC-001", 1200, 1)
	session := s.store.AddSession(testSeller)

	w := s.do(t, http.MethodPost, "/api/orders", gin.H{
		"saree_code":      "SC-001",
		"live_session_id": session.ID,
		"customer_name":   "Priya",
		"phone_number":    "+919876543210",
		"payment_method":  "cod",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "pending", body["order_status"])
	assert.Equal(t, "pending", body["payment_status"])
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{8}$`, body["order_id"])
	assert.InDelta(t, 900, body["reservation_seconds"], 2)

	w = s.do(t, http.MethodPost, "/api/orders", gin.H{
		"saree_code":      "SC-001",
		"live_session_id": session.ID,
		"customer_name":   "Ravi",
		"phone_number":    "+919812345678",
		"payment_method":  "upi",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/orders", gin.H{"saree_code": "SC-001"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/orders", gin.H{
		"saree_code":      "SC-404",
		"live_session_id": session.ID,
		"customer_name":   "Ravi",
		"phone_number":    "+919812345678",
		"payment_method":  "upi",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSellerHeaderScopesOrders(t *testing.T) {
	s := newTestServer(t)
	s.store.AddProduct(testSeller, "SC-001", 1200, 1)
	session := s.store.AddSession(testSeller)
	order := s.createOrder(t, "SC-001", session.ID, models.PaymentMethodCOD)

	w := s.do(t, http.MethodGet, "/api/orders/"+order.OrderID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/orders/"+order.OrderID, nil, sellerHeader, "another-seller")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/orders", nil, sellerHeader, "another-seller")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Order](t, w))
}

func TestOrderStatusEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.store.AddProduct(testSeller, "SC-001", 1200, 1)
	session := s.store.AddSession(testSeller)
	order := s.createOrder(t, "SC-001", session.ID, models.PaymentMethodCOD)
	base := "/api/orders/" + order.OrderID

	w := s.do(t, http.MethodPut, base+"/status", gin.H{"order_status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPut, base+"/status?order_status=pending", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, base+"/status", gin.H{"order_status": "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/orders/ORD-20240101-NOPE0000/status", gin.H{"order_status": "paid"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, base+"/dispatch", gin.H{"tracking_id": "TRK-1"})
	assert.Equal(t, http.StatusConflict, w.Code, "confirmed orders are paid before they ship")

	w = s.do(t, http.MethodPut, base+"/status", gin.H{"order_status": "paid"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, base+"/dispatch", gin.H{"tracking_id": "TRK-1"})
	require.Equal(t, http.StatusOK, w.Code)
	shipped := decode[models.Order](t, w)
	assert.Equal(t, models.OrderStatusShipped, shipped.OrderStatus)

	w = s.do(t, http.MethodGet, "/api/orders?status=shipped", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Order](t, w), 1)

	w = s.do(t, http.MethodGet, base+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	messages := decode[[]models.MessageLog](t, w)
	templates := make([]string, 0, len(messages))
	for _, m := range messages {
		templates = append(templates, m.TemplateName)
	}
	assert.ElementsMatch(t, []string{notify.TemplateCODConfirmation, notify.TemplateDispatchUpdate}, templates)

	w = s.do(t, http.MethodGet, base+"/payment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no_payment", decode[map[string]interface{}](t, w)["status"])
}

func TestWebhookEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.store.AddProduct(testSeller, "SC-002", 2400, 1)
	session := s.store.AddSession(testSeller)
	order := s.createOrder(t, "SC-002", session.ID, models.PaymentMethodUPI)

	txn, err := s.store.GetTransactionByOrder(context.Background(), order.OrderID)
	require.NoError(t, err)

	body := []byte(`{"event":"payment_link.paid","payload":{"payment_link":{"entity":{"id":"` + txn.ReferenceID + `"}}}}`)

	w := s.do(t, http.MethodPost, "/api/payments/webhook/razorpay", body, signatureHeader, "deadbeef")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	got, err := s.store.GetOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)

	w = s.do(t, http.MethodPost, "/api/payments/webhook/razorpay", body, signatureHeader, payment.Sign(testSecret, body))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success"}`, w.Body.String())

	got, err = s.store.GetOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, got.OrderStatus)
	assert.Equal(t, models.PaymentStatusCompleted, got.PaymentStatus)

	w = s.do(t, http.MethodGet, "/api/orders/"+order.OrderID+"/payment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", decode[map[string]interface{}](t, w)["status"])
}

func TestWebhookEndpointWithoutSecret(t *testing.T) {
	s := newTestServerWithSecret(t, "")
	s.store.AddProduct(testSeller, "SC-003", 2400, 1)
	session := s.store.AddSession(testSeller)
	order := s.createOrder(t, "SC-003", session.ID, models.PaymentMethodUPI)

	txn, err := s.store.GetTransactionByOrder(context.Background(), order.OrderID)
	require.NoError(t, err)

	body := []byte(`{"event":"payment_link.paid","payload":{"payment_link":{"entity":{"id":"` + txn.ReferenceID + `"}}}}`)

	w := s.do(t, http.MethodPost, "/api/payments/webhook/razorpay", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"success"}`, w.Body.String())

	got, err := s.store.GetOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, got.OrderStatus)
	assert.Equal(t, models.PaymentStatusCompleted, got.PaymentStatus)

	w = s.do(t, http.MethodPost, "/api/payments/webhook/razorpay", body, signatureHeader, "garbage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.store.MessagesFor(order.OrderID, notify.TemplatePaymentConfirmation), 1)
}

func TestDemoPaymentEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.store.AddProduct(testSeller, "SC-003", 1999, 1)
	session := s.store.AddSession(testSeller)
	order := s.createOrder(t, "SC-003", session.ID, models.PaymentMethodCard)

	txn, err := s.store.GetTransactionByOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	paymentID, ok := payment.MockPaymentID(txn.ReferenceID)
	require.True(t, ok)
	demo := "/api/payments/demo/" + paymentID

	w := s.do(t, http.MethodGet, demo, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "₹1,999", decode[map[string]interface{}](t, w)["amount_display"])

	w = s.do(t, http.MethodPost, demo+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, demo+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "confirmed", body["order_status"])
	assert.Equal(t, false, body["already_completed"])

	w = s.do(t, http.MethodPost, demo+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]interface{}](t, w)["already_completed"])

	w = s.do(t, http.MethodPost, demo+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/payments/demo/unknown/complete", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/payments/create-payment-link/"+order.OrderID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/payments/transactions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.PaymentTransaction](t, w), 1)
}

func TestSessionEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.store.AddProduct(testSeller, "SC-004", 4500, 3)

	w := s.do(t, http.MethodPost, "/api/live/sessions", gin.H{
		"title":     "Banarasi evening",
		"platforms": []string{"youtube", "instagram"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	session := decode[models.LiveSession](t, w)
	base := "/api/live/sessions/" + session.ID

	w = s.do(t, http.MethodPost, "/api/live/sessions", gin.H{"title": "x", "platforms": []string{"myspace"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, base+"/pin", gin.H{"saree_code": "SC-004"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, base+"/pins", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ProductPin](t, w), 1)

	s.createOrder(t, "SC-004", session.ID, models.PaymentMethodCOD)

	w = s.do(t, http.MethodPost, base+"/end", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	ended := decode[models.LiveSession](t, w)
	assert.Equal(t, models.SessionStatusEnded, ended.Status)
	assert.Equal(t, 1, ended.TotalOrders)
	assert.True(t, decimal.NewFromInt(4500).Equal(ended.TotalRevenue))

	w = s.do(t, http.MethodPost, base+"/pin", gin.H{"saree_code": "SC-004"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, base+"/ws", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "no hub configured")

	w = s.do(t, http.MethodGet, "/api/live/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.LiveSession](t, w), 1)
}

func TestCommentEndpoints(t *testing.T) {
	s := newTestServer(t)
	session := s.store.AddSession(testSeller)
	base := "/api/live/sessions/" + session.ID + "/comments"

	w := s.do(t, http.MethodPost, base, gin.H{
		"platform":     "facebook",
		"username":     "meera",
		"user_id":      "fb-1001",
		"comment_text": "BUY SC-007",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	comment := decode[models.LiveComment](t, w)
	require.NotNil(t, comment.SareeCode)
	assert.Equal(t, "SC-007", *comment.SareeCode)

	w = s.do(t, http.MethodPost, base, gin.H{"username": "meera"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, base, gin.H{"username": "x", "comment_text": "hi"}, sellerHeader, "another-seller")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	comments := decode[[]models.LiveComment](t, w)
	require.Len(t, comments, 1)
	assert.Equal(t, "meera", comments[0].Username)

	w = s.do(t, http.MethodGet, base, nil, sellerHeader, "another-seller")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	s := newTestServer(t)
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	s.handler.writeError(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, strings.Contains(w.Body.String(), "pq:"))
}
