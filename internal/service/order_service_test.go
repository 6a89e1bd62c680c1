package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"live-commerce/internal/models"
	"live-commerce/internal/notify"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestGenerateOrderID(t *testing.T) {
	now := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	id := GenerateOrderID(now)

	assert.Regexp(t, regexp.MustCompile(`^ORD-20240309-[0-9A-F]{8}$`), id)
	assert.NotEqual(t, id, GenerateOrderID(now))
}

func TestCreateOrderCOD(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddProduct(testSeller, "SC-001", 1200, 1)
	session := h.store.AddSession(testSeller)

	order, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodCOD))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, order.CreatedAt.Add(testLockTTL), order.ExpiresAt)
	require.Len(t, h.publisher.created, 1)

	h.runFollowUps(t)

	_, err = h.store.GetTransactionByOrder(ctx, order.OrderID)
	assert.ErrorIs(t, err, models.ErrNotFound, "cash orders never request a payment link")

	msgs := h.store.MessagesFor(order.OrderID, notify.TemplateCODConfirmation)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "SC-001")
	assert.Contains(t, msgs[0].Content, "₹1,250")

	got, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalOrders)
	assert.True(t, decimal.NewFromInt(1200).Equal(got.TotalRevenue))
}

func TestCreateOrderUPIIssuesLink(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddProduct(testSeller, "SC-002", 2500, 2)
	session := h.store.AddSession(testSeller)

	order, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-002", session.ID, models.PaymentMethodUPI))
	require.NoError(t, err)

	h.runFollowUps(t)

	txn, err := h.store.GetTransactionByOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.True(t, txn.Mock)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)

	msgs := h.store.MessagesFor(order.OrderID, notify.TemplateOrderInterest)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, txn.PaymentLink)
	assert.Contains(t, msgs[0].Content, "₹2,500")
}

func TestCreateOrderConflictWithExistingLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.store.AddProduct(testSeller, "SC-001", 1200, 5)
	session := h.store.AddSession(testSeller)

	_, err := h.redis.AcquireLock(ctx, product.ID, "ORD-20240101-OTHER001", testLockTTL, time.Time{}, 5)
	require.NoError(t, err)

	_, err = h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodUPI))
	assert.ErrorIs(t, err, models.ErrConflict)

	orders, err := h.store.ListOrders(ctx, testSeller, "")
	require.NoError(t, err)
	assert.Empty(t, orders)

	got, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Zero(t, got.TotalOrders)
	assert.True(t, got.TotalRevenue.IsZero())
	assert.Empty(t, h.publisher.created)
}

func TestCreateOrderAfterLockExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddProduct(testSeller, "SC-001", 1200, 5)
	session := h.store.AddSession(testSeller)

	_, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodUPI))
	require.NoError(t, err)

	_, err = h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodUPI))
	require.ErrorIs(t, err, models.ErrConflict)

	h.mr.FastForward(testLockTTL + time.Second)

	_, err = h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodUPI))
	assert.NoError(t, err)
}

func TestCreateOrderConcurrentSingleWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddProduct(testSeller, "SC-HOT", 999, 1)
	session := h.store.AddSession(testSeller)

	const buyers = 25
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-HOT", session.ID, models.PaymentMethodCard))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, models.ErrConflict)
	}
	assert.Equal(t, 1, wins)

	got, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalOrders)
}

func TestCreateOrderRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddProduct(testSeller, "SC-EMPTY", 800, 0)
	h.store.AddProduct(testSeller, "SC-OK", 800, 3)
	session := h.store.AddSession(testSeller)
	otherSession := h.store.AddSession("another-seller")

	tests := []struct {
		name string
		req  *CreateOrderRequest
		want error
	}{
		{"unknown saree", orderRequest("SC-404", session.ID, models.PaymentMethodUPI), models.ErrNotFound},
		{"out of stock", orderRequest("SC-EMPTY", session.ID, models.PaymentMethodUPI), models.ErrOutOfStock},
		{"unknown session", orderRequest("SC-OK", "missing", models.PaymentMethodUPI), models.ErrNotFound},
		{"foreign session", orderRequest("SC-OK", otherSession.ID, models.PaymentMethodUPI), models.ErrNotFound},
		{"bad payment method", orderRequest("SC-OK", session.ID, "bitcoin"), models.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.orders.CreateOrder(ctx, testSeller, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := h.sessions.End(ctx, testSeller, session.ID)
	require.NoError(t, err)
	_, err = h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-OK", session.ID, models.PaymentMethodUPI))
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestCreateOrderReleasesLockWhenInsertFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.store.AddProduct(testSeller, "SC-001", 1200, 1)
	session := h.store.AddSession(testSeller)
	h.store.FailCreate = errors.New("connection reset")

	_, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodUPI))
	require.Error(t, err)

	_, found := h.lock.Peek(ctx, product.ID)
	assert.False(t, found)
	assert.Empty(t, h.publisher.created)

	got, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Zero(t, got.TotalOrders)
}

func TestCreateOrderDegradedLock(t *testing.T) {
	h := newHarness(t, withDegradedLock())
	ctx := context.Background()
	h.store.AddProduct(testSeller, "SC-001", 1200, 1)
	session := h.store.AddSession(testSeller)

	_, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodUPI))
	require.NoError(t, err)
	_, err = h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodUPI))
	require.NoError(t, err, "without a lock store orders are accepted unguarded")
}

func TestCreateOrderLockStoreDown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddProduct(testSeller, "SC-001", 1200, 1)
	session := h.store.AddSession(testSeller)
	h.mr.Close()

	order, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodCOD))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)
}

func TestStockPolicyOnOrder(t *testing.T) {
	h := newHarness(t, withStockPolicy(StockPolicyOnOrder))
	ctx := context.Background()
	product := h.store.AddProduct(testSeller, "SC-001", 1200, 1)
	session := h.store.AddSession(testSeller)

	_, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodCOD))
	require.NoError(t, err)
	assert.Equal(t, 0, h.store.Stock(product.ID))
}

func TestStockPolicyNoneKeepsStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.store.AddProduct(testSeller, "SC-001", 1200, 1)
	session := h.store.AddSession(testSeller)

	_, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodCOD))
	require.NoError(t, err)
	assert.Equal(t, 1, h.store.Stock(product.ID))
}

func TestUpdateStatusTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := h.store.AddProduct(testSeller, "SC-001", 1200, 1)
	session := h.store.AddSession(testSeller)

	order, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodCOD))
	require.NoError(t, err)

	updated, err := h.orders.UpdateStatus(ctx, testSeller, order.OrderID, models.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, updated.OrderStatus)

	_, err = h.orders.UpdateStatus(ctx, testSeller, order.OrderID, models.OrderStatusPending)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = h.orders.UpdateStatus(ctx, testSeller, order.OrderID, "lost")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = h.orders.UpdateStatus(ctx, "another-seller", order.OrderID, models.OrderStatusPaid)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = h.orders.UpdateStatus(ctx, testSeller, "ORD-20240101-NOPE0000", models.OrderStatusPaid)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, found := h.lock.Peek(ctx, product.ID)
	require.True(t, found)

	cancelled, err := h.orders.UpdateStatus(ctx, testSeller, order.OrderID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.OrderStatus)

	_, found = h.lock.Peek(ctx, product.ID)
	assert.False(t, found, "cancellation frees the saree")

	_, err = h.orders.UpdateStatus(ctx, testSeller, order.OrderID, models.OrderStatusShipped)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	require.Len(t, h.publisher.changed, 2)
	assert.Equal(t, models.OrderStatusCancelled, h.publisher.changed[1].To)
}

func TestUpdateStatusRejectsSkips(t *testing.T) {
	tests := []struct {
		name string
		path []models.OrderStatus
		to   models.OrderStatus
	}{
		{"pending to paid", nil, models.OrderStatusPaid},
		{"pending to shipped", nil, models.OrderStatusShipped},
		{"pending to delivered", nil, models.OrderStatusDelivered},
		{"confirmed to shipped", []models.OrderStatus{models.OrderStatusConfirmed}, models.OrderStatusShipped},
		{"confirmed to delivered", []models.OrderStatus{models.OrderStatusConfirmed}, models.OrderStatusDelivered},
		{"paid to delivered", []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusPaid}, models.OrderStatusDelivered},
		{"paid back to confirmed", []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusPaid}, models.OrderStatusConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			product := h.store.AddProduct(testSeller, "SC-001", 1200, 1)
			session := h.store.AddSession(testSeller)

			order, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodUPI))
			require.NoError(t, err)
			for _, step := range tt.path {
				_, err = h.orders.UpdateStatus(ctx, testSeller, order.OrderID, step)
				require.NoError(t, err)
			}

			_, err = h.orders.UpdateStatus(ctx, testSeller, order.OrderID, tt.to)
			assert.ErrorIs(t, err, models.ErrInvalidTransition)

			stored, err := h.orders.GetOrder(ctx, testSeller, order.OrderID)
			require.NoError(t, err)
			assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
			_, found := h.lock.Peek(ctx, product.ID)
			assert.True(t, found, "a rejected move keeps the reservation")
		})
	}
}

func TestDispatchSendsUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddProduct(testSeller, "SC-001", 1200, 1)
	session := h.store.AddSession(testSeller)

	order, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodCOD))
	require.NoError(t, err)

	_, err = h.orders.Dispatch(ctx, testSeller, order.OrderID, "  ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = h.orders.Dispatch(ctx, testSeller, order.OrderID, "TRK-778899")
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "an unconfirmed order cannot ship")

	for _, status := range []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusPaid} {
		_, err = h.orders.UpdateStatus(ctx, testSeller, order.OrderID, status)
		require.NoError(t, err)
	}

	shipped, err := h.orders.Dispatch(ctx, testSeller, order.OrderID, "TRK-778899")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, shipped.OrderStatus)
	require.NotNil(t, shipped.TrackingID)
	assert.Equal(t, "TRK-778899", *shipped.TrackingID)

	msgs := h.store.MessagesFor(order.OrderID, notify.TemplateDispatchUpdate)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "TRK-778899")
}

func TestListOrdersFiltersByStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddProduct(testSeller, "SC-001", 1200, 1)
	h.store.AddProduct(testSeller, "SC-002", 1500, 1)
	session := h.store.AddSession(testSeller)

	first, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodCOD))
	require.NoError(t, err)
	_, err = h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-002", session.ID, models.PaymentMethodCOD))
	require.NoError(t, err)
	_, err = h.orders.UpdateStatus(ctx, testSeller, first.OrderID, models.OrderStatusConfirmed)
	require.NoError(t, err)

	all, err := h.orders.ListOrders(ctx, testSeller, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	confirmed, err := h.orders.ListOrders(ctx, testSeller, models.OrderStatusConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, first.OrderID, confirmed[0].OrderID)

	_, err = h.orders.ListOrders(ctx, testSeller, "archived")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestReservationRemaining(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddProduct(testSeller, "SC-001", 1200, 1)
	session := h.store.AddSession(testSeller)

	order, err := h.orders.CreateOrder(ctx, testSeller, orderRequest("SC-001", session.ID, models.PaymentMethodUPI))
	require.NoError(t, err)

	remaining := h.orders.ReservationRemaining(ctx, order)
	assert.InDelta(t, testLockTTL.Seconds(), remaining.Seconds(), 2)

	h.mr.FastForward(testLockTTL)
	assert.Zero(t, h.orders.ReservationRemaining(ctx, order))
}

func TestSessionAccumulationProperty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		amounts := rapid.SliceOfN(rapid.Int64Range(1, 200000), 1, 15).Draw(rt, "amounts")
		session := h.store.AddSession(testSeller)

		codes := make([]string, len(amounts))
		want := decimal.Zero
		for i, amount := range amounts {
			codes[i] = fmt.Sprintf("P-%s-%d", session.ID[:8], i)
			h.store.AddProduct(testSeller, codes[i], amount, 1)
			want = want.Add(decimal.NewFromInt(amount))
		}

		var wg sync.WaitGroup
		errs := make([]error, len(codes))
		for i := range codes {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = h.orders.CreateOrder(ctx, testSeller, orderRequest(codes[i], session.ID, models.PaymentMethodCOD))
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(rt, err)
		}

		got, err := h.store.GetSession(ctx, session.ID)
		require.NoError(rt, err)
		if got.TotalOrders != len(amounts) {
			rt.Fatalf("total_orders = %d, want %d", got.TotalOrders, len(amounts))
		}
		if !got.TotalRevenue.Equal(want) {
			rt.Fatalf("total_revenue = %s, want %s", got.TotalRevenue, want)
		}
	})
}
