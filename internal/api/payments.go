package api

import (
	"errors"
	"net/http"

	"live-commerce/internal/models"
	"live-commerce/internal/notify"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const signatureHeader = "X-Razorpay-Signature"

func (h *Handler) createPaymentLink(c *gin.Context) {
	txn, err := h.payments.CreatePaymentLink(c.Request.Context(), sellerID(c), c.Param("order_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_link": txn.PaymentLink,
		"payment_id":   txn.ReferenceID,
		"mock":         txn.Mock,
	})
}

func (h *Handler) listTransactions(c *gin.Context) {
	txns, err := h.payments.ListTransactions(c.Request.Context(), sellerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

// razorpayWebhook verifies the raw body before any parsing. Anything other
// than a bad signature or payload is answered 500 so the gateway retries.
func (h *Handler) razorpayWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}

	err = h.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader(signatureHeader))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
	}
}

func (h *Handler) demoPayment(c *gin.Context) {
	txn, order, err := h.payments.DemoDetails(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment":        txn,
		"order":          order,
		"amount_display": notify.Rupees(txn.Amount),
	})
}

func (h *Handler) completeDemoPayment(c *gin.Context) {
	completion, err := h.payments.CompleteDemo(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "completed",
		"order_id":          completion.Order.OrderID,
		"order_status":      completion.Order.OrderStatus,
		"payment_status":    completion.Order.PaymentStatus,
		"already_completed": completion.AlreadyCompleted,
		"order_cancelled":   completion.OrderCancelled,
	})
}

func (h *Handler) cancelDemoPayment(c *gin.Context) {
	txn, err := h.payments.CancelDemo(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "cancelled",
		"order_id": txn.OrderID,
	})
}
