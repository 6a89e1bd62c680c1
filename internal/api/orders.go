package api

import (
	"errors"
	"net/http"

	"live-commerce/internal/models"
	"live-commerce/internal/service"

	"github.com/gin-gonic/gin"
)

// orderResponse adds the time left on the saree reservation
type orderResponse struct {
	*models.Order
	ReservationSeconds int64 `json:"reservation_seconds"`
}

type updateStatusRequest struct {
	OrderStatus models.OrderStatus `json:"order_status"`
}

type dispatchRequest struct {
	TrackingID string `json:"tracking_id" binding:"required"`
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), sellerID(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, orderResponse{
		Order:              order,
		ReservationSeconds: int64(h.orders.ReservationRemaining(c.Request.Context(), order).Seconds()),
	})
}

// listOrders returns the seller's orders, optionally filtered by ?status=
func (h *Handler) listOrders(c *gin.Context) {
	status := models.OrderStatus(c.Query("status"))
	orders, err := h.orders.ListOrders(c.Request.Context(), sellerID(c), status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getOrder handles get order by order id
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), sellerID(c), c.Param("order_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, orderResponse{
		Order:              order,
		ReservationSeconds: int64(h.orders.ReservationRemaining(c.Request.Context(), order).Seconds()),
	})
}

// updateOrderStatus accepts the status as JSON body or ?order_status=
func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if req.OrderStatus == "" {
		req.OrderStatus = models.OrderStatus(c.Query("order_status"))
	}
	if req.OrderStatus == "" {
		badRequest(c, errors.New("order_status is required"))
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), sellerID(c), c.Param("order_id"), req.OrderStatus)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated successfully",
		"order":   order,
	})
}

// dispatchOrder marks the order shipped and notifies the customer
func (h *Handler) dispatchOrder(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.orders.Dispatch(c.Request.Context(), sellerID(c), c.Param("order_id"), req.TrackingID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// getOrderMessages lists the notifications sent for an order
func (h *Handler) getOrderMessages(c *gin.Context) {
	orderID := c.Param("order_id")
	if _, err := h.orders.GetOrder(c.Request.Context(), sellerID(c), orderID); err != nil {
		h.writeError(c, err)
		return
	}

	messages, err := h.messages.ListMessages(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// getOrderPayment returns the latest payment transaction for an order
func (h *Handler) getOrderPayment(c *gin.Context) {
	orderID := c.Param("order_id")
	txn, err := h.payments.GetOrderPayment(c.Request.Context(), sellerID(c), orderID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			if _, oerr := h.orders.GetOrder(c.Request.Context(), sellerID(c), orderID); oerr == nil {
				c.JSON(http.StatusOK, gin.H{"status": "no_payment", "order_id": orderID})
				return
			}
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}
