package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"live-commerce/config"
	"live-commerce/internal/models"
	"live-commerce/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RazorpayClient issues payment links through the Razorpay Payment Links API.
// Without a key it mints mock links that point at the demo payment endpoints;
// a provider error falls back to the same mock link.
type RazorpayClient struct {
	cfg           config.PaymentConfig
	publicBaseURL string
	httpClient    *http.Client
	logger        *zap.Logger
}

func NewRazorpayClient(cfg config.PaymentConfig, publicBaseURL string) *RazorpayClient {
	c := &RazorpayClient{
		cfg:           cfg,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		logger:        util.Component("razorpay"),
	}
	if c.Mock() {
		c.logger.Info("Payment issuer running in mock mode")
	}
	return c
}

// Mock reports whether no gateway credentials are configured
func (c *RazorpayClient) Mock() bool {
	return c.cfg.RazorpayKeyID == ""
}

type linkCustomer struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type linkNotify struct {
	SMS      bool `json:"sms"`
	WhatsApp bool `json:"whatsapp"`
}

type createLinkBody struct {
	Amount         int64        `json:"amount"`
	Currency       string       `json:"currency"`
	Description    string       `json:"description"`
	Customer       linkCustomer `json:"customer"`
	Notify         linkNotify   `json:"notify"`
	ReminderEnable bool         `json:"reminder_enable"`
	CallbackURL    string       `json:"callback_url,omitempty"`
	CallbackMethod string       `json:"callback_method,omitempty"`
	ReferenceID    string       `json:"reference_id"`
	ExpireBy       int64        `json:"expire_by"`
}

type createLinkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
}

func (c *RazorpayClient) CreateLink(ctx context.Context, req LinkRequest) (*Link, error) {
	if c.Mock() {
		c.logger.Info("[MOCK] Creating payment link",
			zap.String("order_id", req.OrderID),
			zap.String("amount", req.Amount.String()))
		util.PaymentLinksTotal.WithLabelValues("mock").Inc()
		return c.mockLink(), nil
	}

	link, err := c.createLink(ctx, req)
	if err != nil {
		c.logger.Error("Failed to create Razorpay payment link, falling back to mock",
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		util.PaymentLinksTotal.WithLabelValues("fallback").Inc()
		return c.mockLink(), nil
	}

	c.logger.Info("Razorpay payment link created",
		zap.String("order_id", req.OrderID),
		zap.String("reference_id", link.ReferenceID))
	util.PaymentLinksTotal.WithLabelValues("live").Inc()
	return link, nil
}

func (c *RazorpayClient) createLink(ctx context.Context, req LinkRequest) (*Link, error) {
	body := createLinkBody{
		Amount:         req.Amount.Shift(2).Round(0).IntPart(),
		Currency:       "INR",
		Description:    req.Description,
		Customer:       linkCustomer{Name: req.CustomerName, Contact: req.CustomerPhone},
		Notify:         linkNotify{SMS: true, WhatsApp: false},
		ReminderEnable: true,
		ReferenceID:    req.OrderID,
		ExpireBy:       req.ExpireBy.Unix(),
	}
	if c.cfg.CallbackURL != "" {
		body.CallbackURL = c.cfg.CallbackURL
		body.CallbackMethod = "get"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.RazorpayBaseURL, "/")+"/payment_links", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(c.cfg.RazorpayKeyID, c.cfg.RazorpayKeySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("razorpay request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("razorpay returned %d: %s: %w", resp.StatusCode, string(raw), models.ErrUnavailable)
	}

	var out createLinkResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode razorpay response: %w", err)
	}
	if out.ID == "" || out.ShortURL == "" {
		return nil, fmt.Errorf("razorpay response missing link: %w", models.ErrUnavailable)
	}

	return &Link{URL: out.ShortURL, ReferenceID: out.ID, Gateway: GatewayRazorpay}, nil
}

func (c *RazorpayClient) mockLink() *Link {
	mockID := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return &Link{
		URL:         fmt.Sprintf("%s/api/payments/demo/%s", c.publicBaseURL, mockID),
		ReferenceID: MockReferencePrefix + mockID,
		Gateway:     GatewayRazorpayMock,
		Mock:        true,
	}
}
