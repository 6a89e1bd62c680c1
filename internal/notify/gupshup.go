package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"live-commerce/config"
	"live-commerce/internal/models"
	"live-commerce/internal/util"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Receipt is the provider's answer to a send
type Receipt struct {
	Status    string
	MessageID string
}

// Sender delivers a rendered message to a customer phone number
type Sender interface {
	Send(ctx context.Context, phone, templateName, text string) (Receipt, error)
}

// GupshupSender posts WhatsApp text messages to the Gupshup API.
// Without an API key it runs in mock mode and only logs.
type GupshupSender struct {
	cfg        config.WhatsAppConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewGupshupSender(cfg config.WhatsAppConfig) *GupshupSender {
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 10
	}
	s := &GupshupSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(perSec), int(perSec)+1),
		logger:     util.Component("gupshup"),
	}
	if s.Mock() {
		s.logger.Info("WhatsApp sender running in mock mode")
	}
	return s
}

// Mock reports whether messages are only logged
func (s *GupshupSender) Mock() bool {
	return s.cfg.APIKey == ""
}

func (s *GupshupSender) Send(ctx context.Context, phone, templateName, text string) (Receipt, error) {
	if s.Mock() {
		s.logger.Info("[MOCK] WhatsApp message",
			zap.String("to", phone),
			zap.String("template", templateName),
			zap.Int("length", len(text)))
		return Receipt{Status: models.DeliveryStatusMocked}, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return Receipt{}, fmt.Errorf("rate limiter: %w", err)
	}

	form := url.Values{}
	form.Set("channel", "whatsapp")
	form.Set("source", s.cfg.PhoneNumber)
	form.Set("destination", FormatPhone(phone))
	form.Set("message", text)
	form.Set("src.name", s.cfg.AppName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(s.cfg.BaseURL, "/")+"/msg", strings.NewReader(form.Encode()))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("apikey", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("gupshup request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return Receipt{}, fmt.Errorf("gupshup returned %d: %s: %w", resp.StatusCode, string(body), models.ErrUnavailable)
	}

	var out struct {
		Status    string `json:"status"`
		MessageID string `json:"messageId"`
	}
	_ = json.Unmarshal(body, &out)

	return Receipt{Status: models.DeliveryStatusSent, MessageID: out.MessageID}, nil
}

// FormatPhone strips separators and prefixes the Indian country code when missing
func FormatPhone(phone string) string {
	formatted := strings.NewReplacer("+", "", " ", "", "-", "").Replace(phone)
	if !strings.HasPrefix(formatted, "91") {
		formatted = "91" + formatted
	}
	return formatted
}
