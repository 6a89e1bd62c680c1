package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	GatewayRazorpay     = "razorpay"
	GatewayRazorpayMock = "razorpay_mock"

	// MockReferencePrefix marks reference ids minted by the offline issuer
	MockReferencePrefix = "pay_mock_"
)

// LinkRequest describes the charge a payment link collects
type LinkRequest struct {
	OrderID       string
	Amount        decimal.Decimal
	CustomerName  string
	CustomerPhone string
	Description   string
	ExpireBy      time.Time
}

// Link is an issued payment link. Mock links are not live charges.
type Link struct {
	URL         string
	ReferenceID string
	Gateway     string
	Mock        bool
}

// LinkIssuer creates redirectable payment links
type LinkIssuer interface {
	CreateLink(ctx context.Context, req LinkRequest) (*Link, error)
}

// Sign returns the hex HMAC-SHA256 of body under secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares the expected signature in constant time
func VerifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// MockPaymentID strips the mock prefix from a reference id
func MockPaymentID(referenceID string) (string, bool) {
	if !strings.HasPrefix(referenceID, MockReferencePrefix) {
		return "", false
	}
	return strings.TrimPrefix(referenceID, MockReferencePrefix), true
}
