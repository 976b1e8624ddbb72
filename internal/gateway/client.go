package gateway

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/courtside/backend/internal/models"
)

// API is the gateway surface the payment service depends on. The production
// implementation talks to Razorpay; tests substitute a fake. None of the
// operations retry internally: idempotency is the caller's responsibility via
// unique receipts.
type API interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*models.OrderReference, error)
	FetchPayment(ctx context.Context, paymentID string) (*models.PaymentRecord, error)
	CapturePayment(ctx context.Context, paymentID string, amount int64, currency string) (*models.PaymentRecord, error)
}

// Client wraps the Razorpay SDK behind the API interface.
type Client struct {
	rzp   *razorpay.Client
	keyID string
}

// NewClient creates a Razorpay-backed gateway client.
func NewClient(keyID, keySecret string) *Client {
	return &Client{rzp: razorpay.NewClient(keyID, keySecret), keyID: keyID}
}

// KeyID returns the public key the payment widget needs to open checkout.
func (c *Client) KeyID() string { return c.keyID }

// CreateOrder creates a gateway order for the given amount (minor units).
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*models.OrderReference, error) {
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		n := make(map[string]interface{}, len(notes))
		for k, v := range notes {
			n[k] = v
		}
		data["notes"] = n
	}
	body, err := c.rzp.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway create order: %w", err)
	}
	return &models.OrderReference{
		OrderID:  asString(body["id"]),
		Amount:   asInt64(body["amount"]),
		Currency: asString(body["currency"]),
		Receipt:  asString(body["receipt"]),
		Status:   asString(body["status"]),
	}, nil
}

// FetchPayment returns the gateway's record for a payment.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*models.PaymentRecord, error) {
	body, err := c.rzp.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway fetch payment: %w", err)
	}
	return paymentFromBody(body), nil
}

// CapturePayment captures an authorized payment for the full amount.
func (c *Client) CapturePayment(ctx context.Context, paymentID string, amount int64, currency string) (*models.PaymentRecord, error) {
	body, err := c.rzp.Payment.Capture(paymentID, int(amount), map[string]interface{}{"currency": currency}, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway capture payment: %w", err)
	}
	return paymentFromBody(body), nil
}

func paymentFromBody(body map[string]interface{}) *models.PaymentRecord {
	return &models.PaymentRecord{
		PaymentID: asString(body["id"]),
		OrderID:   asString(body["order_id"]),
		Amount:    asInt64(body["amount"]),
		Currency:  asString(body["currency"]),
		Status:    asString(body["status"]),
		Method:    asString(body["method"]),
		Email:     asString(body["email"]),
		Contact:   asString(body["contact"]),
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// asInt64 handles the SDK's JSON numbers, which decode as float64.
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
