package payments

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/courtside/backend/internal/gateway"
	"github.com/courtside/backend/internal/models"
)

var (
	// ErrInvalidSignature means the callback materials failed verification.
	// No capture or reconciliation may follow.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrNotCapturable means the payment is in a state that cannot be
	// captured (created or failed at the gateway).
	ErrNotCapturable = errors.New("payment not capturable")
)

// Service verifies gateway callbacks and captures authorized payments.
// Verification always precedes capture; client-reported success is never
// trusted on its own.
type Service struct {
	api       gateway.API
	keySecret string
	logger    *zap.Logger
}

// NewService creates a payment verification service.
func NewService(api gateway.API, keySecret string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, keySecret: keySecret, logger: logger}
}

// VerifyResult is the outcome of VerifyAndCapture.
type VerifyResult struct {
	Valid    bool
	Captured bool // true when this call issued the capture (false if already captured)
	Payment  *models.PaymentRecord
}

// VerifyAndCapture checks the signature over orderID|paymentID, then fetches
// the payment and captures it if still authorized. Calling it again with the
// same valid inputs is a no-op: the payment is already captured and no second
// capture is issued.
func (s *Service) VerifyAndCapture(ctx context.Context, paymentID, orderID, signature string) (*VerifyResult, error) {
	if !gateway.VerifySignature(orderID, paymentID, signature, s.keySecret) {
		s.logger.Warn("payment signature rejected",
			zap.String("payment_id", paymentID),
			zap.String("order_id", orderID),
		)
		return &VerifyResult{Valid: false}, ErrInvalidSignature
	}

	payment, err := s.api.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case models.PaymentStatusAuthorized:
		captured, err := s.api.CapturePayment(ctx, paymentID, payment.Amount, payment.Currency)
		if err != nil {
			return nil, err
		}
		s.logger.Info("payment captured",
			zap.String("payment_id", paymentID),
			zap.Int64("amount", payment.Amount),
		)
		return &VerifyResult{Valid: true, Captured: true, Payment: captured}, nil
	case models.PaymentStatusCaptured:
		// Auto-captured or a repeated callback; nothing to do.
		return &VerifyResult{Valid: true, Captured: false, Payment: payment}, nil
	default:
		return &VerifyResult{Valid: true, Payment: payment},
			fmt.Errorf("%w: status %s", ErrNotCapturable, payment.Status)
	}
}

// GetPayment is a read-only passthrough to the gateway.
func (s *Service) GetPayment(ctx context.Context, paymentID string) (*models.PaymentRecord, error) {
	return s.api.FetchPayment(ctx, paymentID)
}
