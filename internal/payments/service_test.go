package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/courtside/backend/internal/gateway"
	"github.com/courtside/backend/internal/models"
)

// fakeGateway simulates Razorpay: payments transition authorized -> captured
// and capture calls are counted.
type fakeGateway struct {
	payments    map[string]*models.PaymentRecord
	captures    int
	fetchErr    error
	captureErr  error
	lastCapture int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]*models.PaymentRecord)}
}

func (f *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*models.OrderReference, error) {
	return &models.OrderReference{OrderID: "order_" + receipt, Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (f *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*models.PaymentRecord, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, errors.New("payment not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeGateway) CapturePayment(ctx context.Context, paymentID string, amount int64, currency string) (*models.PaymentRecord, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	f.captures++
	f.lastCapture = amount
	p := f.payments[paymentID]
	p.Status = models.PaymentStatusCaptured
	cp := *p
	return &cp, nil
}

const testSecret = "test_key_secret"

func authorizedPayment(f *fakeGateway, paymentID, orderID string, amount int64) {
	f.payments[paymentID] = &models.PaymentRecord{
		PaymentID: paymentID,
		OrderID:   orderID,
		Amount:    amount,
		Currency:  "INR",
		Status:    models.PaymentStatusAuthorized,
	}
}

func TestVerifyAndCapture_CapturesAuthorizedPayment(t *testing.T) {
	fg := newFakeGateway()
	authorizedPayment(fg, "pay_1", "order_1", 99900)
	svc := NewService(fg, testSecret, nil)

	sig := gateway.Sign("order_1", "pay_1", testSecret)
	res, err := svc.VerifyAndCapture(context.Background(), "pay_1", "order_1", sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Valid || !res.Captured {
		t.Fatalf("expected valid captured result, got %+v", res)
	}
	if fg.captures != 1 {
		t.Fatalf("expected 1 capture call, got %d", fg.captures)
	}
	if fg.lastCapture != 99900 {
		t.Fatalf("expected capture of full authorized amount, got %d", fg.lastCapture)
	}
	if res.Payment.Status != models.PaymentStatusCaptured {
		t.Fatalf("expected captured status, got %s", res.Payment.Status)
	}
}

func TestVerifyAndCapture_SecondCallIsNoOp(t *testing.T) {
	fg := newFakeGateway()
	authorizedPayment(fg, "pay_1", "order_1", 50000)
	svc := NewService(fg, testSecret, nil)
	sig := gateway.Sign("order_1", "pay_1", testSecret)

	if _, err := svc.VerifyAndCapture(context.Background(), "pay_1", "order_1", sig); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	res, err := svc.VerifyAndCapture(context.Background(), "pay_1", "order_1", sig)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if !res.Valid || res.Captured {
		t.Fatalf("second call should be a no-op, got %+v", res)
	}
	if fg.captures != 1 {
		t.Fatalf("expected exactly one upstream capture, got %d", fg.captures)
	}
}

func TestVerifyAndCapture_InvalidSignatureNoCapture(t *testing.T) {
	fg := newFakeGateway()
	authorizedPayment(fg, "pay_1", "order_1", 50000)
	svc := NewService(fg, testSecret, nil)

	res, err := svc.VerifyAndCapture(context.Background(), "pay_1", "order_1", "deadbeef")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if res.Valid {
		t.Fatal("result must not be valid")
	}
	if fg.captures != 0 {
		t.Fatalf("capture must not happen on invalid signature, got %d calls", fg.captures)
	}
	if fg.payments["pay_1"].Status != models.PaymentStatusAuthorized {
		t.Fatal("payment state must be untouched")
	}
}

func TestVerifyAndCapture_FailedPaymentNotCapturable(t *testing.T) {
	fg := newFakeGateway()
	fg.payments["pay_1"] = &models.PaymentRecord{
		PaymentID: "pay_1", OrderID: "order_1", Amount: 1000, Currency: "INR",
		Status: models.PaymentStatusFailed,
	}
	svc := NewService(fg, testSecret, nil)
	sig := gateway.Sign("order_1", "pay_1", testSecret)

	_, err := svc.VerifyAndCapture(context.Background(), "pay_1", "order_1", sig)
	if !errors.Is(err, ErrNotCapturable) {
		t.Fatalf("expected ErrNotCapturable, got %v", err)
	}
	if fg.captures != 0 {
		t.Fatalf("capture must not happen for failed payment, got %d calls", fg.captures)
	}
}
