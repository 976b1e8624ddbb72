package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/backend/internal/models"
	"github.com/courtside/backend/internal/payments"
	"github.com/courtside/backend/internal/reconcile"
)

type memAttemptStore struct {
	attempts map[uuid.UUID]*models.CheckoutAttempt
}

func newMemAttemptStore() *memAttemptStore {
	return &memAttemptStore{attempts: make(map[uuid.UUID]*models.CheckoutAttempt)}
}

func (m *memAttemptStore) Create(ctx context.Context, a *models.CheckoutAttempt) error {
	for _, other := range m.attempts {
		if other.Receipt == a.Receipt {
			return errors.New("duplicate receipt")
		}
	}
	cp := *a
	m.attempts[a.ID] = &cp
	return nil
}

func (m *memAttemptStore) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.CheckoutAttempt, error) {
	a, ok := m.attempts[id]
	if !ok || (userID != uuid.Nil && a.UserID != userID) {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memAttemptStore) SetState(ctx context.Context, id uuid.UUID, state, failureReason string) error {
	a, ok := m.attempts[id]
	if !ok {
		return errors.New("no attempt")
	}
	a.State = state
	a.FailureReason = failureReason
	return nil
}

func (m *memAttemptStore) SetPaymentID(ctx context.Context, id uuid.UUID, paymentID string) error {
	a, ok := m.attempts[id]
	if !ok {
		return errors.New("no attempt")
	}
	a.PaymentID = paymentID
	return nil
}

type stubResolver struct {
	items map[string]*ResolvedItem
}

func (s *stubResolver) ResolveItem(ctx context.Context, orderType, itemID string) (*ResolvedItem, error) {
	item, ok := s.items[orderType+"/"+itemID]
	if !ok {
		return nil, errors.New("unknown item")
	}
	cp := *item
	return &cp, nil
}

type stubPassFinder struct {
	pass *models.Pass
}

func (s *stubPassFinder) ActiveForUser(ctx context.Context, userID uuid.UUID) (*models.Pass, error) {
	return s.pass, nil
}

type stubGateway struct {
	orders   int
	receipts []string
	fail     bool
}

func (s *stubGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*models.OrderReference, error) {
	if s.fail {
		return nil, errors.New("gateway down")
	}
	s.orders++
	s.receipts = append(s.receipts, receipt)
	return &models.OrderReference{OrderID: "order_gw_" + receipt, Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (s *stubGateway) FetchPayment(ctx context.Context, paymentID string) (*models.PaymentRecord, error) {
	return nil, errors.New("not used")
}

func (s *stubGateway) CapturePayment(ctx context.Context, paymentID string, amount int64, currency string) (*models.PaymentRecord, error) {
	return nil, errors.New("not used")
}

type stubVerifier struct {
	valid   bool
	payment *models.PaymentRecord
	calls   int
}

func (s *stubVerifier) VerifyAndCapture(ctx context.Context, paymentID, orderID, signature string) (*payments.VerifyResult, error) {
	s.calls++
	if !s.valid {
		return &payments.VerifyResult{Valid: false}, payments.ErrInvalidSignature
	}
	return &payments.VerifyResult{Valid: true, Captured: true, Payment: s.payment}, nil
}

type stubReconciler struct {
	outcome *reconcile.Outcome
	err     error
	calls   int
	lastIn  reconcile.Input
}

func (s *stubReconciler) Reconcile(ctx context.Context, payment *models.PaymentRecord, in reconcile.Input) (*reconcile.Outcome, error) {
	s.calls++
	s.lastIn = in
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

type stubRetries struct {
	enqueued []uuid.UUID
}

func (s *stubRetries) EnqueueReconcileRetry(ctx context.Context, attemptID uuid.UUID) error {
	s.enqueued = append(s.enqueued, attemptID)
	return nil
}

func testUser() *models.User {
	return &models.User{
		ID:       uuid.New(),
		Email:    "player@example.com",
		FullName: "Test Player",
		Phone:    "9876543210",
		Role:     models.RolePlayer,
	}
}

func groundResolver() *stubResolver {
	return &stubResolver{items: map[string]*ResolvedItem{
		"ground/ground-5": {
			Name: "Elite Sports Complex", AmountPaise: 99900,
			EventDate: time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
			Venue:     "Elite Sports Complex", Sport: "football",
			StartTime: "18:00", EndTime: "19:00",
		},
		"tournament/trn-9": {
			Name: "City Cup", AmountPaise: 50000,
			EventDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
			Venue:     "City Arena", Sport: "cricket",
		},
	}}
}

func usablePass(userID uuid.UUID) *models.Pass {
	return &models.Pass{
		ID:              uuid.New(),
		UserID:          userID,
		PaymentID:       "pay_pass",
		DiscountPercent: 15,
		Active:          true,
		ActivatedAt:     time.Now().Add(-time.Hour),
		ExpiresAt:       time.Now().Add(24 * time.Hour),
	}
}

func TestBegin_ValidatesPayer(t *testing.T) {
	store := newMemAttemptStore()
	gw := &stubGateway{}
	svc := NewService(store, groundResolver(), &stubPassFinder{}, gw, &stubVerifier{}, &stubReconciler{}, nil, nil)

	cases := []*models.User{
		{ID: uuid.New(), FullName: "", Email: "a@b.c", Phone: "9876543210"},
		{ID: uuid.New(), FullName: "A", Email: "", Phone: "9876543210"},
		{ID: uuid.New(), FullName: "A", Email: "a@b.c", Phone: "98765"},
		{ID: uuid.New(), FullName: "A", Email: "a@b.c", Phone: "98765432101"},
		{ID: uuid.New(), FullName: "A", Email: "a@b.c", Phone: "98765abc10"},
	}
	for _, u := range cases {
		_, err := svc.Begin(context.Background(), BeginParams{User: u, OrderType: "ground", ItemID: "ground-5"})
		if !errors.Is(err, ErrInvalidPayer) {
			t.Fatalf("expected ErrInvalidPayer for %+v, got %v", u, err)
		}
	}
	if gw.orders != 0 {
		t.Fatal("no gateway order may be created for an invalid payer")
	}
}

func TestBegin_RejectsUnresolvableOrder(t *testing.T) {
	store := newMemAttemptStore()
	gw := &stubGateway{}
	svc := NewService(store, groundResolver(), &stubPassFinder{}, gw, &stubVerifier{}, &stubReconciler{}, nil, nil)

	_, err := svc.Begin(context.Background(), BeginParams{User: testUser(), OrderType: "ground", ItemID: "nope"})
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
	if gw.orders != 0 {
		t.Fatal("no gateway order for an unknown item")
	}
}

func TestBegin_AppliesPassDiscountOnlyToTournaments(t *testing.T) {
	user := testUser()
	pass := usablePass(user.ID)
	store := newMemAttemptStore()
	gw := &stubGateway{}
	svc := NewService(store, groundResolver(), &stubPassFinder{pass: pass}, gw, &stubVerifier{}, &stubReconciler{}, nil, nil)

	ground, err := svc.Begin(context.Background(), BeginParams{User: user, OrderType: "ground", ItemID: "ground-5"})
	if err != nil {
		t.Fatalf("ground begin: %v", err)
	}
	if ground.DiscountAmount != 0 || ground.FinalAmount != 99900 || ground.AppliedPassID != nil {
		t.Fatalf("pass must not apply to ground orders: %+v", ground)
	}

	trn, err := svc.Begin(context.Background(), BeginParams{User: user, OrderType: "tournament", ItemID: "trn-9"})
	if err != nil {
		t.Fatalf("tournament begin: %v", err)
	}
	wantDiscount := int64(7500) // 15% of 50000
	if trn.DiscountAmount != wantDiscount || trn.FinalAmount != 50000-wantDiscount {
		t.Fatalf("unexpected discount: %+v", trn)
	}
	if trn.AppliedPassID == nil || *trn.AppliedPassID != pass.ID {
		t.Fatal("applied pass id must be recorded")
	}
}

func TestBegin_ExpiredPassNotApplied(t *testing.T) {
	user := testUser()
	pass := usablePass(user.ID)
	pass.ExpiresAt = time.Now().Add(-time.Minute)
	store := newMemAttemptStore()
	svc := NewService(store, groundResolver(), &stubPassFinder{pass: pass}, &stubGateway{}, &stubVerifier{}, &stubReconciler{}, nil, nil)

	trn, err := svc.Begin(context.Background(), BeginParams{User: user, OrderType: "tournament", ItemID: "trn-9"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if trn.DiscountAmount != 0 || trn.AppliedPassID != nil {
		t.Fatalf("expired pass must not apply: %+v", trn)
	}
}

func TestBegin_FreshReceiptPerAttempt(t *testing.T) {
	user := testUser()
	store := newMemAttemptStore()
	gw := &stubGateway{}
	svc := NewService(store, groundResolver(), &stubPassFinder{}, gw, &stubVerifier{}, &stubReconciler{}, nil, nil)

	a1, err := svc.Begin(context.Background(), BeginParams{User: user, OrderType: "ground", ItemID: "ground-5"})
	if err != nil {
		t.Fatalf("first begin: %v", err)
	}
	a2, err := svc.Begin(context.Background(), BeginParams{User: user, OrderType: "ground", ItemID: "ground-5"})
	if err != nil {
		t.Fatalf("second begin: %v", err)
	}
	if a1.Receipt == a2.Receipt || a1.GatewayOrderID == a2.GatewayOrderID {
		t.Fatal("each attempt must get a fresh receipt and gateway order")
	}
}

func TestHandleCallback_InvalidSignatureFailsAttempt(t *testing.T) {
	user := testUser()
	store := newMemAttemptStore()
	rec := &stubReconciler{}
	svc := NewService(store, groundResolver(), &stubPassFinder{}, &stubGateway{}, &stubVerifier{valid: false}, rec, nil, nil)

	attempt, err := svc.Begin(context.Background(), BeginParams{User: user, OrderType: "ground", ItemID: "ground-5"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	_, err = svc.HandleCallback(context.Background(), CallbackParams{
		AttemptID: attempt.ID, UserID: user.ID,
		PaymentID: "pay_1", OrderID: attempt.GatewayOrderID, Signature: "bogus",
	})
	if !errors.Is(err, payments.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if rec.calls != 0 {
		t.Fatal("reconciliation must not run on verification failure")
	}
	stored, _ := store.GetForUser(context.Background(), attempt.ID, user.ID)
	if stored.State != models.CheckoutStateFailed {
		t.Fatalf("attempt should be failed, got %s", stored.State)
	}
}

func TestHandleCallback_VerifiedPaymentReconciles(t *testing.T) {
	user := testUser()
	store := newMemAttemptStore()
	payment := &models.PaymentRecord{
		PaymentID: "pay_1", OrderID: "order_1", Amount: 99900, Currency: "INR",
		Status: models.PaymentStatusCaptured,
	}
	rec := &stubReconciler{outcome: &reconcile.Outcome{Ticket: &models.Ticket{ID: "TKT-X"}}}
	svc := NewService(store, groundResolver(), &stubPassFinder{}, &stubGateway{}, &stubVerifier{valid: true, payment: payment}, rec, nil, nil)

	attempt, err := svc.Begin(context.Background(), BeginParams{User: user, OrderType: "ground", ItemID: "ground-5"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	outcome, err := svc.HandleCallback(context.Background(), CallbackParams{
		AttemptID: attempt.ID, UserID: user.ID,
		PaymentID: "pay_1", OrderID: attempt.GatewayOrderID, Signature: "sig",
	})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if outcome.Ticket == nil || outcome.Ticket.ID != "TKT-X" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if rec.lastIn.Venue != "Elite Sports Complex" || rec.lastIn.Order.Amount != 99900 {
		t.Fatalf("reconcile input not built from attempt: %+v", rec.lastIn)
	}
	stored, _ := store.GetForUser(context.Background(), attempt.ID, user.ID)
	if stored.State != models.CheckoutStateSucceeded || stored.PaymentID != "pay_1" {
		t.Fatalf("attempt not finalised: %+v", stored)
	}
	if rec.lastIn.Order.OrderID != attempt.Receipt {
		t.Fatal("reconcile input must carry the attempt receipt")
	}
}

func TestHandleCallback_ReconcileFailureSchedulesRetry(t *testing.T) {
	user := testUser()
	store := newMemAttemptStore()
	payment := &models.PaymentRecord{PaymentID: "pay_1", Status: models.PaymentStatusCaptured, Amount: 99900, Currency: "INR"}
	rec := &stubReconciler{err: errors.New("storage write failed")}
	retries := &stubRetries{}
	svc := NewService(store, groundResolver(), &stubPassFinder{}, &stubGateway{}, &stubVerifier{valid: true, payment: payment}, rec, retries, nil)

	attempt, err := svc.Begin(context.Background(), BeginParams{User: user, OrderType: "ground", ItemID: "ground-5"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	_, err = svc.HandleCallback(context.Background(), CallbackParams{
		AttemptID: attempt.ID, UserID: user.ID,
		PaymentID: "pay_1", OrderID: attempt.GatewayOrderID, Signature: "sig",
	})
	if !errors.Is(err, ErrEntitlementPending) {
		t.Fatalf("expected ErrEntitlementPending, got %v", err)
	}
	if len(retries.enqueued) != 1 || retries.enqueued[0] != attempt.ID {
		t.Fatalf("expected one retry for the attempt, got %v", retries.enqueued)
	}
	stored, _ := store.GetForUser(context.Background(), attempt.ID, user.ID)
	if stored.State != models.CheckoutStateReconciling {
		t.Fatalf("attempt should stay reconciling, got %s", stored.State)
	}
}

func TestCancel_NoSideEffects(t *testing.T) {
	user := testUser()
	store := newMemAttemptStore()
	rec := &stubReconciler{}
	svc := NewService(store, groundResolver(), &stubPassFinder{}, &stubGateway{}, &stubVerifier{}, rec, nil, nil)

	attempt, err := svc.Begin(context.Background(), BeginParams{User: user, OrderType: "ground", ItemID: "ground-5"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := svc.Cancel(context.Background(), attempt.ID, user.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stored, _ := store.GetForUser(context.Background(), attempt.ID, user.ID)
	if stored.State != models.CheckoutStateFailed || stored.FailureReason == "" {
		t.Fatalf("cancel should fail the attempt with a reason: %+v", stored)
	}
	if rec.calls != 0 {
		t.Fatal("cancel must not reconcile anything")
	}

	// A closed attempt rejects late callbacks.
	_, err = svc.HandleCallback(context.Background(), CallbackParams{
		AttemptID: attempt.ID, UserID: user.ID,
		PaymentID: "pay_1", OrderID: attempt.GatewayOrderID, Signature: "sig",
	})
	if !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("expected ErrAttemptClosed, got %v", err)
	}
}
