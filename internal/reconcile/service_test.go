package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/backend/config"
	"github.com/courtside/backend/internal/models"
)

type memTicketStore struct {
	byPayment map[string]*models.Ticket
	insertErr error
}

func newMemTicketStore() *memTicketStore {
	return &memTicketStore{byPayment: make(map[string]*models.Ticket)}
}

func (m *memTicketStore) FindByPaymentID(ctx context.Context, paymentID string) (*models.Ticket, error) {
	return m.byPayment[paymentID], nil
}

func (m *memTicketStore) Insert(ctx context.Context, t *models.Ticket) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.byPayment[t.PaymentID]; ok {
		return errors.New("duplicate payment_id")
	}
	cp := *t
	m.byPayment[t.PaymentID] = &cp
	return nil
}

type memPassStore struct {
	byPayment map[string]*models.Pass
	byID      map[uuid.UUID]*models.Pass
	consumes  int
}

func newMemPassStore() *memPassStore {
	return &memPassStore{byPayment: make(map[string]*models.Pass), byID: make(map[uuid.UUID]*models.Pass)}
}

func (m *memPassStore) Activate(ctx context.Context, p *models.Pass) error {
	if _, ok := m.byPayment[p.PaymentID]; ok {
		return nil
	}
	cp := *p
	m.byPayment[p.PaymentID] = &cp
	m.byID[p.ID] = &cp
	return nil
}

func (m *memPassStore) FindByPaymentID(ctx context.Context, paymentID string) (*models.Pass, error) {
	return m.byPayment[paymentID], nil
}

func (m *memPassStore) Consume(ctx context.Context, passID uuid.UUID, receipt string) (bool, error) {
	p, ok := m.byID[passID]
	if !ok || !p.Active || p.ConsumedAt != nil {
		return false, nil
	}
	now := time.Now()
	p.Active = false
	p.ConsumedAt = &now
	p.ConsumedByOrder = receipt
	m.consumes++
	return true, nil
}

type memCoinStore struct {
	balances map[uuid.UUID]int64
	credited map[string]bool // reason|reference dedupe
}

func newMemCoinStore() *memCoinStore {
	return &memCoinStore{balances: make(map[uuid.UUID]int64), credited: make(map[string]bool)}
}

func (m *memCoinStore) Credit(ctx context.Context, userID uuid.UUID, amount int64, reason, reference string) error {
	key := reason + "|" + reference
	if reference != "" && m.credited[key] {
		return nil
	}
	m.credited[key] = true
	m.balances[userID] += amount
	return nil
}

func testRewards() config.RewardsConfig {
	return config.RewardsConfig{
		PassDiscountPercent: 15,
		PassValidityDays:    30,
		TournamentJoinCoins: 50,
		ReferralCoins:       100,
	}
}

func capturedPayment(paymentID, orderID string, amount int64) *models.PaymentRecord {
	return &models.PaymentRecord{
		PaymentID: paymentID,
		OrderID:   orderID,
		Amount:    amount,
		Currency:  "INR",
		Status:    models.PaymentStatusCaptured,
	}
}

func TestReconcile_GroundOrderIssuesOneTicket(t *testing.T) {
	ts, ps, cs := newMemTicketStore(), newMemPassStore(), newMemCoinStore()
	svc := NewService(ts, ps, cs, nil, testRewards(), nil)
	userID := uuid.New()
	eventDate := time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)

	in := Input{
		UserID: userID,
		Order: models.OrderDetails{
			Amount:   99900,
			Currency: "INR",
			OrderID:  "rcpt_1",
			Type:     models.OrderTypeGround,
			ItemID:   "ground-5",
			ItemName: "Elite Sports Complex",
		},
		EventDate: eventDate,
		Venue:     "Elite Sports Complex",
		Sport:     "football",
		StartTime: "18:00",
		EndTime:   "19:00",
	}

	out, err := svc.Reconcile(context.Background(), capturedPayment("pay_1", "order_1", 99900), in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	tk := out.Ticket
	if tk == nil {
		t.Fatal("expected a ticket")
	}
	if tk.PaymentID != "pay_1" || tk.Amount != 99900 || tk.Status != models.TicketStatusActive {
		t.Fatalf("unexpected ticket: %+v", tk)
	}
	if !tk.ExpiresAt.Equal(eventDate.Add(24 * time.Hour)) {
		t.Fatalf("expires_at should be event date + 24h, got %v", tk.ExpiresAt)
	}
	if tk.ID == "" || tk.BookingID == "" || tk.QRCode == "" || tk.Barcode == "" {
		t.Fatalf("ticket identifiers not derived: %+v", tk)
	}
	if cs.balances[userID] != 0 {
		t.Fatal("ground booking must not credit coins")
	}

	// Replayed success callback returns the same ticket, not a new one.
	again, err := svc.Reconcile(context.Background(), capturedPayment("pay_1", "order_1", 99900), in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || again.Ticket.ID != tk.ID {
		t.Fatalf("replay should return the existing ticket %s, got %+v", tk.ID, again.Ticket)
	}
	if len(ts.byPayment) != 1 {
		t.Fatalf("expected exactly one stored ticket, got %d", len(ts.byPayment))
	}
}

func TestReconcile_PassPurchaseActivatesOnce(t *testing.T) {
	ts, ps, cs := newMemTicketStore(), newMemPassStore(), newMemCoinStore()
	svc := NewService(ts, ps, cs, nil, testRewards(), nil)
	userID := uuid.New()

	in := Input{
		UserID: userID,
		Order: models.OrderDetails{
			Amount: 29900, Currency: "INR", OrderID: "rcpt_pass",
			Type: models.OrderTypePass, ItemID: "pass-monthly", ItemName: "Tournament Pass",
		},
	}
	out, err := svc.Reconcile(context.Background(), capturedPayment("pay_p1", "order_p1", 29900), in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out.Pass == nil || !out.Pass.Active || out.Pass.DiscountPercent != 15 {
		t.Fatalf("unexpected pass: %+v", out.Pass)
	}

	again, err := svc.Reconcile(context.Background(), capturedPayment("pay_p1", "order_p1", 29900), in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || again.Pass.ID != out.Pass.ID {
		t.Fatal("replayed pass purchase must not grant a second pass")
	}
	if len(ps.byPayment) != 1 {
		t.Fatalf("expected one pass, got %d", len(ps.byPayment))
	}
}

func TestReconcile_TournamentConsumesPassAndCreditsCoins(t *testing.T) {
	ts, ps, cs := newMemTicketStore(), newMemPassStore(), newMemCoinStore()
	svc := NewService(ts, ps, cs, nil, testRewards(), nil)
	userID := uuid.New()

	// Activate a pass first.
	passIn := Input{UserID: userID, Order: models.OrderDetails{
		Amount: 29900, Currency: "INR", OrderID: "rcpt_pass", Type: models.OrderTypePass,
	}}
	passOut, err := svc.Reconcile(context.Background(), capturedPayment("pay_p1", "order_p1", 29900), passIn)
	if err != nil {
		t.Fatalf("activate pass: %v", err)
	}
	passID := passOut.Pass.ID

	eventDate := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	in := Input{
		UserID: userID,
		Order: models.OrderDetails{
			Amount: 50000, Currency: "INR", OrderID: "rcpt_t1",
			Type: models.OrderTypeTournament, ItemID: "trn-9", ItemName: "City Cup",
		},
		EventDate:     eventDate,
		Venue:         "City Arena",
		Sport:         "cricket",
		AppliedPassID: &passID,
	}
	out, err := svc.Reconcile(context.Background(), capturedPayment("pay_t1", "order_t1", 42500), in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out.Ticket == nil || out.Ticket.EventType != models.OrderTypeTournament {
		t.Fatalf("expected a tournament ticket, got %+v", out.Ticket)
	}
	if ps.consumes != 1 {
		t.Fatalf("expected pass consumed once, got %d", ps.consumes)
	}
	if p := ps.byID[passID]; p.Active || p.ConsumedAt == nil {
		t.Fatal("pass must be inactive after consumption")
	}
	if out.CoinsGranted != 50 || cs.balances[userID] != 50 {
		t.Fatalf("expected 50 join coins, got granted=%d balance=%d", out.CoinsGranted, cs.balances[userID])
	}

	// Replay: same payment id. No second ticket, no re-consumption, no coins.
	again, err := svc.Reconcile(context.Background(), capturedPayment("pay_t1", "order_t1", 42500), in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || again.Ticket.ID != out.Ticket.ID {
		t.Fatal("replay must return the existing ticket")
	}
	if ps.consumes != 1 {
		t.Fatalf("replay must not re-consume the pass, got %d consumes", ps.consumes)
	}
	if cs.balances[userID] != 50 {
		t.Fatalf("replay must not re-credit coins, balance=%d", cs.balances[userID])
	}
}

func TestReconcile_RejectsUncapturedPayment(t *testing.T) {
	ts, ps, cs := newMemTicketStore(), newMemPassStore(), newMemCoinStore()
	svc := NewService(ts, ps, cs, nil, testRewards(), nil)

	payment := &models.PaymentRecord{
		PaymentID: "pay_1", OrderID: "order_1", Amount: 1000, Currency: "INR",
		Status: models.PaymentStatusAuthorized,
	}
	_, err := svc.Reconcile(context.Background(), payment, Input{UserID: uuid.New(), Order: models.OrderDetails{Type: models.OrderTypeGround}})
	if !errors.Is(err, ErrPaymentNotCaptured) {
		t.Fatalf("expected ErrPaymentNotCaptured, got %v", err)
	}
	if len(ts.byPayment) != 0 || len(ps.byPayment) != 0 {
		t.Fatal("no entitlements may be created for an uncaptured payment")
	}
}

func TestReconcile_StorageFailureLeavesNoTicket(t *testing.T) {
	ts, ps, cs := newMemTicketStore(), newMemPassStore(), newMemCoinStore()
	ts.insertErr = errors.New("storage write failed")
	svc := NewService(ts, ps, cs, nil, testRewards(), nil)
	userID := uuid.New()

	in := Input{UserID: userID, Order: models.OrderDetails{
		Amount: 1000, Currency: "INR", OrderID: "rcpt_1", Type: models.OrderTypeGround,
	}}
	_, err := svc.Reconcile(context.Background(), capturedPayment("pay_1", "order_1", 1000), in)
	if err == nil {
		t.Fatal("expected storage error to surface")
	}
	if cs.balances[userID] != 0 {
		t.Fatal("no coins may be credited when the ticket was not stored")
	}

	// Retry with the verified payment id succeeds without re-charging.
	ts.insertErr = nil
	out, err := svc.Reconcile(context.Background(), capturedPayment("pay_1", "order_1", 1000), in)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if out.Ticket == nil || out.Replayed {
		t.Fatalf("retry should issue the ticket fresh, got %+v", out)
	}
}

func TestDiscountAmount(t *testing.T) {
	cases := []struct {
		amount  int64
		percent int
		want    int64
	}{
		{100000, 15, 15000},
		{99900, 15, 14985},
		{333, 15, 50},  // 49.95 rounds up
		{1, 15, 0},     // 0.15 rounds down
		{50000, 0, 0},
	}
	for _, c := range cases {
		if got := DiscountAmount(c.amount, c.percent); got != c.want {
			t.Errorf("DiscountAmount(%d, %d) = %d, want %d", c.amount, c.percent, got, c.want)
		}
	}
}
