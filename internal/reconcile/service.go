package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courtside/backend/config"
	"github.com/courtside/backend/internal/models"
	"github.com/courtside/backend/internal/tickets"
)

// ErrPaymentNotCaptured is returned when reconciliation is attempted for a
// payment the gateway does not report as captured. Reconciliation only runs
// after server-side verification and capture have succeeded.
var ErrPaymentNotCaptured = errors.New("payment not captured")

// TicketStore is the slice of the ticket repository reconciliation needs.
type TicketStore interface {
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Ticket, error)
	Insert(ctx context.Context, t *models.Ticket) error
}

// PassStore is the slice of the pass repository reconciliation needs.
type PassStore interface {
	Activate(ctx context.Context, p *models.Pass) error
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Pass, error)
	Consume(ctx context.Context, passID uuid.UUID, receipt string) (bool, error)
}

// CoinStore credits reward coins. Credits carry the payment id as reference
// so replays do not double-credit.
type CoinStore interface {
	Credit(ctx context.Context, userID uuid.UUID, amount int64, reason, reference string) error
}

// QRUploader is notified when a new ticket needs its QR image rendered and
// stored. A nil uploader disables the step.
type QRUploader interface {
	EnqueueTicketQR(ctx context.Context, ticketID string, userID uuid.UUID) error
}

// Input carries the originating order plus the event details resolved from
// the catalog at checkout time.
type Input struct {
	UserID        uuid.UUID
	Order         models.OrderDetails
	EventDate     time.Time
	StartTime     string
	EndTime       string
	Venue         string
	Sport         string
	AppliedPassID *uuid.UUID
}

// Outcome reports what reconciliation produced.
type Outcome struct {
	Ticket       *models.Ticket `json:"ticket,omitempty"`
	Pass         *models.Pass   `json:"pass,omitempty"`
	CoinsGranted int64          `json:"coins_granted"`
	Replayed     bool           `json:"replayed"` // true when a duplicate callback hit an existing outcome
}

// Service turns a verified, captured payment into durable entitlements:
// a ticket, an activated pass, a consumed pass, credited coins. All paths are
// idempotent on the payment id so duplicate success callbacks cannot issue a
// second ticket or consume a second pass.
type Service struct {
	ticketStore TicketStore
	passStore   PassStore
	coinStore   CoinStore
	qrUploader  QRUploader
	rewards     config.RewardsConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a reconciliation service.
func NewService(ts TicketStore, ps PassStore, cs CoinStore, qr QRUploader, rewards config.RewardsConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ticketStore: ts,
		passStore:   ps,
		coinStore:   cs,
		qrUploader:  qr,
		rewards:     rewards,
		logger:      logger,
		now:         time.Now,
	}
}

// Reconcile applies exactly one of the three outcomes for a captured payment:
// activate a pass (pass purchase), consume a pass and issue a ticket
// (tournament with an applied pass), or issue a ticket directly.
func (s *Service) Reconcile(ctx context.Context, payment *models.PaymentRecord, in Input) (*Outcome, error) {
	if payment.Status != models.PaymentStatusCaptured {
		return nil, fmt.Errorf("%w: status %s", ErrPaymentNotCaptured, payment.Status)
	}

	if in.Order.Type == models.OrderTypePass {
		return s.activatePass(ctx, payment, in)
	}
	return s.issueTicket(ctx, payment, in)
}

func (s *Service) activatePass(ctx context.Context, payment *models.PaymentRecord, in Input) (*Outcome, error) {
	existing, err := s.passStore.FindByPaymentID(ctx, payment.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Outcome{Pass: existing, Replayed: true}, nil
	}

	now := s.now()
	pass := &models.Pass{
		ID:              uuid.New(),
		UserID:          in.UserID,
		PaymentID:       payment.PaymentID,
		DiscountPercent: s.rewards.PassDiscountPercent,
		Active:          true,
		ActivatedAt:     now,
		ExpiresAt:       now.AddDate(0, 0, s.rewards.PassValidityDays),
	}
	if err := s.passStore.Activate(ctx, pass); err != nil {
		return nil, fmt.Errorf("activate pass: %w", err)
	}
	s.logger.Info("pass activated",
		zap.String("payment_id", payment.PaymentID),
		zap.String("user_id", in.UserID.String()),
	)
	return &Outcome{Pass: pass}, nil
}

func (s *Service) issueTicket(ctx context.Context, payment *models.PaymentRecord, in Input) (*Outcome, error) {
	// Replayed callback: the ticket already exists, return it unchanged.
	existing, err := s.ticketStore.FindByPaymentID(ctx, payment.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Outcome{Ticket: existing, Replayed: true}, nil
	}

	if in.Order.Type == models.OrderTypeTournament && in.AppliedPassID != nil {
		consumed, err := s.passStore.Consume(ctx, *in.AppliedPassID, in.Order.OrderID)
		if err != nil {
			return nil, fmt.Errorf("consume pass: %w", err)
		}
		if !consumed {
			// Already consumed by an earlier attempt for this payment;
			// proceed without re-applying it.
			s.logger.Warn("pass already consumed",
				zap.String("pass_id", in.AppliedPassID.String()),
				zap.String("receipt", in.Order.OrderID),
			)
		}
	}

	now := s.now()
	ticket := &models.Ticket{
		ID:        tickets.NewTicketID(now),
		UserID:    in.UserID,
		Venue:     in.Venue,
		Sport:     in.Sport,
		EventType: in.Order.Type,
		EventDate: in.EventDate,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Amount:    in.Order.Amount,
		Currency:  in.Order.Currency,
		PaymentID: payment.PaymentID,
		Status:    models.TicketStatusActive,
		CreatedAt: now,
		ExpiresAt: in.EventDate.Add(tickets.TicketExpiry),
		Terms:     tickets.DefaultTerms,
	}
	ticket.BookingID = tickets.NewBookingID(now)
	ticket.Barcode = tickets.BarcodeFor(ticket.ID)
	ticket.QRCode = tickets.QRPayload(ticket)

	if err := s.ticketStore.Insert(ctx, ticket); err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}

	var coins int64
	if in.Order.Type == models.OrderTypeTournament && s.rewards.TournamentJoinCoins > 0 {
		if err := s.coinStore.Credit(ctx, in.UserID, s.rewards.TournamentJoinCoins,
			models.CoinReasonTournamentJoin, payment.PaymentID); err != nil {
			// Ticket is issued; a failed coin credit is logged, not fatal.
			s.logger.Error("coin credit failed", zap.Error(err), zap.String("payment_id", payment.PaymentID))
		} else {
			coins = s.rewards.TournamentJoinCoins
		}
	}

	if s.qrUploader != nil {
		if err := s.qrUploader.EnqueueTicketQR(ctx, ticket.ID, in.UserID); err != nil {
			s.logger.Warn("qr upload enqueue failed", zap.Error(err), zap.String("ticket_id", ticket.ID))
		}
	}

	s.logger.Info("ticket issued",
		zap.String("ticket_id", ticket.ID),
		zap.String("payment_id", payment.PaymentID),
		zap.String("event_type", ticket.EventType),
	)
	return &Outcome{Ticket: ticket, CoinsGranted: coins}, nil
}

// DiscountAmount computes the pass discount on an order amount in minor
// units, rounded half up.
func DiscountAmount(amount int64, percent int) int64 {
	return (amount*int64(percent) + 50) / 100
}
