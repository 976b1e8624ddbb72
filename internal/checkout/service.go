package checkout

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courtside/backend/internal/gateway"
	"github.com/courtside/backend/internal/models"
	"github.com/courtside/backend/internal/payments"
	"github.com/courtside/backend/internal/reconcile"
)

var (
	// ErrInvalidPayer means the payer identity failed local validation; no
	// network call is made.
	ErrInvalidPayer = errors.New("invalid payer details")
	// ErrInvalidOrder means the order could not be resolved against the
	// catalog. There is no fallback test order.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrAttemptNotFound is returned for unknown or foreign attempts.
	ErrAttemptNotFound = errors.New("checkout attempt not found")
	// ErrAttemptClosed means the attempt already reached a terminal state.
	ErrAttemptClosed = errors.New("checkout attempt already closed")
	// ErrEntitlementPending means the payment is captured but reconciliation
	// has not completed; the entitlement will be issued by a retry, never by
	// charging again.
	ErrEntitlementPending = errors.New("payment captured, entitlement pending")
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// ResolvedItem is what the catalog knows about a purchasable item.
type ResolvedItem struct {
	Name        string
	Description string
	AmountPaise int64
	EventDate   time.Time
	Venue       string
	Sport       string
	StartTime   string
	EndTime     string
}

// ItemResolver resolves an order type + item id against the catalog.
type ItemResolver interface {
	ResolveItem(ctx context.Context, orderType, itemID string) (*ResolvedItem, error)
}

// AttemptStore persists checkout attempts.
type AttemptStore interface {
	Create(ctx context.Context, a *models.CheckoutAttempt) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.CheckoutAttempt, error)
	SetState(ctx context.Context, id uuid.UUID, state, failureReason string) error
	SetPaymentID(ctx context.Context, id uuid.UUID, paymentID string) error
}

// PassFinder looks up the user's usable pass for discount application.
type PassFinder interface {
	ActiveForUser(ctx context.Context, userID uuid.UUID) (*models.Pass, error)
}

// Verifier verifies and captures a gateway callback.
type Verifier interface {
	VerifyAndCapture(ctx context.Context, paymentID, orderID, signature string) (*payments.VerifyResult, error)
}

// Reconciler turns a captured payment into entitlements.
type Reconciler interface {
	Reconcile(ctx context.Context, payment *models.PaymentRecord, in reconcile.Input) (*reconcile.Outcome, error)
}

// RetryEnqueuer schedules a reconciliation retry for an attempt whose payment
// is captured but whose entitlement was not stored. Nil disables retries.
type RetryEnqueuer interface {
	EnqueueReconcileRetry(ctx context.Context, attemptID uuid.UUID) error
}

// Service orchestrates the checkout flow: payer validation, discount
// application, gateway order creation, and the post-payment callback path.
// The widget callback is untrusted input; nothing is reconciled until the
// signature is verified and the payment captured server-side.
type Service struct {
	attempts AttemptStore
	resolver ItemResolver
	passes   PassFinder
	api      gateway.API
	verifier Verifier
	rec      Reconciler
	retries  RetryEnqueuer
	logger   *zap.Logger
}

// NewService creates a checkout service.
func NewService(attempts AttemptStore, resolver ItemResolver, passes PassFinder, api gateway.API, verifier Verifier, rec Reconciler, retries RetryEnqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		attempts: attempts,
		resolver: resolver,
		passes:   passes,
		api:      api,
		verifier: verifier,
		rec:      rec,
		retries:  retries,
		logger:   logger,
	}
}

// BeginParams is the input for starting a checkout attempt.
type BeginParams struct {
	User      *models.User
	OrderType string
	ItemID    string
}

// Begin validates the payer and order, applies a pass discount when one is
// usable and the order is a tournament entry, creates the gateway order and
// stores the attempt. Every attempt gets a fresh receipt, so a retry after
// failure can never be confused with the failed attempt.
func (s *Service) Begin(ctx context.Context, p BeginParams) (*models.CheckoutAttempt, error) {
	if err := validatePayer(p.User); err != nil {
		return nil, err
	}

	orderType := strings.ToLower(strings.TrimSpace(p.OrderType))
	item, err := s.resolver.ResolveItem(ctx, orderType, p.ItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrder, err.Error())
	}
	if item.AmountPaise <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", ErrInvalidOrder)
	}

	var discount int64
	var appliedPassID *uuid.UUID
	if orderType == models.OrderTypeTournament {
		pass, err := s.passes.ActiveForUser(ctx, p.User.ID)
		if err != nil {
			return nil, err
		}
		if pass != nil && pass.Usable(time.Now()) {
			discount = reconcile.DiscountAmount(item.AmountPaise, pass.DiscountPercent)
			appliedPassID = &pass.ID
		}
	}
	final := item.AmountPaise - discount

	receipt := "rcpt_" + uuid.NewString()
	order, err := s.api.CreateOrder(ctx, final, "INR", receipt, map[string]string{
		"order_type": orderType,
		"item_id":    p.ItemID,
		"user_id":    p.User.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	attempt := &models.CheckoutAttempt{
		ID:             uuid.New(),
		UserID:         p.User.ID,
		OrderType:      orderType,
		ItemID:         p.ItemID,
		ItemName:       item.Name,
		Description:    item.Description,
		Amount:         item.AmountPaise,
		DiscountAmount: discount,
		FinalAmount:    final,
		Currency:       "INR",
		Receipt:        receipt,
		GatewayOrderID: order.OrderID,
		AppliedPassID:  appliedPassID,
		State:          models.CheckoutStateAwaitingCallback,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	s.logger.Info("checkout attempt created",
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("order_type", orderType),
		zap.Int64("final_amount", final),
		zap.Bool("pass_applied", appliedPassID != nil),
	)
	return attempt, nil
}

// CallbackParams carries the widget success callback materials.
type CallbackParams struct {
	AttemptID uuid.UUID
	UserID    uuid.UUID
	PaymentID string
	OrderID   string
	Signature string
}

// HandleCallback verifies the callback server-side, captures the payment and
// reconciles local state. A verification failure marks the attempt failed
// with no reconciliation; a reconciliation failure after capture keeps the
// attempt in reconciling and schedules a retry with the verified payment id.
func (s *Service) HandleCallback(ctx context.Context, p CallbackParams) (*reconcile.Outcome, error) {
	attempt, err := s.attempts.GetForUser(ctx, p.AttemptID, p.UserID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, ErrAttemptNotFound
	}
	if attempt.State == models.CheckoutStateFailed {
		return nil, ErrAttemptClosed
	}
	if p.OrderID != attempt.GatewayOrderID {
		return nil, fmt.Errorf("%w: order mismatch", ErrAttemptNotFound)
	}

	result, err := s.verifier.VerifyAndCapture(ctx, p.PaymentID, p.OrderID, p.Signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			_ = s.attempts.SetState(ctx, attempt.ID, models.CheckoutStateFailed, "signature verification failed")
		}
		return nil, err
	}

	if err := s.attempts.SetPaymentID(ctx, attempt.ID, result.Payment.PaymentID); err != nil {
		s.logger.Error("store payment id failed", zap.Error(err), zap.String("attempt_id", attempt.ID.String()))
	}
	if err := s.attempts.SetState(ctx, attempt.ID, models.CheckoutStateReconciling, ""); err != nil {
		s.logger.Error("set reconciling failed", zap.Error(err), zap.String("attempt_id", attempt.ID.String()))
	}

	outcome, err := s.reconcileAttempt(ctx, attempt, result.Payment)
	if err != nil {
		// Funds are captured; never surface this as a payment failure and
		// never re-charge. A background retry finishes the reconciliation.
		s.logger.Error("reconciliation failed after capture",
			zap.Error(err),
			zap.String("attempt_id", attempt.ID.String()),
			zap.String("payment_id", result.Payment.PaymentID),
		)
		if s.retries != nil {
			if qerr := s.retries.EnqueueReconcileRetry(ctx, attempt.ID); qerr != nil {
				s.logger.Error("enqueue reconcile retry failed", zap.Error(qerr))
			}
		}
		return nil, ErrEntitlementPending
	}

	if err := s.attempts.SetState(ctx, attempt.ID, models.CheckoutStateSucceeded, ""); err != nil {
		s.logger.Error("set succeeded failed", zap.Error(err), zap.String("attempt_id", attempt.ID.String()))
	}
	return outcome, nil
}

// ReconcileAttempt re-runs reconciliation for an attempt whose payment was
// already verified and captured. Used by the background retry worker.
func (s *Service) ReconcileAttempt(ctx context.Context, attemptID uuid.UUID, payment *models.PaymentRecord) (*reconcile.Outcome, error) {
	attempt, err := s.attempts.GetForUser(ctx, attemptID, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, ErrAttemptNotFound
	}
	outcome, err := s.reconcileAttempt(ctx, attempt, payment)
	if err != nil {
		return nil, err
	}
	_ = s.attempts.SetState(ctx, attempt.ID, models.CheckoutStateSucceeded, "")
	return outcome, nil
}

func (s *Service) reconcileAttempt(ctx context.Context, attempt *models.CheckoutAttempt, payment *models.PaymentRecord) (*reconcile.Outcome, error) {
	in := reconcile.Input{
		UserID: attempt.UserID,
		Order: models.OrderDetails{
			Amount:      attempt.FinalAmount,
			Currency:    attempt.Currency,
			OrderID:     attempt.Receipt,
			Description: attempt.Description,
			Type:        attempt.OrderType,
			ItemID:      attempt.ItemID,
			ItemName:    attempt.ItemName,
		},
		AppliedPassID: attempt.AppliedPassID,
	}
	if attempt.OrderType != models.OrderTypePass {
		item, err := s.resolver.ResolveItem(ctx, attempt.OrderType, attempt.ItemID)
		if err != nil {
			return nil, fmt.Errorf("resolve item for reconciliation: %w", err)
		}
		in.EventDate = item.EventDate
		in.Venue = item.Venue
		in.Sport = item.Sport
		in.StartTime = item.StartTime
		in.EndTime = item.EndTime
	}
	return s.rec.Reconcile(ctx, payment, in)
}

// Cancel records a widget abandonment. The attempt becomes failed and no
// entitlement state is touched.
func (s *Service) Cancel(ctx context.Context, attemptID, userID uuid.UUID, reason string) error {
	attempt, err := s.attempts.GetForUser(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if attempt == nil {
		return ErrAttemptNotFound
	}
	if attempt.State == models.CheckoutStateSucceeded {
		return ErrAttemptClosed
	}
	if reason == "" {
		reason = "cancelled by user"
	}
	return s.attempts.SetState(ctx, attemptID, models.CheckoutStateFailed, reason)
}

func validatePayer(u *models.User) error {
	if u == nil {
		return ErrInvalidPayer
	}
	if strings.TrimSpace(u.FullName) == "" || strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: name and email are required", ErrInvalidPayer)
	}
	if !phonePattern.MatchString(u.Phone) {
		return fmt.Errorf("%w: phone must be exactly 10 digits", ErrInvalidPayer)
	}
	return nil
}
