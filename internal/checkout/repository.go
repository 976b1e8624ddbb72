package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtside/backend/internal/models"
)

const attemptColumns = `id, user_id, order_type, item_id, item_name, COALESCE(description,''),
	amount, discount_amount, final_amount, currency, receipt,
	COALESCE(gateway_order_id,''), COALESCE(payment_id,''), applied_pass_id,
	state, COALESCE(failure_reason,''), created_at, updated_at`

// Repository persists checkout attempts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a checkout repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a checkout attempt. The unique index on receipt enforces one
// gateway order per attempt.
func (r *Repository) Create(ctx context.Context, a *models.CheckoutAttempt) error {
	const q = `INSERT INTO checkout_attempts
		(id, user_id, order_type, item_id, item_name, description, amount, discount_amount,
		 final_amount, currency, receipt, gateway_order_id, applied_pass_id, state)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9,$10,$11,NULLIF($12,''),$13,$14)
		RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		a.ID, a.UserID, a.OrderType, a.ItemID, a.ItemName, a.Description,
		a.Amount, a.DiscountAmount, a.FinalAmount, a.Currency, a.Receipt,
		a.GatewayOrderID, a.AppliedPassID, a.State,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

// GetForUser returns an attempt by id scoped to its owner. Passing uuid.Nil
// as userID skips the ownership check (worker use). Returns (nil, nil) when
// no attempt matches.
func (r *Repository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.CheckoutAttempt, error) {
	const q = `SELECT ` + attemptColumns + ` FROM checkout_attempts
		WHERE id = $1 AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR user_id = $2)`
	row := r.pool.QueryRow(ctx, q, id, userID)
	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// SetState transitions an attempt and records a failure reason when given.
func (r *Repository) SetState(ctx context.Context, id uuid.UUID, state, failureReason string) error {
	const q = `UPDATE checkout_attempts
		SET state = $2, failure_reason = NULLIF($3,''), updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, state, failureReason)
	return err
}

// SetPaymentID records the gateway payment id once the callback arrives.
func (r *Repository) SetPaymentID(ctx context.Context, id uuid.UUID, paymentID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE checkout_attempts SET payment_id = $2, updated_at = NOW() WHERE id = $1`, id, paymentID)
	return err
}

// ListForUser returns a user's attempts, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.CheckoutAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM checkout_attempts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.CheckoutAttempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

func scanAttempt(row pgx.Row) (*models.CheckoutAttempt, error) {
	var a models.CheckoutAttempt
	err := row.Scan(&a.ID, &a.UserID, &a.OrderType, &a.ItemID, &a.ItemName, &a.Description,
		&a.Amount, &a.DiscountAmount, &a.FinalAmount, &a.Currency, &a.Receipt,
		&a.GatewayOrderID, &a.PaymentID, &a.AppliedPassID,
		&a.State, &a.FailureReason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
