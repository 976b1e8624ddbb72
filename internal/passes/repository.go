package passes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtside/backend/internal/models"
)

// ErrPassNotFound is returned when a pass lookup matches no row.
var ErrPassNotFound = errors.New("pass not found")

const passColumns = `id, user_id, payment_id, discount_percent, active,
	activated_at, expires_at, consumed_at, COALESCE(consumed_by_order,'')`

// Repository handles discount pass persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a passes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Activate stores a new pass. The unique index on payment_id makes replayed
// activations for the same payment a no-op.
func (r *Repository) Activate(ctx context.Context, p *models.Pass) error {
	const q = `INSERT INTO passes (id, user_id, payment_id, discount_percent, active, activated_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (payment_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, p.ID, p.UserID, p.PaymentID, p.DiscountPercent, p.Active, p.ActivatedAt, p.ExpiresAt)
	return err
}

// FindByPaymentID returns the pass activated by a payment, or (nil, nil).
func (r *Repository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Pass, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+passColumns+` FROM passes WHERE payment_id = $1`, paymentID)
	p, err := scanPass(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ActiveForUser returns the user's oldest usable pass, or (nil, nil) when the
// user has none.
func (r *Repository) ActiveForUser(ctx context.Context, userID uuid.UUID) (*models.Pass, error) {
	const q = `SELECT ` + passColumns + ` FROM passes
		WHERE user_id = $1 AND active AND consumed_at IS NULL AND expires_at > NOW()
		ORDER BY activated_at ASC LIMIT 1`
	row := r.pool.QueryRow(ctx, q, userID)
	p, err := scanPass(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// Consume marks a pass as used by the given order receipt. The conditional
// UPDATE makes consumption atomic: only one caller observes rows affected,
// so a pass is never applied twice.
func (r *Repository) Consume(ctx context.Context, passID uuid.UUID, receipt string) (bool, error) {
	const q = `UPDATE passes SET active = FALSE, consumed_at = NOW(), consumed_by_order = $2
		WHERE id = $1 AND active AND consumed_at IS NULL`
	cmd, err := r.pool.Exec(ctx, q, passID, receipt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// ListForUser returns all of a user's passes, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Pass, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+passColumns+` FROM passes WHERE user_id = $1 ORDER BY activated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.Pass, 0)
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

func scanPass(row pgx.Row) (*models.Pass, error) {
	var p models.Pass
	err := row.Scan(&p.ID, &p.UserID, &p.PaymentID, &p.DiscountPercent, &p.Active,
		&p.ActivatedAt, &p.ExpiresAt, &p.ConsumedAt, &p.ConsumedByOrder)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
