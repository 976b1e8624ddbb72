package rewards

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtside/backend/internal/models"
)

var (
	// ErrInsufficientCoins is returned when a redemption would take the
	// balance below zero.
	ErrInsufficientCoins = errors.New("insufficient coin balance")
	// ErrInvalidAmount is returned for non-positive credit/redeem amounts.
	ErrInvalidAmount = errors.New("invalid coin amount")
)

// Repository is the append-only reward coin ledger. The balance is the sum of
// deltas and is never allowed to go negative.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a rewards repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Credit appends a positive ledger entry. When reference is non-empty the
// unique (reason, reference) index deduplicates replayed credits.
func (r *Repository) Credit(ctx context.Context, userID uuid.UUID, amount int64, reason, reference string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	const q = `INSERT INTO coin_ledger (id, user_id, delta, reason, reference)
		VALUES ($1, $2, $3, $4, NULLIF($5,''))
		ON CONFLICT (reason, reference) WHERE reference IS NOT NULL DO NOTHING`
	_, err := r.pool.Exec(ctx, q, uuid.New(), userID, amount, reason, reference)
	return err
}

// Redeem appends a negative ledger entry, guarded so the balance cannot go
// below zero: the insert only happens when the current sum covers the amount.
func (r *Repository) Redeem(ctx context.Context, userID uuid.UUID, amount int64, reference string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	const q = `INSERT INTO coin_ledger (id, user_id, delta, reason, reference)
		SELECT $1, $2, -$3::bigint, $4, NULLIF($5,'')
		WHERE (SELECT COALESCE(SUM(delta),0) FROM coin_ledger WHERE user_id = $2) >= $3`
	cmd, err := r.pool.Exec(ctx, q, uuid.New(), userID, amount, models.CoinReasonRedeem, reference)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInsufficientCoins
	}
	return nil
}

// Balance returns the user's current coin balance.
func (r *Repository) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(delta),0) FROM coin_ledger WHERE user_id = $1`, userID).Scan(&balance)
	return balance, err
}

// History returns the user's ledger entries, newest first.
func (r *Repository) History(ctx context.Context, userID uuid.UUID) ([]models.CoinEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, delta, reason, COALESCE(reference,''), created_at
		 FROM coin_ledger WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.CoinEntry, 0)
	for rows.Next() {
		var e models.CoinEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Reason, &e.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
