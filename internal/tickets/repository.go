package tickets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtside/backend/internal/models"
)

// ErrTicketNotFound is returned when a ticket lookup matches no row.
var ErrTicketNotFound = errors.New("ticket not found")

const ticketColumns = `id, booking_id, user_id, venue, sport, event_type, event_date,
	COALESCE(start_time,''), COALESCE(end_time,''), amount, currency, payment_id,
	qr_code, barcode, status, COALESCE(qr_s3_key,''), created_at, expires_at, terms, used_at`

// Repository handles ticket persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tickets repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new ticket. The unique index on payment_id guarantees at
// most one ticket per captured payment.
func (r *Repository) Insert(ctx context.Context, t *models.Ticket) error {
	const q = `INSERT INTO tickets
		(id, booking_id, user_id, venue, sport, event_type, event_date, start_time, end_time,
		 amount, currency, payment_id, qr_code, barcode, status, created_at, expires_at, terms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),NULLIF($9,''),$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err := r.pool.Exec(ctx, q,
		t.ID, t.BookingID, t.UserID, t.Venue, t.Sport, t.EventType, t.EventDate,
		t.StartTime, t.EndTime, t.Amount, t.Currency, t.PaymentID,
		t.QRCode, t.Barcode, t.Status, t.CreatedAt, t.ExpiresAt, t.Terms,
	)
	return err
}

// FindByPaymentID returns the ticket issued for a payment, or (nil, nil) when
// none exists yet.
func (r *Repository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Ticket, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE payment_id = $1`, paymentID)
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// GetByID returns a ticket owned by the given user.
func (r *Repository) GetByID(ctx context.Context, ticketID string, userID uuid.UUID) (*models.Ticket, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1 AND user_id = $2`, ticketID, userID)
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	return t, err
}

// GetUserTickets returns all tickets for a user, oldest first. Returns an
// empty slice rather than an error when the user has none.
func (r *Repository) GetUserTickets(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// UpdateStatus sets a ticket's status. Returns false when no ticket of that
// id belongs to the user.
func (r *Repository) UpdateStatus(ctx context.Context, ticketID string, userID uuid.UUID, status string) (bool, error) {
	const q = `UPDATE tickets SET status = $3,
		used_at = CASE WHEN $3 = 'used' THEN NOW() ELSE used_at END
		WHERE id = $1 AND user_id = $2`
	cmd, err := r.pool.Exec(ctx, q, ticketID, userID, status)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// SetQRObjectKey records where the rendered QR PNG was stored.
func (r *Repository) SetQRObjectKey(ctx context.Context, ticketID, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE tickets SET qr_s3_key = $2 WHERE id = $1`, ticketID, key)
	return err
}

func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(&t.ID, &t.BookingID, &t.UserID, &t.Venue, &t.Sport, &t.EventType, &t.EventDate,
		&t.StartTime, &t.EndTime, &t.Amount, &t.Currency, &t.PaymentID,
		&t.QRCode, &t.Barcode, &t.Status, &t.QRS3Key, &t.CreatedAt, &t.ExpiresAt, &t.Terms, &t.UsedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
