package models

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus values for issued tickets.
const (
	TicketStatusActive    = "active"
	TicketStatusUsed      = "used"
	TicketStatusExpired   = "expired"
	TicketStatusCancelled = "cancelled"
)

// EventType values for tickets.
const (
	EventTypeGround     = "ground"
	EventTypeTournament = "tournament"
)

// Ticket is proof of entitlement issued after a verified, captured payment.
// Exactly one ticket exists per captured payment (unique payment_id).
type Ticket struct {
	ID        string     `json:"id"`         // TKT-<base36 timestamp>-<random>
	BookingID string     `json:"booking_id"` // BKG-...
	UserID    uuid.UUID  `json:"user_id"`
	Venue     string     `json:"venue"`
	Sport     string     `json:"sport"`
	EventType string     `json:"event_type"` // ground | tournament
	EventDate time.Time  `json:"event_date"`
	StartTime string     `json:"start_time,omitempty"`
	EndTime   string     `json:"end_time,omitempty"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	PaymentID string     `json:"payment_id"`
	QRCode    string     `json:"qr_code"` // encoded payload rendered into the QR image
	Barcode   string     `json:"barcode"` // derived from ID
	Status    string     `json:"status"`
	QRS3Key   string     `json:"-"` // set once the QR PNG is uploaded
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"` // event date + 24h
	Terms     []string   `json:"terms"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}
