package models

import (
	"time"

	"github.com/google/uuid"
)

// CoinReason values for ledger entries.
const (
	CoinReasonTournamentJoin = "tournament_join"
	CoinReasonReferral       = "referral"
	CoinReasonRedeem         = "redeem"
)

// CoinEntry is one append-only reward coin ledger row. Credits are positive,
// redemptions negative; the balance is the sum and never goes below zero.
type CoinEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference,omitempty"` // e.g. payment id for tournament joins
	CreatedAt time.Time `json:"created_at"`
}
