package models

import (
	"time"

	"github.com/google/uuid"
)

// Pass is a time-boxed discount entitlement purchased by a user and consumed
// at most once against a later tournament order.
type Pass struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	PaymentID       string     `json:"payment_id"` // payment that activated the pass
	DiscountPercent int        `json:"discount_percent"`
	Active          bool       `json:"active"`
	ActivatedAt     time.Time  `json:"activated_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	ConsumedAt      *time.Time `json:"consumed_at,omitempty"`
	ConsumedByOrder string     `json:"consumed_by_order,omitempty"` // receipt of the order it was applied to
}

// Usable reports whether the pass can still be applied at the given time.
func (p Pass) Usable(now time.Time) bool {
	return p.Active && p.ConsumedAt == nil && now.Before(p.ExpiresAt)
}
