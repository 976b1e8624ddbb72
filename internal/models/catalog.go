package models

import (
	"time"

	"github.com/google/uuid"
)

// Ground is a bookable sports venue slot.
type Ground struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Sport      string    `json:"sport"`
	City       string    `json:"city"`
	PricePaise int64     `json:"price_paise"` // per slot
	OpenTime   string    `json:"open_time"`
	CloseTime  string    `json:"close_time"`
	CreatedAt  time.Time `json:"created_at"`
}

// Tournament is a joinable competition with an entry fee.
type Tournament struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Sport         string    `json:"sport"`
	Venue         string    `json:"venue"`
	City          string    `json:"city"`
	EntryFeePaise int64     `json:"entry_fee_paise"`
	StartsAt      time.Time `json:"starts_at"`
	MaxTeams      int       `json:"max_teams"`
	CreatedAt     time.Time `json:"created_at"`
}

// CheckoutState values for a checkout attempt.
const (
	CheckoutStatePending          = "pending"
	CheckoutStateSubmitted        = "submitted"
	CheckoutStateAwaitingCallback = "awaiting_callback"
	CheckoutStateReconciling      = "reconciling"
	CheckoutStateSucceeded        = "succeeded"
	CheckoutStateFailed           = "failed"
)

// CheckoutAttempt tracks one pass through the checkout flow. A retry after
// failure is a new attempt with a fresh receipt and gateway order.
type CheckoutAttempt struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	OrderType      string     `json:"order_type"`
	ItemID         string     `json:"item_id"`
	ItemName       string     `json:"item_name"`
	Description    string     `json:"description"`
	Amount         int64      `json:"amount"`
	DiscountAmount int64      `json:"discount_amount"`
	FinalAmount    int64      `json:"final_amount"`
	Currency       string     `json:"currency"`
	Receipt        string     `json:"receipt"` // unique per attempt
	GatewayOrderID string     `json:"gateway_order_id,omitempty"`
	PaymentID      string     `json:"payment_id,omitempty"`
	AppliedPassID  *uuid.UUID `json:"applied_pass_id,omitempty"`
	State          string     `json:"state"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
