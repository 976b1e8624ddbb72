package models

// OrderType identifies what a checkout order purchases.
const (
	OrderTypeGround     = "ground"
	OrderTypeTournament = "tournament"
	OrderTypePass       = "pass"
)

// OrderDetails describes what is being purchased. Amounts are in the minor
// currency unit (paise for INR).
type OrderDetails struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	OrderID     string `json:"order_id"` // caller-generated receipt, unique per attempt
	Description string `json:"description"`
	Type        string `json:"type"` // ground | tournament | pass
	ItemID      string `json:"item_id"`
	ItemName    string `json:"item_name"`
}

// ValidType reports whether the order type is one of the known kinds.
func (o OrderDetails) ValidType() bool {
	switch o.Type {
	case OrderTypeGround, OrderTypeTournament, OrderTypePass:
		return true
	}
	return false
}
