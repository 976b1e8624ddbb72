package tickets

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/courtside/backend/internal/models"
)

// TicketExpiry is how long after the event date a ticket stays valid.
const TicketExpiry = 24 * time.Hour

// DefaultTerms printed on every ticket.
var DefaultTerms = []string{
	"Ticket is valid only for the listed date and venue.",
	"Entry requires the QR code and a photo ID.",
	"Tickets are non-transferable and non-refundable.",
	"Management reserves the right of admission.",
}

// NewTicketID returns an id of the form TKT-<base36 ms timestamp>-<random>.
func NewTicketID(now time.Time) string {
	return "TKT-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)) + "-" + randomSuffix(4)
}

// NewBookingID returns an id of the form BKG-<base36 ms timestamp>-<random>.
func NewBookingID(now time.Time) string {
	return "BKG-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)) + "-" + randomSuffix(4)
}

// BarcodeFor derives the scannable barcode value from a ticket id.
func BarcodeFor(ticketID string) string {
	return strings.ReplaceAll(ticketID, "-", "")
}

// qrPayload is the JSON encoded into the ticket QR code.
type qrPayload struct {
	TicketID  string `json:"tid"`
	BookingID string `json:"bid"`
	UserID    string `json:"uid"`
	Event     string `json:"event"`
	PaymentID string `json:"pay"`
}

// QRPayload builds the opaque string encoded in the ticket QR code.
func QRPayload(t *models.Ticket) string {
	raw, _ := json.Marshal(qrPayload{
		TicketID:  t.ID,
		BookingID: t.BookingID,
		UserID:    t.UserID.String(),
		Event:     t.Venue,
		PaymentID: t.PaymentID,
	})
	return string(raw)
}

// RenderQRPNG renders the ticket QR payload as a PNG.
func RenderQRPNG(t *models.Ticket) ([]byte, error) {
	png, err := qrcode.Encode(t.QRCode, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return png, nil
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}
