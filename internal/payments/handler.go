package payments

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/courtside/backend/internal/gateway"
)

// Handler exposes the payment gateway relay endpoints. Response shapes follow
// the Razorpay standard checkout contract: top-level success/valid fields and
// the raw order/payment objects.
type Handler struct {
	api     gateway.API
	service *Service
	keyID   string
	logger  *zap.Logger
}

// NewHandler creates a payments handler.
func NewHandler(api gateway.API, service *Service, keyID string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{api: api, service: service, keyID: keyID, logger: logger}
}

// CreateOrderRequest is the body for POST /api/payments/create-order.
type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// VerifyRequest is the body for POST /api/payments/verify, carrying the
// widget callback materials. These are untrusted until verified server-side.
type VerifyRequest struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

// CreateOrder handles POST /api/payments/create-order.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing required parameters"})
		return
	}
	if req.Amount <= 0 || req.Currency == "" || req.Receipt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing required parameters"})
		return
	}

	order, err := h.api.CreateOrder(c.Request.Context(), req.Amount, req.Currency, req.Receipt, req.Notes)
	if err != nil {
		h.logger.Error("create order failed", zap.Error(err), zap.String("receipt", req.Receipt))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to create order",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "order": order, "key_id": h.keyID})
}

// Verify handles POST /api/payments/verify. On a valid signature the payment
// is captured if it is still only authorized; an already-captured payment is
// left untouched.
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PaymentID == "" || req.OrderID == "" || req.Signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "valid": false, "message": "Missing required parameters"})
		return
	}

	result, err := h.service.VerifyAndCapture(c.Request.Context(), req.PaymentID, req.OrderID, req.Signature)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "valid": false, "message": "Invalid signature"})
			return
		}
		h.logger.Error("verify and capture failed", zap.Error(err), zap.String("payment_id", req.PaymentID))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Payment verification failed",
			"error":   err.Error(),
		})
		return
	}

	message := "Payment verified"
	if result.Captured {
		message = "Payment verified and captured"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "valid": true, "message": message})
}

// GetPayment handles GET /api/payments/payment/:paymentId.
func (h *Handler) GetPayment(c *gin.Context) {
	paymentID := c.Param("paymentId")
	payment, err := h.service.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		h.logger.Error("fetch payment failed", zap.Error(err), zap.String("payment_id", paymentID))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to fetch payment",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": payment})
}
