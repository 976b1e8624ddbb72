package checkout

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courtside/backend/internal/middleware"
	"github.com/courtside/backend/internal/models"
	"github.com/courtside/backend/internal/payments"
	"github.com/courtside/backend/pkg/response"
)

// Handler exposes the checkout endpoints.
type Handler struct {
	service  *Service
	attempts *Repository
	users    userLoader
	keyID    string
	logger   *zap.Logger
}

type userLoader interface {
	Load(c *gin.Context) (*models.User, bool)
}

// UserLoaderFunc adapts a function to the user loader used by the handler.
type UserLoaderFunc func(c *gin.Context) (*models.User, bool)

// Load implements userLoader.
func (f UserLoaderFunc) Load(c *gin.Context) (*models.User, bool) { return f(c) }

// NewHandler creates a checkout handler. keyID is the public gateway key the
// widget needs.
func NewHandler(service *Service, attempts *Repository, users UserLoaderFunc, keyID string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, attempts: attempts, users: users, keyID: keyID, logger: logger}
}

// BeginRequest is the body for POST /api/checkout.
type BeginRequest struct {
	OrderType string `json:"order_type" binding:"required"`
	ItemID    string `json:"item_id"`
}

// Begin handles POST /api/checkout.
func (h *Handler) Begin(c *gin.Context) {
	user, ok := h.users.Load(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}

	var req BeginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	attempt, err := h.service.Begin(c.Request.Context(), BeginParams{
		User:      user,
		OrderType: req.OrderType,
		ItemID:    req.ItemID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPayer), errors.Is(err, ErrInvalidOrder):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("begin checkout failed", zap.Error(err), zap.String("user_id", user.ID.String()))
			response.Internal(c, "payment gateway unavailable, please retry")
		}
		return
	}

	response.Created(c, gin.H{
		"attempt":          attempt,
		"gateway_order_id": attempt.GatewayOrderID,
		"key_id":           h.keyID,
	})
}

// CallbackRequest is the body for POST /api/checkout/:id/callback. The fields
// come from the payment widget and are untrusted until verified.
type CallbackRequest struct {
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

// Callback handles POST /api/checkout/:id/callback.
func (h *Handler) Callback(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attempt id")
		return
	}

	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	outcome, err := h.service.HandleCallback(c.Request.Context(), CallbackParams{
		AttemptID: attemptID,
		UserID:    userID,
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
		Signature: req.Signature,
	})
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			// Security-relevant rejection: no internals leak to the client.
			response.BadRequest(c, "payment could not be verified")
		case errors.Is(err, ErrAttemptNotFound):
			response.NotFound(c, "checkout attempt not found")
		case errors.Is(err, ErrAttemptClosed):
			response.Conflict(c, "checkout attempt already closed")
		case errors.Is(err, ErrEntitlementPending):
			// Distinguished from payment failure: funds are captured.
			c.JSON(http.StatusAccepted, response.Body{
				Success: true,
				Message: "payment received, your booking is being finalised",
			})
		default:
			h.logger.Error("checkout callback failed", zap.Error(err), zap.String("attempt_id", attemptID.String()))
			response.Internal(c, "payment verification failed, please contact support")
		}
		return
	}

	response.OK(c, outcome)
}

// CancelRequest is the body for POST /api/checkout/:id/cancel.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /api/checkout/:id/cancel (widget abandoned).
func (h *Handler) Cancel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attempt id")
		return
	}

	var req CancelRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.service.Cancel(c.Request.Context(), attemptID, userID, req.Reason); err != nil {
		switch {
		case errors.Is(err, ErrAttemptNotFound):
			response.NotFound(c, "checkout attempt not found")
		case errors.Is(err, ErrAttemptClosed):
			response.Conflict(c, "checkout attempt already completed")
		default:
			h.logger.Error("cancel checkout failed", zap.Error(err), zap.String("attempt_id", attemptID.String()))
			response.Internal(c, "failed to cancel checkout")
		}
		return
	}
	response.OK(c, gin.H{"cancelled": true})
}

// Get handles GET /api/checkout/:id.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attempt id")
		return
	}
	attempt, err := h.attempts.GetForUser(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.logger.Error("get attempt failed", zap.Error(err))
		response.Internal(c, "failed to load checkout attempt")
		return
	}
	if attempt == nil {
		response.NotFound(c, "checkout attempt not found")
		return
	}
	response.OK(c, attempt)
}

// List handles GET /api/checkout.
func (h *Handler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.attempts.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list attempts failed", zap.Error(err))
		response.Internal(c, "failed to list checkout attempts")
		return
	}
	response.OK(c, list)
}
