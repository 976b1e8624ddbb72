package tickets

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/courtside/backend/internal/middleware"
	"github.com/courtside/backend/internal/models"
	"github.com/courtside/backend/pkg/response"
)

// URLSigner produces a short-lived download URL for a stored QR image.
type URLSigner interface {
	PresignedDownloadURL(ctx context.Context, key string) (string, error)
}

// Handler serves ticket endpoints.
type Handler struct {
	repo   *Repository
	signer URLSigner
	logger *zap.Logger
}

// NewHandler creates a tickets handler. signer may be nil when QR storage is
// not configured.
func NewHandler(repo *Repository, signer URLSigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, signer: signer, logger: logger}
}

// List handles GET /api/tickets. Tickets come back in creation order so the
// booking history reads oldest to newest.
func (h *Handler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.repo.GetUserTickets(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list tickets failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list tickets")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/tickets/:id.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	ticket, err := h.repo.GetByID(c.Request.Context(), c.Param("id"), userID)
	if errors.Is(err, ErrTicketNotFound) {
		response.NotFound(c, "ticket not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load ticket")
		return
	}
	response.OK(c, ticket)
}

// UpdateStatusRequest is the body for PATCH /api/tickets/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

var allowedStatuses = map[string]bool{
	models.TicketStatusActive:    true,
	models.TicketStatusUsed:      true,
	models.TicketStatusExpired:   true,
	models.TicketStatusCancelled: true,
}

// UpdateStatus handles PATCH /api/tickets/:id/status. Marking a ticket used
// at the gate also stamps used_at.
func (h *Handler) UpdateStatus(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !allowedStatuses[req.Status] {
		response.BadRequest(c, "invalid status")
		return
	}
	updated, err := h.repo.UpdateStatus(c.Request.Context(), c.Param("id"), userID, req.Status)
	if err != nil {
		h.logger.Error("ticket status update failed", zap.Error(err), zap.String("ticket_id", c.Param("id")))
		response.Internal(c, "failed to update ticket")
		return
	}
	if !updated {
		response.NotFound(c, "ticket not found")
		return
	}
	response.OK(c, gin.H{"id": c.Param("id"), "status": req.Status})
}

// QRURL handles GET /api/tickets/:id/qr-url. Returns a pre-signed link to the
// stored QR image; 404 until the background upload has run.
func (h *Handler) QRURL(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	if h.signer == nil {
		response.ServiceUnavailable(c, "ticket image storage not configured")
		return
	}
	ticket, err := h.repo.GetByID(c.Request.Context(), c.Param("id"), userID)
	if errors.Is(err, ErrTicketNotFound) {
		response.NotFound(c, "ticket not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load ticket")
		return
	}
	if ticket.QRS3Key == "" {
		response.NotFound(c, "ticket image not ready yet")
		return
	}
	url, err := h.signer.PresignedDownloadURL(c.Request.Context(), ticket.QRS3Key)
	if err != nil {
		h.logger.Error("presign qr url failed", zap.Error(err), zap.String("ticket_id", ticket.ID))
		response.Internal(c, "failed to generate download url")
		return
	}
	response.OK(c, gin.H{"url": url})
}
