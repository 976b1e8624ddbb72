package passes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/courtside/backend/internal/middleware"
	"github.com/courtside/backend/pkg/response"
)

// Handler serves pass endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a passes handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /api/passes. Returns every pass the user has bought,
// consumed and expired ones included.
func (h *Handler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.repo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list passes failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list passes")
		return
	}
	response.OK(c, list)
}

// Active handles GET /api/passes/active. Returns the pass checkout would
// apply to the next tournament entry, or 404 when none is usable.
func (h *Handler) Active(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	pass, err := h.repo.ActiveForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load pass")
		return
	}
	if pass == nil {
		response.NotFound(c, "no active pass")
		return
	}
	response.OK(c, pass)
}
