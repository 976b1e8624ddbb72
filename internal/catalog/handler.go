package catalog

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/courtside/backend/pkg/response"
)

// Handler serves the public catalog endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a catalog handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Grounds handles GET /api/grounds.
func (h *Handler) Grounds(c *gin.Context) {
	list, err := h.repo.Grounds(c.Request.Context())
	if err != nil {
		h.logger.Error("list grounds failed", zap.Error(err))
		response.Internal(c, "failed to list grounds")
		return
	}
	response.OK(c, list)
}

// Tournaments handles GET /api/tournaments.
func (h *Handler) Tournaments(c *gin.Context) {
	list, err := h.repo.Tournaments(c.Request.Context())
	if err != nil {
		h.logger.Error("list tournaments failed", zap.Error(err))
		response.Internal(c, "failed to list tournaments")
		return
	}
	response.OK(c, list)
}
