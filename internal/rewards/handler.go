package rewards

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courtside/backend/config"
	"github.com/courtside/backend/internal/middleware"
	"github.com/courtside/backend/internal/models"
	"github.com/courtside/backend/pkg/response"
)

// Handler serves reward-coin endpoints.
type Handler struct {
	repo    *Repository
	rewards config.RewardsConfig
	logger  *zap.Logger
}

// NewHandler creates a rewards handler.
func NewHandler(repo *Repository, rewards config.RewardsConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, rewards: rewards, logger: logger}
}

// Balance handles GET /api/rewards. Returns the current balance and the
// ledger history, newest first.
func (h *Handler) Balance(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	balance, err := h.repo.Balance(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("coin balance failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to load balance")
		return
	}
	history, err := h.repo.History(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load history")
		return
	}
	response.OK(c, gin.H{"balance": balance, "history": history})
}

// RedeemRequest is the body for POST /api/rewards/redeem.
type RedeemRequest struct {
	Amount    int64  `json:"amount" binding:"required"`
	Reference string `json:"reference"`
}

// Redeem handles POST /api/rewards/redeem. The ledger write is conditional on
// the balance covering the amount, so concurrent redemptions cannot overdraw.
func (h *Handler) Redeem(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	err := h.repo.Redeem(c.Request.Context(), userID, req.Amount, req.Reference)
	switch {
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(c, "amount must be positive")
	case errors.Is(err, ErrInsufficientCoins):
		response.Conflict(c, "insufficient coin balance")
	case err != nil:
		h.logger.Error("coin redeem failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to redeem coins")
	default:
		balance, berr := h.repo.Balance(c.Request.Context(), userID)
		if berr != nil {
			response.OK(c, gin.H{"redeemed": req.Amount})
			return
		}
		response.OK(c, gin.H{"redeemed": req.Amount, "balance": balance})
	}
}

// ReferralRequest is the body for POST /api/rewards/referral (admin only).
type ReferralRequest struct {
	UserID       uuid.UUID `json:"user_id" binding:"required"`
	ReferralCode string    `json:"referral_code" binding:"required"`
}

// Referral handles POST /api/rewards/referral. Credits the referral bonus at
// most once per referral code thanks to the (reason, reference) uniqueness.
func (h *Handler) Referral(c *gin.Context) {
	var req ReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	err := h.repo.Credit(c.Request.Context(), req.UserID, h.rewards.ReferralCoins, models.CoinReasonReferral, req.ReferralCode)
	if err != nil {
		h.logger.Error("referral credit failed", zap.Error(err), zap.String("user_id", req.UserID.String()))
		response.Internal(c, "failed to credit referral")
		return
	}
	response.OK(c, gin.H{"credited": h.rewards.ReferralCoins})
}
