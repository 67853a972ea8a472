package handlers

import (
	"errors"
	"net/http"

	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Handler struct {
	DB           *pgxpool.Pool
	Engine       *service.Engine
	Balances     *service.BalanceService
	Achievements *service.AchievementService
	Referrals    *service.ReferralService
	Cycles       *service.CycleService
	Admin        *service.AdminService
	Reconciler   *service.Reconciler
}

func NewHandler(db *pgxpool.Pool, engine *service.Engine, balances *service.BalanceService, achievements *service.AchievementService, referrals *service.ReferralService, cycles *service.CycleService, admin *service.AdminService, reconciler *service.Reconciler) *Handler {
	return &Handler{
		DB:           db,
		Engine:       engine,
		Balances:     balances,
		Achievements: achievements,
		Referrals:    referrals,
		Cycles:       cycles,
		Admin:        admin,
		Reconciler:   reconciler,
	}
}

// writeError maps domain sentinels onto HTTP status codes. Anything
// unmatched is a 500 with a generic body; details stay in the logs.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownActionType), errors.Is(err, domain.ErrInvalidCycleWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSelfReferral):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "self referral is not allowed"})
	case errors.Is(err, domain.ErrInsufficientBalance):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient balance"})
	case errors.Is(err, domain.ErrReferrerMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": "referred user already has a referrer"})
	case errors.Is(err, domain.ErrCycleAlreadyClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "cycle already closed"})
	case errors.Is(err, domain.ErrCycleNotFound), errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConcurrentModification):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "concurrent modification, retry"})
	case errors.Is(err, domain.ErrEngineUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
