package handlers

import (
	"net/http"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	"github.com/gin-gonic/gin"
)

// SubmitEvent accepts one action event and runs it through the engine.
// Replays with the same idempotency key return 200 with the original
// result; a first acceptance returns 201.
func (h *Handler) SubmitEvent(c *gin.Context) {
	var ev domain.ActionEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}
	if !ev.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action_type, user_id and idempotency_key are required"})
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	res, err := h.Engine.SubmitActionEvent(c.Request.Context(), &ev)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// TriggerReferral processes one referral milestone.
func (h *Handler) TriggerReferral(c *gin.Context) {
	var req struct {
		ReferrerID int64  `json:"referrer_id" binding:"required"`
		ReferredID int64  `json:"referred_id" binding:"required"`
		Trigger    string `json:"trigger" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "referrer_id, referred_id and trigger are required"})
		return
	}

	trigger := domain.ReferralTrigger(req.Trigger)
	if !domain.ValidTrigger(trigger) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown referral trigger"})
		return
	}

	res, err := h.Referrals.OnTrigger(c.Request.Context(), req.ReferrerID, req.ReferredID, trigger)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
