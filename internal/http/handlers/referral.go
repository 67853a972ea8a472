package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetReferralChain returns the per-trigger reward rows for one pair.
func (h *Handler) GetReferralChain(c *gin.Context) {
	referrerID, err := strconv.ParseInt(c.Query("referrer_id"), 10, 64)
	if err != nil || referrerID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid referrer_id"})
		return
	}
	referredID, err := strconv.ParseInt(c.Query("referred_id"), 10, 64)
	if err != nil || referredID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid referred_id"})
		return
	}

	chain, err := h.Referrals.Chain(c.Request.Context(), referrerID, referredID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chain": chain})
}

// GetReferralStats returns how many registrations a referrer has been
// rewarded for.
func (h *Handler) GetReferralStats(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	count, err := h.Referrals.ReferredCount(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"referred_count": count})
}
