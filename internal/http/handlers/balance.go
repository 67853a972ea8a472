package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func pathUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

// GetBalance returns the user's current balance and level. Users with no
// activity read as zero.
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	b, err := h.Balances.GetBalance(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GetHistory returns the user's recent ledger entries, newest first.
func (h *Handler) GetHistory(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	entries, err := h.Balances.History(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// GetAchievements returns the catalog annotated with the user's progress.
func (h *Handler) GetAchievements(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	statuses, err := h.Achievements.UserAchievements(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": statuses})
}
