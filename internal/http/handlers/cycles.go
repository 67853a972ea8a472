package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func pathCycleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cycle id"})
		return 0, false
	}
	return id, true
}

// GetCycle returns one cycle; winners are included once it is closed.
func (h *Handler) GetCycle(c *gin.Context) {
	cycleID, ok := pathCycleID(c)
	if !ok {
		return
	}

	res, err := h.Cycles.Get(c.Request.Context(), cycleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetLeaderboard returns the live standings while the cycle is open and
// the frozen winner list after it closes.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	cycleID, ok := pathCycleID(c)
	if !ok {
		return
	}

	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	res, err := h.Cycles.Standings(c.Request.Context(), cycleID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
