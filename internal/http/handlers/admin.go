package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminAdjust applies a manual point adjustment. The idempotency key is
// optional; a generated one makes the call single-shot.
func (h *Handler) AdminAdjust(c *gin.Context) {
	var req struct {
		UserID         int64   `json:"user_id" binding:"required"`
		Delta          float64 `json:"delta" binding:"required"`
		Reason         string  `json:"reason" binding:"required"`
		IdempotencyKey string  `json:"idempotency_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, delta and reason are required"})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = "adj-" + uuid.NewString()
	}

	adminID := c.GetString("admin_id")
	res, err := h.Admin.Adjust(c.Request.Context(), adminID, req.UserID, req.Delta, req.Reason, req.IdempotencyKey)
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

// AdminAdjustments lists recent adjustments for one user.
func (h *Handler) AdminAdjustments(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	list, err := h.Admin.Adjustments(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"adjustments": list})
}

// OpenCycle creates a new leaderboard cycle.
func (h *Handler) OpenCycle(c *gin.Context) {
	var req struct {
		StartDate time.Time `json:"start_date" binding:"required"`
		EndDate   time.Time `json:"end_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date are required"})
		return
	}

	cycle, err := h.Cycles.Open(c.Request.Context(), req.StartDate, req.EndDate, c.GetString("admin_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cycle)
}

// CloseCycle closes a cycle and freezes its winners. Closing a closed
// cycle returns 409 with the frozen winners unchanged.
func (h *Handler) CloseCycle(c *gin.Context) {
	cycleID, ok := pathCycleID(c)
	if !ok {
		return
	}

	res, err := h.Cycles.Close(c.Request.Context(), cycleID)
	if err != nil {
		// re-closing is a no-op: return the frozen winners, not a failure
		if errors.Is(err, domain.ErrCycleAlreadyClosed) {
			c.JSON(http.StatusOK, res)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reconcile runs one drift-repair sweep on demand.
func (h *Handler) Reconcile(c *gin.Context) {
	limit := 500
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	repaired, err := h.Reconciler.Run(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repaired": repaired})
}
