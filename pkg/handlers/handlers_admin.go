package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sosbx/planidocs-exchange/pkg/models"
)

// GetPhase returns the current cycle and phase.
func (h *Handler) GetPhase(c *gin.Context) {
	phase, err := h.Store.GetPhase(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, phase)
}

// AdvancePhase moves the cycle to the named phase. Only the immediate next
// phase is accepted; there is no skipping and no going back.
func (h *Handler) AdvancePhase(c *gin.Context) {
	var req struct {
		Phase models.Phase `json:"phase" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	phase, err := h.Store.AdvancePhase(c.Request.Context(), req.Phase)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, phase)
}

// ResetCycle archives the current cycle and opens a fresh one in the
// submission phase.
func (h *Handler) ResetCycle(c *gin.Context) {
	var req struct {
		SubmissionDeadline time.Time `json:"submission_deadline"`
	}
	// Body is optional; a zero deadline falls back to the store's configured
	// submission window.
	_ = c.ShouldBindJSON(&req)

	phase, err := h.Store.ResetCycle(c.Request.Context(), req.SubmissionDeadline)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, phase)
}

// GetPolicy returns the cycle's equity policy, defaults included.
func (h *Handler) GetPolicy(c *gin.Context) {
	phase, err := h.Store.GetPhase(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	policy, err := h.Store.GetPolicy(c.Request.Context(), phase.CycleID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

// PutPolicy replaces the cycle's equity policy. Takes effect on the next
// scoring call; already-returned suggestions are not recomputed.
func (h *Handler) PutPolicy(c *gin.Context) {
	var policy models.EquityPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	phase, err := h.Store.GetPhase(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	if err := h.Store.PutPolicy(c.Request.Context(), phase.CycleID, policy); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

// TransitionListing applies an admin status change to a listing, most
// notably marking it unavailable when the owner's shift disappeared from a
// regenerated planning. Pending is the only status that can move.
func (h *Handler) TransitionListing(c *gin.Context) {
	var req struct {
		Status models.ListingStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := h.Store.TransitionListing(c.Request.Context(), id, req.Status); err != nil {
		renderError(c, err)
		return
	}

	listing, err := h.Store.GetListing(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// DemandStats returns the per-user demand view the scorer uses, for admin
// inspection.
func (h *Handler) DemandStats(c *gin.Context) {
	phase, err := h.Store.GetPhase(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	stats, err := h.Store.DemandStats(c.Request.Context(), phase.CycleID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycle_id": phase.CycleID, "stats": stats})
}
