package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sosbx/planidocs-exchange/pkg/exchange"
	"github.com/sosbx/planidocs-exchange/pkg/models"
	"github.com/sosbx/planidocs-exchange/pkg/store"
)

// gate loads the current cycle and rejects the request when the operation is
// not legal in the current phase. Returns the phase for handlers that need
// the cycle ID.
func (h *Handler) gate(c *gin.Context, op exchange.Operation) (models.BagPhase, bool) {
	phase, err := h.Store.GetPhase(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return models.BagPhase{}, false
	}
	if err := exchange.CanPerform(phase.Phase, op); err != nil {
		renderError(c, err)
		return models.BagPhase{}, false
	}
	return phase, true
}

// CreateListing publishes a shift on the exchange bag.
func (h *Handler) CreateListing(c *gin.Context) {
	phase, ok := h.gate(c, exchange.OpCreateListing)
	if !ok {
		return
	}

	var req models.ShiftExchangeListing
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.Store.CreateListing(c.Request.Context(), phase.CycleID, req)
	if err != nil {
		renderError(c, err)
		return
	}

	h.RecordUsage(c, 0, 1)
	c.JSON(http.StatusCreated, listing)
}

// ListListings returns listings for the current cycle, optionally filtered
// by status, date, or owner.
func (h *Handler) ListListings(c *gin.Context) {
	phase, err := h.Store.GetPhase(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	listings, err := h.Store.ListListings(c.Request.Context(), store.ListingFilter{
		CycleID: phase.CycleID,
		Status:  models.ListingStatus(c.Query("status")),
		Date:    c.Query("date"),
		OwnerID: c.Query("owner"),
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cycle_id": phase.CycleID, "listings": listings})
}

// GetListingByID returns one listing.
func (h *Handler) GetListingByID(c *gin.Context) {
	listing, err := h.Store.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// WithdrawListing removes a pending listing. Only the owner may withdraw.
func (h *Handler) WithdrawListing(c *gin.Context) {
	if _, ok := h.gate(c, exchange.OpWithdrawListing); !ok {
		return
	}

	ownerID := c.Query("owner")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner is required"})
		return
	}

	if err := h.Store.WithdrawListing(c.Request.Context(), c.Param("id"), ownerID); err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Listing withdrawn"})
}

// ToggleInterest adds or removes a user from a listing's interested set.
// Adding while the slot collides with the user's own planning needs an
// explicit confirm flag; withdrawing is always allowed.
func (h *Handler) ToggleInterest(c *gin.Context) {
	if _, ok := h.gate(c, exchange.OpToggleInterest); !ok {
		return
	}

	var req struct {
		UserID  string `json:"user_id" binding:"required"`
		Confirm bool   `json:"confirm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.Store.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	planning, err := h.Store.GetPlanning(c.Request.Context(), req.UserID)
	if err != nil {
		renderError(c, err)
		return
	}

	alreadyInterested := false
	for _, id := range listing.InterestedUserIDs {
		if id == req.UserID {
			alreadyInterested = true
			break
		}
	}

	idx := exchange.BuildIndex(planning)
	decision := exchange.CheckInterestToggle(listing, req.UserID, idx, alreadyInterested)

	if decision.RequiresConfirmation && !req.Confirm {
		c.JSON(http.StatusOK, gin.H{
			"toggled":               false,
			"requires_confirmation": true,
			"conflict":              decision.Conflict,
		})
		return
	}

	updated, added, err := h.Store.ToggleInterest(c.Request.Context(), listing.ID, req.UserID)
	if err != nil {
		renderError(c, err)
		return
	}

	resp := gin.H{
		"toggled": true,
		"added":   added,
		"listing": updated,
	}
	if decision.Conflict != nil && decision.Conflict.HasConflict {
		resp["conflict"] = decision.Conflict
	}
	c.JSON(http.StatusOK, resp)
}

// CheckConflict reports whether a listing's slot collides with a user's
// planning. Pure read, usable in any phase.
func (h *Handler) CheckConflict(c *gin.Context) {
	userID := c.Query("user")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is required"})
		return
	}

	listing, err := h.Store.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	planning, err := h.Store.GetPlanning(c.Request.Context(), userID)
	if err != nil {
		renderError(c, err)
		return
	}

	idx := exchange.BuildIndex(planning)
	c.JSON(http.StatusOK, exchange.DetectConflict(listing, idx))
}
