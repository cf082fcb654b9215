package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sosbx/planidocs-exchange/pkg/exchange"
	"github.com/sosbx/planidocs-exchange/pkg/models"
)

// MatchInput is the JSON body of a matching request: the user whose planning
// we match against, plus the shifts the counterparty proposes.
type MatchInput struct {
	UserID   string                 `json:"user_id" binding:"required"`
	Proposed []models.ProposedShift `json:"proposed" binding:"required"`
}

// Match scores a batch of proposed shifts against a user's current planning.
// Read-only: no listing or planning state changes here.
func (h *Handler) Match(c *gin.Context) {
	var input MatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	planning, err := h.Store.GetPlanning(c.Request.Context(), input.UserID)
	if err != nil {
		renderError(c, err)
		return
	}

	idx := exchange.BuildIndex(planning)
	results := exchange.MatchShifts(input.Proposed, idx)

	matched := 0
	for _, r := range results {
		if r.MatchType != models.MatchNone {
			matched++
		}
	}

	h.RecordUsage(c, matched, 0)

	c.JSON(http.StatusOK, gin.H{
		"user_id":       input.UserID,
		"results":       results,
		"matched_count": matched,
	})
}

// ValidateMatchInput checks a matching payload without running the matcher.
// Planning-sync clients call this before submitting large batches.
func (h *Handler) ValidateMatchInput(c *gin.Context) {
	var input MatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	if len(input.Proposed) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": "At least one proposed shift is required",
		})
		return
	}

	malformed := 0
	unrecognized := 0
	seen := make(map[string]bool)
	for _, p := range input.Proposed {
		date, err := exchange.NormalizeDate(p.Date)
		if err != nil {
			malformed++
			continue
		}
		if !exchange.RecognizedPeriod(p.Period) {
			unrecognized++
		}
		key := date + "|" + string(exchange.NormalizePeriod(p.Period))
		if seen[key] {
			c.JSON(http.StatusOK, gin.H{
				"valid": false,
				"error": "Duplicate proposed slot: " + key,
			})
			return
		}
		seen[key] = true
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"stats": gin.H{
			"proposed_count":       len(input.Proposed),
			"malformed_dates":      malformed,
			"unrecognized_periods": unrecognized,
		},
	})
}

// UploadPlanning replaces a user's stored planning wholesale. The payload is
// the full assignment set keyed by the caller's own identifiers.
func (h *Handler) UploadPlanning(c *gin.Context) {
	userID := c.Param("userId")

	var assignments map[string]models.ShiftAssignment
	if err := c.ShouldBindJSON(&assignments); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Store.ReplacePlanning(c.Request.Context(), userID, assignments); err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "count": len(assignments)})
}

// GetPlanning returns a user's stored planning keyed by normalized slot.
func (h *Handler) GetPlanning(c *gin.Context) {
	userID := c.Param("userId")

	planning, err := h.Store.GetPlanning(c.Request.Context(), userID)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "assignments": planning})
}
