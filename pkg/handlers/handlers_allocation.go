package handlers

import (
	"encoding/csv"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sosbx/planidocs-exchange/pkg/exchange"
	"github.com/sosbx/planidocs-exchange/pkg/models"
)

// ScoreListing ranks a listing's interested users by the cycle's equity
// policy. Read-only: scores are advisory until an allocation is confirmed.
func (h *Handler) ScoreListing(c *gin.Context) {
	phase, ok := h.gate(c, exchange.OpScoreCandidates)
	if !ok {
		return
	}

	listing, err := h.Store.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	policy, err := h.Store.GetPolicy(c.Request.Context(), phase.CycleID)
	if err != nil {
		renderError(c, err)
		return
	}

	stats, err := h.Store.DemandStats(c.Request.Context(), phase.CycleID)
	if err != nil {
		renderError(c, err)
		return
	}

	scores := exchange.ScoreCandidates(listing, listing.InterestedUserIDs, stats, policy)
	ranked := exchange.RankCandidates(scores, stats)

	c.JSON(http.StatusOK, gin.H{
		"listing_id":        listing.ID,
		"distribution_mode": policy.DistributionMode,
		"candidates":        ranked,
	})
}

// Allocate grants a listing to one interested user and finalizes the
// exchange. The planning move, status change and audit record commit
// together or not at all.
func (h *Handler) Allocate(c *gin.Context) {
	if _, ok := h.gate(c, exchange.OpAllocate); !ok {
		return
	}

	var req struct {
		UserID string               `json:"user_id" binding:"required"`
		Kind   models.OperationKind `json:"kind"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Kind == "" {
		req.Kind = models.OpKindExchange
	}

	listing, err := h.Store.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	interested := false
	for _, id := range listing.InterestedUserIDs {
		if id == req.UserID {
			interested = true
			break
		}
	}
	if !interested {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user has not declared interest in this listing"})
		return
	}

	record, err := h.Store.CompleteExchange(c.Request.Context(), listing.ID, req.UserID, req.Kind)
	if err != nil {
		renderError(c, err)
		return
	}

	h.RecordUsage(c, 1, 0)
	c.JSON(http.StatusOK, record)
}

// ProposeToReplacements forwards an unclaimed listing to the external
// replacement pool once the cycle has completed.
func (h *Handler) ProposeToReplacements(c *gin.Context) {
	if _, ok := h.gate(c, exchange.OpProposeToReplacement); !ok {
		return
	}

	listing, err := h.Store.MarkProposedToReplacements(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// History returns the current cycle's completed exchanges, newest first.
// Pass ?cycle= to read an archived cycle instead.
func (h *Handler) History(c *gin.Context) {
	if _, ok := h.gate(c, exchange.OpQueryHistory); !ok {
		return
	}

	cycleID := c.Query("cycle")
	if cycleID == "" {
		phase, err := h.Store.GetPhase(c.Request.Context())
		if err != nil {
			renderError(c, err)
			return
		}
		cycleID = phase.CycleID
	}

	records, err := h.Store.History(c.Request.Context(), cycleID)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cycle_id": cycleID, "records": records})
}

// ExportHistoryCSV renders the cycle's exchange history as CSV for payroll
// and planning reconciliation.
func (h *Handler) ExportHistoryCSV(c *gin.Context) {
	if _, ok := h.gate(c, exchange.OpQueryHistory); !ok {
		return
	}

	cycleID := c.Query("cycle")
	if cycleID == "" {
		phase, err := h.Store.GetPhase(c.Request.Context())
		if err != nil {
			renderError(c, err)
			return
		}
		cycleID = phase.CycleID
	}

	records, err := h.Store.History(c.Request.Context(), cycleID)
	if err != nil {
		renderError(c, err)
		return
	}

	var outCSV strings.Builder
	writer := csv.NewWriter(&outCSV)
	writer.Write([]string{"listing_id", "kind", "from_user", "to_user", "date", "period", "shift_type", "time_slot", "completed_at"})

	for _, r := range records {
		writer.Write([]string{
			r.ListingID,
			string(r.Kind),
			r.FromUserID,
			r.ToUserID,
			r.Date,
			r.Period,
			r.ShiftType,
			r.TimeSlot,
			r.CompletedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	writer.Flush()

	c.JSON(http.StatusOK, gin.H{"cycle_id": cycleID, "csv": outCSV.String()})
}
