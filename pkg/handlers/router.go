package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/sosbx/planidocs-exchange/config"
	"github.com/sosbx/planidocs-exchange/internal/mw"
)

// NewRouter assembles the gin engine: middleware, admin routes behind JWT,
// exchange routes behind API keys.
func NewRouter(h *Handler, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateBurst))

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	responseCache := gocache.New(cacheTTL, 2*cacheTTL)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Planidocs Exchange API",
			"version": "1.0.0",
		})
	})

	r.POST("/admin/login", h.Login)

	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)

		admin.GET("/phase", h.GetPhase)
		admin.POST("/phase", h.AdvancePhase)
		admin.POST("/phase/reset", h.ResetCycle)
		admin.GET("/policy", h.GetPolicy)
		admin.PUT("/policy", h.PutPolicy)
		admin.GET("/stats", h.DemandStats)
		admin.PUT("/listings/:id/status", h.TransitionListing)
	}

	api := r.Group("/api")
	api.Use(h.APIKeyMiddleware())
	{
		api.POST("/match", h.Match)
		api.POST("/match/validate", h.ValidateMatchInput)

		api.PUT("/planning/:userId", h.UploadPlanning)
		api.GET("/planning/:userId", h.GetPlanning)

		api.POST("/listings", h.CreateListing)
		api.GET("/listings", mw.Cache(responseCache, cacheTTL), h.ListListings)
		api.GET("/listings/:id", h.GetListingByID)
		api.DELETE("/listings/:id", h.WithdrawListing)
		api.POST("/listings/:id/interest", h.ToggleInterest)
		api.GET("/listings/:id/conflict", h.CheckConflict)
		api.POST("/listings/:id/score", h.ScoreListing)
		api.POST("/listings/:id/allocate", h.Allocate)
		api.POST("/listings/:id/replacements", h.ProposeToReplacements)

		api.GET("/history", h.History)
		api.GET("/export", h.ExportHistoryCSV)
		api.GET("/usage", h.GetMyUsage)
	}

	return r
}
