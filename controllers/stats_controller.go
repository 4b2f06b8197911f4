package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/carbontrack/store"
	"github.com/cppla/carbontrack/utils"
)

const statsCacheKey = "stats:platform"

// StatsController provides platform-wide ledger statistics.
type StatsController struct {
	store *store.Store
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(s *store.Store) *StatsController {
	return &StatsController{store: s}
}

// GetStats returns aggregate figures, cached briefly in Redis.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var stats store.Stats
	if utils.CacheGetJSON(ctx.Request.Context(), statsCacheKey, &stats) {
		utils.Success(ctx, stats)
		return
	}
	stats = s.store.Stats(ctx.Request.Context())
	utils.CacheSetJSON(ctx.Request.Context(), statsCacheKey, stats, 30*time.Second)
	utils.Success(ctx, stats)
}
