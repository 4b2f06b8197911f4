package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/carbontrack/ledger"
	"github.com/cppla/carbontrack/utils"
)

// ConfigController publishes the business constants clients need to quote costs.
type ConfigController struct {
	cfg ledger.Config
}

func NewConfigController(cfg ledger.Config) *ConfigController { return &ConfigController{cfg: cfg} }

func (c *ConfigController) GetLedger(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"points_per_ton":     c.cfg.PointsPerTon,
		"welcome_bonus":      c.cfg.WelcomeBonus,
		"checkin_points":     c.cfg.CheckInPoints,
		"scan_history_limit": c.cfg.HistoryLimit,
		"scan_fallback":      c.cfg.ScanFallback,
		"payment_methods":    []ledger.PaymentMethod{ledger.PayWithPoints, ledger.PayWithToken},
	})
}
