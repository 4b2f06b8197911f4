package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cppla/carbontrack/catalog"
	"github.com/cppla/carbontrack/config"
	"github.com/cppla/carbontrack/controllers"
	"github.com/cppla/carbontrack/ledger"
	"github.com/cppla/carbontrack/middleware"
	"github.com/cppla/carbontrack/notify"
	"github.com/cppla/carbontrack/store"
	"github.com/cppla/carbontrack/utils"
)

// Deps are the long-lived components the HTTP layer is built on.
type Deps struct {
	Config   config.AppConfig
	DB       *gorm.DB
	Store    *store.Store
	Catalog  *catalog.Catalog
	Ledger   *ledger.Service
	Notify   *notify.Center
	Registry *prometheus.Registry // nil disables /metrics
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		utils.Sugar.Warnf("access log disabled: %v", err)
		r.Use(gin.Recovery())
	}

	if d.Registry != nil {
		r.Use(middleware.NewHTTPMetrics(d.Registry).Handler())
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(d.DB, d.Ledger, d.Notify, cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	ledgerController := controllers.NewLedgerController(d.Ledger)
	notificationController := controllers.NewNotificationController(d.Notify)
	catalogController := controllers.NewCatalogController(d.Catalog)
	statsController := controllers.NewStatsController(d.Store)
	configController := controllers.NewConfigController(d.Ledger.Config())

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	authGroup.POST("/signup", authController.Signup)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(cfg.JWTSecret), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(cfg.JWTSecret), middleware.SessionRequired(d.Ledger), authController.Me)

	catalogGroup := api.Group("/catalog")
	catalogGroup.GET("/products", catalogController.Products)
	catalogGroup.GET("/products/:id", catalogController.Product)
	catalogGroup.GET("/projects", catalogController.Projects)
	catalogGroup.GET("/rewards", catalogController.Rewards)

	api.GET("/stats", statsController.GetStats)
	api.GET("/config/ledger", configController.GetLedger)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(cfg.JWTSecret), middleware.RateLimit(cfg.RateLimitPerMinute), middleware.SessionRequired(d.Ledger))
	protected.GET("/account", ledgerController.GetAccount)
	protected.GET("/ledger/entries", ledgerController.ListEntries)
	protected.POST("/offsets", ledgerController.PurchaseOffset)
	protected.POST("/rewards/:id/redeem", ledgerController.RedeemReward)
	protected.POST("/scans", ledgerController.RegisterScan)
	protected.POST("/checkin", ledgerController.CheckIn)
	protected.GET("/notifications", notificationController.List)
	protected.POST("/notifications/read-all", notificationController.MarkAllRead)
	protected.POST("/notifications/:id/read", notificationController.MarkRead)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
