package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cppla/carbontrack/catalog"
	"github.com/cppla/carbontrack/config"
	"github.com/cppla/carbontrack/ledger"
	"github.com/cppla/carbontrack/models"
	"github.com/cppla/carbontrack/notify"
	"github.com/cppla/carbontrack/routes"
	"github.com/cppla/carbontrack/store"
	"github.com/cppla/carbontrack/utils"
)

const demoAccountID = "demo-account"

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(models.All()...)
	st := store.New(db)
	utils.InitRedis(cfg)

	fallback, err := ledger.ParseFallbackPolicy(cfg.ScanFallback)
	if err != nil {
		utils.Sugar.Fatalf("invalid ScanFallback: %v", err)
	}

	var registry *prometheus.Registry
	var ledgerMetrics *ledger.Metrics
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		ledgerMetrics = ledger.NewMetrics(registry)
	}

	cat := catalog.Default()
	latency := time.Duration(cfg.SimulatedLatencyMS) * time.Millisecond
	center := notify.NewCenter(
		notify.WithStore(st),
		notify.WithLogger(utils.Logger.Named("notify")),
		notify.WithLatency(latency),
	)
	svc := ledger.NewService(cat, st, ledger.Config{
		PointsPerTon:  int64(cfg.PointsPerTon),
		WelcomeBonus:  int64(cfg.WelcomeBonus),
		CheckInPoints: int64(cfg.SigninRewardPoints),
		HistoryLimit:  cfg.ScanHistoryLimit,
		ScanFallback:  fallback,
		Latency:       latency,
	},
		ledger.WithLogger(utils.Logger.Named("ledger")),
		ledger.WithMetrics(ledgerMetrics),
		ledger.WithNotifier(center),
	)

	if cfg.SeedDemoAccount {
		seedDemo(st, cfg.DemoPassword)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	idle := time.Duration(cfg.SessionIdleMinutes) * time.Minute
	utils.StartSessionSweeper(ctx, svc, idle, time.Minute)

	r := routes.SetupRouter(routes.Deps{
		Config:   cfg,
		DB:       db,
		Store:    st,
		Catalog:  cat,
		Ledger:   svc,
		Notify:   center,
		Registry: registry,
	})

	srv := utils.NewServer(":"+cfg.AppPort, r)
	srv.OnShutdown(func(context.Context) { stop() })

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

func seedDemo(st *store.Store, password string) {
	if password == "" {
		utils.Sugar.Warn("SeedDemoAccount is set but DemoPassword is empty, skipping demo seed")
		return
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		utils.Sugar.Warnf("demo seed skipped: %v", err)
		return
	}
	created, err := st.SeedDemo(context.Background(), store.DemoSeed{
		Username:     "alex",
		PasswordHash: hash,
		AccountID:    demoAccountID,
	})
	if err != nil {
		utils.Sugar.Errorf("demo seed failed: %v", err)
		return
	}
	if created {
		utils.Sugar.Info("seeded demo account for user alex")
	}
}
