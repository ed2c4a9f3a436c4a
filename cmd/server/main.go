package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/tacogroup/prodlive/internal/config"
	"github.com/tacogroup/prodlive/internal/registry"
	"github.com/tacogroup/prodlive/internal/repository/mongodb"
	"github.com/tacogroup/prodlive/internal/repository/sheets"
	"github.com/tacogroup/prodlive/internal/scheduler"
	"github.com/tacogroup/prodlive/internal/server/handlers"
	"github.com/tacogroup/prodlive/internal/server/router"
	broadcastsvc "github.com/tacogroup/prodlive/internal/service/broadcast"
	erpsyncsvc "github.com/tacogroup/prodlive/internal/service/erpsync"
	fleetsvc "github.com/tacogroup/prodlive/internal/service/fleet"
	"github.com/tacogroup/prodlive/pkg/clients/erpnext"
	"github.com/tacogroup/prodlive/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	mongoRepo, err := mongodb.NewMongoDBRepository(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := mongoRepo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	// The production log is optional; completions simply go unlogged when
	// the spreadsheet is not configured.
	var productionLog sheets.Log
	if cfg.Sheets.Enabled() {
		productionLog, err = sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets production log", zap.Error(err))
		}
		baseLogger.Info("sheets production log enabled")
	} else {
		baseLogger.Warn("sheets production log not configured, completions will not be logged")
	}

	reg := registry.New()
	hub := broadcastsvc.NewHub(baseLogger.Named("hub"))
	fleetService := fleetsvc.NewService(reg, mongoRepo, hub, productionLog, baseLogger.Named("svc.fleet"))

	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), 30*time.Second)
	if err := fleetService.Bootstrap(bootstrapCtx); err != nil {
		cancelBootstrap()
		baseLogger.Fatal("failed to bootstrap fleet", zap.Error(err))
	}
	cancelBootstrap()

	var erpService *erpsyncsvc.Service
	if cfg.ERP.Enabled() {
		erpClient := erpnext.NewClient(cfg.ERP)
		erpService = erpsyncsvc.NewService(erpClient, reg, hub, baseLogger.Named("svc.erpsync"))
		baseLogger.Info("erp feed enabled", zap.Duration("sync_interval", cfg.ERP.SyncInterval))
	} else {
		baseLogger.Warn("erp credentials missing, advisory sync disabled")
	}

	dashboardHandler := handlers.NewDashboardHandler(fleetService, baseLogger.Named("handlers.dashboard"))
	wsHandler := handlers.NewWSHandler(hub, fleetService, baseLogger.Named("handlers.ws"))
	engine := router.New(dashboardHandler, wsHandler, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(*cfg, fleetService, erpService, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     engine,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
