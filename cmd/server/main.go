package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/config"
	"github.com/mamadbah2/meattrace/internal/repository/mongodb"
	"github.com/mamadbah2/meattrace/internal/repository/sheets"
	"github.com/mamadbah2/meattrace/internal/scheduler"
	"github.com/mamadbah2/meattrace/internal/server/handlers"
	"github.com/mamadbah2/meattrace/internal/server/router"
	"github.com/mamadbah2/meattrace/internal/service/authz"
	"github.com/mamadbah2/meattrace/internal/service/lifecycle"
	"github.com/mamadbah2/meattrace/internal/service/notify"
	"github.com/mamadbah2/meattrace/internal/service/projection"
	"github.com/mamadbah2/meattrace/internal/service/rejection"
	"github.com/mamadbah2/meattrace/pkg/clients/webhook"
	"github.com/mamadbah2/meattrace/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
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

	if err := mongoRepo.EnsureIndexes(context.Background()); err != nil {
		baseLogger.Fatal("failed to ensure mongodb indexes", zap.Error(err))
	}

	var dispatcher notify.Dispatcher = notify.NopDispatcher{}
	if cfg.Notify.WebhookURL != "" {
		dispatcher = notify.NewWebhookDispatcher(webhook.NewClient(cfg.Notify), baseLogger.Named("notify"))
		baseLogger.Info("transition webhook enabled")
	} else {
		baseLogger.Warn("notify webhook url missing, transition events disabled")
	}

	var exporter sheets.Exporter
	if cfg.Sheets.SpreadsheetID != "" {
		exporter, err = sheets.NewGoogleSheetExporter(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init audit exporter", zap.Error(err))
		}
		baseLogger.Info("compliance audit export enabled")
	}

	authzSvc := authz.NewService(mongoRepo, baseLogger.Named("svc.authz"))
	projector := projection.NewProjector(mongoRepo, baseLogger.Named("svc.projection"))
	lifecycleSvc := lifecycle.NewService(mongoRepo, authzSvc, dispatcher, projector, baseLogger.Named("svc.lifecycle"))
	rejectionSvc := rejection.NewService(mongoRepo, authzSvc, dispatcher, projector, baseLogger.Named("svc.rejection"))

	lifecycleHandler := handlers.NewLifecycleHandler(lifecycleSvc, baseLogger.Named("handlers.lifecycle"))
	rejectionHandler := handlers.NewRejectionHandler(rejectionSvc, baseLogger.Named("handlers.rejection"))
	traceHandler := handlers.NewTraceHandler(projector, baseLogger.Named("handlers.trace"))
	capabilityHandler := handlers.NewCapabilityHandler(authzSvc, baseLogger.Named("handlers.capability"))
	engine := router.New(lifecycleHandler, rejectionHandler, traceHandler, capabilityHandler, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(*cfg, mongoRepo, projector, exporter, dispatcher, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
