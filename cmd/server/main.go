package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mamadbah2/invoice-ledger/internal/config"
	"github.com/mamadbah2/invoice-ledger/internal/lock"
	"github.com/mamadbah2/invoice-ledger/internal/platform/cache"
	"github.com/mamadbah2/invoice-ledger/internal/repository/memory"
	"github.com/mamadbah2/invoice-ledger/internal/repository/mongodb"
	"github.com/mamadbah2/invoice-ledger/internal/repository/sheets"
	yidarepo "github.com/mamadbah2/invoice-ledger/internal/repository/yida"
	"github.com/mamadbah2/invoice-ledger/internal/scheduler"
	"github.com/mamadbah2/invoice-ledger/internal/server/handlers"
	"github.com/mamadbah2/invoice-ledger/internal/server/router"
	invoicesvc "github.com/mamadbah2/invoice-ledger/internal/service/invoices"
	"github.com/mamadbah2/invoice-ledger/internal/service/reconcile"
	reportingsvc "github.com/mamadbah2/invoice-ledger/internal/service/reporting"
	yidaclient "github.com/mamadbah2/invoice-ledger/pkg/clients/yida"
	"github.com/mamadbah2/invoice-ledger/pkg/logger"
)

// ledgerStore is everything the services need from a ledger backend.
type ledgerStore interface {
	reconcile.Store
	invoicesvc.BookkeepingStore
	reportingsvc.LedgerReader
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb, err = cache.New(ctx, cfg.Redis)
		if err != nil {
			baseLogger.Fatal("failed to init redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		baseLogger.Info("redis enabled", zap.String("address", cfg.Redis.Address))
	}

	loc, err := time.LoadLocation(cfg.Audit.Timezone)
	if err != nil {
		baseLogger.Fatal("failed to load timezone", zap.Error(err))
	}

	var (
		ledger ledgerStore
		tokens handlers.TokenSource
	)
	switch cfg.Ledger.Backend {
	case config.BackendMemory:
		baseLogger.Warn("using in-memory ledger, data is lost on restart")
		ledger = memory.NewStore()
	default:
		opts := yidaclient.Options{
			BaseURL:     cfg.Yida.BaseURL,
			AppKey:      cfg.Yida.AppKey,
			AppSecret:   cfg.Yida.AppSecret,
			AppType:     cfg.Yida.AppType,
			SystemToken: cfg.Yida.SystemToken,
			UserID:      cfg.Yida.UserID,
			PageSize:    cfg.Yida.PageSize,
			Timeout:     cfg.Yida.Timeout,
		}
		if rdb != nil {
			opts.Cache = yidaclient.NewRedisTokenCache(rdb)
		}
		client := yidaclient.NewClient(opts)
		tokens = client

		forms := yidarepo.Forms{
			Inventory:   cfg.Yida.InventoryForm,
			Cost:        cfg.Yida.CostForm,
			Totals:      cfg.Yida.TotalsForm,
			InvoiceStat: cfg.Yida.InvoiceStatForm,
		}
		if forms.InvoiceStat == "" {
			baseLogger.Warn("YIDA_INVOICE_STAT_FORM not set, invoice statistics disabled")
		}
		ledger, err = yidarepo.NewRepository(client, forms, loc, logger.Named(baseLogger, "repo.yida"))
		if err != nil {
			baseLogger.Fatal("failed to init yida repository", zap.Error(err))
		}
	}

	var locker lock.Locker
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, cfg.Lock.TTL, cfg.Lock.Wait)
	} else {
		baseLogger.Warn("redis not configured, product lock is process-local")
		locker = lock.NewLocalLocker(cfg.Lock.Wait)
	}

	var (
		journal invoicesvc.Journal
		reports reportingsvc.ReportStore
		history handlers.AuditHistory
	)
	if cfg.MongoDB.URI != "" {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		journal, reports, history = mongoRepo, mongoRepo, mongoRepo
	} else {
		baseLogger.Warn("mongodb not configured, line journal and audit history disabled")
	}

	var exporter reportingsvc.SummaryExporter
	if cfg.Sheets.SpreadsheetID != "" {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		exporter = sheets.NewAuditExporter(sheetsRepo)
	}

	reconciler, err := reconcile.NewService(ledger, logger.Named(baseLogger, "svc.reconcile"))
	if err != nil {
		baseLogger.Fatal("failed to init reconciler", zap.Error(err))
	}
	dispatcher := invoicesvc.NewDispatcher(reconciler, ledger, locker, journal, logger.Named(baseLogger, "svc.invoices"))
	auditSvc := reportingsvc.NewService(ledger, reports, exporter, logger.Named(baseLogger, "svc.reporting"))

	if cfg.WebhookAuthEnabled() {
		baseLogger.Info("webhook token check enabled")
	}

	invoiceHandler := handlers.NewInvoiceHandler(dispatcher, loc, logger.Named(baseLogger, "handlers.invoices"))
	adminHandler := handlers.NewAdminHandler(tokens, auditSvc, history, logger.Named(baseLogger, "handlers.admin"))
	engine := router.New(invoiceHandler, adminHandler, cfg.Server.WebhookToken, logger.Named(baseLogger, "router"))

	sched, err := scheduler.NewScheduler(cfg.Audit, auditSvc, logger.Named(baseLogger, "scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("ledger_backend", cfg.Ledger.Backend))
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
