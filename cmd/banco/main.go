package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"banco/internal/amqp"
	"banco/internal/bank"
	"banco/internal/cache"
	"banco/internal/cli"
	"banco/internal/gateway"
	"banco/internal/graphql"
	"banco/internal/guard"
	apphttp "banco/internal/http"
	"banco/internal/log"
	"banco/internal/middleware/ratelimit"
	"banco/internal/services"
	"banco/internal/session"
	ports "banco/internal/sheets"
	gsheet "banco/internal/sheets/google"
	mem "banco/internal/sheets/memory"
	"banco/internal/transport"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	slot := cli.InitSessionSlot(ctx, logger, cfg)
	if slot.Cleanup != nil {
		defer func() {
			if err := slot.Cleanup(); err != nil {
				logger.Error("Failed to close session slot", log.FieldError, err)
			}
		}()
	}

	store, err := session.NewStore(ctx, slot.Slot, logger)
	if err != nil {
		logger.Error("Failed to restore session", log.FieldError, err)
		os.Exit(1)
	}

	gql := graphql.NewClient(cfg.GraphQLURL, transport.NewHTTPClient(store, cfg.RequestTimeout), logger)
	gw := gateway.New(gql, gateway.Options{
		RetainSize: cfg.CacheRetainSize,
		RetainTTL:  cfg.CacheRetainTTL,
		Logger:     logger,
		OnSessionError: func(ctx context.Context, cause error) {
			if err := store.Expire(ctx, cause); err != nil {
				logger.Error("Failed to tear down rejected session", log.FieldError, err)
			}
		},
	})
	defer gw.Close()
	store.BindCache(gw)

	caches := cache.NewManager(logger)
	caches.Register(gw.Retained())
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	// Partial sign-ups are queued for the reconciler when AMQP is configured.
	var publisher services.ReconciliationPublisher
	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, partial sign-ups will only be logged", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("Sign-up reconciliation enabled", "queue", cfg.AMQPQueue)
		}
	}

	var exporter ports.MetricsExporter
	if cfg.SheetsEnabled() {
		sheetsClient, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = sheetsClient
		logger.Info("KPI export to Google Sheets enabled", "sheet", cfg.GoogleSheetName)
	} else {
		exporter = mem.New()
		logger.Info("KPI export kept in memory - no GOOGLE_SPREADSHEET_ID provided")
	}

	bankClient := bank.NewClient(gw)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Session:  store,
		Bank:     bankClient,
		Actions:  services.NewOrchestrator(gw, store, publisher, logger),
		Guard:    guard.New(store, logger),
		Exporter: exporter,
		Logger:   logger,
		LoginRateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.LoginRatePerMinute,
			Burst:             cfg.LoginBurst,
		},
		Ready: func(ctx context.Context) error {
			if !store.Authenticated() {
				return nil
			}
			_, err := bankClient.Dashboard(ctx)
			return err
		},
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting banco server",
			"port", cfg.Port,
			"graphql_url", cfg.GraphQLURL,
			"session_backend", cfg.SessionBackend,
			"authenticated", store.Authenticated())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
