package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"banco/internal/amqp"
	"banco/internal/bank"
	"banco/internal/cli"
	"banco/internal/gateway"
	"banco/internal/graphql"
	"banco/internal/log"
	"banco/internal/services"
	"banco/internal/session"
	"banco/internal/transport"
	"banco/internal/worker"
)

func main() {
	resolve := flag.Bool("resolve", false, "open the missing account for half-finished sign-ups instead of only reporting them")
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentReconciler)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required to consume reconciliation messages")
		os.Exit(1)
	}

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	// The operator session persisted by the server is reused, so resolving
	// runs with the same authority as the console.
	slot := cli.InitSessionSlot(ctx, logger, cfg)
	if slot.Cleanup != nil {
		defer slot.Cleanup()
	}
	store, err := session.NewStore(ctx, slot.Slot, logger)
	if err != nil {
		logger.Error("Failed to restore session", log.FieldError, err)
		os.Exit(1)
	}
	if *resolve && !store.Authenticated() {
		logger.Warn("No operator session found, the backend may reject account creation")
	}

	gql := graphql.NewClient(cfg.GraphQLURL, transport.NewHTTPClient(store, cfg.RequestTimeout), logger)
	gw := gateway.New(gql, gateway.Options{
		Logger: logger,
		OnSessionError: func(ctx context.Context, cause error) {
			_ = store.Expire(ctx, cause)
		},
	})
	defer gw.Close()
	store.BindCache(gw)

	// No publisher: a failed resolution is requeued by the consumer, never
	// published a second time.
	orchestrator := services.NewOrchestrator(gw, store, nil, logger)
	reconciler := worker.NewReconciler(bank.NewClient(gw), orchestrator, *resolve, logger)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	logger.Info("Starting banco-reconciler", "queue", cfg.AMQPQueue, "resolve", *resolve)

	start := time.Now()
	err = amqpClient.ConsumeReconciliation(ctx, reconciler.HandleReconciliation)
	stats := reconciler.Stats()
	logger.Info("Reconciler stopped",
		"seen", stats.Seen,
		"resolved", stats.Resolved,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"uptime", time.Since(start).String())

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
}
