package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docflow/auth"
	"docflow/config"
	"docflow/contract"
	"docflow/db"
	"docflow/document"
	"docflow/logging"
	"docflow/outbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	authService := auth.NewService(auth.NewRepository(pool), cfg.JWT.Secret).WithTokenTTL(cfg.JWT.TokenTTL)
	contractService := contract.NewService(contract.NewRepository(pool))
	documentService := document.NewService(document.NewRepository(pool), logger.With(zap.String("component", "document"))).
		WithContracts(contractService).
		WithDeadline(document.DeadlineAfter(cfg.Approval.DeadlineDays)).
		WithStrictTransitions(cfg.Approval.StrictTransitions)

	server := NewServer(authService, contractService, documentService, logger.With(zap.String("component", "http")))
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr), zap.Bool("strict_transitions", cfg.Approval.StrictTransitions))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("http server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.Outbox.RelayInterval > 0 {
		relayLogger := logger.With(zap.String("component", "outbox"))
		relay := outbox.NewRelay(pool, outbox.NewLogPublisher(relayLogger), relayLogger).
			WithBatchSize(cfg.Outbox.BatchSize).
			WithMaxAttempts(cfg.Outbox.MaxAttempts)
		g.Go(func() error {
			return relay.Run(gctx, cfg.Outbox.RelayInterval)
		})
	}

	return g.Wait()
}
