package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dexlab-io/matchbook/internal/book"
	"github.com/dexlab-io/matchbook/internal/config"
	"github.com/dexlab-io/matchbook/internal/handler"
	"github.com/dexlab-io/matchbook/internal/logging"
	"github.com/dexlab-io/matchbook/internal/market"
	"github.com/dexlab-io/matchbook/internal/service"
	"github.com/dexlab-io/matchbook/internal/settlement"
	"github.com/dexlab-io/matchbook/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("open database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer db.Close()

	// Stores.
	orderStore := store.NewOrderStore(db)
	pairStore := store.NewPairStore(db)
	snapshotStore := store.NewSnapshotStore(db)
	tradeStore := store.NewTradeStore(db)
	sampleStore := store.NewSampleStore(db)

	// Settlement.
	var settlementClient settlement.Client
	if cfg.SettlementConfigured() {
		settlementClient, err = settlement.NewChainClient(cfg.RPCURL, cfg.SettlementContract, cfg.PrivateKey)
		if err != nil {
			logger.Fatal("settlement client", zap.Error(err))
		}
		logger.Info("settlement enabled",
			zap.String("rpc", cfg.RPCURL), zap.String("contract", cfg.SettlementContract))
	} else {
		settlementClient = settlement.DisabledClient{}
		logger.Warn("settlement disabled: RPC_URL, PRIVATE_KEY and SETTLEMENT_CONTRACT not all set")
	}
	orchestrator := settlement.NewOrchestrator(orderStore, tradeStore, settlementClient, logger,
		cfg.PersistAttempts, cfg.PersistBackoff)
	verifier := settlement.NewVerifier(cfg.VerifySignatures)

	// Books and services.
	registry := book.NewRegistry()
	orderSvc := service.NewOrderService(
		registry, orderStore, snapshotStore, orchestrator, verifier, logger,
		cfg.PersistAttempts, cfg.PersistBackoff)
	pairSvc := service.NewPairService(pairStore, registry, logger)
	marketSvc := service.NewMarketService(registry, sampleStore, cfg.CandleInterval)

	// Restore persisted books before accepting requests.
	if err := pairSvc.Bootstrap(context.Background()); err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}

	router := handler.NewRouter(orderSvc, pairSvc, marketSvc, logger)

	// Market price sampler.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sampler := market.NewSampler(cfg.SampleInterval, registry, sampleStore, logger)
	sampler.Start(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	cancel() // stop the sampler
}
