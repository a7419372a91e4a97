package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/papertrade/internal/config"
	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/events"
	"github.com/efreitasn/papertrade/internal/grpcapi"
	"github.com/efreitasn/papertrade/internal/handler"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/efreitasn/papertrade/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Instantiate stores.
	instruments := store.NewInstrumentRegistry(domain.DefaultInstruments())
	orderStore := store.NewOrderStore()
	tradeLedger := store.NewTradeLedger()

	// Engine listeners: websocket hubs, gRPC health, optional webhook.
	broadcaster := events.NewBroadcaster()
	health := grpcapi.NewHealth(logger)
	listeners := engine.Listeners{broadcaster, health}
	if cfg.WebhookURL != "" {
		listeners = append(listeners, service.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookTimeout, logger))
		logger.Info("webhooks enabled", slog.String("url", cfg.WebhookURL))
	}

	// Engine.
	matcher := engine.NewMatcher(instruments, orderStore, tradeLedger, listeners, logger)
	var rnd engine.RandSource
	if cfg.RandomSeed != 0 {
		rnd = rand.New(rand.NewPCG(cfg.RandomSeed, cfg.RandomSeed))
	}
	simulator := engine.NewSimulator(matcher, cfg.PriceUpdateInterval, cfg.Volatility, rnd, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Services.
	simulationSvc := service.NewSimulationService(ctx, simulator, matcher)
	router := handler.NewRouter(handler.Services{
		Instruments: service.NewInstrumentService(instruments, matcher),
		Orders:      service.NewOrderService(matcher, instruments, orderStore, tradeLedger, cfg.AllowShortSelling, logger),
		Trades:      service.NewTradeService(tradeLedger, orderStore),
		Portfolio:   service.NewPortfolioService(tradeLedger, instruments),
		Simulation:  simulationSvc,
		Events:      broadcaster,
		Stats: func() store.Stats {
			return store.CollectStats(instruments, orderStore, tradeLedger)
		},
	}, cfg.DefaultUserID, logger)

	if cfg.SimulationAutostart {
		simulationSvc.Start()
	}

	// gRPC health server.
	grpcDone := make(chan struct{})
	if cfg.GRPCPort != 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			logger.Error("grpc listen failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		grpcServer := grpcapi.NewServer(health)
		go func() {
			defer close(grpcDone)
			if err := grpcapi.Serve(ctx, grpcServer, lis, logger); err != nil {
				logger.Error("grpc server error", slog.String("error", err.Error()))
			}
		}()
	} else {
		close(grpcDone)
	}

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop the simulator, then the servers.
	simulationSvc.Stop()
	health.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	<-grpcDone

	logger.Info("server stopped")
}
