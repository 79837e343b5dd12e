package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexiscuevases/ondesk/internal/adapter/ingress"
	"github.com/alexiscuevases/ondesk/internal/adapter/llm"
	"github.com/alexiscuevases/ondesk/internal/adapter/lock"
	"github.com/alexiscuevases/ondesk/internal/adapter/slack"
	"github.com/alexiscuevases/ondesk/internal/config"
	"github.com/alexiscuevases/ondesk/internal/executor"
	"github.com/alexiscuevases/ondesk/internal/infra/logger"
	"github.com/alexiscuevases/ondesk/internal/infra/tracer"
	"github.com/alexiscuevases/ondesk/internal/policy"
	"github.com/alexiscuevases/ondesk/internal/repository"
	"github.com/alexiscuevases/ondesk/internal/service"
	handler "github.com/alexiscuevases/ondesk/internal/transport/http"
	"github.com/alexiscuevases/ondesk/internal/transport/rpc"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = closeLog() }()

	logg.Info("starting ondesk",
		"http_port", cfg.HTTPPort,
		"rpc_port", cfg.RPCPort,
		"database", cfg.DatabaseURL,
		"llm_base_url", cfg.LLMBaseURL,
	)

	ctx := context.Background()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		logg.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logg.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize completion provider
	completer := llm.NewCompleter(cfg.LLMBaseURL, cfg.LLMAPIKey, llm.Options{
		Timeout:         cfg.LLMTimeout,
		RateLimitRPS:    cfg.LLMRateLimitRPS,
		RateBurst:       cfg.LLMRateBurst,
		BreakerFailures: uint32(max(cfg.LLMBreakerFailures, 0)),
		BreakerTimeout:  cfg.LLMBreakerTimeout,
	}, logg)

	// Initialize action executor and policy
	exec := executor.New(db, nil, executor.Config{
		DefaultTimeout: cfg.ActionDefaultTimeout,
		MaxRetries:     cfg.ActionMaxRetries,
	}, logg)

	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.ActionPolicyFile, cfg.ActionBlocklist)
	if err != nil {
		logg.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}

	// Initialize conversation lock
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.RedisURL != "" {
		redisLocker, err := lock.Connect(ctx, cfg.RedisURL, cfg.LockTTL, logg)
		if err != nil {
			logg.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisLocker.Close()
		locker = redisLocker
		logg.Info("using redis conversation lock")
	}

	// Initialize delivery channels
	channels := service.Channels{
		service.DefaultChannel: ingress.NewClient(cfg.IngressURL, logg),
	}
	if cfg.SlackBotToken != "" {
		channels["slack"] = slack.NewClient(cfg.SlackBotToken, cfg.SlackAPIURL)
	}

	// Initialize service
	svc := service.New(db, completer, exec, policyEngine, locker, channels, cfg, logg)

	httpServer := handler.NewServer(svc, logg)
	rpcServer, err := rpc.NewServer(svc, logg)
	if err != nil {
		logg.Error("failed to initialize rpc server", "error", err)
		os.Exit(1)
	}

	// Start HTTP server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Start RPC server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.RPCPort)
		if err := rpcServer.Start(addr); err != nil {
			logg.Error("rpc server failed", "error", err)
			os.Exit(1)
		}
	}()

	logg.Info("servers started", "http_port", cfg.HTTPPort, "rpc_port", cfg.RPCPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.Warn("failed to shutdown http server gracefully", "error", err)
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logg.Warn("failed to shutdown rpc server gracefully", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logg.Warn("failed to shutdown tracer", "error", err)
	}

	logg.Info("ondesk stopped")
}
