// Command ingress is the web chat gateway: customers connect over WebSocket,
// messages are forwarded to the engine over JSON-RPC and agent replies come
// back through Ingress.PushEvent.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/alexiscuevases/ondesk/ingress/internal/config"
	internalhttp "github.com/alexiscuevases/ondesk/ingress/internal/http"
	"github.com/alexiscuevases/ondesk/ingress/internal/hub"
	"github.com/alexiscuevases/ondesk/ingress/internal/orchestrator"
	"github.com/alexiscuevases/ondesk/ingress/internal/transport/rpc"
	"github.com/alexiscuevases/ondesk/ingress/internal/ws"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	logger.Info("starting ingress",
		"ws_port", cfg.WSPort,
		"rpc_port", cfg.RPCPort,
		"http_port", cfg.HTTPPort,
		"orchestrator", cfg.OrchestratorAddr,
	)

	connectionHub := hub.NewHub(logger)
	go connectionHub.Run()

	engine := orchestrator.NewClient(cfg.OrchestratorAddr, cfg.OrchestratorTimeout)
	wsServer := ws.NewServer(cfg, connectionHub, engine, logger)

	wsEcho := echo.New()
	wsEcho.HideBanner = true
	wsEcho.HidePort = true
	wsEcho.Use(middleware.Recover())
	wsEcho.GET("/ws", wsServer.HandleWebSocket)

	httpServer := internalhttp.NewServer(connectionHub, logger)

	rpcServer, err := rpc.NewServer(connectionHub, logger)
	if err != nil {
		logger.Error("failed to initialize rpc server", "error", err)
		os.Exit(1)
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.WSPort)
		if err := wsEcho.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("websocket server failed", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.RPCPort)
		if err := rpcServer.Start(addr); err != nil {
			logger.Error("rpc server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down ingress")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := wsEcho.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown websocket server gracefully", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown http server gracefully", "error", err)
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown rpc server gracefully", "error", err)
	}
	connectionHub.Stop()

	logger.Info("ingress stopped")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
