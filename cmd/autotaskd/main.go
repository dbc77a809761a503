package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autotask/internal/api"
	"autotask/internal/config"
	"autotask/internal/core"
	"autotask/internal/logging"
	autotaskmcp "autotask/internal/mcp"
	"autotask/internal/notify"
	"autotask/internal/store"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := logging.New(cfg.Automation.LogLevel, cfg.Automation.LogFormat, os.Stdout)

	baseCtx := context.Background()
	storeInst, err := store.Open(baseCtx, cfg.StateDir, cfg.History.Retention)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer storeInst.Close()

	var notifier core.Notifier = notify.NoOpNotifier{}
	if cfg.Notify.Enabled {
		bark, err := notify.NewBarkNotifier(cfg.Notify.BarkURL)
		if err != nil {
			logger.Error("configure bark notifier", "err", err)
			os.Exit(1)
		}
		notifier = bark
	}

	manager := core.NewManager(logger, core.ManagerOptions{
		CheckInterval: cfg.Scheduler.CheckInterval,
		History:       storeInst,
		Notifier:      notifier,
	})

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	schedDone := make(chan struct{})
	go func() {
		manager.StartScheduler(ctx)
		close(schedDone)
	}()

	switch cfg.Server.Mode {
	case "http", "":
		runHTTPMode(cfg, manager, storeInst, logger, schedDone)
	case "mcp":
		runMCPMode(manager, storeInst, logger, cancel)
	case "both":
		runBothMode(cfg, manager, storeInst, logger, schedDone)
	default:
		logger.Error("invalid mode", "mode", cfg.Server.Mode, "valid", []string{"http", "mcp", "both"})
		os.Exit(1)
	}
}

func runHTTPMode(cfg *config.Config, manager *core.Manager, st *store.Store, logger *slog.Logger, schedDone <-chan struct{}) {
	server := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, manager, st, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	}

	shutdown(cfg, server, manager, logger, schedDone)
}

func runMCPMode(manager *core.Manager, st *store.Store, logger *slog.Logger, cancel context.CancelFunc) {
	mcpServer := autotaskmcp.NewMCPServer(manager, st, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("received signal, shutting down")
		manager.StopScheduler()
		cancel()
	}()

	if err := mcpServer.Run(); err != nil {
		logger.Error("mcp server error", "err", err)
		os.Exit(1)
	}
}

func runBothMode(cfg *config.Config, manager *core.Manager, st *store.Store, logger *slog.Logger, schedDone <-chan struct{}) {
	mcpServer := autotaskmcp.NewMCPServer(manager, st, logger)
	mcpErr := make(chan error, 1)
	go func() {
		if err := mcpServer.Run(); err != nil {
			mcpErr <- err
		}
	}()

	server := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, manager, st, logger)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdown(cfg, server, manager, logger, schedDone)
}

func shutdown(cfg *config.Config, server *api.Server, manager *core.Manager, logger *slog.Logger, schedDone <-chan struct{}) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}

	manager.StopScheduler()
	select {
	case <-schedDone:
	case <-time.After(cfg.Server.ShutdownGrace):
		logger.Warn("scheduler stop timed out")
	}
	logger.Info("shutdown complete")
}
