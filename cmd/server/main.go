package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/classic-pong/internal/config"
	"github.com/koopa0/classic-pong/internal/events"
	"github.com/koopa0/classic-pong/internal/room"
	"github.com/koopa0/classic-pong/internal/server"
	"github.com/koopa0/classic-pong/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pong-server:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "配置檔路徑 (YAML)")
		logLevel   = flag.String("log-level", "", "覆寫日誌級別 (debug, info, warn, error)")
		listenAddr = flag.String("addr", "", "覆寫 TCP 監聽位址")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	slog.SetDefault(log)

	publisher, err := events.New(cfg.Events, log)
	if err != nil {
		return fmt.Errorf("setup events: %w", err)
	}
	defer publisher.Close()

	manager := room.NewManager(cfg.RoomConfig(), log, publisher)

	srv, err := server.New(cfg, manager, log)
	if err != nil {
		manager.Stop()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		manager.Stop()
		return err
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	start := time.Now()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		return err
	}
	log.Info("server exited", "shutdown_duration", time.Since(start))
	return nil
}
