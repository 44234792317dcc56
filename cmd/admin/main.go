package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignatzorin/gigmarket-backend/internal/config"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.L().WithError(err).Fatal("admin: ошибка загрузки конфигурации")
	}
	if err := logger.Init(cfg.LogLevel, logger.FormatText); err != nil {
		logger.L().WithError(err).Fatal("admin: ошибка настройки логгера")
	}

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
