package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/app"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level log.Level) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		setupLogger(log.InfoLevel)
		log.WithError(err).Fatal("некорректная конфигурация")
	}
	setupLogger(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("запускаем shop-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("shop-service остановлен")
}
