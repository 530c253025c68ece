// Команда shopctl — утилита для миграций, демо-данных и просмотра заказов.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vladislavdragonenkov/shop/internal/app"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

const (
	flagStorage   = "storage"
	flagDSN       = "dsn"
	flagBatchSize = "batch-size"
	flagSeed      = "seed"
	flagLogLevel  = "log-level"
	flagBrokers   = "brokers"
	flagTopic     = "topic"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "shopctl:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	defaults := app.DefaultConfig()

	return &cli.App{
		Name:    "shopctl",
		Usage:   "управление магазином: миграции, демо-данные, заказы, outbox",
		Version: version.String(),
		Writer:  out,
		// Код выхода выставляет main.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagStorage, Value: defaults.StorageDriver, EnvVars: []string{"SHOP_STORAGE_DRIVER"}, Usage: "memory или postgres"},
			&cli.StringFlag{Name: flagDSN, EnvVars: []string{"SHOP_POSTGRES_DSN"}, Usage: "строка подключения к PostgreSQL"},
			&cli.IntFlag{Name: flagBatchSize, Value: defaults.FetchBatchSize, EnvVars: []string{"SHOP_FETCH_BATCH_SIZE"}, Usage: "размер пакета для batched-загрузки"},
			&cli.BoolFlag{Name: flagSeed, EnvVars: []string{"SHOP_SEED_DEMO_DATA"}, Usage: "заполнить хранилище демо-данными перед командой"},
			&cli.StringFlag{Name: flagLogLevel, Value: "warn", EnvVars: []string{"SHOP_LOG_LEVEL"}},
			&cli.StringFlag{Name: flagBrokers, EnvVars: []string{"SHOP_KAFKA_BROKERS"}, Usage: "Kafka brokers через запятую"},
			&cli.StringFlag{Name: flagTopic, Value: defaults.KafkaTopic, EnvVars: []string{"SHOP_KAFKA_TOPIC"}},
		},
		Before: func(c *cli.Context) error {
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			log.SetLevel(configFromFlags(c).Level())
			return nil
		},
		Commands: []*cli.Command{
			migrateCommand(),
			seedCommand(),
			ordersCommand(),
			outboxCommand(),
			eventsCommand(),
		},
	}
}

// configFromFlags собирает app.Config из глобальных флагов.
func configFromFlags(c *cli.Context) app.Config {
	cfg := app.DefaultConfig()
	cfg.StorageDriver = c.String(flagStorage)
	cfg.PostgresDSN = c.String(flagDSN)
	cfg.FetchBatchSize = c.Int(flagBatchSize)
	cfg.SeedDemoData = c.Bool(flagSeed)
	cfg.LogLevel = c.String(flagLogLevel)
	cfg.KafkaBrokers = c.String(flagBrokers)
	cfg.KafkaTopic = c.String(flagTopic)
	return cfg
}

// withRuntime открывает хранилище, выполняет fn и закрывает хранилище.
func withRuntime(c *cli.Context, fn func(rt *app.Runtime) error) error {
	cfg := configFromFlags(c)
	if err := cfg.Validate(); err != nil {
		return err
	}

	rt, err := app.OpenRuntime(c.Context, cfg, log.WithField("component", "shopctl"))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("failed to close storage")
		}
	}()

	return fn(rt)
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "создать демонстрационных участников, книги и заказы",
		Action: func(c *cli.Context) error {
			return withRuntime(c, func(rt *app.Runtime) error {
				// При --seed данные уже созданы в OpenRuntime.
				if c.Bool(flagSeed) {
					return nil
				}
				result, err := rt.Services.Seed(c.Context)
				if err != nil {
					return err
				}
				return writeJSON(c.App.Writer, result)
			})
		},
	}
}
