package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vladislavdragonenkov/shop/internal/app"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

func outboxCommand() *cli.Command {
	return &cli.Command{
		Name:  "outbox",
		Usage: "transactional outbox",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "количество ожидающих событий",
				Action: func(c *cli.Context) error {
					return withRuntime(c, func(rt *app.Runtime) error {
						stats, err := rt.Store.Outbox().Stats(c.Context)
						if err != nil {
							return err
						}
						return writeJSON(c.App.Writer, stats)
					})
				},
			},
			{
				Name:  "drain",
				Usage: "опубликовать все ожидающие события (Kafka при --brokers, иначе лог)",
				Action: func(c *cli.Context) error {
					cfg := configFromFlags(c)
					logger := log.WithField("component", "shopctl-outbox")

					var producer *kafka.Producer
					if brokers := splitList(cfg.KafkaBrokers); len(brokers) > 0 {
						p, err := kafka.NewProducer(brokers)
						if err != nil {
							return err
						}
						defer func() {
							if closeErr := p.Close(); closeErr != nil {
								logger.WithError(closeErr).Warn("failed to close kafka producer")
							}
						}()
						producer = p
					}

					return withRuntime(c, func(rt *app.Runtime) error {
						worker := app.NewOutboxWorker(cfg, rt.Store.Outbox(), producer, logger)
						sent, failed := worker.Drain(c.Context)
						_, err := fmt.Fprintf(c.App.Writer, "sent=%d failed=%d\n", sent, failed)
						return err
					})
				},
			},
		},
	}
}
