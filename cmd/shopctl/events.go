package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "события заказов из Kafka",
		Subcommands: []*cli.Command{
			{
				Name:  "tail",
				Usage: "печатать события до прерывания",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "group", Value: "shopctl-tail"},
					&cli.BoolFlag{Name: "from-beginning", Usage: "читать топик с самого начала"},
				},
				Action: func(c *cli.Context) error {
					brokers := splitList(c.String(flagBrokers))
					if len(brokers) == 0 {
						return cli.Exit("events tail requires --brokers or SHOP_KAFKA_BROKERS", 2)
					}

					consumer, err := kafka.NewConsumerWithConfig(kafka.ConsumerConfig{
						Brokers:    brokers,
						GroupID:    c.String("group"),
						Topics:     []string{c.String(flagTopic)},
						FromOldest: c.Bool("from-beginning"),
						MaxRetries: 1,
					}, kafka.OrderEvents(printEvent(c.App.Writer)))
					if err != nil {
						return err
					}
					if err := consumer.Start(c.Context); err != nil {
						return err
					}

					<-c.Context.Done()
					return consumer.Stop()
				},
			},
		},
	}
}

// printEvent печатает событие одной JSON-строкой.
func printEvent(w io.Writer) kafka.OrderEventHandler {
	return func(_ context.Context, event *kafka.OrderEvent) error {
		data, err := event.Marshal()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
}

func splitList(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
