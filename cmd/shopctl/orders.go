package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/vladislavdragonenkov/shop/internal/app"
	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/projection"
	"github.com/vladislavdragonenkov/shop/internal/service/shop"
)

func ordersCommand() *cli.Command {
	return &cli.Command{
		Name:  "orders",
		Usage: "просмотр и изменение заказов",
		Subcommands: []*cli.Command{
			ordersListCommand(),
			ordersShowCommand(),
			{
				Name:  "summaries",
				Usage: "заказы без позиций",
				Action: func(c *cli.Context) error {
					return withRuntime(c, func(rt *app.Runtime) error {
						summaries, err := rt.Services.Orders.OrderSummaries(c.Context)
						if err != nil {
							return err
						}
						return writeJSON(c.App.Writer, summaries)
					})
				},
			},
			ordersPlaceCommand(),
			{
				Name:      "cancel",
				ArgsUsage: "<order-id>",
				Action: orderAction(func(c *cli.Context, rt *app.Runtime, orderID int64) error {
					return rt.Services.Orders.CancelOrder(c.Context, orderID)
				}),
			},
			{
				Name:      "complete",
				Usage:     "отметить доставку выполненной",
				ArgsUsage: "<order-id>",
				Action: orderAction(func(c *cli.Context, rt *app.Runtime, orderID int64) error {
					return rt.Services.Orders.CompleteDelivery(c.Context, orderID)
				}),
			},
		},
	}
}

func ordersListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "представления заказов (через агрегаты или проекцию)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "strategy", Usage: "стратегия загрузки агрегатов: " + strategyNames()},
			&cli.StringFlag{Name: "mode", Value: projection.ModeFlat.String(), Usage: "режим проекции: per-order, batched, flat"},
			&cli.StringFlag{Name: "member", Usage: "фильтр по имени участника (подстрока)"},
			&cli.StringFlag{Name: "status", Usage: "ORDER или CANCEL"},
			&cli.IntFlag{Name: "offset"},
			&cli.IntFlag{Name: "limit"},
		},
		Action: func(c *cli.Context) error {
			status, err := domain.ParseOrderStatus(c.String("status"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			search := domain.OrderSearch{MemberName: c.String("member"), OrderStatus: status}
			page := domain.Page{Offset: c.Int("offset"), Limit: c.Int("limit")}

			return withRuntime(c, func(rt *app.Runtime) error {
				views, err := listViews(c, rt, search, page)
				if err != nil {
					return err
				}
				return writeJSON(c.App.Writer, views)
			})
		},
	}
}

// listViews без --strategy и фильтров строит проекцию в режиме --mode,
// иначе загружает агрегаты выбранной стратегией.
func listViews(c *cli.Context, rt *app.Runtime, search domain.OrderSearch, page domain.Page) ([]projection.OrderView, error) {
	name := c.String("strategy")
	if name == "" && search == (domain.OrderSearch{}) && page.IsZero() {
		mode, err := projection.ParseMode(c.String("mode"))
		if err != nil {
			return nil, cli.Exit(err.Error(), 2)
		}
		return rt.Services.Orders.ProjectOrders(c.Context, mode)
	}

	strategy := domain.FetchToOneJoin
	if name != "" {
		parsed, err := domain.ParseFetchStrategy(name)
		if err != nil {
			return nil, cli.Exit(err.Error(), 2)
		}
		strategy = parsed
	}
	return rt.Services.Orders.FindOrders(c.Context, search, strategy, page)
}

func ordersShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		ArgsUsage: "<order-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "strategy", Value: domain.FetchCollectionJoin.String()},
		},
		Action: orderAction(func(c *cli.Context, rt *app.Runtime, orderID int64) error {
			strategy, err := domain.ParseFetchStrategy(c.String("strategy"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			order, err := rt.Services.Orders.LoadOrder(c.Context, orderID, strategy)
			if err != nil {
				return err
			}
			views, err := projection.FromAggregates(c.Context, []*domain.Order{order})
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, views[0])
		}),
	}
}

func ordersPlaceCommand() *cli.Command {
	return &cli.Command{
		Name:  "place",
		Usage: "оформить заказ",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "member", Required: true},
			&cli.StringSliceFlag{Name: "line", Required: true, Usage: "позиция в виде <item-id>:<count>, можно повторять"},
		},
		Action: func(c *cli.Context) error {
			lines, err := parseLines(c.StringSlice("line"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			return withRuntime(c, func(rt *app.Runtime) error {
				orderID, err := rt.Services.Orders.PlaceOrderLines(c.Context, c.Int64("member"), lines...)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.App.Writer, orderID)
				return err
			})
		},
	}
}

func orderAction(fn func(c *cli.Context, rt *app.Runtime, orderID int64) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		orderID, err := strconv.ParseInt(c.Args().First(), 10, 64)
		if err != nil || orderID <= 0 {
			return cli.Exit("order id must be a positive integer", 2)
		}
		return withRuntime(c, func(rt *app.Runtime) error {
			return fn(c, rt, orderID)
		})
	}
}

func parseLines(values []string) ([]shop.OrderLine, error) {
	lines := make([]shop.OrderLine, 0, len(values))
	for _, value := range values {
		itemPart, countPart, ok := strings.Cut(value, ":")
		if !ok {
			countPart = "1"
		}
		itemID, err := strconv.ParseInt(strings.TrimSpace(itemPart), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid item id in %q", value)
		}
		count, err := strconv.Atoi(strings.TrimSpace(countPart))
		if err != nil {
			return nil, fmt.Errorf("invalid count in %q", value)
		}
		lines = append(lines, shop.OrderLine{ItemID: itemID, Count: count})
	}
	return lines, nil
}

func strategyNames() string {
	names := make([]string, 0, len(domain.FetchStrategies()))
	for _, strategy := range domain.FetchStrategies() {
		names = append(names, strategy.String())
	}
	return strings.Join(names, ", ")
}
