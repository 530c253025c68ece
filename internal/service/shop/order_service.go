package shop

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/projection"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

// OrderLine — позиция оформляемого заказа.
type OrderLine struct {
	ItemID int64
	Count  int
}

// OrderService оформляет, отменяет и читает заказы.
type OrderService struct {
	uow       storage.UnitOfWork
	logger    *log.Entry
	metrics   *metrics.ShopMetrics
	retry     retrier
	batchSize int
}

// NewOrderService конструирует сервис заказов.
func NewOrderService(uow storage.UnitOfWork, options ...Option) *OrderService {
	opts := buildOptions("order-service", options)
	return &OrderService{
		uow:       uow,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		retry:     retrier{config: opts.Retry, logger: opts.Logger, metrics: opts.Metrics},
		batchSize: opts.BatchSize,
	}
}

// PlaceOrder оформляет заказ из одной позиции и возвращает его ID.
func (s *OrderService) PlaceOrder(ctx context.Context, memberID, itemID int64, count int) (int64, error) {
	return s.PlaceOrderLines(ctx, memberID, OrderLine{ItemID: itemID, Count: count})
}

// PlaceOrderLines оформляет заказ из нескольких позиций. Доставка создаётся
// по адресу участника; цена позиции фиксируется по текущей цене товара.
func (s *OrderService) PlaceOrderLines(ctx context.Context, memberID int64, lines ...OrderLine) (int64, error) {
	defer observe(s.metrics, "place_order")()

	var orderID int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		member, err := tx.Members.Get(ctx, memberID)
		if err != nil {
			return err
		}

		// Один и тот же товар в нескольких позициях списывается с одного объекта.
		items := make(map[int64]*domain.Item, len(lines))
		orderItems := make([]*domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			item, ok := items[line.ItemID]
			if !ok {
				item, err = tx.Items.Get(ctx, line.ItemID)
				if err != nil {
					return err
				}
				items[line.ItemID] = item
			}

			orderItem, err := domain.CreateOrderItem(item, item.Price, line.Count)
			if err != nil {
				return err
			}
			if err := tx.Items.AdjustStock(ctx, item.ID, -line.Count); err != nil {
				return err
			}
			orderItems = append(orderItems, orderItem)
		}

		order, err := domain.CreateOrder(member, domain.NewDelivery(member.Address), orderItems...)
		if err != nil {
			return err
		}
		if err := tx.Orders.Create(ctx, order); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, kafka.EventTypeOrderPlaced, order); err != nil {
			return err
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		if domain.IsInsufficientStock(err) {
			s.metrics.RecordInsufficientStock()
		}
		s.logger.WithError(err).WithField("member_id", memberID).Warn("place order failed")
		return 0, err
	}

	s.metrics.RecordOrderPlaced()
	s.logger.WithFields(log.Fields{
		"order_id":  orderID,
		"member_id": memberID,
		"lines":     len(lines),
	}).Info("order placed")
	return orderID, nil
}

// CancelOrder отменяет заказ и возвращает товар на склад.
// Конфликт версий повторяется согласно RetryConfig.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64) error {
	defer observe(s.metrics, "cancel_order")()

	err := s.retry.do(ctx, "cancel_order", orderID, func() error {
		return s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
			order, err := tx.Orders.FindOne(ctx, orderID, domain.FetchCollectionJoin)
			if err != nil {
				return err
			}
			if err := order.Cancel(); err != nil {
				return err
			}
			for _, line := range order.Items() {
				if err := tx.Items.AdjustStock(ctx, line.ItemID(), line.Count); err != nil {
					return err
				}
			}
			if err := tx.Orders.Save(ctx, order); err != nil {
				return err
			}
			return s.enqueue(ctx, tx, kafka.EventTypeOrderCanceled, order)
		})
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("cancel order failed")
		return err
	}

	s.metrics.RecordOrderCanceled()
	s.logger.WithField("order_id", orderID).Info("order canceled")
	return nil
}

// CompleteDelivery переводит доставку заказа в COMP. После этого отмена невозможна.
func (s *OrderService) CompleteDelivery(ctx context.Context, orderID int64) error {
	defer observe(s.metrics, "complete_delivery")()

	err := s.retry.do(ctx, "complete_delivery", orderID, func() error {
		return s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
			order, err := tx.Orders.FindOne(ctx, orderID, domain.FetchCollectionJoin)
			if err != nil {
				return err
			}
			delivery := order.Delivery()
			if delivery == nil {
				return fmt.Errorf("%w: order %d", domain.ErrDeliveryNotFound, orderID)
			}
			if err := delivery.Complete(); err != nil {
				return err
			}
			if err := tx.Orders.Save(ctx, order); err != nil {
				return err
			}
			return s.enqueue(ctx, tx, kafka.EventTypeDeliveryCompleted, order)
		})
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("complete delivery failed")
		return err
	}

	s.metrics.RecordDeliveryCompleted()
	s.logger.WithField("order_id", orderID).Info("delivery completed")
	return nil
}

// LoadOrder загружает заказ выбранной стратегией и инициализирует весь граф
// внутри единицы работы: вернувшийся агрегат не обращается к хранилищу.
func (s *OrderService) LoadOrder(ctx context.Context, orderID int64, strategy domain.FetchStrategy) (*domain.Order, error) {
	defer observe(s.metrics, "load_order")()

	var order *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		found, err := tx.Orders.FindOne(ctx, orderID, strategy)
		if err != nil {
			return err
		}
		if err := found.Initialize(ctx); err != nil {
			return err
		}
		order = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// QueryOrders ищет заказы и инициализирует их графы.
func (s *OrderService) QueryOrders(ctx context.Context, search domain.OrderSearch, strategy domain.FetchStrategy, page domain.Page) ([]*domain.Order, error) {
	defer observe(s.metrics, "query_orders")()

	var orders []*domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		found, err := tx.Orders.FindAll(ctx, search, strategy, page)
		if err != nil {
			return err
		}
		for _, order := range found {
			if err := order.Initialize(ctx); err != nil {
				return err
			}
		}
		orders = found
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("strategy", strategy.String()).Warn("query orders failed")
		return nil, err
	}
	return orders, nil
}

// FindOrders ищет заказы и возвращает их представления.
func (s *OrderService) FindOrders(ctx context.Context, search domain.OrderSearch, strategy domain.FetchStrategy, page domain.Page) ([]projection.OrderView, error) {
	defer observe(s.metrics, "find_orders")()

	var views []projection.OrderView
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		orders, err := tx.Orders.FindAll(ctx, search, strategy, page)
		if err != nil {
			return err
		}
		views, err = projection.FromAggregates(ctx, orders)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// ProjectOrders строит представления всех заказов запросами на чтение, минуя агрегаты.
func (s *OrderService) ProjectOrders(ctx context.Context, mode projection.Mode) ([]projection.OrderView, error) {
	defer observe(s.metrics, "project_orders")()

	var views []projection.OrderView
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		views, err = projection.NewReader(tx.Queries, s.batchSize).Orders(ctx, mode)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// ProjectOrdersFromAggregates загружает заказы выбранной стратегией и проецирует их.
func (s *OrderService) ProjectOrdersFromAggregates(ctx context.Context, strategy domain.FetchStrategy) ([]projection.OrderView, error) {
	defer observe(s.metrics, "project_orders")()

	var views []projection.OrderView
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		views, err = projection.NewAggregateReader(tx.Orders, strategy).Orders(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// OrderSummaries возвращает заголовки заказов без позиций.
func (s *OrderService) OrderSummaries(ctx context.Context) ([]projection.OrderSummary, error) {
	var summaries []projection.OrderSummary
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		summaries, err = projection.NewReader(tx.Queries, s.batchSize).Summaries(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// enqueue кладёт событие заказа в outbox той же единицы работы.
func (s *OrderService) enqueue(ctx context.Context, tx storage.Tx, eventType kafka.EventType, order *domain.Order) error {
	if tx.Outbox == nil {
		return errors.New("outbox repository is not configured")
	}
	payload, err := kafka.NewOrderEvent(eventType, order).Marshal()
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     string(eventType),
		Payload:       payload,
	}
	if _, err := tx.Outbox.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s event: %w", eventType, err)
	}
	s.metrics.RecordOutboxEvent()
	return nil
}
