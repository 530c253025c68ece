package shop

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

// ItemService ведёт каталог товаров и категорий.
type ItemService struct {
	uow    storage.UnitOfWork
	logger *log.Entry
}

// NewItemService конструирует сервис каталога.
func NewItemService(uow storage.UnitOfWork, options ...Option) *ItemService {
	opts := buildOptions("item-service", options)
	return &ItemService{uow: uow, logger: opts.Logger}
}

// SaveItem сохраняет новый товар и возвращает его ID.
func (s *ItemService) SaveItem(ctx context.Context, item *domain.Item) (int64, error) {
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.Items.Create(ctx, item)
	})
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(log.Fields{
		"item_id": item.ID,
		"name":    item.Name,
	}).Debug("item saved")
	return item.ID, nil
}

// UpdateItem меняет название, цену и остаток товара.
func (s *ItemService) UpdateItem(ctx context.Context, itemID int64, name string, price int64, stockQuantity int) error {
	return s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		item, err := tx.Items.Get(ctx, itemID)
		if err != nil {
			return err
		}
		if err := item.Change(name, price, stockQuantity); err != nil {
			return err
		}
		return tx.Items.Save(ctx, item)
	})
}

// FindItems возвращает все товары.
func (s *ItemService) FindItems(ctx context.Context) ([]*domain.Item, error) {
	var items []*domain.Item
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		items, err = tx.Items.List(ctx)
		return err
	})
	return items, err
}

// FindOne возвращает товар по ID.
func (s *ItemService) FindOne(ctx context.Context, itemID int64) (*domain.Item, error) {
	var item *domain.Item
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		item, err = tx.Items.Get(ctx, itemID)
		return err
	})
	return item, err
}

// CreateCategory создаёт категорию; parentID == 0 — корневая.
func (s *ItemService) CreateCategory(ctx context.Context, name string, parentID int64) (*domain.Category, error) {
	category, err := domain.NewCategory(name)
	if err != nil {
		return nil, err
	}
	err = s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		if parentID != 0 {
			parent, err := tx.Categories.Get(ctx, parentID)
			if err != nil {
				return err
			}
			parent.AddChild(category)
		}
		return tx.Categories.Create(ctx, category)
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// LinkItem добавляет товар в категорию.
func (s *ItemService) LinkItem(ctx context.Context, categoryID, itemID int64) error {
	return s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.Categories.LinkItem(ctx, categoryID, itemID)
	})
}

// ItemCategories возвращает категории товара.
func (s *ItemService) ItemCategories(ctx context.Context, itemID int64) ([]*domain.Category, error) {
	var categories []*domain.Category
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.Items.Get(ctx, itemID); err != nil {
			return err
		}
		var err error
		categories, err = tx.Categories.ListByItem(ctx, itemID)
		return err
	})
	return categories, err
}
