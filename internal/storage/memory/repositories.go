package memory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/fetch"
)

// memberRepository — участники в памяти.
type memberRepository struct {
	t *tables
}

func (r *memberRepository) Create(_ context.Context, member *domain.Member) error {
	row := fetch.MemberRowOf(member)
	row.ID = r.t.next("members")
	r.t.members[row.ID] = row
	member.ID = row.ID
	return nil
}

func (r *memberRepository) Get(_ context.Context, id int64) (*domain.Member, error) {
	row, ok := r.t.members[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrMemberNotFound, id)
	}
	return row.Member(), nil
}

func (r *memberRepository) FindByName(_ context.Context, name string) ([]*domain.Member, error) {
	result := make([]*domain.Member, 0)
	for _, id := range sortedKeys(r.t.members) {
		if row := r.t.members[id]; row.Name == name {
			result = append(result, row.Member())
		}
	}
	return result, nil
}

func (r *memberRepository) List(_ context.Context) ([]*domain.Member, error) {
	result := make([]*domain.Member, 0, len(r.t.members))
	for _, id := range sortedKeys(r.t.members) {
		result = append(result, r.t.members[id].Member())
	}
	return result, nil
}

func (r *memberRepository) Save(_ context.Context, member *domain.Member) error {
	if _, ok := r.t.members[member.ID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrMemberNotFound, member.ID)
	}
	r.t.members[member.ID] = fetch.MemberRowOf(member)
	return nil
}

// itemRepository — товары в памяти.
type itemRepository struct {
	t *tables
}

func (r *itemRepository) Create(_ context.Context, item *domain.Item) error {
	row := fetch.ItemRowOf(item)
	row.ID = r.t.next("items")
	r.t.items[row.ID] = row
	item.ID = row.ID
	return nil
}

func (r *itemRepository) Get(_ context.Context, id int64) (*domain.Item, error) {
	row, ok := r.t.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrItemNotFound, id)
	}
	return row.Item(), nil
}

func (r *itemRepository) List(_ context.Context) ([]*domain.Item, error) {
	result := make([]*domain.Item, 0, len(r.t.items))
	for _, id := range sortedKeys(r.t.items) {
		result = append(result, r.t.items[id].Item())
	}
	return result, nil
}

func (r *itemRepository) Save(_ context.Context, item *domain.Item) error {
	if _, ok := r.t.items[item.ID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrItemNotFound, item.ID)
	}
	r.t.items[item.ID] = fetch.ItemRowOf(item)
	return nil
}

func (r *itemRepository) AdjustStock(_ context.Context, id int64, delta int) error {
	row, ok := r.t.items[id]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrItemNotFound, id)
	}
	if row.StockQuantity+delta < 0 {
		return fmt.Errorf("%w: item %d has %d, requested %d", domain.ErrInsufficientStock, id, row.StockQuantity, -delta)
	}
	row.StockQuantity += delta
	r.t.items[id] = row
	return nil
}

// categoryRepository — категории в памяти.
type categoryRepository struct {
	t *tables
}

func (r *categoryRepository) Create(_ context.Context, category *domain.Category) error {
	if category.ParentID != 0 {
		if _, ok := r.t.categories[category.ParentID]; !ok {
			return fmt.Errorf("%w: parent %d", domain.ErrCategoryNotFound, category.ParentID)
		}
	}
	row := categoryRow{ID: r.t.next("categories"), Name: category.Name, ParentID: category.ParentID}
	r.t.categories[row.ID] = row
	category.ID = row.ID
	return nil
}

func (r *categoryRepository) Get(_ context.Context, id int64) (*domain.Category, error) {
	row, ok := r.t.categories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrCategoryNotFound, id)
	}
	return &domain.Category{ID: row.ID, Name: row.Name, ParentID: row.ParentID}, nil
}

func (r *categoryRepository) LinkItem(_ context.Context, categoryID, itemID int64) error {
	if _, ok := r.t.categories[categoryID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrCategoryNotFound, categoryID)
	}
	if _, ok := r.t.items[itemID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrItemNotFound, itemID)
	}
	links, ok := r.t.categoryItems[categoryID]
	if !ok {
		links = make(map[int64]bool)
		r.t.categoryItems[categoryID] = links
	}
	links[itemID] = true
	return nil
}

func (r *categoryRepository) ListByItem(_ context.Context, itemID int64) ([]*domain.Category, error) {
	result := make([]*domain.Category, 0)
	for _, id := range sortedKeys(r.t.categories) {
		if r.t.categoryItems[id][itemID] {
			row := r.t.categories[id]
			result = append(result, &domain.Category{ID: row.ID, Name: row.Name, ParentID: row.ParentID})
		}
	}
	return result, nil
}

var (
	_ domain.MemberRepository   = (*memberRepository)(nil)
	_ domain.ItemRepository     = (*itemRepository)(nil)
	_ domain.CategoryRepository = (*categoryRepository)(nil)
)
