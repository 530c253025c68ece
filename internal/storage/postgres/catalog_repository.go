package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/fetch"
)

// memberRepository — участники в PostgreSQL.
type memberRepository struct {
	q sqlx.ExtContext
}

func (r *memberRepository) Create(ctx context.Context, member *domain.Member) error {
	id, err := insertReturningID(ctx, r.q, dialect.Insert("members").Rows(goqu.Record{
		"name":    member.Name,
		"city":    member.Address.City,
		"street":  member.Address.Street,
		"zipcode": member.Address.Zipcode,
	}))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateMember, member.Name)
		}
		return fmt.Errorf("insert member: %w", err)
	}
	member.ID = id
	return nil
}

func (r *memberRepository) Get(ctx context.Context, id int64) (*domain.Member, error) {
	var row fetch.MemberRow
	ds := dialect.From(goqu.T("members").As(aliasMember)).
		Select(memberColumns(aliasMember)...).
		Where(goqu.T(aliasMember).Col("id").Eq(id))
	if err := getRow(ctx, r.q, &row, ds); err != nil {
		return nil, notFound(err, domain.ErrMemberNotFound, id)
	}
	return row.Member(), nil
}

func (r *memberRepository) FindByName(ctx context.Context, name string) ([]*domain.Member, error) {
	return r.list(ctx, goqu.T(aliasMember).Col("name").Eq(name))
}

func (r *memberRepository) List(ctx context.Context) ([]*domain.Member, error) {
	return r.list(ctx)
}

func (r *memberRepository) list(ctx context.Context, where ...goqu.Expression) ([]*domain.Member, error) {
	var rows []fetch.MemberRow
	ds := dialect.From(goqu.T("members").As(aliasMember)).
		Select(memberColumns(aliasMember)...).
		Where(where...).
		Order(goqu.T(aliasMember).Col("id").Asc())
	if err := selectRows(ctx, r.q, &rows, ds); err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}

	result := make([]*domain.Member, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.Member())
	}
	return result, nil
}

func (r *memberRepository) Save(ctx context.Context, member *domain.Member) error {
	affected, err := execUpdate(ctx, r.q, dialect.Update("members").
		Set(goqu.Record{
			"name":    member.Name,
			"city":    member.Address.City,
			"street":  member.Address.Street,
			"zipcode": member.Address.Zipcode,
		}).
		Where(goqu.C("id").Eq(member.ID)))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateMember, member.Name)
		}
		return fmt.Errorf("update member: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", domain.ErrMemberNotFound, member.ID)
	}
	return nil
}

// itemRepository — товары в PostgreSQL (single table, дискриминатор dtype).
type itemRepository struct {
	q sqlx.ExtContext
}

func itemRecord(row fetch.ItemRow) goqu.Record {
	return goqu.Record{
		"dtype":          row.Kind,
		"name":           row.Name,
		"price":          row.Price,
		"stock_quantity": row.StockQuantity,
		"author":         row.Author,
		"isbn":           row.ISBN,
	}
}

func (r *itemRepository) Create(ctx context.Context, item *domain.Item) error {
	id, err := insertReturningID(ctx, r.q, dialect.Insert("items").Rows(itemRecord(fetch.ItemRowOf(item))))
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrInvalidQuantity, item.Name)
		}
		return fmt.Errorf("insert item: %w", err)
	}
	item.ID = id
	return nil
}

func (r *itemRepository) Get(ctx context.Context, id int64) (*domain.Item, error) {
	var row fetch.ItemRow
	ds := dialect.From(goqu.T("items").As(aliasItem)).
		Select(itemColumns(aliasItem)...).
		Where(goqu.T(aliasItem).Col("id").Eq(id))
	if err := getRow(ctx, r.q, &row, ds); err != nil {
		return nil, notFound(err, domain.ErrItemNotFound, id)
	}
	return row.Item(), nil
}

func (r *itemRepository) List(ctx context.Context) ([]*domain.Item, error) {
	var rows []fetch.ItemRow
	ds := dialect.From(goqu.T("items").As(aliasItem)).
		Select(itemColumns(aliasItem)...).
		Order(goqu.T(aliasItem).Col("id").Asc())
	if err := selectRows(ctx, r.q, &rows, ds); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}

	result := make([]*domain.Item, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.Item())
	}
	return result, nil
}

func (r *itemRepository) Save(ctx context.Context, item *domain.Item) error {
	affected, err := execUpdate(ctx, r.q, dialect.Update("items").
		Set(itemRecord(fetch.ItemRowOf(item))).
		Where(goqu.C("id").Eq(item.ID)))
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", domain.ErrItemNotFound, item.ID)
	}
	return nil
}

// AdjustStock меняет остаток одним условным UPDATE, поэтому параллельные
// списания не уводят остаток ниже нуля.
func (r *itemRepository) AdjustStock(ctx context.Context, id int64, delta int) error {
	affected, err := execUpdate(ctx, r.q, dialect.Update("items").
		Set(goqu.Record{"stock_quantity": goqu.L("stock_quantity + ?", delta)}).
		Where(
			goqu.C("id").Eq(id),
			goqu.L("stock_quantity + ? >= 0", delta),
		))
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if affected > 0 {
		return nil
	}

	item, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: item %d has %d, requested %d", domain.ErrInsufficientStock, id, item.StockQuantity(), -delta)
}

// categoryRepository — категории и связь category_items.
type categoryRepository struct {
	q sqlx.ExtContext
}

type categoryRow struct {
	ID       int64         `db:"id"`
	Name     string        `db:"name"`
	ParentID sql.NullInt64 `db:"parent_id"`
}

func (row categoryRow) category() *domain.Category {
	return &domain.Category{ID: row.ID, Name: row.Name, ParentID: row.ParentID.Int64}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	var parent interface{}
	if category.ParentID != 0 {
		ok, err := exists(ctx, r.q, "categories", category.ParentID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: parent %d", domain.ErrCategoryNotFound, category.ParentID)
		}
		parent = category.ParentID
	}

	id, err := insertReturningID(ctx, r.q, dialect.Insert("categories").Rows(goqu.Record{
		"name":      category.Name,
		"parent_id": parent,
	}))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	category.ID = id
	return nil
}

func (r *categoryRepository) Get(ctx context.Context, id int64) (*domain.Category, error) {
	var row categoryRow
	ds := dialect.From("categories").
		Select("id", "name", "parent_id").
		Where(goqu.C("id").Eq(id))
	if err := getRow(ctx, r.q, &row, ds); err != nil {
		return nil, notFound(err, domain.ErrCategoryNotFound, id)
	}
	return row.category(), nil
}

func (r *categoryRepository) LinkItem(ctx context.Context, categoryID, itemID int64) error {
	ok, err := exists(ctx, r.q, "categories", categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrCategoryNotFound, categoryID)
	}
	if ok, err = exists(ctx, r.q, "items", itemID); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrItemNotFound, itemID)
	}

	query, args, err := dialect.Insert("category_items").
		Rows(goqu.Record{"category_id": categoryID, "item_id": itemID}).
		OnConflict(goqu.DoNothing()).
		Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build category link: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return errors.Join(domain.ErrCategoryNotFound, err)
		}
		return fmt.Errorf("link category item: %w", err)
	}
	return nil
}

func (r *categoryRepository) ListByItem(ctx context.Context, itemID int64) ([]*domain.Category, error) {
	var rows []categoryRow
	ds := dialect.From(goqu.T("categories").As("c")).
		Join(goqu.T("category_items").As("ci"), goqu.On(goqu.I("ci.category_id").Eq(goqu.I("c.id")))).
		Select(goqu.I("c.id"), goqu.I("c.name"), goqu.I("c.parent_id")).
		Where(goqu.I("ci.item_id").Eq(itemID)).
		Order(goqu.I("c.id").Asc())
	if err := selectRows(ctx, r.q, &rows, ds); err != nil {
		return nil, fmt.Errorf("select item categories: %w", err)
	}

	result := make([]*domain.Category, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.category())
	}
	return result, nil
}

var (
	_ domain.MemberRepository   = (*memberRepository)(nil)
	_ domain.ItemRepository     = (*itemRepository)(nil)
	_ domain.CategoryRepository = (*categoryRepository)(nil)
)
