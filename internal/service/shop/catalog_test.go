package shop_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestMemberService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	member, err := domain.NewMember("kim", domain.Address{City: "Seoul"})
	require.NoError(t, err)
	memberID, err := f.services.Members.Join(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, member.ID, memberID)

	found, err := f.services.Members.FindOne(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, "kim", found.Name)

	t.Run("duplicate name", func(t *testing.T) {
		duplicate, err := domain.NewMember("kim", domain.Address{City: "Busan"})
		require.NoError(t, err)
		_, err = f.services.Members.Join(ctx, duplicate)
		assert.ErrorIs(t, err, domain.ErrDuplicateMember)
	})

	t.Run("rename", func(t *testing.T) {
		require.NoError(t, f.services.Members.UpdateName(ctx, memberID, "lee"))
		renamed, err := f.services.Members.FindOne(ctx, memberID)
		require.NoError(t, err)
		assert.Equal(t, "lee", renamed.Name)

		assert.ErrorIs(t, f.services.Members.UpdateName(ctx, memberID, "  "), domain.ErrNameRequired)
		assert.ErrorIs(t, f.services.Members.UpdateName(ctx, 999, "park"), domain.ErrMemberNotFound)
	})

	members, err := f.services.Members.FindMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "lee", members[0].Name)
}

func TestItemService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	book, err := domain.NewBook("JPA BOOK", 10000, 10, domain.Book{Author: "kim", ISBN: "1234"})
	require.NoError(t, err)
	itemID, err := f.services.Items.SaveItem(ctx, book)
	require.NoError(t, err)

	found, err := f.services.Items.FindOne(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemKindBook, found.Kind)
	require.NotNil(t, found.Book)
	assert.Equal(t, "1234", found.Book.ISBN)

	require.NoError(t, f.services.Items.UpdateItem(ctx, itemID, "JPA BOOK 2nd", 12000, 5))
	updated, err := f.services.Items.FindOne(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, "JPA BOOK 2nd", updated.Name)
	assert.Equal(t, int64(12000), updated.Price)
	assert.Equal(t, 5, updated.StockQuantity())

	assert.ErrorIs(t, f.services.Items.UpdateItem(ctx, itemID, "x", 1, -1), domain.ErrInvalidQuantity)
	assert.ErrorIs(t, f.services.Items.UpdateItem(ctx, 999, "x", 1, 1), domain.ErrItemNotFound)

	items, err := f.services.Items.FindItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestItemService_Categories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	book, err := domain.NewBook("JPA BOOK", 10000, 10, domain.Book{})
	require.NoError(t, err)
	itemID, err := f.services.Items.SaveItem(ctx, book)
	require.NoError(t, err)

	root, err := f.services.Items.CreateCategory(ctx, "books", 0)
	require.NoError(t, err)
	child, err := f.services.Items.CreateCategory(ctx, "programming", root.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, child.ParentID)
	require.NotNil(t, child.Parent())

	_, err = f.services.Items.CreateCategory(ctx, "orphan", 999)
	assert.ErrorIs(t, err, domain.ErrCategoryNotFound)
	_, err = f.services.Items.CreateCategory(ctx, "", 0)
	assert.ErrorIs(t, err, domain.ErrNameRequired)

	require.NoError(t, f.services.Items.LinkItem(ctx, root.ID, itemID))
	require.NoError(t, f.services.Items.LinkItem(ctx, child.ID, itemID))

	categories, err := f.services.Items.ItemCategories(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "books", categories[0].Name)
	assert.Equal(t, "programming", categories[1].Name)

	_, err = f.services.Items.ItemCategories(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}
