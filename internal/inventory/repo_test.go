package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

func seedProduct(t *testing.T, conn *gorm.DB, stock int) uuid.UUID {
	t.Helper()
	category := &models.Category{Name: "cat-" + uuid.NewString()}
	require.NoError(t, conn.Create(category).Error)
	product := &models.Product{CategoryID: category.ID, Name: "widget", Price: decimal.RequireFromString("9.99"), IsActive: true}
	require.NoError(t, conn.Create(product).Error)
	require.NoError(t, conn.Create(&models.Inventory{ProductID: product.ID, Quantity: stock}).Error)
	return product.ID
}

func TestDecrementIsConditional(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	id := seedProduct(t, client.DB(), 3)

	ok, err := repo.Decrement(ctx, id, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Decrement(ctx, id, 2)
	require.NoError(t, err)
	assert.False(t, ok, "only one unit left")

	row, err := repo.FindByProductID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, row.Quantity)

	ok, err = repo.Decrement(ctx, id, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	row, err = repo.FindByProductID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, row.Quantity)
}

func TestIncrementAndAdjust(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	id := seedProduct(t, client.DB(), 1)

	ok, err := repo.Increment(ctx, id, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Adjust(ctx, id, -6)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Adjust(ctx, id, -5)
	require.NoError(t, err)
	assert.True(t, ok)

	row, err := repo.FindByProductID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, row.Quantity)

	ok, err = repo.Increment(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetUpsertsRow(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	id := seedProduct(t, client.DB(), 2)

	require.NoError(t, repo.Set(ctx, id, 40))
	row, err := repo.FindByProductID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 40, row.Quantity)
}
