package categories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cache"
	"github.com/angelmondragon/storefront-backend/internal/cache/cachetest"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *cachetest.Store, *Repository) {
	t.Helper()
	client := dbtest.Open(t)
	store := cachetest.New()
	c := cache.New(cache.Options{Store: store, Config: config.CacheConfig{Enabled: true}})
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, client, c)
	require.NoError(t, err)
	return svc, store, repo
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCategoryInput{Name: "Mugs"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateCategoryInput{Name: " Mugs "})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestListIsCachedUntilMutation(t *testing.T) {
	svc, store, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCategoryInput{Name: "Books"})
	require.NoError(t, err)

	first, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, store.Has("sf:cache:"+cache.CategoriesListKey().String()))

	// a write that bypasses the service is invisible until invalidation
	require.NoError(t, repo.Create(ctx, &models.Category{Name: "Games"}))
	cached, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	_, err = svc.Create(ctx, CreateCategoryInput{Name: "Toys"})
	require.NoError(t, err)
	fresh, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh, 3)
	assert.Equal(t, "Books", fresh[0].Name)
}

func TestUpdatePatchesOnlyProvidedFields(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	desc := "ceramic"
	created, err := svc.Create(ctx, CreateCategoryInput{Name: "Mugs", Description: &desc})
	require.NoError(t, err)

	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, store.Has("sf:cache:"+cache.CategoryKey(created.ID).String()))

	name := "Cups"
	updated, err := svc.Update(ctx, created.ID, UpdateCategoryInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Cups", updated.Name)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "ceramic", *updated.Description)
	assert.False(t, store.Has("sf:cache:"+cache.CategoryKey(created.ID).String()))

	_, err = svc.Update(ctx, created.ID, UpdateCategoryInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Update(ctx, uuid.New(), UpdateCategoryInput{Name: &name})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteRefusesNonEmptyCategory(t *testing.T) {
	svc, _, repo := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateCategoryInput{Name: "Lamps"})
	require.NoError(t, err)
	product := &models.Product{CategoryID: created.ID, Name: "Desk lamp", Price: decimal.RequireFromString("24.50"), IsActive: true}
	require.NoError(t, repo.db.Create(product).Error)

	err = svc.Delete(ctx, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	require.NoError(t, repo.db.Delete(product).Error)
	require.NoError(t, svc.Delete(ctx, created.ID))

	err = svc.Delete(ctx, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRenameRefreshesCachedProducts(t *testing.T) {
	client := dbtest.Open(t)
	store := cachetest.New()
	c := cache.New(cache.Options{Store: store, Config: config.CacheConfig{Enabled: true}})
	svc, err := NewService(NewRepository(client.DB()), client, c)
	require.NoError(t, err)
	products, err := product.NewService(product.NewRepository(client.DB()), client, c)
	require.NoError(t, err)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateCategoryInput{Name: "Mugs"})
	require.NoError(t, err)
	item, err := products.CreateProduct(ctx, product.CreateProductInput{
		CategoryID:   created.ID,
		Name:         "Espresso cup",
		Price:        decimal.RequireFromString("6.00"),
		InitialStock: 3,
	})
	require.NoError(t, err)

	cached, err := products.GetProduct(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "Mugs", cached.CategoryName)
	require.True(t, store.Has("sf:cache:"+cache.ProductKey(item.ID).String()))

	name := "Cups"
	_, err = svc.Update(ctx, created.ID, UpdateCategoryInput{Name: &name})
	require.NoError(t, err)
	assert.False(t, store.Has("sf:cache:"+cache.ProductKey(item.ID).String()))

	fresh, err := products.GetProduct(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cups", fresh.CategoryName)
}
