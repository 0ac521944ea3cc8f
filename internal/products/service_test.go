package product

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cache"
	"github.com/angelmondragon/storefront-backend/internal/cache/cachetest"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type fixture struct {
	svc      Service
	repo     *Repository
	store    *cachetest.Store
	category uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	store := cachetest.New()
	c := cache.New(cache.Options{Store: store, Config: config.CacheConfig{Enabled: true}})
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, client, c)
	require.NoError(t, err)

	category := &models.Category{Name: "Kitchen"}
	require.NoError(t, client.DB().Create(category).Error)
	return fixture{svc: svc, repo: repo, store: store, category: category.ID}
}

func (f fixture) create(t *testing.T, name, price string, stock int) *ProductDTO {
	t.Helper()
	dto, err := f.svc.CreateProduct(context.Background(), CreateProductInput{
		CategoryID:   f.category,
		Name:         name,
		Price:        decimal.RequireFromString(price),
		InitialStock: stock,
	})
	require.NoError(t, err)
	return dto
}

func TestCreateProductWithInventory(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, "  Mug ", "9.99", 5)

	assert.Equal(t, "Mug", created.Name)
	assert.Equal(t, "Kitchen", created.CategoryName)
	assert.Equal(t, 5, created.Stock)
	assert.True(t, created.IsActive)
	assert.True(t, decimal.RequireFromString("9.99").Equal(created.Price))
}

func TestCreateProductValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateProduct(ctx, CreateProductInput{CategoryID: f.category, Name: "x", Price: decimal.RequireFromString("-1")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateProduct(ctx, CreateProductInput{CategoryID: f.category, Name: "x", Price: decimal.RequireFromString("1.999")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateProduct(ctx, CreateProductInput{CategoryID: uuid.New(), Name: "x", Price: decimal.RequireFromString("1")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetProductIsCachedAndInvalidatedOnUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, "Mug", "9.99", 5)

	_, err := f.svc.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	key := "sf:cache:" + cache.ProductKey(created.ID).String()
	require.True(t, f.store.Has(key))

	price := decimal.RequireFromString("12.50")
	inactive := false
	updated, err := f.svc.UpdateProduct(ctx, created.ID, UpdateProductInput{Price: &price, IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, f.store.Has(key))
	assert.Equal(t, "Mug", updated.Name)
	assert.False(t, updated.IsActive)
	assert.True(t, price.Equal(updated.Price))

	got, err := f.svc.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(got.Price))
}

func TestListProductsFiltersSortsAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "Blue mug", "5.00", 1)
	f.create(t, "Red mug", "15.00", 1)
	f.create(t, "Teapot", "30.00", 1)

	min := decimal.RequireFromString("4")
	max := decimal.RequireFromString("20")
	page, err := f.svc.ListProducts(ctx, ListProductsInput{
		Query:      "MUG",
		MinPrice:   &min,
		MaxPrice:   &max,
		Sort:       enums.ProductSortPrice,
		Direction:  enums.SortDesc,
		Pagination: pagination.Params{Page: 1, Limit: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Red mug", page.Items[0].Name)

	_, err = f.svc.ListProducts(ctx, ListProductsInput{MinPrice: &max, MaxPrice: &min})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListProductsCacheDropsAfterCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "Mug", "9.99", 1)

	first, err := f.svc.ListProducts(ctx, ListProductsInput{})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	require.True(t, f.store.Has("sf:cache:"+cache.ProductListKey(cache.ProductListParams{}).String()))

	f.create(t, "Bowl", "4.00", 1)
	second, err := f.svc.ListProducts(ctx, ListProductsInput{})
	require.NoError(t, err)
	assert.Len(t, second.Items, 2)
}

func TestSearchAndCategoryListingSkipInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "Steel kettle", "40.00", 1)
	hidden := f.create(t, "Copper kettle", "90.00", 1)
	inactive := false
	_, err := f.svc.UpdateProduct(ctx, hidden.ID, UpdateProductInput{IsActive: &inactive})
	require.NoError(t, err)

	found, err := f.svc.SearchProducts(ctx, "kettle", pagination.Params{})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Steel kettle", found.Items[0].Name)

	_, err = f.svc.SearchProducts(ctx, "  ", pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	byCategory, err := f.svc.ListByCategory(ctx, f.category, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), byCategory.Total)

	_, err = f.svc.ListByCategory(ctx, uuid.New(), pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestQueryWhitespaceMatchesKeyAndFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "Red mug", "15.00", 1)
	f.create(t, "Red teapot", "30.00", 1)

	// cold cache: the filter sees the same collapsed text the key uses
	found, err := f.svc.SearchProducts(ctx, "  RED   mug ", pagination.Params{})
	require.NoError(t, err)
	require.Equal(t, int64(1), found.Total)
	assert.Equal(t, "Red mug", found.Items[0].Name)
	assert.True(t, f.store.Has("sf:cache:"+cache.ProductSearchKey("red mug", 1, 0).String()))

	again, err := f.svc.SearchProducts(ctx, "red mug", pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, found.Total, again.Total)

	listed, err := f.svc.ListProducts(ctx, ListProductsInput{Query: "red \t mug"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), listed.Total)
}

func TestDeleteProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, "Mug", "9.99", 1)

	require.NoError(t, f.svc.DeleteProduct(ctx, created.ID))
	_, err := f.svc.GetProduct(ctx, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(f.svc.DeleteProduct(ctx, created.ID), pkgerrors.CodeNotFound))
}

func TestApplyUpdateToProductTrimsAndCopies(t *testing.T) {
	product := &models.Product{Name: "old", Category: &models.Category{Name: "old"}}
	name := "  New name "
	desc := "   "
	cat := uuid.New()

	applyUpdateToProduct(product, UpdateProductInput{Name: &name, Description: &desc, CategoryID: &cat})

	assert.Equal(t, "New name", product.Name)
	assert.Nil(t, product.Description)
	assert.Equal(t, cat, product.CategoryID)
	assert.Nil(t, product.Category)
}
