package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cache"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service exposes catalog reads and admin product management.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	SearchProducts(ctx context.Context, query string, params pagination.Params) (*ProductListResult, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID, params pagination.Params) (*ProductListResult, error)
}

// service implements the product service.
type service struct {
	repo     *Repository
	dbClient *db.Client
	cache    *cache.Cache
}

// NewService constructs a product service instance.
func NewService(repo *Repository, dbClient *db.Client, c *cache.Cache) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if c == nil {
		c = cache.Disabled()
	}
	return &service{repo: repo, dbClient: dbClient, cache: c}, nil
}

// CreateProduct creates the product and its inventory row in one transaction.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if input.InitialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock must be zero or greater")
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	var createdID uuid.UUID
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := s.ensureCategory(ctx, txRepo, input.CategoryID); err != nil {
			return err
		}

		product := &models.Product{
			CategoryID:  input.CategoryID,
			Name:        name,
			Description: trimOptional(input.Description),
			Price:       input.Price.Round(2),
			IsActive:    active,
		}
		if err := txRepo.CreateProduct(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		createdID = product.ID

		if err := tx.WithContext(ctx).Create(&models.Inventory{ProductID: product.ID, Quantity: input.InitialStock}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert inventory")
		}
		return nil
	}); err != nil {
		return nil, passTyped(err, "create product")
	}

	s.cache.Invalidate(ctx, cache.ForProduct(createdID))
	return s.loadDTO(ctx, createdID)
}

// UpdateProduct applies the patch field by field and writes once.
func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if input.isEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return nil, err
		}
	}

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := txRepo.FindByID(ctx, productID)
		if err != nil {
			return mapLoadError(err)
		}
		if input.CategoryID != nil && *input.CategoryID != product.CategoryID {
			if err := s.ensureCategory(ctx, txRepo, *input.CategoryID); err != nil {
				return err
			}
		}
		applyUpdateToProduct(product, input)
		if err := txRepo.UpdateProduct(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}
		return nil
	}); err != nil {
		return nil, passTyped(err, "update product")
	}

	s.cache.Invalidate(ctx, cache.ForProduct(productID))
	return s.loadDTO(ctx, productID)
}

// DeleteProduct removes a product and relies on FK cascades for inventory and
// cart lines. Order history keeps its captured name and price.
func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	deleted, err := s.repo.DeleteProduct(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if deleted == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	s.cache.Invalidate(ctx, cache.ForProduct(productID))
	return nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	dto, err := cache.ReadThrough(ctx, s.cache, cache.ProductKey(productID), func(ctx context.Context) (ProductDTO, error) {
		product, err := s.repo.FindByID(ctx, productID)
		if err != nil {
			return ProductDTO{}, mapLoadError(err)
		}
		return NewProductDTO(product), nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	if input.MinPrice != nil && input.MaxPrice != nil && input.MinPrice.GreaterThan(*input.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minPrice cannot exceed maxPrice")
	}
	input = input.normalized()
	return s.readPage(ctx, input.cacheKey(), input.Pagination, func(ctx context.Context) ([]models.Product, int64, error) {
		return s.repo.ListProducts(ctx, input)
	})
}

func (s *service) SearchProducts(ctx context.Context, query string, params pagination.Params) (*ProductListResult, error) {
	query = cache.NormalizeQuery(query)
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "q is required")
	}
	params = params.Normalize()
	return s.readPage(ctx, cache.ProductSearchKey(query, params.Page, params.Limit), params, func(ctx context.Context) ([]models.Product, int64, error) {
		return s.repo.Search(ctx, query, params)
	})
}

func (s *service) ListByCategory(ctx context.Context, categoryID uuid.UUID, params pagination.Params) (*ProductListResult, error) {
	params = params.Normalize()
	key := cache.CategoryProductsKey(categoryID, params.Page, params.Limit)
	return s.readPage(ctx, key, params, func(ctx context.Context) ([]models.Product, int64, error) {
		if err := s.ensureCategory(ctx, s.repo, categoryID); err != nil {
			return nil, 0, err
		}
		active := true
		return s.repo.ListProducts(ctx, ListProductsInput{CategoryID: &categoryID, Active: &active, Pagination: params})
	})
}

func (s *service) readPage(ctx context.Context, key cache.Key, params pagination.Params, load func(context.Context) ([]models.Product, int64, error)) (*ProductListResult, error) {
	page, err := cache.ReadThrough(ctx, s.cache, key, func(ctx context.Context) (ProductListResult, error) {
		rows, total, err := load(ctx)
		if err != nil {
			return ProductListResult{}, passTyped(err, "list products")
		}
		items := make([]ProductDTO, 0, len(rows))
		for i := range rows {
			items = append(items, NewProductDTO(&rows[i]))
		}
		return pagination.NewPage(items, params, total), nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *service) loadDTO(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product detail")
	}
	dto := NewProductDTO(product)
	return &dto, nil
}

func (s *service) ensureCategory(ctx context.Context, repo *Repository, categoryID uuid.UUID) error {
	if categoryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "categoryId is required")
	}
	ok, err := repo.CategoryExists(ctx, categoryID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return nil
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	if input.CategoryID != nil {
		product.CategoryID = *input.CategoryID
		product.Category = nil
	}
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = trimOptional(input.Description)
	}
	if input.Price != nil {
		product.Price = input.Price.Round(2)
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be zero or greater")
	}
	if price.Exponent() < -2 && !price.Equal(price.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price supports at most two decimal places")
	}
	return nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}

func passTyped(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
