package categories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cache"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Service exposes category reads and admin mutations.
type Service interface {
	Create(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*CategoryDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error)
	List(ctx context.Context) ([]CategoryDTO, error)
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	cache    *cache.Cache
}

func NewService(repo *Repository, dbClient *db.Client, c *cache.Cache) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if c == nil {
		c = cache.Disabled()
	}
	return &service{repo: repo, dbClient: dbClient, cache: c}, nil
}

func (s *service) Create(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	category := &models.Category{Name: name, Description: trimOptional(input.Description)}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, mapWriteError(err, "insert category")
	}

	s.cache.Invalidate(ctx, cache.ForCategory(category.ID))
	dto := NewCategoryDTO(category)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*CategoryDTO, error) {
	if input.isEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}

	var updated *models.Category
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		category, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		if input.Name != nil {
			category.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			category.Description = trimOptional(input.Description)
		}
		if err := txRepo.Save(ctx, category); err != nil {
			return mapWriteError(err, "update category")
		}
		updated = category
		return nil
	})
	if err != nil {
		return nil, passTyped(err, "update category")
	}

	s.cache.Invalidate(ctx, cache.ForCategory(id))
	dto := NewCategoryDTO(updated)
	return &dto, nil
}

// Delete refuses while any product still references the category.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		count, err := txRepo.CountProducts(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count category products")
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "category still has products").
				WithDetails(map[string]any{"productCount": count})
		}
		deleted, err := txRepo.Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
		}
		if deleted == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil
	})
	if err != nil {
		return passTyped(err, "delete category")
	}

	s.cache.Invalidate(ctx, cache.ForCategory(id))
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error) {
	dto, err := cache.ReadThrough(ctx, s.cache, cache.CategoryKey(id), func(ctx context.Context) (CategoryDTO, error) {
		category, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return CategoryDTO{}, mapLoadError(err)
		}
		return NewCategoryDTO(category), nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) List(ctx context.Context) ([]CategoryDTO, error) {
	return cache.ReadThrough(ctx, s.cache, cache.CategoriesListKey(), func(ctx context.Context) ([]CategoryDTO, error) {
		rows, err := s.repo.List(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
		}
		out := make([]CategoryDTO, 0, len(rows))
		for i := range rows {
			out = append(out, NewCategoryDTO(&rows[i]))
		}
		return out, nil
	})
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
}

func mapWriteError(err error, op string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
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
