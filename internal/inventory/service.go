package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cache"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// InventoryDTO is the API and cache shape of a stock level.
type InventoryDTO struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewInventoryDTO(row *models.Inventory) InventoryDTO {
	return InventoryDTO{ProductID: row.ProductID, Quantity: row.Quantity, UpdatedAt: row.UpdatedAt}
}

// Service exposes stock reads and admin stock mutations.
type Service interface {
	Get(ctx context.Context, productID uuid.UUID) (*InventoryDTO, error)
	Set(ctx context.Context, productID uuid.UUID, quantity int) (*InventoryDTO, error)
	Adjust(ctx context.Context, productID uuid.UUID, delta int) (*InventoryDTO, error)
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	cache    *cache.Cache
}

func NewService(repo *Repository, dbClient *db.Client, c *cache.Cache) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if c == nil {
		c = cache.Disabled()
	}
	return &service{repo: repo, dbClient: dbClient, cache: c}, nil
}

// Get is served from cache and is advisory only; order placement reads stock
// inside its own transaction.
func (s *service) Get(ctx context.Context, productID uuid.UUID) (*InventoryDTO, error) {
	dto, err := cache.ReadThrough(ctx, s.cache, cache.InventoryKey(productID), func(ctx context.Context) (InventoryDTO, error) {
		row, err := s.repo.FindByProductID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return InventoryDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found")
			}
			return InventoryDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
		}
		return NewInventoryDTO(row), nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) Set(ctx context.Context, productID uuid.UUID, quantity int) (*InventoryDTO, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be zero or greater")
	}

	var result *models.Inventory
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		exists, err := txRepo.ProductExists(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err := txRepo.Set(ctx, productID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set inventory")
		}
		result, err = txRepo.FindByProductID(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory")
		}
		return nil
	})
	if err != nil {
		return nil, passTyped(err, "set inventory")
	}

	s.cache.Invalidate(ctx, cache.ForInventory(productID))
	dto := NewInventoryDTO(result)
	return &dto, nil
}

// Adjust applies a signed delta. A delta that would take stock below zero is
// a validation error and changes nothing.
func (s *service) Adjust(ctx context.Context, productID uuid.UUID, delta int) (*InventoryDTO, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must not be zero")
	}

	var result *models.Inventory
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		changed, err := txRepo.Adjust(ctx, productID, delta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust inventory")
		}
		row, err := txRepo.FindByProductID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeValidation, "adjustment would make stock negative").
				WithDetails(map[string]any{"available": row.Quantity, "delta": delta})
		}
		result = row
		return nil
	})
	if err != nil {
		return nil, passTyped(err, "adjust inventory")
	}

	s.cache.Invalidate(ctx, cache.ForInventory(productID))
	dto := NewInventoryDTO(result)
	return &dto, nil
}

func passTyped(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
