package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// ProductDTO is the API and cache shape of a product, including stock.
type ProductDTO struct {
	ID           uuid.UUID       `json:"id"`
	CategoryID   uuid.UUID       `json:"categoryId"`
	CategoryName string          `json:"categoryName,omitempty"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	IsActive     bool            `json:"isActive"`
	Stock        int             `json:"stock"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func NewProductDTO(p *models.Product) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.Round(2),
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Category != nil {
		dto.CategoryName = p.Category.Name
	}
	if p.Inventory != nil {
		dto.Stock = p.Inventory.Quantity
	}
	return dto
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	CategoryID   uuid.UUID
	Name         string
	Description  *string
	Price        decimal.Decimal
	IsActive     *bool
	InitialStock int
}

// UpdateProductInput is a patch; nil fields are left untouched.
type UpdateProductInput struct {
	CategoryID  *uuid.UUID
	Name        *string
	Description *string
	Price       *decimal.Decimal
	IsActive    *bool
}

func (in UpdateProductInput) isEmpty() bool {
	return in.CategoryID == nil && in.Name == nil && in.Description == nil && in.Price == nil && in.IsActive == nil
}
