package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// CartItemDTO is one priced cart line. Price is the current product price;
// it is only captured when an order is placed.
type CartItemDTO struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	InStock   bool            `json:"inStock"`
	Available int             `json:"available"`
	IsActive  bool            `json:"isActive"`
}

type CartDTO struct {
	ID        *uuid.UUID      `json:"id,omitempty"`
	Items     []CartItemDTO   `json:"items"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// AddItemInput is the validated add-to-cart payload.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

func emptyCartDTO() *CartDTO {
	return &CartDTO{Items: []CartItemDTO{}, Subtotal: decimal.Zero.Round(2)}
}

// NewCartDTO prices every line with fixed-point arithmetic.
func NewCartDTO(cart *models.Cart) *CartDTO {
	if cart == nil {
		return emptyCartDTO()
	}
	dto := emptyCartDTO()
	id := cart.ID
	dto.ID = &id
	subtotal := decimal.Zero
	for _, item := range cart.Items {
		line := CartItemDTO{ProductID: item.ProductID, Quantity: item.Quantity}
		if p := item.Product; p != nil {
			line.Name = p.Name
			line.Price = p.Price.Round(2)
			line.IsActive = p.IsActive
			if p.Inventory != nil {
				line.Available = p.Inventory.Quantity
			}
		}
		line.LineTotal = line.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		line.InStock = line.IsActive && line.Available >= item.Quantity
		subtotal = subtotal.Add(line.LineTotal)
		dto.ItemCount += item.Quantity
		dto.Items = append(dto.Items, line)
	}
	dto.Subtotal = subtotal.Round(2)
	return dto
}
