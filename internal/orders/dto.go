package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// PlaceOrderInput carries the optional checkout fields.
type PlaceOrderInput struct {
	ShippingAddress *string
	Notes           *string
}

// UnavailableItem explains one cart line that blocked placement. Available is
// set only for insufficient-stock.
type UnavailableItem struct {
	ProductID uuid.UUID               `json:"productId"`
	Reason    enums.UnavailableReason `json:"reason"`
	Available *int                    `json:"available,omitempty"`
}

// OrderItemDTO is an immutable captured line.
type OrderItemDTO struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"userId"`
	Status          enums.OrderStatus `json:"status"`
	TotalAmount     decimal.Decimal   `json:"totalAmount"`
	ShippingAddress *string           `json:"shippingAddress,omitempty"`
	Notes           *string           `json:"notes,omitempty"`
	Items           []OrderItemDTO    `json:"items"`
	CancelledAt     *time.Time        `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// OrderListResult is one page of orders.
type OrderListResult = pagination.Page[OrderDTO]

func NewOrderDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		Status:          order.Status,
		TotalAmount:     order.TotalAmount.Round(2),
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
		Items:           make([]OrderItemDTO, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price.Round(2),
			Quantity:    item.Quantity,
			LineTotal:   lineTotal(item.Price, item.Quantity),
		})
	}
	return dto
}

func lineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}
