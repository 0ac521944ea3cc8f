package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderLine is the captured line snapshot carried by order events.
type OrderLine struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	Price     string    `json:"price"`
}

type OrderPlacedEvent struct {
	OrderID     uuid.UUID   `json:"orderId"`
	UserID      uuid.UUID   `json:"userId"`
	TotalAmount string      `json:"totalAmount"`
	Items       []OrderLine `json:"items"`
}

// CancelReason values for OrderCancelledEvent.
const (
	CancelReasonCustomer = "customer"
	CancelReasonAdmin    = "admin"
	CancelReasonExpired  = "expired"
)

type OrderCancelledEvent struct {
	OrderID        uuid.UUID         `json:"orderId"`
	UserID         uuid.UUID         `json:"userId"`
	PreviousStatus enums.OrderStatus `json:"previousStatus"`
	Reason         string            `json:"reason"`
	RestoredItems  []OrderLine       `json:"restoredItems"`
}

type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"orderId"`
	UserID  uuid.UUID         `json:"userId"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}
