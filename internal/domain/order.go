package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanBeCancelled reports whether an order in this status may still be
// cancelled. Once shipped or delivered the order is out the door.
func (s OrderStatus) CanBeCancelled() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// CanBePaid reports whether an order in this status may be marked as paid.
func (s OrderStatus) CanBePaid() bool {
	return s == OrderStatusPending
}

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// OrderItem is a single line of an order. Quantity and PriceAtOrder are
// frozen at order creation and never change afterwards, regardless of later
// catalog price updates.
type OrderItem struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	ProductID    string          `json:"product_id"`
	VariantID    *string         `json:"variant_id,omitempty"`
	Quantity     int             `json:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order"`
}

// Order is immutable after creation except for Status. TotalAmount is always
// computed server-side from the frozen items, never taken from a client.
type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	ShippingAddressID string          `json:"shipping_address_id"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Status            OrderStatus     `json:"status"`
	Items             []OrderItem     `json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
