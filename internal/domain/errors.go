package domain

import (
	"errors"
	"fmt"
)

// Not-found class. Ownership mismatches are folded into not-found so callers
// cannot probe for the existence of other users' entities.
var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrAddressNotFound  = errors.New("shipping address not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrOrderNotFound    = errors.New("order not found")
)

// Business-rule class. Messages are user-facing.
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrUserIneligible  = errors.New("user is not eligible to place an order")
	ErrOrderTooLarge   = errors.New("order exceeds maximum item limit of 50")
	ErrProductInactive = errors.New("product is not active")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidStatus   = errors.New("invalid order status")
)

// InsufficientStockError is returned both by pre-write validation and by a
// decrement that would drive stock negative at commit time; the two paths are
// indistinguishable to the caller.
type InsufficientStockError struct {
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: %d available, %d requested",
		e.ProductName, e.Available, e.Requested)
}

// InvalidTransitionError reports a status change the order's current state
// does not permit. Action is the attempted operation in past tense, e.g.
// "cancelled" or "paid".
type InvalidTransitionError struct {
	OrderID string
	Status  OrderStatus
	Action  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %q cannot be %s; current status: %s",
		e.OrderID, e.Action, e.Status)
}
