package orders

import "github.com/shopflow/commerce-core/internal/domain"

// The status machine: PENDING -> PROCESSING -> SHIPPED -> DELIVERED, with
// PENDING and PROCESSING also able to move to CANCELLED. DELIVERED and
// CANCELLED are terminal.

func ensureCancellable(order *domain.Order) error {
	if !order.Status.CanBeCancelled() {
		return &domain.InvalidTransitionError{
			OrderID: order.ID,
			Status:  order.Status,
			Action:  "cancelled",
		}
	}
	return nil
}

func ensurePayable(order *domain.Order) error {
	if !order.Status.CanBePaid() {
		return &domain.InvalidTransitionError{
			OrderID: order.ID,
			Status:  order.Status,
			Action:  "paid",
		}
	}
	return nil
}
