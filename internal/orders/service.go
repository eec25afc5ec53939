package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopflow/commerce-core/internal/domain"
	"github.com/shopflow/commerce-core/internal/pricing"
)

// MaxOrderLines caps the number of distinct lines a single order may carry.
const MaxOrderLines = 50

// CartStore yields the caller's cart; it fails with ErrCartNotFound when the
// user never created one.
type CartStore interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
}

type ProductFinder interface {
	FindProduct(ctx context.Context, id string) (*domain.Product, error)
}

type AccountStore interface {
	FindUser(ctx context.Context, id string) (*domain.User, error)
	FindAddress(ctx context.Context, id, userID string) (*domain.Address, error)
}

// Store is the transactional persistence surface of the engine. Create,
// Cancel and Delete are atomic units: order mutation and stock movement
// commit together or not at all.
type Store interface {
	Create(ctx context.Context, order *domain.Order, cartID string) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	Cancel(ctx context.Context, order *domain.Order) (*domain.Order, error)
	Delete(ctx context.Context, order *domain.Order) error
}

// Service turns a mutable cart into an immutable, priced, stock-decremented
// order and drives the order status lifecycle.
type Service struct {
	store    Store
	carts    CartStore
	products ProductFinder
	accounts AccountStore
	logger   *slog.Logger
}

func NewService(store Store, carts CartStore, products ProductFinder, accounts AccountStore, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		carts:    carts,
		products: products,
		accounts: accounts,
		logger:   logger,
	}
}

// CreateOrder runs the full pipeline: validation, pricing snapshot, then the
// atomic persist-decrement-clear unit. All checks complete before any write.
func (s *Service) CreateOrder(ctx context.Context, userID, shippingAddressID string) (*domain.Order, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, fmt.Errorf("cart for user %q: %w", userID, domain.ErrEmptyCart)
	}

	address, err := s.accounts.FindAddress(ctx, shippingAddressID, userID)
	if err != nil {
		return nil, err
	}
	if address == nil {
		return nil, fmt.Errorf("shipping address %q for user %q: %w",
			shippingAddressID, userID, domain.ErrAddressNotFound)
	}

	user, err := s.accounts.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, fmt.Errorf("user %q: %w", userID, domain.ErrUserIneligible)
	}

	if len(cart.Items) > MaxOrderLines {
		return nil, domain.ErrOrderTooLarge
	}

	products, err := s.resolveProducts(ctx, cart.Items)
	if err != nil {
		return nil, err
	}

	quote := pricing.Snapshot(cart.Items, products)

	order := &domain.Order{
		UserID:            userID,
		ShippingAddressID: shippingAddressID,
		TotalAmount:       quote.Total,
		Status:            domain.OrderStatusPending,
		Items:             quote.Items,
	}

	if err := s.store.Create(ctx, order, cart.ID); err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		"order_id", order.ID, "user_id", userID, "total", order.TotalAmount, "lines", len(order.Items))
	return order, nil
}

// resolveProducts checks existence and stock for every cart line before any
// write happens. Stock is re-checked inside the transaction as well; this
// pass exists so most failures are caught without opening one.
func (s *Service) resolveProducts(ctx context.Context, lines []domain.CartItem) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(lines))

	for _, line := range lines {
		product, err := s.products.FindProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, fmt.Errorf("product %q: %w", line.ProductID, domain.ErrProductNotFound)
		}
		if product.Quantity < line.Quantity {
			return nil, &domain.InsufficientStockError{
				ProductName: product.Name,
				Available:   product.Quantity,
				Requested:   line.Quantity,
			}
		}
		products[line.ProductID] = *product
	}

	return products, nil
}

// GetOrder returns the order only to its owner. Missing and not-owned are the
// same ErrOrderNotFound so callers cannot probe for other users' orders.
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, fmt.Errorf("order %q: %w", orderID, domain.ErrOrderNotFound)
	}
	return order, nil
}

func (s *Service) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.store.ListByUser(ctx, userID)
}

// ListAllOrders is administrative: no ownership filter.
func (s *Service) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	return s.store.ListAll(ctx)
}

// UpdateStatus is the administrative status setter. It never moves stock, so
// CANCELLED is rejected as a target; cancellation must go through CancelOrder
// where the restock is atomic with the status write.
func (s *Service) UpdateStatus(ctx context.Context, userID, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if _, err := s.GetOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}

	if !status.Valid() {
		return nil, fmt.Errorf("%q: %w", status, domain.ErrInvalidStatus)
	}
	if status == domain.OrderStatusCancelled {
		return nil, fmt.Errorf("order %q: cancellation must use the cancel operation: %w",
			orderID, domain.ErrInvalidStatus)
	}

	order, err := s.store.UpdateStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %q: %w", orderID, domain.ErrOrderNotFound)
	}

	s.logger.Info("order status updated", "order_id", orderID, "status", status)
	return order, nil
}

// CancelOrder cancels a PENDING or PROCESSING order, restoring stock for
// every line atomically with the status change.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if err := ensureCancellable(order); err != nil {
		return nil, err
	}

	cancelled, err := s.store.Cancel(ctx, order)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order cancelled", "order_id", orderID, "user_id", userID)
	return cancelled, nil
}

// MarkAsPaid moves a PENDING order to PROCESSING. This is a status transition
// only; payment capture lives elsewhere.
func (s *Service) MarkAsPaid(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if err := ensurePayable(order); err != nil {
		return nil, err
	}

	paid, err := s.store.UpdateStatus(ctx, orderID, domain.OrderStatusProcessing)
	if err != nil {
		return nil, err
	}
	if paid == nil {
		return nil, fmt.Errorf("order %q: %w", orderID, domain.ErrOrderNotFound)
	}

	s.logger.Info("order marked as paid", "order_id", orderID, "user_id", userID)
	return paid, nil
}

// DeleteOrder removes an order entirely and restores its stock, regardless of
// status. Administrative only; the ownership check is deliberately absent.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %q: %w", orderID, domain.ErrOrderNotFound)
	}

	if err := s.store.Delete(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order deleted", "order_id", orderID)
	return order, nil
}
