package cart

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopflow/commerce-core/internal/domain"
)

// ProductFinder resolves products for stock checks. Adding to a cart never
// mutates stock; quantities are only checked against what is on the shelf.
type ProductFinder interface {
	FindProduct(ctx context.Context, id string) (*domain.Product, error)
}

// Store is the persistence surface the cart service drives.
type Store interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Cart, error)
	Create(ctx context.Context, userID string) (*domain.Cart, error)
	InsertItem(ctx context.Context, cartID, productID string, quantity int) error
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error
	DeleteItem(ctx context.Context, itemID string) error
	DeleteItems(ctx context.Context, cartID string) error
}

type Service struct {
	store    Store
	products ProductFinder
	logger   *slog.Logger
}

func NewService(store Store, products ProductFinder, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		products: products,
		logger:   logger,
	}
}

// Get returns the user's cart, failing with ErrCartNotFound when none exists.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("cart for user %q: %w", userID, domain.ErrCartNotFound)
	}
	return cart, nil
}

// AddItem puts quantity units of a product in the user's cart, creating the
// cart on first use. If the product is already in the cart the quantities
// sum, and the cumulative quantity is what gets checked against stock.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.products.FindProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %q: %w", productID, domain.ErrProductNotFound)
	}
	if !product.IsActive {
		return nil, fmt.Errorf("product %q: %w", productID, domain.ErrProductInactive)
	}

	cart, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart, err = s.store.Create(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	newQuantity := quantity
	existing := cart.ItemForProduct(productID)
	if existing != nil {
		newQuantity += existing.Quantity
	}
	if newQuantity > product.Quantity {
		return nil, &domain.InsufficientStockError{
			ProductName: product.Name,
			Available:   product.Quantity,
			Requested:   newQuantity,
		}
	}

	if existing != nil {
		err = s.store.UpdateItemQuantity(ctx, existing.ID, newQuantity)
	} else {
		err = s.store.InsertItem(ctx, cart.ID, productID, quantity)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("item added to cart", "user_id", userID, "product_id", productID, "quantity", newQuantity)
	return s.Get(ctx, userID)
}

// UpdateItem sets a line's quantity. Zero (or less) removes the line; a
// positive quantity replaces the old one and is re-validated against current
// stock as-is, not cumulatively.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*domain.Cart, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	item := cart.Item(itemID)
	if item == nil {
		return nil, fmt.Errorf("cart item %q: %w", itemID, domain.ErrCartItemNotFound)
	}

	if quantity <= 0 {
		if err := s.store.DeleteItem(ctx, item.ID); err != nil {
			return nil, err
		}
		return s.Get(ctx, userID)
	}

	product, err := s.products.FindProduct(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %q: %w", item.ProductID, domain.ErrProductNotFound)
	}
	if quantity > product.Quantity {
		return nil, &domain.InsufficientStockError{
			ProductName: product.Name,
			Available:   product.Quantity,
			Requested:   quantity,
		}
	}

	if err := s.store.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, err
	}

	return s.Get(ctx, userID)
}

// RemoveItem deletes a single line. No stock interaction.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cart.Item(itemID) == nil {
		return nil, fmt.Errorf("cart item %q: %w", itemID, domain.ErrCartItemNotFound)
	}

	if err := s.store.DeleteItem(ctx, itemID); err != nil {
		return nil, err
	}

	return s.Get(ctx, userID)
}

// Clear removes every line from the user's cart.
func (s *Service) Clear(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteItems(ctx, cart.ID); err != nil {
		return nil, err
	}

	return s.Get(ctx, userID)
}
