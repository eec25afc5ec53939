package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopflow/commerce-core/internal/domain"
	"github.com/shopflow/commerce-core/internal/pricing"
)

type fakeCarts struct {
	carts map[string]*domain.Cart
}

func (f *fakeCarts) Get(_ context.Context, userID string) (*domain.Cart, error) {
	cart, ok := f.carts[userID]
	if !ok {
		return nil, fmt.Errorf("cart for user %q: %w", userID, domain.ErrCartNotFound)
	}
	return cart, nil
}

type fakeCatalog struct {
	products map[string]*domain.Product
}

func (f *fakeCatalog) FindProduct(_ context.Context, id string) (*domain.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	cp := *product
	return &cp, nil
}

type fakeAccounts struct {
	users     map[string]*domain.User
	addresses map[string]*domain.Address
}

func (f *fakeAccounts) FindUser(_ context.Context, id string) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (f *fakeAccounts) FindAddress(_ context.Context, id, userID string) (*domain.Address, error) {
	address, ok := f.addresses[id]
	if !ok || address.UserID != userID {
		return nil, nil
	}
	cp := *address
	return &cp, nil
}

// fakeStore mimics the repository's atomic units: stock is re-checked at
// "commit" time and either every effect happens or none does.
type fakeStore struct {
	catalog    *fakeCatalog
	carts      *fakeCarts
	orders     map[string]*domain.Order
	seq        int
	failCreate error
}

func cloneOrder(order *domain.Order) *domain.Order {
	cp := *order
	cp.Items = append([]domain.OrderItem(nil), order.Items...)
	return &cp
}

func (f *fakeStore) Create(_ context.Context, order *domain.Order, cartID string) error {
	if f.failCreate != nil {
		return f.failCreate
	}

	for _, item := range order.Items {
		product, ok := f.catalog.products[item.ProductID]
		if !ok {
			return fmt.Errorf("product %q: %w", item.ProductID, domain.ErrProductNotFound)
		}
		if product.Quantity < item.Quantity {
			return &domain.InsufficientStockError{
				ProductName: product.Name,
				Available:   product.Quantity,
				Requested:   item.Quantity,
			}
		}
	}
	for _, item := range order.Items {
		f.catalog.products[item.ProductID].Quantity -= item.Quantity
	}

	f.seq++
	order.ID = fmt.Sprintf("order-%d", f.seq)
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Items {
		order.Items[i].ID = fmt.Sprintf("%s-item-%d", order.ID, i)
		order.Items[i].OrderID = order.ID
	}

	for _, cart := range f.carts.carts {
		if cart.ID == cartID {
			cart.Items = nil
		}
	}

	f.orders[order.ID] = cloneOrder(order)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(order), nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	orders := []domain.Order{}
	for _, order := range f.orders {
		if order.UserID == userID {
			orders = append(orders, *cloneOrder(order))
		}
	}
	return orders, nil
}

func (f *fakeStore) ListAll(_ context.Context) ([]domain.Order, error) {
	orders := []domain.Order{}
	for _, order := range f.orders {
		orders = append(orders, *cloneOrder(order))
	}
	return orders, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	return cloneOrder(order), nil
}

func (f *fakeStore) Cancel(_ context.Context, order *domain.Order) (*domain.Order, error) {
	stored, ok := f.orders[order.ID]
	if !ok {
		return nil, fmt.Errorf("order %q: %w", order.ID, domain.ErrOrderNotFound)
	}
	if !stored.Status.CanBeCancelled() {
		return nil, &domain.InvalidTransitionError{
			OrderID: order.ID,
			Status:  stored.Status,
			Action:  "cancelled",
		}
	}
	for _, item := range stored.Items {
		f.catalog.products[item.ProductID].Quantity += item.Quantity
	}
	stored.Status = domain.OrderStatusCancelled
	stored.UpdatedAt = time.Now().UTC()
	return cloneOrder(stored), nil
}

func (f *fakeStore) Delete(_ context.Context, order *domain.Order) error {
	stored, ok := f.orders[order.ID]
	if !ok {
		return fmt.Errorf("order %q: %w", order.ID, domain.ErrOrderNotFound)
	}
	for _, item := range stored.Items {
		f.catalog.products[item.ProductID].Quantity += item.Quantity
	}
	delete(f.orders, order.ID)
	return nil
}

type testEnv struct {
	carts    *fakeCarts
	catalog  *fakeCatalog
	accounts *fakeAccounts
	store    *fakeStore
	service  *Service
}

// newTestEnv seeds one active user with an address and a cart holding two
// units of a 19.99 product with 100 in stock.
func newTestEnv() *testEnv {
	catalog := &fakeCatalog{products: map[string]*domain.Product{
		"p1": {ID: "p1", Name: "Wireless Mouse", Price: decimal.RequireFromString("19.99"), Quantity: 100, IsActive: true},
	}}
	carts := &fakeCarts{carts: map[string]*domain.Cart{
		"u1": {ID: "c1", UserID: "u1", Items: []domain.CartItem{
			{ID: "l1", CartID: "c1", ProductID: "p1", Quantity: 2},
		}},
	}}
	accounts := &fakeAccounts{
		users: map[string]*domain.User{
			"u1": {ID: "u1", Email: "u1@example.com", IsActive: true},
		},
		addresses: map[string]*domain.Address{
			"a1": {ID: "a1", UserID: "u1", Street: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
		},
	}
	store := &fakeStore{catalog: catalog, carts: carts, orders: map[string]*domain.Order{}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		carts:    carts,
		catalog:  catalog,
		accounts: accounts,
		store:    store,
		service:  NewService(store, carts, catalog, accounts, logger),
	}
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a priced order, decrements stock, empties cart", func(t *testing.T) {
		env := newTestEnv()

		order, err := env.service.CreateOrder(ctx, "u1", "a1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// 2 x 19.99 = 39.98; +10% tax +5.00 shipping = 48.978 -> 48.98
		if want := "48.98"; order.TotalAmount.String() != want {
			t.Errorf("total: want %s, got %s", want, order.TotalAmount)
		}
		if order.Status != domain.OrderStatusPending {
			t.Errorf("status: want PENDING, got %s", order.Status)
		}
		if len(order.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(order.Items))
		}
		if !order.Items[0].PriceAtOrder.Equal(decimal.RequireFromString("19.99")) {
			t.Errorf("price at order: got %s", order.Items[0].PriceAtOrder)
		}
		if got := env.catalog.products["p1"].Quantity; got != 98 {
			t.Errorf("stock after order: want 98, got %d", got)
		}
		if got := len(env.carts.carts["u1"].Items); got != 0 {
			t.Errorf("cart should be empty, has %d items", got)
		}
	})

	t.Run("insufficient stock names the quantities and writes nothing", func(t *testing.T) {
		env := newTestEnv()
		env.carts.carts["u1"].Items[0].Quantity = 101

		_, err := env.service.CreateOrder(ctx, "u1", "a1")

		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		if !strings.Contains(err.Error(), "100 available, 101 requested") {
			t.Errorf("message should name quantities: %q", err.Error())
		}
		if got := env.catalog.products["p1"].Quantity; got != 100 {
			t.Errorf("stock changed on failed order: %d", got)
		}
		if len(env.store.orders) != 0 {
			t.Error("order persisted despite failure")
		}
		if len(env.carts.carts["u1"].Items) != 1 {
			t.Error("cart emptied despite failure")
		}
	})

	t.Run("commit-time stock race surfaces the same error and persists nothing", func(t *testing.T) {
		env := newTestEnv()
		env.store.failCreate = &domain.InsufficientStockError{
			ProductName: "Wireless Mouse", Available: 1, Requested: 2,
		}

		_, err := env.service.CreateOrder(ctx, "u1", "a1")

		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		if len(env.store.orders) != 0 {
			t.Error("order persisted despite aborted transaction")
		}
	})

	t.Run("empty cart is rejected before any stock check", func(t *testing.T) {
		env := newTestEnv()
		env.carts.carts["u1"].Items = nil

		_, err := env.service.CreateOrder(ctx, "u1", "a1")
		if !errors.Is(err, domain.ErrEmptyCart) {
			t.Fatalf("expected ErrEmptyCart, got %v", err)
		}
	})

	t.Run("missing cart", func(t *testing.T) {
		env := newTestEnv()

		_, err := env.service.CreateOrder(ctx, "u2", "a1")
		if !errors.Is(err, domain.ErrCartNotFound) {
			t.Fatalf("expected ErrCartNotFound, got %v", err)
		}
	})

	t.Run("address owned by someone else is not found", func(t *testing.T) {
		env := newTestEnv()
		env.accounts.addresses["a1"].UserID = "u9"

		_, err := env.service.CreateOrder(ctx, "u1", "a1")
		if !errors.Is(err, domain.ErrAddressNotFound) {
			t.Fatalf("expected ErrAddressNotFound, got %v", err)
		}
	})

	t.Run("inactive user is ineligible", func(t *testing.T) {
		env := newTestEnv()
		env.accounts.users["u1"].IsActive = false

		_, err := env.service.CreateOrder(ctx, "u1", "a1")
		if !errors.Is(err, domain.ErrUserIneligible) {
			t.Fatalf("expected ErrUserIneligible, got %v", err)
		}
	})

	t.Run("too many lines", func(t *testing.T) {
		env := newTestEnv()
		cart := env.carts.carts["u1"]
		cart.Items = nil
		for i := 0; i < MaxOrderLines+1; i++ {
			id := fmt.Sprintf("px-%d", i)
			env.catalog.products[id] = &domain.Product{
				ID: id, Name: id, Price: decimal.RequireFromString("1.00"), Quantity: 10, IsActive: true,
			}
			cart.Items = append(cart.Items, domain.CartItem{
				ID: fmt.Sprintf("l-%d", i), CartID: cart.ID, ProductID: id, Quantity: 1,
			})
		}

		_, err := env.service.CreateOrder(ctx, "u1", "a1")
		if !errors.Is(err, domain.ErrOrderTooLarge) {
			t.Fatalf("expected ErrOrderTooLarge, got %v", err)
		}
	})

	t.Run("vanished product", func(t *testing.T) {
		env := newTestEnv()
		delete(env.catalog.products, "p1")

		_, err := env.service.CreateOrder(ctx, "u1", "a1")
		if !errors.Is(err, domain.ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
	})
}

func TestPriceFreezing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	order, err := env.service.CreateOrder(ctx, "u1", "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env.catalog.products["p1"].Price = decimal.RequireFromString("99.99")

	fetched, err := env.service.GetOrder(ctx, "u1", order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fetched.Items[0].PriceAtOrder.Equal(decimal.RequireFromString("19.99")) {
		t.Errorf("price at order drifted: %s", fetched.Items[0].PriceAtOrder)
	}
	if !fetched.TotalAmount.Equal(order.TotalAmount) {
		t.Errorf("total drifted: %s vs %s", fetched.TotalAmount, order.TotalAmount)
	}
	if got := pricing.Recompute(fetched.Items); !got.Equal(fetched.TotalAmount) {
		t.Errorf("recompute does not reproduce stored total: %s vs %s", got, fetched.TotalAmount)
	}
}

func TestGetOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	order, err := env.service.CreateOrder(ctx, "u1", "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("owner sees the order", func(t *testing.T) {
		got, err := env.service.GetOrder(ctx, "u1", order.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != order.ID {
			t.Errorf("wrong order: %s", got.ID)
		}
	})

	t.Run("other users get not-found, not forbidden", func(t *testing.T) {
		_, err := env.service.GetOrder(ctx, "u2", order.ID)
		if !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})

	t.Run("missing order", func(t *testing.T) {
		_, err := env.service.GetOrder(ctx, "u1", "nope")
		if !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip restores stock exactly", func(t *testing.T) {
		env := newTestEnv()

		order, err := env.service.CreateOrder(ctx, "u1", "a1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := env.catalog.products["p1"].Quantity; got != 98 {
			t.Fatalf("stock after order: want 98, got %d", got)
		}

		cancelled, err := env.service.CancelOrder(ctx, "u1", order.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cancelled.Status != domain.OrderStatusCancelled {
			t.Errorf("status: want CANCELLED, got %s", cancelled.Status)
		}
		if got := env.catalog.products["p1"].Quantity; got != 100 {
			t.Errorf("stock after cancel: want 100, got %d", got)
		}
	})

	t.Run("stale cancel loses the commit-time re-check", func(t *testing.T) {
		env := newTestEnv()

		order, err := env.service.CreateOrder(ctx, "u1", "a1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// snapshot taken while the order was still PENDING
		stale, err := env.service.GetOrder(ctx, "u1", order.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// a concurrent writer ships the order before the cancel commits
		env.store.orders[order.ID].Status = domain.OrderStatusShipped

		_, err = env.store.Cancel(ctx, stale)

		var transitionErr *domain.InvalidTransitionError
		if !errors.As(err, &transitionErr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
		if transitionErr.Status != domain.OrderStatusShipped {
			t.Errorf("error should carry the committed status, got %s", transitionErr.Status)
		}
		if got := env.catalog.products["p1"].Quantity; got != 98 {
			t.Errorf("stock restored despite rejected cancel: %d", got)
		}
	})

	t.Run("shipped orders cannot be cancelled", func(t *testing.T) {
		env := newTestEnv()

		order, err := env.service.CreateOrder(ctx, "u1", "a1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		env.store.orders[order.ID].Status = domain.OrderStatusShipped

		_, err = env.service.CancelOrder(ctx, "u1", order.ID)

		var transitionErr *domain.InvalidTransitionError
		if !errors.As(err, &transitionErr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
		if !strings.Contains(err.Error(), "SHIPPED") {
			t.Errorf("message should name the current status: %q", err.Error())
		}
		if got := env.catalog.products["p1"].Quantity; got != 98 {
			t.Errorf("stock moved on rejected cancel: %d", got)
		}
		if got, _ := env.service.GetOrder(ctx, "u1", order.ID); got.Status != domain.OrderStatusShipped {
			t.Errorf("status changed on rejected cancel: %s", got.Status)
		}
	})
}

func TestMarkAsPaid(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	order, err := env.service.CreateOrder(ctx, "u1", "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	paid, err := env.service.MarkAsPaid(ctx, "u1", order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paid.Status != domain.OrderStatusProcessing {
		t.Errorf("status: want PROCESSING, got %s", paid.Status)
	}

	_, err = env.service.MarkAsPaid(ctx, "u1", order.ID)
	var transitionErr *domain.InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected InvalidTransitionError on second pay, got %v", err)
	}
	if !strings.Contains(err.Error(), "PROCESSING") {
		t.Errorf("message should name the current status: %q", err.Error())
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	order, err := env.service.CreateOrder(ctx, "u1", "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("forward progression does not touch stock", func(t *testing.T) {
		updated, err := env.service.UpdateStatus(ctx, "u1", order.ID, domain.OrderStatusShipped)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Status != domain.OrderStatusShipped {
			t.Errorf("status: want SHIPPED, got %s", updated.Status)
		}
		if got := env.catalog.products["p1"].Quantity; got != 98 {
			t.Errorf("stock moved on status update: %d", got)
		}
	})

	t.Run("cancelled is not a valid target", func(t *testing.T) {
		_, err := env.service.UpdateStatus(ctx, "u1", order.ID, domain.OrderStatusCancelled)
		if !errors.Is(err, domain.ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
	})

	t.Run("unknown status value", func(t *testing.T) {
		_, err := env.service.UpdateStatus(ctx, "u1", order.ID, "TELEPORTED")
		if !errors.Is(err, domain.ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
	})
}

func TestDeleteOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	order, err := env.service.CreateOrder(ctx, "u1", "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := env.catalog.products["p1"].Quantity; got != 98 {
		t.Fatalf("stock after order: want 98, got %d", got)
	}

	deleted, err := env.service.DeleteOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted.ID != order.ID {
		t.Errorf("wrong order deleted: %s", deleted.ID)
	}
	if got := env.catalog.products["p1"].Quantity; got != 100 {
		t.Errorf("stock after delete: want 100, got %d", got)
	}

	_, err = env.service.GetOrder(ctx, "u1", order.ID)
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound after delete, got %v", err)
	}

	_, err = env.service.DeleteOrder(ctx, "nope")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestListOrders(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	env.carts.carts["u2"] = &domain.Cart{ID: "c2", UserID: "u2", Items: []domain.CartItem{
		{ID: "l2", CartID: "c2", ProductID: "p1", Quantity: 1},
	}}
	env.accounts.users["u2"] = &domain.User{ID: "u2", Email: "u2@example.com", IsActive: true}
	env.accounts.addresses["a2"] = &domain.Address{ID: "a2", UserID: "u2"}

	if _, err := env.service.CreateOrder(ctx, "u1", "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.service.CreateOrder(ctx, "u2", "a2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mine, err := env.service.ListUserOrders(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mine) != 1 || mine[0].UserID != "u1" {
		t.Errorf("user listing leaked or missed orders: %+v", mine)
	}

	all, err := env.service.ListAllOrders(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("admin listing: want 2 orders, got %d", len(all))
	}
}
