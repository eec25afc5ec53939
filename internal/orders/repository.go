package orders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/shopflow/commerce-core/internal/catalog"
	"github.com/shopflow/commerce-core/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create persists the order, decrements stock for every line, and empties the
// source cart, all in one transaction. The conditional decrement re-checks
// stock at commit time: if a concurrent order drained a product since
// validation, the whole unit rolls back and the caller sees the same
// InsufficientStockError a pre-validation failure would produce.
func (r *Repository) Create(ctx context.Context, order *domain.Order, cartID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, shipping_address_id, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, order.ID, order.UserID, order.ShippingAddressID, order.TotalAmount, order.Status, now)
	if err != nil {
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New().String()
		item.OrderID = order.ID

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, quantity, price_at_order, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.OrderID, item.ProductID, item.VariantID, item.Quantity, item.PriceAtOrder, now)
		if err != nil {
			return err
		}

		if err := catalog.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1
	`, cartID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID loads an order with its lines. Returns nil if absent; ownership
// filtering is the service's concern.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, shipping_address_id, total_amount, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.UserID, &order.ShippingAddressID,
		&order.TotalAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, variant_id, quantity, price_at_order
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID,
			&item.VariantID, &item.Quantity, &item.PriceAtOrder); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, shipping_address_id, total_amount, status, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.ShippingAddressID,
			&order.TotalAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, variant_id, quantity, price_at_order
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID,
			&item.VariantID, &item.Quantity, &item.PriceAtOrder); err != nil {
			return nil, err
		}
		order := orderMap[item.OrderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// ListAll returns every order without items, for administrative listings.
func (r *Repository) ListAll(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, shipping_address_id, total_amount, status, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.ShippingAddressID,
			&order.TotalAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateStatus writes the status directly without touching stock. This is the
// administrative forward-progression path; cancellation goes through Cancel.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// Cancel restores stock for every line and flips the status to CANCELLED in
// one transaction. Stock is never restored without the status write
// committing, nor the other way around. The status condition on the UPDATE
// re-checks cancellability at commit time: if a concurrent writer already
// shipped or cancelled the order since the service's guard ran, zero rows
// match, the restock rolls back, and the caller gets the same
// InvalidTransitionError the guard would have produced.
func (r *Repository) Cancel(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range order.Items {
		if err := catalog.IncrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ('PENDING', 'PROCESSING')
	`, domain.OrderStatusCancelled, order.ID)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		var status domain.OrderStatus
		err := tx.QueryRowContext(ctx, `
			SELECT status FROM orders WHERE id = $1
		`, order.ID).Scan(&status)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("order %q: %w", order.ID, domain.ErrOrderNotFound)
		}
		if err != nil {
			return nil, err
		}
		return nil, &domain.InvalidTransitionError{
			OrderID: order.ID,
			Status:  status,
			Action:  "cancelled",
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, order.ID)
}

// Delete restores stock for every line, then removes the order and its lines,
// in one transaction.
func (r *Repository) Delete(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range order.Items {
		if err := catalog.IncrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM order_items WHERE order_id = $1
	`, order.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM orders WHERE id = $1
	`, order.ID)
	if err != nil {
		return err
	}

	return tx.Commit()
}
