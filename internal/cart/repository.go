package cart

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/shopflow/commerce-core/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetByUserID loads the user's cart with its lines. Returns nil if the user
// has no cart yet.
func (r *Repository) GetByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	cart := &domain.Cart{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cart_id, product_id, quantity
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at
	`, cart.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

func (r *Repository) Create(ctx context.Context, userID string) (*domain.Cart, error) {
	cart := &domain.Cart{
		ID:     uuid.New().String(),
		UserID: userID,
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING created_at, updated_at
	`, cart.ID, cart.UserID).Scan(&cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return cart, nil
}

func (r *Repository) InsertItem(ctx context.Context, cartID, productID string, quantity int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, uuid.New().String(), cartID, productID, quantity)
	return err
}

func (r *Repository) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $1 WHERE id = $2
	`, quantity, itemID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrCartItemNotFound
	}

	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, itemID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE id = $1
	`, itemID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrCartItemNotFound
	}

	return nil
}

func (r *Repository) DeleteItems(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1
	`, cartID)
	return err
}
