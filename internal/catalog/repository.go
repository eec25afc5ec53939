package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopflow/commerce-core/internal/domain"
)

// Querier is the subset of *sql.DB and *sql.Tx the stock primitives need, so
// they can run inside whatever unit of work the caller has open.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	product := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, quantity, is_active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Price, &product.Quantity,
		&product.IsActive, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return product, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, quantity, is_active, created_at, updated_at
		FROM products
		WHERE is_active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity,
			&p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// DecrementStock moves quantity-on-hand down by amount. The guard in the
// WHERE clause is what keeps stock from ever going negative: if a concurrent
// writer drained the product since validation, zero rows match and the caller
// gets InsufficientStockError instead of a committed negative balance.
func DecrementStock(ctx context.Context, q Querier, productID string, amount int) error {
	result, err := q.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`, productID, amount)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var name string
		var available int
		err := q.QueryRowContext(ctx, `
			SELECT name, quantity FROM products WHERE id = $1
		`, productID).Scan(&name, &available)
		if err == sql.ErrNoRows {
			return fmt.Errorf("product %q: %w", productID, domain.ErrProductNotFound)
		}
		if err != nil {
			return err
		}
		return &domain.InsufficientStockError{
			ProductName: name,
			Available:   available,
			Requested:   amount,
		}
	}

	return nil
}

// IncrementStock returns amount units to the shelf. Used by order
// cancellation and deletion, always inside the same unit of work as the
// order mutation.
func IncrementStock(ctx context.Context, q Querier, productID string, amount int) error {
	result, err := q.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
	`, productID, amount)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("product %q: %w", productID, domain.ErrProductNotFound)
	}

	return nil
}
