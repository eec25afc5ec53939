package accounts

import (
	"context"
	"database/sql"

	"github.com/shopflow/commerce-core/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindUser(ctx context.Context, id string) (*domain.User, error) {
	user := &domain.User{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, is_active
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Email, &user.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return user, nil
}

// FindAddress is ownership-scoped: an address that exists but belongs to a
// different user is reported as absent.
func (r *Repository) FindAddress(ctx context.Context, id, userID string) (*domain.Address, error) {
	address := &domain.Address{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, street, city, postal_code, country
		FROM addresses
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&address.ID, &address.UserID, &address.Street,
		&address.City, &address.PostalCode, &address.Country)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return address, nil
}
