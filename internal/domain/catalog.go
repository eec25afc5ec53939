package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog view the engine reads. Quantity is the stock on
// hand; it is never written directly, only moved through the conditional
// increment/decrement primitives in the catalog package.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
