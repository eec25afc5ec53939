// Package pricing computes order totals from cart lines and resolved
// products. All arithmetic is decimal; nothing here touches a store.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/shopflow/commerce-core/internal/domain"
)

var (
	taxRate     = decimal.RequireFromString("0.1")
	shippingFee = decimal.RequireFromString("5.00")
)

// currencyScale is the number of decimal places kept on stored amounts.
const currencyScale = 2

// Quote is a priced draft of an order. Items carry the unit price frozen at
// quote time; Total is rounded to currency precision.
type Quote struct {
	Items    []domain.OrderItem
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Snapshot prices the given cart lines against the current catalog prices.
// products must contain an entry for every line's ProductID; resolution and
// stock checks happen before this is called.
func Snapshot(lines []domain.CartItem, products map[string]domain.Product) Quote {
	items := make([]domain.OrderItem, 0, len(lines))
	subtotal := decimal.Zero

	for _, line := range lines {
		product := products[line.ProductID]
		items = append(items, domain.OrderItem{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			PriceAtOrder: product.Price,
		})
		subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	tax := subtotal.Mul(taxRate)

	return Quote{
		Items:    items,
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shippingFee,
		Total:    subtotal.Add(tax).Add(shippingFee).Round(currencyScale),
	}
}

// Recompute derives the total from an order's frozen lines. For any order
// produced by Snapshot the result equals the stored TotalAmount exactly.
func Recompute(items []domain.OrderItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.PriceAtOrder.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return subtotal.Add(subtotal.Mul(taxRate)).Add(shippingFee).Round(currencyScale)
}
