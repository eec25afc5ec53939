package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shopflow/commerce-core/internal/domain"
)

func product(id, price string, qty int) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     "product " + id,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
		IsActive: true,
	}
}

func TestSnapshot(t *testing.T) {
	t.Run("single line with tax and shipping", func(t *testing.T) {
		products := map[string]domain.Product{
			"p1": product("p1", "19.99", 100),
		}
		lines := []domain.CartItem{{ID: "l1", ProductID: "p1", Quantity: 2}}

		q := Snapshot(lines, products)

		// 2 x 19.99 = 39.98; +10% tax = 43.978; +5.00 shipping = 48.978 -> 48.98
		if want := "39.98"; q.Subtotal.String() != want {
			t.Errorf("subtotal: want %s, got %s", want, q.Subtotal)
		}
		if want := "48.98"; q.Total.String() != want {
			t.Errorf("total: want %s, got %s", want, q.Total)
		}
		if len(q.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(q.Items))
		}
		if !q.Items[0].PriceAtOrder.Equal(decimal.RequireFromString("19.99")) {
			t.Errorf("price at order: got %s", q.Items[0].PriceAtOrder)
		}
		if q.Items[0].Quantity != 2 {
			t.Errorf("quantity: got %d", q.Items[0].Quantity)
		}
	})

	t.Run("multiple lines", func(t *testing.T) {
		products := map[string]domain.Product{
			"p1": product("p1", "10.00", 10),
			"p2": product("p2", "0.99", 10),
		}
		lines := []domain.CartItem{
			{ID: "l1", ProductID: "p1", Quantity: 3},
			{ID: "l2", ProductID: "p2", Quantity: 7},
		}

		q := Snapshot(lines, products)

		// 30.00 + 6.93 = 36.93; tax 3.693; shipping 5.00 -> 45.623 -> 45.62
		if want := "36.93"; q.Subtotal.String() != want {
			t.Errorf("subtotal: want %s, got %s", want, q.Subtotal)
		}
		if want := "45.62"; q.Total.String() != want {
			t.Errorf("total: want %s, got %s", want, q.Total)
		}
	})

	t.Run("no float drift on repeated small amounts", func(t *testing.T) {
		products := map[string]domain.Product{
			"p1": product("p1", "0.10", 1000),
		}
		lines := []domain.CartItem{{ID: "l1", ProductID: "p1", Quantity: 3}}

		q := Snapshot(lines, products)

		if !q.Subtotal.Equal(decimal.RequireFromString("0.30")) {
			t.Errorf("subtotal drifted: %s", q.Subtotal)
		}
	})
}

func TestRecompute(t *testing.T) {
	products := map[string]domain.Product{
		"p1": product("p1", "19.99", 100),
		"p2": product("p2", "3.33", 100),
	}
	lines := []domain.CartItem{
		{ID: "l1", ProductID: "p1", Quantity: 2},
		{ID: "l2", ProductID: "p2", Quantity: 5},
	}

	q := Snapshot(lines, products)

	if got := Recompute(q.Items); !got.Equal(q.Total) {
		t.Errorf("recompute mismatch: snapshot %s, recompute %s", q.Total, got)
	}

	// Later catalog price changes must not affect the frozen lines.
	products["p1"] = product("p1", "99.99", 100)
	if got := Recompute(q.Items); !got.Equal(q.Total) {
		t.Errorf("recompute changed after catalog update: %s vs %s", q.Total, got)
	}
}
