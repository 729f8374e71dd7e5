package order_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"MatchCore/internal/invariant"
	"MatchCore/internal/order"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		qty      string
		unfilled string
		want     order.Status
	}{
		{"untouched", "5", "5", order.StatusPending},
		{"partial", "5", "1.5", order.StatusPartialFilled},
		{"filled", "5", "0", order.StatusFullyFilled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := order.DeriveStatus(d(tt.qty), d(tt.unfilled)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOrder_FillMonotonic(t *testing.T) {
	o := &order.Order{ID: 1, Quantity: d("5"), UnfilledQuantity: d("5")}

	if err := o.Fill(d("2"), 10); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if !o.UnfilledQuantity.Equal(d("3")) || o.Status() != order.StatusPartialFilled || o.UpdatedAt != 10 {
		t.Errorf("after fill: unfilled=%s status=%s updated=%d", o.UnfilledQuantity, o.Status(), o.UpdatedAt)
	}

	err := o.Fill(d("4"), 11)
	if !errors.Is(err, invariant.ErrViolation) {
		t.Fatalf("overfill: expected invariant violation, got %v", err)
	}
	if !o.UnfilledQuantity.Equal(d("3")) {
		t.Errorf("failed fill mutated unfilled to %s", o.UnfilledQuantity)
	}

	if err := o.Fill(d("-1"), 12); err == nil {
		t.Error("negative fill should fail")
	}

	if err := o.Fill(d("3"), 13); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if !o.IsFilled() || o.Status() != order.StatusFullyFilled {
		t.Errorf("expected fully filled, got %s", o.Status())
	}
	if !o.FilledQuantity().Equal(d("5")) {
		t.Errorf("filled quantity: got %s, want 5", o.FilledQuantity())
	}
}

func TestOrder_ReservedAmount(t *testing.T) {
	buy := &order.Order{Direction: order.Buy, Price: d("100.5"), Quantity: d("4"), UnfilledQuantity: d("2")}
	sell := &order.Order{Direction: order.Sell, Price: d("100.5"), Quantity: d("4"), UnfilledQuantity: d("2")}

	if got := buy.ReservedAmount(); !got.Equal(d("201")) {
		t.Errorf("buy reserved: got %s, want 201", got)
	}
	if got := sell.ReservedAmount(); !got.Equal(d("2")) {
		t.Errorf("sell reserved: got %s, want 2", got)
	}
}

func TestDirection(t *testing.T) {
	if order.Buy.Opposite() != order.Sell || order.Sell.Opposite() != order.Buy {
		t.Error("Opposite is not symmetric")
	}

	dir, err := order.ParseDirection("sell")
	if err != nil || dir != order.Sell {
		t.Errorf("ParseDirection(sell): got %s, %v", dir, err)
	}
	if _, err := order.ParseDirection("hold"); err == nil {
		t.Error("ParseDirection(hold) should fail")
	}
}

// ============================================================================
// Test: Registry
// ============================================================================

func TestRegistry_CreateAndLookup(t *testing.T) {
	r := order.NewRegistry()

	o, err := r.CreateOrder(2, 20, 7, order.Buy, d("100"), d("1"), 1000)
	if err != nil {
		t.Fatal(err)
	}
	if o.Status() != order.StatusPending {
		t.Errorf("status: got %s, want PENDING", o.Status())
	}
	if _, err := r.CreateOrder(1, 21, 7, order.Sell, d("101"), d("1"), 1001); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateOrder(3, 22, 8, order.Sell, d("101"), d("1"), 1002); err != nil {
		t.Fatal(err)
	}

	got, ok := r.GetOrder(2)
	if !ok || got != o {
		t.Fatalf("GetOrder(2): got %v, %v", got, ok)
	}

	user := r.GetUserOrders(7)
	if len(user) != 2 || user[0].ID != 1 || user[1].ID != 2 {
		t.Errorf("user 7 orders not sorted by id: %+v", user)
	}
	if len(r.GetUserOrders(99)) != 0 {
		t.Error("unknown user should have no orders")
	}
	if r.Len() != 3 {
		t.Errorf("len: got %d, want 3", r.Len())
	}
}

func TestRegistry_DuplicateIDIsViolation(t *testing.T) {
	r := order.NewRegistry()
	if _, err := r.CreateOrder(1, 1, 7, order.Buy, d("1"), d("1"), 0); err != nil {
		t.Fatal(err)
	}

	_, err := r.CreateOrder(1, 2, 8, order.Buy, d("1"), d("1"), 0)
	if !errors.Is(err, invariant.ErrViolation) {
		t.Errorf("expected invariant violation, got %v", err)
	}
}

func TestRegistry_RemoveTwiceIsViolation(t *testing.T) {
	r := order.NewRegistry()
	if _, err := r.CreateOrder(1, 1, 7, order.Buy, d("1"), d("1"), 0); err != nil {
		t.Fatal(err)
	}

	if err := r.RemoveOrder(1); err != nil {
		t.Fatalf("RemoveOrder: %v", err)
	}
	if r.Len() != 0 || len(r.GetUserOrders(7)) != 0 {
		t.Errorf("order still indexed: len=%d user=%d", r.Len(), len(r.GetUserOrders(7)))
	}

	err := r.RemoveOrder(1)
	if code := invariant.Code(err); code != "order_not_registered" {
		t.Errorf("second remove: got code %q (%v), want order_not_registered", code, err)
	}
}
