package devserver

import (
	"errors"
	"testing"

	"mesa-order-client/pkg/backend"
)

func newSeededStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	SeedDemo(s)
	return s
}

func TestOpenTableAvoidsPINsInUse(t *testing.T) {
	s := newSeededStore(t)
	pins := []string{"1111", "1111", "2222"}
	s.pinFn = func() string {
		p := pins[0]
		pins = pins[1:]
		return p
	}

	first, err := s.OpenTable(DemoRestaurantID, "4")
	if err != nil || first != "1111" {
		t.Fatalf("unexpected first pin %q %v", first, err)
	}
	second, err := s.OpenTable(DemoRestaurantID, "5")
	if err != nil || second != "2222" {
		t.Fatalf("expected a fresh pin, got %q %v", second, err)
	}

	if _, err := s.OpenTable("nope", "1"); !errors.Is(err, ErrUnknownRestaurant) {
		t.Fatalf("expected unknown restaurant, got %v", err)
	}
}

func TestPlaceOrderIsAllOrNothing(t *testing.T) {
	s := newSeededStore(t)
	pin, _ := s.OpenTable(DemoRestaurantID, "4")

	_, err := s.PlaceOrder(pin, []backend.OrderItem{
		{ProductID: "101", Quantity: 2},
		{ProductID: "999", Quantity: 1},
	})
	var orderErr *OrderError
	if !errors.As(err, &orderErr) {
		t.Fatalf("expected order error, got %v", err)
	}
	if snap := s.Snapshot(pin); snap.Ticket.Active {
		t.Fatalf("rejected order must not reach the ticket")
	}

	if _, err := s.PlaceOrder(pin, nil); !errors.As(err, &orderErr) {
		t.Fatalf("expected order error for empty order, got %v", err)
	}
	if _, err := s.PlaceOrder("0000", []backend.OrderItem{{ProductID: "101", Quantity: 1}}); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("expected unknown table, got %v", err)
	}

	placed, err := s.PlaceOrder(pin, []backend.OrderItem{
		{ProductID: "101", Quantity: 2},
		{ProductID: "201", Quantity: 3, Notes: "sin hielo"},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if placed.Table != "4" || placed.Total.StringFixed(2) != "36.25" {
		t.Fatalf("unexpected placed order %+v", placed)
	}
}

func TestTableLifecycle(t *testing.T) {
	s := newSeededStore(t)
	pin, _ := s.OpenTable(DemoRestaurantID, "7")

	if _, err := s.RequestBill(pin, "efectivo"); !errors.Is(err, ErrNothingToBill) {
		t.Fatalf("expected nothing to bill, got %v", err)
	}
	if _, err := s.PlaceOrder(pin, []backend.OrderItem{{ProductID: "102", Quantity: 1}, {ProductID: "301", Quantity: 2}}); err != nil {
		t.Fatalf("place order: %v", err)
	}
	if err := s.MarkServed(pin, 1); err != nil {
		t.Fatalf("mark served: %v", err)
	}
	if err := s.MarkServed(pin, 5); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected unknown item, got %v", err)
	}

	before := s.Snapshot(pin).Revision
	if _, err := s.RequestBill(pin, "tarjeta"); err != nil {
		t.Fatalf("request bill: %v", err)
	}
	snap := s.Snapshot(pin)
	if snap.Revision <= before {
		t.Fatalf("bill request must bump the revision")
	}
	if snap.Ticket.Status != backend.StateAwaitingPayment || snap.Ticket.Ticket.Total.StringFixed(2) != "25.40" {
		t.Fatalf("unexpected ticket %+v", snap.Ticket)
	}
	if snap.Ticket.Ticket.Items[1].Status != backend.ItemCompleted || snap.Ticket.Ticket.Items[0].Status != backend.ItemPending {
		t.Fatalf("unexpected item states %+v", snap.Ticket.Ticket.Items)
	}
	if _, err := s.PlaceOrder(pin, []backend.OrderItem{{ProductID: "101", Quantity: 1}}); !errors.Is(err, ErrBillRequested) {
		t.Fatalf("orders after the bill must be refused, got %v", err)
	}

	if _, err := s.CloseTable(pin); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.Valid(pin) {
		t.Fatalf("closed table must not be valid")
	}
	if snap := s.Snapshot(pin); !snap.Known || snap.Open || snap.Ticket.Active {
		t.Fatalf("unexpected snapshot after close %+v", snap)
	}
	if _, err := s.CloseTable(pin); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("closing twice must fail, got %v", err)
	}
}
