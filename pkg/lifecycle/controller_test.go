package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mesa-order-client/pkg/apperr"
	"mesa-order-client/pkg/cart"
	"mesa-order-client/pkg/monitor"
	"mesa-order-client/pkg/order"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

type switchOracle struct {
	invalid atomic.Bool
	calls   atomic.Int64
}

func (o *switchOracle) CheckSession(ctx context.Context, pin string) (bool, error) {
	o.calls.Add(1)
	return !o.invalid.Load(), nil
}

type stubGateway struct {
	mu       sync.Mutex
	response order.Response
	err      error
	entered  chan struct{}
	release  chan struct{}
	requests []order.Request

	bill   order.BillResponse
	ticket order.TicketResponse
}

func (g *stubGateway) SubmitOrder(ctx context.Context, req order.Request) (order.Response, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	return g.response, g.err
}

func (g *stubGateway) RequestBill(ctx context.Context, req order.BillRequest) (order.BillResponse, error) {
	return g.bill, nil
}

func (g *stubGateway) FetchTicket(ctx context.Context, pin string) (order.TicketResponse, error) {
	return g.ticket, nil
}

type noticeSink struct {
	ch chan monitor.Notice
}

func newNoticeSink() *noticeSink {
	return &noticeSink{ch: make(chan monitor.Notice, 4)}
}

func (n *noticeSink) Notify(notice monitor.Notice) {
	n.ch <- notice
}

func newTestController(t *testing.T, oracle monitor.Oracle, gw order.Gateway, notifier monitor.Notifier) *Controller {
	t.Helper()
	c := New(Options{
		Oracle:         oracle,
		Gateway:        gw,
		Notifier:       notifier,
		Logger:         zaptest.NewLogger(t),
		CheckInterval:  10 * time.Millisecond,
		RequestTimeout: time.Second,
	})
	t.Cleanup(c.Close)
	return c
}

var tacos = cart.Product{ID: "7", Name: "Tacos", Price: decimal.RequireFromString("12.50")}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestScanBindsRestaurantAndBrowses(t *testing.T) {
	c := newTestController(t, &switchOracle{}, &stubGateway{}, nil)

	if !c.BeginScan() {
		t.Fatalf("expected scanner to open in guest mode")
	}
	if c.State() != StateScanning {
		t.Fatalf("expected scanning, got %s", c.State())
	}

	if _, err := c.Scan("not json"); apperr.CodeOf(err) != apperr.CodeInvalidQR {
		t.Fatalf("expected INVALID_QR, got %v", err)
	}
	if c.State() != StateScanning {
		t.Fatalf("invalid payload must not change state, got %s", c.State())
	}

	r, err := c.Scan(`{"id_restaurante": 4, "nombre": "La Fonda"}`)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if r.ID != "4" || r.Name != "La Fonda" {
		t.Fatalf("unexpected restaurant %+v", r)
	}
	if c.State() != StateBrowsing {
		t.Fatalf("expected browsing, got %s", c.State())
	}
}

func TestScanRejectedWhileTableActive(t *testing.T) {
	c := newTestController(t, &switchOracle{}, &stubGateway{}, nil)
	if err := c.EnterPIN("1234"); err != nil {
		t.Fatalf("enter pin: %v", err)
	}
	if c.BeginScan() {
		t.Fatalf("scanner must stay closed while a pin is bound")
	}
	if _, err := c.Scan(`{"id_restaurante": "9"}`); err == nil {
		t.Fatalf("expected rebind to be rejected")
	}
	if c.Session().Restaurant.Bound() {
		t.Fatalf("restaurant must not be rebound")
	}
	if c.CanVisit(ScreenQRScanner) {
		t.Fatalf("scanner route must be unreachable")
	}
}

func TestCheckoutSuccessMovesToOrderPlaced(t *testing.T) {
	gw := &stubGateway{response: order.Response{OK: true, Table: "12"}}
	c := newTestController(t, &switchOracle{}, gw, nil)

	if err := c.AddToCart(tacos, 2, ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	res, err := c.Checkout(context.Background(), " 4821 ")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if res.Table != "12" {
		t.Fatalf("unexpected table %q", res.Table)
	}

	snap := c.Session()
	if snap.PIN != "4821" || snap.TableID != "12" {
		t.Fatalf("unexpected session %+v", snap)
	}
	if len(c.Cart()) != 0 {
		t.Fatalf("cart must be cleared after a confirmed order")
	}
	if c.State() != StateOrderPlaced {
		t.Fatalf("expected order placed, got %s", c.State())
	}
	if !c.CanVisit(ScreenPayment) || c.CanVisit(ScreenQRScanner) {
		t.Fatalf("unexpected routes %v", c.Routes())
	}
	if !c.monitor.Running() {
		t.Fatalf("monitor must run while a pin is bound")
	}
}

func TestCheckoutEmptyCartSkipsPIN(t *testing.T) {
	gw := &stubGateway{}
	c := newTestController(t, &switchOracle{}, gw, nil)

	_, err := c.Checkout(context.Background(), "12")
	if apperr.CodeOf(err) != apperr.CodeEmptyCart {
		t.Fatalf("expected EMPTY_CART, got %v", err)
	}
	if c.CurrentPIN() != "" || len(gw.requests) != 0 {
		t.Fatalf("empty cart must not bind a pin or reach the backend")
	}
}

func TestCheckoutPINRejectedKeepsCart(t *testing.T) {
	gw := &stubGateway{response: order.Response{Unauthorized: true}}
	c := newTestController(t, &switchOracle{}, gw, nil)

	if err := c.AddToCart(tacos, 1, "sin cebolla"); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := c.Checkout(context.Background(), "999")
	if !apperr.Is(err, apperr.KindAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if c.CurrentPIN() != "" {
		t.Fatalf("pin must be cleared")
	}
	if lines := c.Cart(); len(lines) != 1 || lines[0].Notes != "sin cebolla" {
		t.Fatalf("cart must survive a rejected pin, got %+v", lines)
	}
	if c.monitor.Running() {
		t.Fatalf("monitor must stop once the pin is cleared")
	}
}

func TestCheckoutTransportFailureKeepsEverything(t *testing.T) {
	gw := &stubGateway{err: errors.New("dial tcp: refused")}
	c := newTestController(t, &switchOracle{}, gw, nil)
	if err := c.EnterPIN("555"); err != nil {
		t.Fatalf("enter pin: %v", err)
	}
	if err := c.AddToCart(tacos, 3, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err := c.Checkout(context.Background(), "")
	if !apperr.Is(err, apperr.KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if c.CurrentPIN() != "555" || c.TotalItems() != 3 {
		t.Fatalf("state must be unchanged after a transport failure")
	}
}

func TestMonitorInvalidationResetsEverything(t *testing.T) {
	oracle := &switchOracle{}
	sink := newNoticeSink()

	var mu sync.Mutex
	var transitions []State
	noticeAt := -1
	notifier := monitor.NotifierFunc(func(n monitor.Notice) {
		mu.Lock()
		noticeAt = len(transitions)
		mu.Unlock()
		sink.Notify(n)
	})
	c := newTestController(t, oracle, &stubGateway{}, notifier)
	c.OnTransition(func(from, to State) {
		mu.Lock()
		transitions = append(transitions, to)
		mu.Unlock()
	})

	if _, err := c.Scan(`{"id_restaurante": "1", "nombre": "Cocina"}`); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if err := c.EnterPIN("1234"); err != nil {
		t.Fatalf("enter pin: %v", err)
	}
	if err := c.AddToCart(tacos, 1, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	oracle.invalid.Store(true)

	select {
	case n := <-sink.ch:
		if n.Code != apperr.CodeSessionClosed {
			t.Fatalf("unexpected notice %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a session closed notice")
	}

	snap := c.Session()
	if snap.PIN != "" || snap.TableID != "" || snap.Restaurant.Bound() {
		t.Fatalf("session must be fully reset, got %+v", snap)
	}
	if len(c.Cart()) != 0 {
		t.Fatalf("cart must be cleared")
	}
	if c.State() != StateGuest {
		t.Fatalf("expected guest, got %s", c.State())
	}
	waitFor(t, "monitor exit", func() bool { return !c.monitor.Running() })

	mu.Lock()
	defer mu.Unlock()
	n := len(transitions)
	if n < 2 || transitions[n-2] != StateClosed || transitions[n-1] != StateGuest {
		t.Fatalf("expected closed then guest, got %v", transitions)
	}
	if noticeAt != n-2 {
		t.Fatalf("the closed notice must precede the reset transitions, got notice at %d of %v", noticeAt, transitions)
	}
}

func TestInvalidationDuringSubmitIsDeferred(t *testing.T) {
	oracle := &switchOracle{}
	sink := newNoticeSink()
	gw := &stubGateway{
		response: order.Response{OK: true, Table: "3"},
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	c := newTestController(t, oracle, gw, sink)

	if err := c.EnterPIN("777"); err != nil {
		t.Fatalf("enter pin: %v", err)
	}
	if err := c.AddToCart(tacos, 2, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	type outcome struct {
		res order.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.Checkout(context.Background(), "")
		done <- outcome{res, err}
	}()
	<-gw.entered

	before := oracle.calls.Load()
	oracle.invalid.Store(true)
	waitFor(t, "deferred checks", func() bool { return oracle.calls.Load() >= before+2 })

	if c.CurrentPIN() != "777" || c.TotalItems() != 2 {
		t.Fatalf("reset must wait for the submission to finish")
	}

	close(gw.release)
	out := <-done
	if out.err != nil {
		t.Fatalf("checkout: %v", out.err)
	}

	select {
	case <-sink.ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the deferred reset to apply")
	}
	if c.CurrentPIN() != "" || len(c.Cart()) != 0 {
		t.Fatalf("expected full reset after the submission")
	}
	select {
	case n := <-sink.ch:
		t.Fatalf("expected exactly one notice, got another %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPINCannotChangeWhileSubmitting(t *testing.T) {
	gw := &stubGateway{
		response: order.Response{OK: true, Table: "3"},
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	c := newTestController(t, &switchOracle{}, gw, nil)
	if err := c.AddToCart(tacos, 1, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Checkout(context.Background(), "555")
		done <- err
	}()
	<-gw.entered

	if err := c.EnterPIN("666"); apperr.CodeOf(err) != apperr.CodeSubmissionInFlight {
		t.Fatalf("expected SUBMISSION_IN_FLIGHT, got %v", err)
	}
	if _, err := c.Checkout(context.Background(), "666"); apperr.CodeOf(err) != apperr.CodeSubmissionInFlight {
		t.Fatalf("expected the second checkout to be rejected, got %v", err)
	}
	if c.CurrentPIN() != "555" {
		t.Fatalf("pin must stay bound during the submission, got %q", c.CurrentPIN())
	}

	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if c.CurrentPIN() != "555" || c.Session().TableID != "3" || c.TotalItems() != 0 {
		t.Fatalf("accepted order must clear the cart for the submitted pin, got %+v", c.Session())
	}
	if err := c.EnterPIN("555"); err != nil {
		t.Fatalf("re-entering the bound pin must be a no-op, got %v", err)
	}
}

func TestExitClearsEverything(t *testing.T) {
	c := newTestController(t, &switchOracle{}, &stubGateway{}, nil)
	if _, err := c.Scan(`{"id_restaurante": "2"}`); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if err := c.EnterPIN("3210"); err != nil {
		t.Fatalf("enter pin: %v", err)
	}
	if err := c.AddToCart(tacos, 1, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	c.Exit()

	snap := c.Session()
	if snap.Active() || snap.Restaurant.Bound() || c.TotalItems() != 0 {
		t.Fatalf("exit must clear session and cart, got %+v", snap)
	}
	if c.monitor.Running() {
		t.Fatalf("monitor must stop on exit")
	}
}

func TestTicketDrivesRoutes(t *testing.T) {
	gw := &stubGateway{
		bill: order.BillResponse{OK: true},
		ticket: order.TicketResponse{Active: true, Ticket: &order.Ticket{
			Restaurant: "Cocina",
			Table:      "4",
			Status:     order.StatusAwaitingPayment,
		}},
	}
	c := newTestController(t, &switchOracle{}, gw, nil)
	if err := c.EnterPIN("4444"); err != nil {
		t.Fatalf("enter pin: %v", err)
	}
	if c.CanVisit(ScreenPayment) {
		t.Fatalf("payment requires an active order")
	}

	c.ApplyTicket("4444", &order.Ticket{Status: order.StatusActive})
	if !c.CanVisit(ScreenPayment) {
		t.Fatalf("payment must be reachable with an active order")
	}

	if err := c.RequestBill(context.Background(), order.PaymentCash); err != nil {
		t.Fatalf("request bill: %v", err)
	}
	if c.State() != StateAwaitingPayment {
		t.Fatalf("expected awaiting payment, got %s", c.State())
	}
	if c.CanVisit(ScreenPayment) || !c.CanVisit(ScreenOrderDetails) {
		t.Fatalf("unexpected routes %v", c.Routes())
	}

	if c.ApplyTicket("0000", nil) {
		t.Fatalf("ticket for a stale pin must be ignored")
	}
}

func TestRequestBillUnauthorizedClearsPIN(t *testing.T) {
	gw := &stubGateway{bill: order.BillResponse{Unauthorized: true}}
	c := newTestController(t, &switchOracle{}, gw, nil)
	if err := c.EnterPIN("8080"); err != nil {
		t.Fatalf("enter pin: %v", err)
	}
	err := c.RequestBill(context.Background(), order.PaymentCard)
	if !apperr.Is(err, apperr.KindAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if c.CurrentPIN() != "" {
		t.Fatalf("pin must be cleared")
	}
}
