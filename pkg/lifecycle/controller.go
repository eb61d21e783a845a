// Package lifecycle owns the cart and the table session for the lifetime of
// the client process and sequences them through the guest, active table,
// order placed, awaiting payment and closed states.
//
// All cart and session mutations happen under one mutex. The session
// monitor and the order submitter only reach that state through the narrow
// adapters defined here, so there is a single copy of it.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"mesa-order-client/pkg/apperr"
	"mesa-order-client/pkg/cart"
	"mesa-order-client/pkg/monitor"
	"mesa-order-client/pkg/order"
	"mesa-order-client/pkg/qr"
	"mesa-order-client/pkg/session"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Listener func(from, to State)

type Options struct {
	Oracle   monitor.Oracle
	Gateway  order.Gateway
	Notifier monitor.Notifier
	Logger   *zap.Logger

	CheckInterval  time.Duration
	RequestTimeout time.Duration
	MinPINLength   int
}

type Controller struct {
	logger    *zap.Logger
	minPIN    int
	submitter *order.Submitter
	monitor   *monitor.Monitor

	// syncMu serializes monitor reconciliation so the last reconciliation
	// always observes the latest PIN.
	syncMu sync.Mutex

	mu             sync.Mutex
	cart           *cart.Store
	session        *session.State
	scanning       bool
	status         order.Status
	ticket         *order.Ticket
	submitting     bool
	recheckPending bool
	closed         bool
	listeners      []Listener
}

func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	minPIN := opts.MinPINLength
	if minPIN <= 0 {
		minPIN = order.DefaultMinPINLength
	}

	c := &Controller{
		logger:  logger,
		minPIN:  minPIN,
		cart:    cart.NewStore(),
		session: session.New(),
	}
	c.submitter = order.NewSubmitter(opts.Gateway, order.Options{
		Timeout: opts.RequestTimeout,
		Logger:  logger.Named("order"),
	})
	c.monitor = monitor.New(opts.Oracle, monitorTarget{c}, monitor.Options{
		Interval: opts.CheckInterval,
		Timeout:  opts.RequestTimeout,
		Logger:   logger.Named("monitor"),
		Notifier: opts.Notifier,
	})
	return c
}

// OnTransition registers a listener for state changes. Listeners may run on
// the monitor goroutine.
func (c *Controller) OnTransition(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Close stops the session monitor. The controller must not be used after.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.syncMu.Lock()
	defer c.syncMu.Unlock()
	c.monitor.Stop()
}

// ---- reads ----

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	return stateFor(c.session.Active(), c.scanning, c.session.Restaurant().Bound(), c.status)
}

func (c *Controller) Routes() []Screen {
	c.mu.Lock()
	defer c.mu.Unlock()
	return RoutesFor(c.session.Active(), c.status)
}

func (c *Controller) CanVisit(screen Screen) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CanVisitFor(c.session.Active(), c.status, screen)
}

func (c *Controller) Session() session.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Snapshot()
}

func (c *Controller) CurrentPIN() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.PIN()
}

func (c *Controller) Cart() []cart.Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.Lines()
}

func (c *Controller) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.Total()
}

func (c *Controller) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.TotalItems()
}

func (c *Controller) OrderStatus() order.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Ticket returns the last fetched ticket, or nil.
func (c *Controller) Ticket() *order.Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticket == nil {
		return nil
	}
	t := *c.ticket
	t.Items = append([]order.TicketItem(nil), c.ticket.Items...)
	return &t
}

// ---- scanning ----

// BeginScan reports false while a table is active; the scanner is only
// reachable in guest mode.
func (c *Controller) BeginScan() bool {
	var ok bool
	c.update(func() {
		if c.session.Active() {
			return
		}
		c.scanning = true
		ok = true
	})
	return ok
}

func (c *Controller) CancelScan() {
	c.update(func() { c.scanning = false })
}

// Scan binds the restaurant from a decoded QR payload. Invalid payloads leave
// every piece of state untouched.
func (c *Controller) Scan(data string) (session.Restaurant, error) {
	r, err := qr.Decode(data)
	if err != nil {
		c.logger.Info("qr payload rejected", zap.Error(err))
		return session.Restaurant{}, err
	}

	var bindErr error
	c.update(func() {
		if c.session.Active() {
			bindErr = apperr.Validation(apperr.CodeInvalidQR, "Leave the current table before scanning another restaurant.")
			return
		}
		c.session.Bind(r)
		c.scanning = false
	})
	if bindErr != nil {
		return session.Restaurant{}, bindErr
	}
	c.logger.Info("restaurant bound", zap.String("restaurantId", r.ID), zap.String("name", r.Name))
	return r, nil
}

// ---- cart ----

func (c *Controller) AddToCart(p cart.Product, quantity int, notes string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.Add(p, quantity, notes)
}

func (c *Controller) UpdateQuantity(productID string, delta int, notes string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cart.UpdateQuantity(productID, delta, notes)
}

func (c *Controller) RemoveFromCart(productID string, notes string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cart.Remove(productID, notes)
}

func (c *Controller) ClearCart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cart.Clear()
}

// ---- table session ----

// EnterPIN binds a table PIN manually. Rebinding a different PIN drops the
// order status of the previous one. The PIN cannot change while an order is
// being sent.
func (c *Controller) EnterPIN(pin string) error {
	pin, err := order.ValidatePIN(pin, c.minPIN)
	if err != nil {
		return err
	}

	c.mu.Lock()
	before := c.stateLocked()
	if c.session.PIN() == pin {
		c.mu.Unlock()
		return nil
	}
	if c.submitting {
		c.mu.Unlock()
		return apperr.Validation(apperr.CodeSubmissionInFlight, "Your order is already being sent.")
	}
	c.session.SetPIN(pin)
	c.scanning = false
	c.status = order.StatusNone
	c.ticket = nil
	c.mu.Unlock()
	c.settle(before)

	c.logger.Info("table pin bound", zap.String("pin", pin))
	return nil
}

// Checkout submits the cart. When no PIN is bound, pinInput is validated and
// bound first; it is ignored otherwise.
func (c *Controller) Checkout(ctx context.Context, pinInput string) (order.Result, error) {
	c.mu.Lock()
	empty := c.cart.Empty()
	bound := c.session.Active()
	c.mu.Unlock()

	if empty {
		return order.Result{}, apperr.Validation(apperr.CodeEmptyCart, "Your cart is empty. Add something first.")
	}
	if !bound {
		if err := c.EnterPIN(pinInput); err != nil {
			return order.Result{}, err
		}
	}

	before := c.State()
	res, err := c.submitter.Submit(ctx, submission{c})
	c.settle(before)
	return res, err
}

// RefreshTicket fetches the tracking ticket and records its order status.
func (c *Controller) RefreshTicket(ctx context.Context) (*order.Ticket, error) {
	pin := c.CurrentPIN()
	t, err := c.submitter.FetchTicket(ctx, pin)
	if err != nil {
		return nil, err
	}
	c.ApplyTicket(pin, t)
	return t, nil
}

// ApplyTicket records a ticket fetched for pin. It reports false and changes
// nothing when pin is no longer bound.
func (c *Controller) ApplyTicket(pin string, t *order.Ticket) bool {
	applied := false
	c.update(func() {
		if pin == "" || c.session.PIN() != pin {
			return
		}
		applied = true
		c.ticket = t
		if t == nil {
			c.status = order.StatusNone
			return
		}
		c.status = t.Status
	})
	return applied
}

// RequestBill asks for the bill. A rejected PIN is cleared, as for orders.
func (c *Controller) RequestBill(ctx context.Context, method order.PaymentMethod) error {
	pin := c.CurrentPIN()
	err := c.submitter.RequestBill(ctx, pin, method)
	if apperr.Is(err, apperr.KindAuthorization) {
		before := c.State()
		c.clearPIN(pin)
		c.settle(before)
		return err
	}
	if err != nil {
		return err
	}

	if _, refreshErr := c.RefreshTicket(ctx); refreshErr != nil {
		c.logger.Warn("ticket refresh after bill request failed", zap.String("pin", pin), zap.Error(refreshErr))
	}
	return nil
}

// Exit leaves the table: PIN, table, restaurant and cart are cleared together.
func (c *Controller) Exit() {
	c.mu.Lock()
	before := c.stateLocked()
	c.resetLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	c.logger.Info("table session exited")
	c.syncMonitor()
	emitReset(listeners, before)
}

// ---- internals ----

func (c *Controller) resetLocked() {
	c.session.FullReset()
	c.cart.Clear()
	c.scanning = false
	c.status = order.StatusNone
	c.ticket = nil
}

func (c *Controller) clearPIN(pin string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.PIN() != pin {
		return
	}
	c.session.ClearPIN()
	c.status = order.StatusNone
	c.ticket = nil
}

// update runs fn under the lock, then reconciles the monitor and notifies
// listeners.
func (c *Controller) update(fn func()) {
	c.mu.Lock()
	before := c.stateLocked()
	fn()
	c.mu.Unlock()
	c.settle(before)
}

func (c *Controller) settle(before State) {
	c.syncMonitor()

	c.mu.Lock()
	after := c.stateLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	emit(listeners, before, after)
}

func (c *Controller) syncMonitor() {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	c.mu.Lock()
	pin := c.session.PIN()
	if c.closed {
		pin = ""
	}
	c.mu.Unlock()

	c.monitor.Sync(pin)
}

func (c *Controller) listenersLocked() []Listener {
	return append([]Listener(nil), c.listeners...)
}

func emit(listeners []Listener, from, to State) {
	if from == to {
		return
	}
	for _, l := range listeners {
		l(from, to)
	}
}

func emitReset(listeners []Listener, from State) {
	emit(listeners, from, StateClosed)
	emit(listeners, StateClosed, StateGuest)
}

// monitorTarget exposes the session to the monitor.
type monitorTarget struct{ c *Controller }

func (t monitorTarget) CurrentPIN() string {
	return t.c.CurrentPIN()
}

// Invalidate applies the backend's session end. While a submission for the
// same PIN is in flight the reset is deferred: the submission completes and
// applies its result, then the monitor rechecks immediately.
func (t monitorTarget) Invalidate(pin string, announce func()) monitor.Outcome {
	c := t.c
	c.mu.Lock()
	if c.closed || pin == "" || c.session.PIN() != pin {
		c.mu.Unlock()
		return monitor.Stale
	}
	if c.submitting {
		c.recheckPending = true
		c.mu.Unlock()
		return monitor.Deferred
	}
	before := c.stateLocked()
	c.resetLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	c.logger.Info("table session invalidated", zap.String("pin", pin))
	announce()
	emitReset(listeners, before)
	return monitor.Applied
}

// submission exposes the session to the order submitter.
type submission struct{ c *Controller }

func (s submission) Begin() (string, []cart.Line) {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = true
	return c.session.PIN(), c.cart.Lines()
}

func (s submission) Accepted(pin string, table string) {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.PIN() != pin {
		c.logger.Warn("order confirmed for a pin that is no longer bound", zap.String("pin", pin))
		return
	}
	if table != "" {
		c.session.SetTableID(table)
	}
	c.cart.Clear()
	if c.status == order.StatusNone {
		c.status = order.StatusActive
	}
}

func (s submission) PINRejected(pin string) {
	s.c.clearPIN(pin)
}

func (s submission) Done() {
	c := s.c
	c.mu.Lock()
	c.submitting = false
	recheck := c.recheckPending
	c.recheckPending = false
	c.mu.Unlock()

	if recheck {
		c.monitor.Recheck()
	}
}
