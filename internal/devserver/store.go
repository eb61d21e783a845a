package devserver

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"mesa-order-client/pkg/backend"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownRestaurant = errors.New("unknown restaurant")
	ErrUnknownTable      = errors.New("unknown or closed table")
	ErrBillRequested     = errors.New("the bill has already been requested")
	ErrNothingToBill     = errors.New("there is nothing to bill yet")
	ErrUnknownItem       = errors.New("unknown ticket item")
)

// OrderError is a rejected order line; its message is shown to the diner.
type OrderError struct {
	Message string
}

func (e *OrderError) Error() string { return e.Message }

type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Image       string
	Category    string
}

type restaurant struct {
	id       string
	name     string
	products []Product
	byID     map[string]Product
}

type ticketLine struct {
	productID string
	name      string
	quantity  int
	notes     string
	subtotal  decimal.Decimal
	served    bool
}

type table struct {
	pin          string
	restaurantID string
	number       string
	state        string
	method       string
	lines        []ticketLine
	receiptURL   string
	openedAt     time.Time
	revision     int64
}

func (t *table) open() bool {
	return t.state != backend.StateClosed
}

func (t *table) touch() {
	t.revision++
}

// Store is the in-memory state of the development backend. Closed tables
// stay in the store so late checks answer invalid instead of unknown.
type Store struct {
	mu          sync.RWMutex
	restaurants map[string]*restaurant
	tables      map[string]*table
	now         func() time.Time
	pinFn       func() string
}

func NewStore() *Store {
	return &Store{
		restaurants: make(map[string]*restaurant),
		tables:      make(map[string]*table),
		now:         time.Now,
		pinFn: func() string {
			return strconv.Itoa(1000 + rand.IntN(9000))
		},
	}
}

func (s *Store) AddRestaurant(id, name string, products []Product) {
	r := &restaurant{id: id, name: name, byID: make(map[string]Product, len(products))}
	for _, p := range products {
		r.products = append(r.products, p)
		r.byID[p.ID] = p
	}
	s.mu.Lock()
	s.restaurants[id] = r
	s.mu.Unlock()
}

func (s *Store) Menu(restaurantID string) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.restaurants[restaurantID]
	if !ok {
		return nil, ErrUnknownRestaurant
	}
	return append([]Product(nil), r.products...), nil
}

// OpenTable starts a table session and returns its PIN.
func (s *Store) OpenTable(restaurantID, number string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.restaurants[restaurantID]; !ok {
		return "", ErrUnknownRestaurant
	}

	pin := s.pinFn()
	for attempt := 0; s.pinTakenLocked(pin); attempt++ {
		if attempt > 100 {
			return "", fmt.Errorf("no free table pin")
		}
		pin = s.pinFn()
	}

	s.tables[pin] = &table{
		pin:          pin,
		restaurantID: restaurantID,
		number:       strings.TrimSpace(number),
		state:        backend.StateOpen,
		openedAt:     s.now(),
		revision:     1,
	}
	return pin, nil
}

func (s *Store) pinTakenLocked(pin string) bool {
	t, ok := s.tables[pin]
	return ok && t.open()
}

func (s *Store) CloseTable(pin string) (restaurantID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[pin]
	if !ok || !t.open() {
		return "", ErrUnknownTable
	}
	t.state = backend.StateClosed
	t.touch()
	return t.restaurantID, nil
}

func (s *Store) Valid(pin string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[pin]
	return ok && t.open()
}

type PlacedOrder struct {
	ID           string
	Table        string
	RestaurantID string
	Total        decimal.Decimal
}

// PlaceOrder appends the items to the table's ticket. Nothing is appended
// unless every item is valid.
func (s *Store) PlaceOrder(pin string, items []backend.OrderItem) (PlacedOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[pin]
	if !ok || !t.open() {
		return PlacedOrder{}, ErrUnknownTable
	}
	if t.state == backend.StateAwaitingPayment {
		return PlacedOrder{}, ErrBillRequested
	}
	if len(items) == 0 {
		return PlacedOrder{}, &OrderError{Message: "The order has no items."}
	}

	r := s.restaurants[t.restaurantID]
	lines := make([]ticketLine, 0, len(items))
	total := decimal.Zero
	for _, it := range items {
		p, ok := r.byID[strings.TrimSpace(it.ProductID)]
		if !ok {
			return PlacedOrder{}, &OrderError{Message: fmt.Sprintf("Unknown product %q.", it.ProductID)}
		}
		if it.Quantity < 1 {
			return PlacedOrder{}, &OrderError{Message: fmt.Sprintf("Invalid quantity for %s.", p.Name)}
		}
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(subtotal)
		lines = append(lines, ticketLine{
			productID: p.ID,
			name:      p.Name,
			quantity:  it.Quantity,
			notes:     strings.TrimSpace(it.Notes),
			subtotal:  subtotal,
		})
	}

	t.lines = append(t.lines, lines...)
	t.touch()
	return PlacedOrder{ID: uuid.NewString(), Table: t.number, RestaurantID: t.restaurantID, Total: total}, nil
}

func (s *Store) RequestBill(pin, method string) (restaurantID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[pin]
	if !ok || !t.open() {
		return "", ErrUnknownTable
	}
	if len(t.lines) == 0 {
		return "", ErrNothingToBill
	}
	if t.state == backend.StateAwaitingPayment {
		return "", ErrBillRequested
	}
	t.state = backend.StateAwaitingPayment
	t.method = method
	t.touch()
	return t.restaurantID, nil
}

func (s *Store) MarkServed(pin string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[pin]
	if !ok || !t.open() {
		return ErrUnknownTable
	}
	if index < 0 || index >= len(t.lines) {
		return ErrUnknownItem
	}
	if !t.lines[index].served {
		t.lines[index].served = true
		t.touch()
	}
	return nil
}

func (s *Store) SetReceiptURL(pin, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[pin]
	if !ok {
		return ErrUnknownTable
	}
	t.receiptURL = url
	return nil
}

func (s *Store) ReceiptURL(pin string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[pin]
	if !ok || t.receiptURL == "" {
		return "", false
	}
	return t.receiptURL, true
}

// Snapshot is a table's tracking state as served on the wire.
type Snapshot struct {
	Known    bool
	Open     bool
	Revision int64
	Ticket   backend.TicketResponse
}

func (s *Store) Snapshot(pin string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[pin]
	if !ok {
		return Snapshot{}
	}
	snap := Snapshot{Known: true, Open: t.open(), Revision: t.revision}
	if !t.open() || len(t.lines) == 0 {
		snap.Ticket = backend.TicketResponse{Active: false, Status: t.state}
		return snap
	}

	name := ""
	if r, ok := s.restaurants[t.restaurantID]; ok {
		name = r.name
	}
	items := make([]backend.TicketItem, 0, len(t.lines))
	total := decimal.Zero
	for _, line := range t.lines {
		status := backend.ItemPending
		if line.served {
			status = backend.ItemCompleted
		}
		items = append(items, backend.TicketItem{
			Name:     line.name,
			Quantity: line.quantity,
			Subtotal: line.subtotal,
			Status:   status,
		})
		total = total.Add(line.subtotal)
	}
	snap.Ticket = backend.TicketResponse{
		Active: true,
		Status: t.state,
		Ticket: &backend.Ticket{
			Restaurant: name,
			Table:      backend.FlexString(t.number),
			Items:      items,
			Total:      total,
		},
	}
	return snap
}
