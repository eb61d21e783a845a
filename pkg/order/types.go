package order

import (
	"context"

	"github.com/shopspring/decimal"
)

type Item struct {
	ProductID string
	Quantity  int
	Notes     string
}

type Request struct {
	PIN   string
	Items []Item
}

// Response is the backend's answer to a submission. Transport failures are
// reported through the error channel instead.
type Response struct {
	OK           bool
	Unauthorized bool
	Table        string
	Message      string
}

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "tarjeta"
	PaymentCash PaymentMethod = "efectivo"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCard || m == PaymentCash
}

type BillRequest struct {
	PIN           string
	PaymentMethod PaymentMethod
}

type BillResponse struct {
	OK           bool
	Unauthorized bool
	Message      string
}

type Status string

const (
	StatusNone            Status = ""
	StatusActive          Status = "active"
	StatusAwaitingPayment Status = "awaiting-payment"
	StatusClosed          Status = "closed"
)

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemFulfilled ItemStatus = "fulfilled"
)

type TicketItem struct {
	Name     string
	Quantity int
	Subtotal decimal.Decimal
	Status   ItemStatus
}

type Ticket struct {
	Restaurant string
	Table      string
	Items      []TicketItem
	Total      decimal.Decimal
	Status     Status
}

func (t *Ticket) AwaitingPayment() bool {
	return t != nil && t.Status == StatusAwaitingPayment
}

// TicketResponse mirrors the tracking endpoint. Ticket is nil when Active is
// false.
type TicketResponse struct {
	Active bool
	Ticket *Ticket
}

type Gateway interface {
	SubmitOrder(ctx context.Context, req Request) (Response, error)
	RequestBill(ctx context.Context, req BillRequest) (BillResponse, error)
	FetchTicket(ctx context.Context, pin string) (TicketResponse, error)
}
