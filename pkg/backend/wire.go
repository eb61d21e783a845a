package backend

import (
	"bytes"
	"encoding/json"
	"strings"

	"mesa-order-client/pkg/menu"
	"mesa-order-client/pkg/order"

	"github.com/shopspring/decimal"
)

// Wire types use the restaurant backend's JSON keys. The devserver package
// serves the same shapes.

// SessionCheck is the verificar-sesion body. Valid is nil when the backend
// left the field out, which is not an answer.
type SessionCheck struct {
	Valid *bool `json:"valida"`
}

func NewSessionCheck(valid bool) SessionCheck {
	return SessionCheck{Valid: &valid}
}

type OrderItem struct {
	ProductID string `json:"id_producto"`
	Quantity  int    `json:"cantidad"`
	Notes     string `json:"notas,omitempty"`
}

type OrderRequest struct {
	PIN   string      `json:"pin"`
	Items []OrderItem `json:"items"`
}

type OrderResponse struct {
	Table   FlexString `json:"mesa,omitempty"`
	OrderID string     `json:"id_pedido,omitempty"`
	Message string     `json:"message,omitempty"`
}

type BillRequest struct {
	PIN           string `json:"pin"`
	PaymentMethod string `json:"metodo_pago"`
}

type MessageResponse struct {
	Message string `json:"message,omitempty"`
}

type TicketItem struct {
	Name     string          `json:"nombre"`
	Quantity int             `json:"cantidad"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Status   string          `json:"estado_producto"`
}

type Ticket struct {
	Restaurant string          `json:"restaurante"`
	Table      FlexString      `json:"mesa"`
	Items      []TicketItem    `json:"items"`
	Total      decimal.Decimal `json:"total"`
}

type TicketResponse struct {
	Active bool    `json:"activo"`
	Status string  `json:"estado,omitempty"`
	Ticket *Ticket `json:"ticket,omitempty"`
}

type MenuItem struct {
	ID          FlexString      `json:"id_producto"`
	Name        string          `json:"nombre"`
	Description string          `json:"descripcion,omitempty"`
	Price       decimal.Decimal `json:"precio_venta"`
	Image       string          `json:"imagen,omitempty"`
	Category    string          `json:"categoria,omitempty"`
}

const (
	EventTicketState   = "ticket.state"
	EventSessionClosed = "session.closed"
)

type StreamMessage struct {
	Type string          `json:"type"`
	Data *TicketResponse `json:"data,omitempty"`
}

// Backend states.
const (
	StateAwaitingPayment = "por_pagar"
	StateClosed          = "cerrada"
	StatePaid            = "pagada"
	StateOpen            = "abierta"

	ItemCompleted = "completado"
	ItemPending   = "pendiente"
)

// FlexString accepts a JSON string or number. The backend sends ids and
// table numbers either way.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = FlexString(strings.TrimSpace(text))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = FlexString(num.String())
	return nil
}

func (s FlexString) String() string { return string(s) }

func OrderStatusOf(state string) order.Status {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case StateAwaitingPayment:
		return order.StatusAwaitingPayment
	case StateClosed, StatePaid:
		return order.StatusClosed
	default:
		return order.StatusActive
	}
}

func ItemStatusOf(state string) order.ItemStatus {
	if strings.EqualFold(strings.TrimSpace(state), ItemCompleted) {
		return order.ItemFulfilled
	}
	return order.ItemPending
}

func NewOrderRequest(req order.Request) OrderRequest {
	items := make([]OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, OrderItem{ProductID: it.ProductID, Quantity: it.Quantity, Notes: it.Notes})
	}
	return OrderRequest{PIN: req.PIN, Items: items}
}

// Domain converts the wire response. The ticket is nil unless the session
// has an active order.
func (r TicketResponse) Domain() order.TicketResponse {
	if !r.Active || r.Ticket == nil {
		return order.TicketResponse{Active: r.Active}
	}
	items := make([]order.TicketItem, 0, len(r.Ticket.Items))
	for _, it := range r.Ticket.Items {
		items = append(items, order.TicketItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Subtotal: it.Subtotal,
			Status:   ItemStatusOf(it.Status),
		})
	}
	return order.TicketResponse{
		Active: true,
		Ticket: &order.Ticket{
			Restaurant: r.Ticket.Restaurant,
			Table:      r.Ticket.Table.String(),
			Items:      items,
			Total:      r.Ticket.Total,
			Status:     OrderStatusOf(r.Status),
		},
	}
}

func (m MenuItem) Domain() menu.Item {
	return menu.Item{
		ID:          m.ID.String(),
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		Image:       m.Image,
		Category:    m.Category,
	}
}
