package queue

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	EventTableOpened    = "table.opened"
	EventOrderPlaced    = "order.placed"
	EventBillRequested  = "bill.requested"
	EventTableClosed    = "table.closed"
	EventReceiptCreated = "receipt.created"

	ReceiptsQueue  = "mesa.receipts"
	ReceiptsDLQ    = "mesa.receipts.dlq"
	deadLetterKey  = "dead"
	deadLetterKind = "direct"
)

// TableEvent is the envelope published for every table session change.
type TableEvent struct {
	Type         string    `json:"type"`
	PIN          string    `json:"pin"`
	RestaurantID string    `json:"restaurantId,omitempty"`
	Table        string    `json:"table,omitempty"`
	OrderID      string    `json:"orderId,omitempty"`
	Method       string    `json:"paymentMethod,omitempty"`
	URL          string    `json:"url,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, evt TableEvent) error
}

// Events publishes table events to a topic exchange, routed by event type.
type Events struct {
	client   *Client
	exchange string
	logger   *zap.Logger
}

func NewEvents(client *Client, exchange string, logger *zap.Logger) *Events {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Events{client: client, exchange: exchange, logger: logger}
}

func (e *Events) Publish(ctx context.Context, evt TableEvent) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if err := e.client.PublishJSON(ctx, e.exchange, evt.Type, evt.Type, evt); err != nil {
		e.logger.Warn("table event publish failed", zap.String("type", evt.Type), zap.String("pin", evt.PIN), zap.Error(err))
		return err
	}
	return nil
}

// EnsureTopology declares the events exchange and the receipts work queue,
// which receives bill requests and dead-letters to ReceiptsDLQ.
func EnsureTopology(qc *Client, exchange string) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchange(exchange); err != nil {
		return err
	}

	dlx := exchange + "." + deadLetterKey
	if err := qc.EnsureExchangeKind(dlx, deadLetterKind); err != nil {
		return err
	}
	if _, err := qc.EnsureQueue(ReceiptsDLQ, nil); err != nil {
		return err
	}
	if err := qc.BindQueue(ReceiptsDLQ, dlx, deadLetterKey); err != nil {
		return err
	}

	_, err := qc.EnsureQueue(ReceiptsQueue, amqp.Table{
		"x-dead-letter-exchange":    dlx,
		"x-dead-letter-routing-key": deadLetterKey,
	})
	if err != nil {
		return err
	}
	return qc.BindQueue(ReceiptsQueue, exchange, EventBillRequested)
}
