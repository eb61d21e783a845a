package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"mesa-order-client/pkg/order"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type TicketEvent struct {
	PIN string
	// Ticket is nil when the session has no active order.
	Ticket *order.Ticket
	// Closed is set when the backend closed the table session.
	Closed bool
}

// TicketStream follows a table's tracking ticket over the backend websocket.
type TicketStream struct {
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger
}

func (c *Client) TicketStream() *TicketStream {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/ws/seguimiento"
	return &TicketStream{
		url:    u.String(),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: c.logger,
	}
}

// Follow delivers ticket events for pin until ctx is done, the backend
// closes the session or the connection drops. It returns nil after a
// session.closed event and ctx.Err() on cancellation.
func (s *TicketStream) Follow(ctx context.Context, pin string, handle func(TicketEvent)) error {
	target := s.url + "?pin=" + url.QueryEscape(pin)
	conn, res, err := s.dialer.DialContext(ctx, target, http.Header{"User-Agent": []string{userAgent}})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if res != nil {
			return fmt.Errorf("ticket stream: dial status %d: %w", res.StatusCode, err)
		}
		return fmt.Errorf("ticket stream: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("ticket stream: %w", err)
		}

		switch msg.Type {
		case EventTicketState:
			if msg.Data == nil {
				continue
			}
			handle(TicketEvent{PIN: pin, Ticket: msg.Data.Domain().Ticket})
		case EventSessionClosed:
			handle(TicketEvent{PIN: pin, Closed: true})
			return nil
		case "error":
			return errors.New("ticket stream: rejected by backend")
		default:
			s.logger.Debug("ignoring ticket stream message", zap.String("type", msg.Type))
		}
	}
}
