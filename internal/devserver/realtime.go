package devserver

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"mesa-order-client/pkg/backend"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsTicketClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsTicketClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(value)
}

// ticketRealtime pushes a table's ticket to its subscribers whenever the
// table's revision moves, and session.closed once the table is closed.
type ticketRealtime struct {
	store    *Store
	logger   *zap.Logger
	interval time.Duration

	started sync.Once
	kick    chan struct{}

	mu   sync.RWMutex
	subs map[string]map[*wsTicketClient]struct{}
	sent map[string]int64
}

func newTicketRealtime(store *Store, logger *zap.Logger, interval time.Duration) *ticketRealtime {
	return &ticketRealtime{
		store:    store,
		logger:   logger,
		interval: interval,
		kick:     make(chan struct{}, 1),
		subs:     make(map[string]map[*wsTicketClient]struct{}),
		sent:     make(map[string]int64),
	}
}

func (tr *ticketRealtime) ensureStarted(ctx context.Context) {
	tr.started.Do(func() {
		go tr.pollLoop(ctx)
	})
}

// notify asks for an immediate scan instead of waiting for the next poll.
func (tr *ticketRealtime) notify(pin string) {
	tr.mu.RLock()
	_, watched := tr.subs[pin]
	tr.mu.RUnlock()
	if !watched {
		return
	}
	select {
	case tr.kick <- struct{}{}:
	default:
	}
}

// subscribe registers client for pin. revision is the ticket revision the
// client was already sent; the first subscriber of a pin seeds it so the
// next scan does not push the same ticket again.
func (tr *ticketRealtime) subscribe(pin string, client *wsTicketClient, revision int64) (unsubscribe func()) {
	key := strings.TrimSpace(pin)
	if key == "" {
		return func() {}
	}

	tr.mu.Lock()
	if tr.subs[key] == nil {
		tr.subs[key] = make(map[*wsTicketClient]struct{})
		tr.sent[key] = revision
	}
	tr.subs[key][client] = struct{}{}
	tr.mu.Unlock()

	return func() {
		tr.mu.Lock()
		clients := tr.subs[key]
		delete(clients, client)
		if len(clients) == 0 {
			delete(tr.subs, key)
			delete(tr.sent, key)
		}
		tr.mu.Unlock()
	}
}

func (tr *ticketRealtime) clientsFor(pin string) []*wsTicketClient {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	clientsMap := tr.subs[pin]
	clients := make([]*wsTicketClient, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	return clients
}

func (tr *ticketRealtime) broadcast(pin string, message any) {
	for _, c := range tr.clientsFor(pin) {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			tr.mu.Lock()
			if current := tr.subs[pin]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(tr.subs, pin)
					delete(tr.sent, pin)
				}
			}
			tr.mu.Unlock()
		}
	}
}

func (tr *ticketRealtime) closePIN(pin string) {
	for _, c := range tr.clientsFor(pin) {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "table closed"))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	}
	tr.mu.Lock()
	delete(tr.subs, pin)
	delete(tr.sent, pin)
	tr.mu.Unlock()
}

func (tr *ticketRealtime) closeAll() {
	tr.mu.RLock()
	pins := make([]string, 0, len(tr.subs))
	for pin := range tr.subs {
		pins = append(pins, pin)
	}
	tr.mu.RUnlock()
	for _, pin := range pins {
		for _, c := range tr.clientsFor(pin) {
			_ = c.conn.Close()
		}
	}
}

func (tr *ticketRealtime) watchedPINs() []string {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	pins := make([]string, 0, len(tr.subs))
	for pin := range tr.subs {
		pins = append(pins, pin)
	}
	return pins
}

func (tr *ticketRealtime) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(tr.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-tr.kick:
		}
		tr.scan()
	}
}

func (tr *ticketRealtime) scan() {
	for _, pin := range tr.watchedPINs() {
		snap := tr.store.Snapshot(pin)
		if !snap.Open {
			tr.broadcast(pin, backend.StreamMessage{Type: backend.EventSessionClosed})
			tr.closePIN(pin)
			tr.logger.Debug("ticket stream closed", zap.String("pin", pin))
			continue
		}

		tr.mu.Lock()
		changed := tr.sent[pin] != snap.Revision
		tr.sent[pin] = snap.Revision
		tr.mu.Unlock()
		if changed {
			ticket := snap.Ticket
			tr.broadcast(pin, backend.StreamMessage{Type: backend.EventTicketState, Data: &ticket})
		}
	}
}

func (s *Server) TicketWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	pin := strings.TrimSpace(r.URL.Query().Get("pin"))
	snap := s.store.Snapshot(pin)
	if pin == "" || !snap.Known {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "table not found"})
		return
	}
	if !snap.Open {
		_ = conn.WriteJSON(backend.StreamMessage{Type: backend.EventSessionClosed})
		return
	}

	s.realtime.ensureStarted(s.ctx)
	client := &wsTicketClient{conn: conn}
	unsubscribe := s.realtime.subscribe(pin, client, snap.Revision)
	defer unsubscribe()

	// Send the current ticket immediately.
	ticket := snap.Ticket
	_ = client.writeJSON(backend.StreamMessage{Type: backend.EventTicketState, Data: &ticket})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	select {
	case <-clientClosed:
	case <-r.Context().Done():
	case <-s.ctx.Done():
	}
}
