// Package devserver is an in-memory restaurant backend serving the mobile
// API the client library talks to, plus the staff endpoints needed to open,
// serve and close tables during development.
package devserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"mesa-order-client/internal/middleware"
	"mesa-order-client/internal/queue"
	"mesa-order-client/pkg/receipt"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Options struct {
	Env                string
	CorsAllowedOrigins []string
	TicketPollInterval time.Duration
	// Events is optional; table events are dropped when nil.
	Events queue.Publisher
	// Uploader is optional; receipts are only served inline when nil.
	Uploader receipt.Uploader
	// InlineReceipts publishes receipts from the request path instead of
	// the receipts queue worker.
	InlineReceipts bool
	// StaffJWTSecret signs staff bearer tokens. Staff endpoints reject
	// every request while it is empty.
	StaffJWTSecret string
}

type Server struct {
	store    *Store
	logger   *zap.Logger
	opts     Options
	realtime *ticketRealtime

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(store *Store, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TicketPollInterval <= 0 {
		opts.TicketPollInterval = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{store: store, logger: logger, opts: opts, ctx: ctx, cancel: cancel}
	s.realtime = newTicketRealtime(store, logger.Named("realtime"), opts.TicketPollInterval)
	return s
}

// Close stops background work started by the server.
func (s *Server) Close() {
	s.cancel()
	s.realtime.closeAll()
	s.wg.Wait()
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(s.logger, middleware.NewLatencies(0)))

	if s.opts.Env == "development" || len(s.opts.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}
		if s.opts.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = s.opts.CorsAllowedOrigins
		}
		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/movil", func(r chi.Router) {
		r.Get("/verificar-sesion/{pin}", s.CheckSession)
		r.Post("/pedido", s.PlaceOrder)
		r.Post("/cuenta", s.RequestBill)
		r.Get("/seguimiento/{pin}", s.Tracking)
		r.Get("/productos", s.Products)
		r.Get("/recibo/{pin}", s.ReceiptPDF)
		r.Get("/recibo/{pin}/url", s.ReceiptURL)
	})

	r.Route("/api/staff", func(r chi.Router) {
		r.Use(middleware.StaffAuth(s.opts.StaffJWTSecret, s.opts.Env))
		r.Post("/mesas", s.OpenTable)
		r.Delete("/mesas/{pin}", s.CloseTable)
		r.Post("/mesas/{pin}/items/{index}/servido", s.MarkServed)
	})

	r.Get("/ws/seguimiento", s.TicketWS)
	return r
}

func (s *Server) publish(evt queue.TableEvent) {
	if s.opts.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := s.opts.Events.Publish(ctx, evt); err != nil {
		s.logger.Warn("event not published", zap.String("type", evt.Type), zap.Error(err))
	}
}

func (s *Server) goBackground(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}
