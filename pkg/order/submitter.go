package order

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"mesa-order-client/pkg/apperr"
	"mesa-order-client/pkg/cart"

	"go.uber.org/zap"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMinPINLength = 3
)

// Session is the capability the submitter needs from the owner of cart and
// session state. Begin and Done bracket every submission that got past the
// in-flight guard.
type Session interface {
	Begin() (pin string, lines []cart.Line)
	// Accepted records a confirmed order: table assignment, then cart clear.
	Accepted(pin string, table string)
	// PINRejected clears the PIN and keeps the cart.
	PINRejected(pin string)
	Done()
}

type Options struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

type Submitter struct {
	gateway Gateway
	timeout time.Duration
	logger  *zap.Logger

	inflight atomic.Bool
}

type Result struct {
	PIN   string
	Table string
	Lines int
}

func NewSubmitter(gateway Gateway, opts Options) *Submitter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{gateway: gateway, timeout: timeout, logger: logger}
}

func (s *Submitter) InFlight() bool {
	return s.inflight.Load()
}

// Submit sends the current cart as one order. A second call while one is in
// flight is rejected without touching the network.
func (s *Submitter) Submit(ctx context.Context, sess Session) (Result, error) {
	if !s.inflight.CompareAndSwap(false, true) {
		return Result{}, apperr.Validation(apperr.CodeSubmissionInFlight, "Your order is already being sent.")
	}
	defer s.inflight.Store(false)

	pin, lines := sess.Begin()
	defer sess.Done()

	if len(lines) == 0 {
		return Result{}, apperr.Validation(apperr.CodeEmptyCart, "Your cart is empty. Add something first.")
	}
	if pin == "" {
		return Result{}, apperr.Validation(apperr.CodePINRequired, "Enter your table PIN to send the order.")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.gateway.SubmitOrder(callCtx, BuildRequest(pin, lines))
	if err != nil {
		s.logger.Warn("order submission failed", zap.String("pin", pin), zap.Error(err))
		return Result{}, apperr.Transport("Connection failed.", err)
	}

	if res.Unauthorized {
		s.logger.Info("order pin rejected", zap.String("pin", pin), zap.String("message", res.Message))
		sess.PINRejected(pin)
		return Result{}, apperr.Authorization(apperr.CodePINRejected, "The table PIN was not accepted. Enter a new PIN.")
	}

	if !res.OK {
		message := strings.TrimSpace(res.Message)
		if message == "" {
			message = "The order could not be sent."
		}
		s.logger.Info("order rejected", zap.String("pin", pin), zap.String("message", message))
		return Result{}, apperr.Rejection(apperr.CodeSubmitFailed, message)
	}

	sess.Accepted(pin, res.Table)
	s.logger.Info("order submitted",
		zap.String("pin", pin),
		zap.String("table", res.Table),
		zap.Int("lines", len(lines)),
	)
	return Result{PIN: pin, Table: res.Table, Lines: len(lines)}, nil
}

func (s *Submitter) RequestBill(ctx context.Context, pin string, method PaymentMethod) error {
	if pin == "" {
		return apperr.Validation(apperr.CodePINRequired, "There is no open table to bill.")
	}
	if !method.Valid() {
		return apperr.Validation(apperr.CodeInvalidPaymentMethod, "Select how you are going to pay.")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.gateway.RequestBill(callCtx, BillRequest{PIN: pin, PaymentMethod: method})
	if err != nil {
		s.logger.Warn("bill request failed", zap.String("pin", pin), zap.Error(err))
		return apperr.Transport("Connection failed. Check your internet.", err)
	}
	if res.Unauthorized {
		return apperr.Authorization(apperr.CodePINRejected, "The table PIN was not accepted. Enter a new PIN.")
	}
	if !res.OK {
		message := strings.TrimSpace(res.Message)
		if message == "" {
			message = "The bill could not be requested."
		}
		return apperr.Rejection(apperr.CodeBillRequestFailed, message)
	}

	s.logger.Info("bill requested", zap.String("pin", pin), zap.String("method", string(method)))
	return nil
}

// FetchTicket returns nil when the session has no active order.
func (s *Submitter) FetchTicket(ctx context.Context, pin string) (*Ticket, error) {
	if pin == "" {
		return nil, apperr.Validation(apperr.CodePINRequired, "There is no open table to track.")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.gateway.FetchTicket(callCtx, pin)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindUnknown {
			return nil, err
		}
		return nil, apperr.Transport("Connection failed.", err)
	}
	if !res.Active || res.Ticket == nil {
		return nil, nil
	}
	return res.Ticket, nil
}

// BuildRequest keeps cart line order.
func BuildRequest(pin string, lines []cart.Line) Request {
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		items = append(items, Item{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Notes:     line.Notes,
		})
	}
	return Request{PIN: pin, Items: items}
}

// ValidatePIN returns the trimmed PIN when it is numeric and at least
// minLength digits long.
func ValidatePIN(pin string, minLength int) (string, error) {
	if minLength <= 0 {
		minLength = DefaultMinPINLength
	}
	pin = strings.TrimSpace(pin)
	if len(pin) < minLength {
		return "", apperr.Validation(apperr.CodeInvalidPIN, "PIN too short.")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return "", apperr.Validation(apperr.CodeInvalidPIN, "PIN must contain only digits.")
		}
	}
	return pin, nil
}
