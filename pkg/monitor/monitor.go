// Package monitor polls the backend while a table PIN is bound and forces a
// full reset once the backend reports the table session as ended.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"mesa-order-client/pkg/apperr"

	"go.uber.org/zap"
)

const DefaultInterval = 5 * time.Second

// Oracle answers whether a PIN is still an open table session. A non-nil
// error means the question could not be answered, not that the session is
// invalid.
type Oracle interface {
	CheckSession(ctx context.Context, pin string) (bool, error)
}

type Outcome int

const (
	// Applied means the full reset ran.
	Applied Outcome = iota
	// Deferred means the reset was postponed; the owner calls Recheck later.
	Deferred
	// Stale means pin is no longer the bound PIN.
	Stale
)

// Target is the owner of session and cart state. When Invalidate applies
// the reset it calls announce once, after deciding to reset and before any
// reset transition is reported, so the closed notice reaches the user first.
type Target interface {
	CurrentPIN() string
	Invalidate(pin string, announce func()) Outcome
}

type Notice struct {
	Code    apperr.Code
	Title   string
	Message string
}

func (n Notice) Err() error {
	return apperr.SessionInvalidated(n.Message)
}

var SessionClosedNotice = Notice{
	Code:    apperr.CodeSessionClosed,
	Title:   "Table closed",
	Message: "The waiter has closed the bill. Thank you for your visit!",
}

type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type Options struct {
	Interval time.Duration
	// Timeout bounds each oracle call. Defaults to Interval.
	Timeout  time.Duration
	Logger   *zap.Logger
	Notifier Notifier
}

type ticker interface {
	C() <-chan time.Time
	Reset()
	Stop()
}

type timeTicker struct {
	t        *time.Ticker
	interval time.Duration
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Reset()              { t.t.Reset(t.interval) }
func (t timeTicker) Stop()               { t.t.Stop() }

type Monitor struct {
	oracle   Oracle
	target   Target
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	notifier Notifier

	newTicker func(time.Duration) ticker

	mu      sync.Mutex
	current *run
}

type run struct {
	pin     string
	cancel  context.CancelFunc
	done    chan struct{}
	recheck chan struct{}

	// set while Target or Notifier code runs on the poll goroutine; such
	// code may stop the poll and must not wait for itself.
	inCallback atomic.Bool
}

func (r *run) stop() {
	r.cancel()
	if r.inCallback.Load() {
		return
	}
	<-r.done
}

func (r *run) exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func New(oracle Oracle, target Target, opts Options) *Monitor {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		oracle:   oracle,
		target:   target,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		notifier: opts.Notifier,
		newTicker: func(d time.Duration) ticker {
			return timeTicker{t: time.NewTicker(d), interval: d}
		},
	}
}

// Sync makes the monitor follow pin: stopped when empty, running for pin
// otherwise. Calls must be serialized by the owner.
func (m *Monitor) Sync(pin string) {
	if pin == "" {
		m.Stop()
		return
	}
	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()
	if cur != nil && cur.pin == pin && !cur.exited() {
		return
	}
	m.Start(pin)
}

// Start replaces any running poll with one for pin.
func (m *Monitor) Start(pin string) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		pin:     pin,
		cancel:  cancel,
		done:    make(chan struct{}),
		recheck: make(chan struct{}, 1),
	}

	m.mu.Lock()
	prev := m.current
	m.current = r
	m.mu.Unlock()

	if prev != nil {
		prev.stop()
	}

	m.logger.Debug("session monitor started", zap.String("pin", pin), zap.Duration("interval", m.interval))
	go m.loop(ctx, r)
}

// Stop cancels the running poll and waits for it to exit, so no check starts
// after Stop returns. While a Target or Notifier callback runs it cancels
// without waiting; the loop exits as soon as the callback returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	r := m.current
	m.current = nil
	m.mu.Unlock()

	if r == nil {
		return
	}
	r.stop()
	m.logger.Debug("session monitor stopped", zap.String("pin", r.pin))
}

// Recheck asks the running poll for an immediate check. Never blocks.
func (m *Monitor) Recheck() {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()
	if r == nil {
		return
	}
	select {
	case r.recheck <- struct{}{}:
	default:
	}
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && !m.current.exited()
}

func (m *Monitor) loop(ctx context.Context, r *run) {
	defer close(r.done)

	t := m.newTicker(m.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
		case <-r.recheck:
		}
		if ctx.Err() != nil {
			return
		}

		if m.check(ctx, r) {
			return
		}
		// Ticks that came due during the check are dropped.
		t.Reset()
	}
}

// check runs one poll and reports whether the loop should exit.
func (m *Monitor) check(ctx context.Context, r *run) bool {
	pin := r.pin
	if m.target.CurrentPIN() != pin {
		return true
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
	valid, err := m.oracle.CheckSession(checkCtx, pin)
	cancel()

	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		m.logger.Warn("session check failed", zap.String("pin", pin), zap.Error(err))
		return false
	}
	if valid {
		return false
	}

	r.inCallback.Store(true)
	defer r.inCallback.Store(false)

	announce := func() {
		m.logger.Info("table session closed by backend", zap.String("pin", pin))
		if m.notifier != nil {
			m.notifier.Notify(SessionClosedNotice)
		}
	}
	switch m.target.Invalidate(pin, announce) {
	case Applied:
		return true
	case Deferred:
		m.logger.Info("session invalidation deferred", zap.String("pin", pin))
		return ctx.Err() != nil
	default:
		return true
	}
}
