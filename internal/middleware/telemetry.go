package middleware

import (
	"bufio"
	"fmt"
	"math"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const latencyWindowSize = 200

// recorder captures status and size. It passes Hijack through so the ticket
// websocket can upgrade behind the middleware.
type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(data)
	r.bytes += n
	return n, err
}

func (r *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (r *recorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type latencyWindow struct {
	samples []int64
	index   int
}

func (w *latencyWindow) add(value int64, max int) {
	if len(w.samples) < max {
		w.samples = append(w.samples, value)
		return
	}
	w.samples[w.index] = value
	w.index = (w.index + 1) % max
}

// Latencies keeps a rolling window of request durations per route.
type Latencies struct {
	mu     sync.Mutex
	window int
	routes map[string]*latencyWindow
}

func NewLatencies(window int) *Latencies {
	if window <= 0 {
		window = latencyWindowSize
	}
	return &Latencies{window: window, routes: make(map[string]*latencyWindow)}
}

// Record adds a sample and returns the route's p50 and p95.
func (a *Latencies) Record(route string, ms int64) (int64, int64) {
	a.mu.Lock()
	win, ok := a.routes[route]
	if !ok {
		win = &latencyWindow{}
		a.routes[route] = win
	}
	win.add(ms, a.window)
	values := append([]int64(nil), win.samples...)
	a.mu.Unlock()

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return percentile(values, 0.5), percentile(values, 0.95)
}

func percentile(values []int64, p float64) int64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}

// Telemetry logs one line per request with the chi route pattern and the
// route's rolling latency percentiles.
func Telemetry(logger *zap.Logger, latencies *Latencies) func(http.Handler) http.Handler {
	if latencies == nil {
		latencies = NewLatencies(latencyWindowSize)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &recorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			if logger == nil {
				return
			}

			duration := time.Since(start)
			routePattern := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				routePattern = rc.RoutePattern()
			}
			key := r.Method + " " + routePattern
			if routePattern == "" {
				key = r.Method + " " + r.URL.Path
			}
			p50, p95 := latencies.Record(key, duration.Milliseconds())
			logger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("routePattern", routePattern),
				zap.String("requestId", readRequestID(r)),
				zap.Int("status", status),
				zap.Int("bytes", rec.bytes),
				zap.Int64("duration_ms", duration.Milliseconds()),
				zap.Int64("p50_ms", p50),
				zap.Int64("p95_ms", p95),
				zap.Bool("error", status >= 500),
			)
		})
	}
}
