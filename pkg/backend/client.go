// Package backend talks to the restaurant backend's mobile API. Client
// implements monitor.Oracle and order.Gateway.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mesa-order-client/pkg/apperr"
	"mesa-order-client/pkg/menu"
	"mesa-order-client/pkg/order"

	"go.uber.org/zap"
)

const (
	DefaultTimeout = 10 * time.Second
	userAgent      = "mesa-order-client"
	maxErrorBody   = 64 << 10
)

type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *zap.Logger
}

func New(baseURL string, opts Options) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http or https, got %q", u.Scheme)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: u, http: httpClient, logger: logger}, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// CheckSession implements monitor.Oracle.
func (c *Client) CheckSession(ctx context.Context, pin string) (bool, error) {
	var payload SessionCheck
	status, err := c.do(ctx, http.MethodGet, "/api/movil/verificar-sesion/"+url.PathEscape(pin), nil, &payload)
	if err != nil {
		return false, err
	}
	if status < 200 || status >= 300 {
		return false, fmt.Errorf("verificar-sesion: unexpected status %d", status)
	}
	if payload.Valid == nil {
		return false, fmt.Errorf("verificar-sesion: response has no valida field")
	}
	return *payload.Valid, nil
}

func (c *Client) SubmitOrder(ctx context.Context, req order.Request) (order.Response, error) {
	var payload OrderResponse
	status, err := c.do(ctx, http.MethodPost, "/api/movil/pedido", NewOrderRequest(req), &payload)
	if err != nil {
		return order.Response{}, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return order.Response{Unauthorized: true, Message: payload.Message}, nil
	case status >= 200 && status < 300:
		return order.Response{OK: true, Table: payload.Table.String(), Message: payload.Message}, nil
	default:
		return order.Response{Message: payload.Message}, nil
	}
}

func (c *Client) RequestBill(ctx context.Context, req order.BillRequest) (order.BillResponse, error) {
	var payload MessageResponse
	body := BillRequest{PIN: req.PIN, PaymentMethod: string(req.PaymentMethod)}
	status, err := c.do(ctx, http.MethodPost, "/api/movil/cuenta", body, &payload)
	if err != nil {
		return order.BillResponse{}, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return order.BillResponse{Unauthorized: true, Message: payload.Message}, nil
	case status >= 200 && status < 300:
		return order.BillResponse{OK: true, Message: payload.Message}, nil
	default:
		return order.BillResponse{Message: payload.Message}, nil
	}
}

func (c *Client) FetchTicket(ctx context.Context, pin string) (order.TicketResponse, error) {
	var payload struct {
		TicketResponse
		Message string `json:"message,omitempty"`
	}
	status, err := c.do(ctx, http.MethodGet, "/api/movil/seguimiento/"+url.PathEscape(pin), nil, &payload)
	if err != nil {
		return order.TicketResponse{}, err
	}
	if status < 200 || status >= 300 {
		message := strings.TrimSpace(payload.Message)
		if message == "" {
			message = "The order could not be loaded."
		}
		return order.TicketResponse{}, apperr.Rejection(apperr.CodeTicketFailed, message)
	}
	return payload.TicketResponse.Domain(), nil
}

func (c *Client) FetchMenu(ctx context.Context, restaurantID string) ([]menu.Item, error) {
	var payload []MenuItem
	path := "/api/movil/productos?restaurant_id=" + url.QueryEscape(restaurantID)
	status, err := c.do(ctx, http.MethodGet, path, nil, &payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("productos: unexpected status %d", status)
	}
	items := make([]menu.Item, 0, len(payload))
	for _, it := range payload {
		items = append(items, it.Domain())
	}
	return items, nil
}

// do sends a JSON request and decodes the JSON body into out whatever the
// status. Error bodies that are not JSON are ignored.
func (c *Client) do(ctx context.Context, method, path string, in any, out any) (int, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return 0, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil && err != io.EOF {
			return res.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return res.StatusCode, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	if len(bytes.TrimSpace(raw)) > 0 {
		_ = json.Unmarshal(raw, out)
	}
	c.logger.Debug("backend returned non-success status",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
	)
	return res.StatusCode, nil
}
