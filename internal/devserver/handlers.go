package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mesa-order-client/internal/middleware"
	"mesa-order-client/internal/queue"
	"mesa-order-client/pkg/backend"
	"mesa-order-client/pkg/order"
	"mesa-order-client/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Message(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}

func pinParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "pin"))
}

// ---- mobile API ----

func (s *Server) CheckSession(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, backend.NewSessionCheck(s.store.Valid(pinParam(r))))
}

func (s *Server) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req backend.OrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pin := strings.TrimSpace(req.PIN)

	placed, err := s.store.PlaceOrder(pin, req.Items)
	var orderErr *OrderError
	switch {
	case errors.Is(err, ErrUnknownTable):
		response.Message(w, http.StatusUnauthorized, "Invalid PIN or closed table.")
		return
	case errors.Is(err, ErrBillRequested):
		response.Message(w, http.StatusConflict, "The bill has already been requested for this table.")
		return
	case errors.As(err, &orderErr):
		response.Message(w, http.StatusBadRequest, orderErr.Message)
		return
	case err != nil:
		s.logger.Error("place order failed", zap.String("pin", pin), zap.Error(err))
		response.Message(w, http.StatusInternalServerError, "The order could not be saved.")
		return
	}

	s.logger.Info("order placed",
		zap.String("pin", pin),
		zap.String("orderId", placed.ID),
		zap.Int("items", len(req.Items)),
		zap.String("total", placed.Total.StringFixed(2)),
	)
	s.publish(queue.TableEvent{
		Type:         queue.EventOrderPlaced,
		PIN:          pin,
		RestaurantID: placed.RestaurantID,
		Table:        placed.Table,
		OrderID:      placed.ID,
	})
	s.realtime.notify(pin)

	response.JSON(w, http.StatusCreated, backend.OrderResponse{
		Table:   backend.FlexString(placed.Table),
		OrderID: placed.ID,
		Message: "Order received.",
	})
}

func (s *Server) RequestBill(w http.ResponseWriter, r *http.Request) {
	var req backend.BillRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pin := strings.TrimSpace(req.PIN)
	method := order.PaymentMethod(strings.TrimSpace(req.PaymentMethod))
	if !method.Valid() {
		response.Message(w, http.StatusBadRequest, "Unknown payment method.")
		return
	}

	restaurantID, err := s.store.RequestBill(pin, string(method))
	switch {
	case errors.Is(err, ErrUnknownTable):
		response.Message(w, http.StatusUnauthorized, "Invalid PIN or closed table.")
		return
	case errors.Is(err, ErrNothingToBill), errors.Is(err, ErrBillRequested):
		response.Message(w, http.StatusConflict, capitalize(err.Error())+".")
		return
	case err != nil:
		response.Message(w, http.StatusInternalServerError, "The bill could not be requested.")
		return
	}

	s.logger.Info("bill requested", zap.String("pin", pin), zap.String("method", string(method)))
	s.publish(queue.TableEvent{
		Type:         queue.EventBillRequested,
		PIN:          pin,
		RestaurantID: restaurantID,
		Method:       string(method),
	})
	s.realtime.notify(pin)
	if s.opts.InlineReceipts && s.opts.Uploader != nil {
		s.goBackground(func(ctx context.Context) {
			if _, err := s.PublishReceipt(ctx, pin); err != nil {
				s.logger.Warn("inline receipt failed", zap.String("pin", pin), zap.Error(err))
			}
		})
	}

	response.Message(w, http.StatusOK, "A waiter is on the way with your bill.")
}

func (s *Server) Tracking(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot(pinParam(r))
	response.JSON(w, http.StatusOK, snap.Ticket)
}

func (s *Server) Products(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	products, err := s.store.Menu(restaurantID)
	if err != nil {
		response.Message(w, http.StatusNotFound, "Unknown restaurant.")
		return
	}
	out := make([]backend.MenuItem, 0, len(products))
	for _, p := range products {
		out = append(out, backend.MenuItem{
			ID:          backend.FlexString(p.ID),
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Image:       p.Image,
			Category:    p.Category,
		})
	}
	response.JSON(w, http.StatusOK, out)
}

// ---- staff API ----

type openTableRequest struct {
	RestaurantID backend.FlexString `json:"restaurant_id"`
	Table        backend.FlexString `json:"mesa"`
}

func (s *Server) OpenTable(w http.ResponseWriter, r *http.Request) {
	var req openTableRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.Table.String() == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "mesa is required")
		return
	}

	staff, _ := middleware.GetStaffContext(r.Context())
	if !staff.CanManage(req.RestaurantID.String()) {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Not allowed to open tables for this restaurant")
		return
	}

	pin, err := s.store.OpenTable(req.RestaurantID.String(), req.Table.String())
	if errors.Is(err, ErrUnknownRestaurant) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}
	if err != nil {
		s.logger.Error("open table failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to open table")
		return
	}

	s.logger.Info("table opened", zap.String("pin", pin), zap.String("table", req.Table.String()))
	s.publish(queue.TableEvent{
		Type:         queue.EventTableOpened,
		PIN:          pin,
		RestaurantID: req.RestaurantID.String(),
		Table:        req.Table.String(),
	})
	response.Success(w, http.StatusCreated, map[string]any{
		"pin":           pin,
		"mesa":          req.Table.String(),
		"restaurant_id": req.RestaurantID.String(),
	})
}

func (s *Server) CloseTable(w http.ResponseWriter, r *http.Request) {
	pin := pinParam(r)
	restaurantID, err := s.store.CloseTable(pin)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}

	s.logger.Info("table closed", zap.String("pin", pin))
	s.publish(queue.TableEvent{Type: queue.EventTableClosed, PIN: pin, RestaurantID: restaurantID})
	s.realtime.notify(pin)
	response.Success(w, http.StatusOK, map[string]any{"pin": pin, "closed": true})
}

func (s *Server) MarkServed(w http.ResponseWriter, r *http.Request) {
	pin := pinParam(r)
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid item index")
		return
	}

	switch err := s.store.MarkServed(pin, index); {
	case errors.Is(err, ErrUnknownTable):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	case errors.Is(err, ErrUnknownItem):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Item not found")
		return
	case err != nil:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update item")
		return
	}

	s.realtime.notify(pin)
	response.Success(w, http.StatusOK, map[string]any{"pin": pin, "index": index, "served": true})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
