package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mesa-order-client/internal/queue"
	"mesa-order-client/pkg/receipt"
	"mesa-order-client/pkg/response"

	"go.uber.org/zap"
)

func (s *Server) renderReceipt(pin string) ([]byte, error) {
	snap := s.store.Snapshot(pin)
	if !snap.Known || !snap.Ticket.Active {
		return nil, fmt.Errorf("table %s has no ticket", pin)
	}
	return receipt.Render(snap.Ticket.Domain().Ticket, receipt.Options{IssuedAt: time.Now()})
}

func (s *Server) ReceiptPDF(w http.ResponseWriter, r *http.Request) {
	pin := pinParam(r)
	pdf, err := s.renderReceipt(pin)
	if err != nil {
		response.Message(w, http.StatusNotFound, "There is no ticket for this table yet.")
		return
	}

	w.Header().Set("Content-Type", receipt.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=recibo-%s.pdf", pin))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) ReceiptURL(w http.ResponseWriter, r *http.Request) {
	url, ok := s.store.ReceiptURL(pinParam(r))
	if !ok {
		response.Message(w, http.StatusNotFound, "The receipt is not ready yet.")
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"url": url})
}

// PublishReceipt renders the table's receipt, uploads it and records the
// public URL on the table.
func (s *Server) PublishReceipt(ctx context.Context, pin string) (string, error) {
	pdf, err := s.renderReceipt(pin)
	if err != nil {
		return "", err
	}
	url, err := receipt.Publish(ctx, s.opts.Uploader, pin, pdf)
	if err != nil {
		return "", err
	}
	if err := s.store.SetReceiptURL(pin, url); err != nil {
		return "", err
	}

	s.logger.Info("receipt published", zap.String("pin", pin), zap.String("url", url))
	s.publish(queue.TableEvent{Type: queue.EventReceiptCreated, PIN: pin, URL: url})
	return url, nil
}

// HandleReceiptJob consumes bill.requested events from the receipts queue.
func (s *Server) HandleReceiptJob(ctx context.Context, body []byte) error {
	var evt queue.TableEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		// malformed messages would never succeed
		s.logger.Warn("dropping malformed receipt job", zap.Error(err))
		return nil
	}
	if evt.Type != queue.EventBillRequested || evt.PIN == "" {
		return nil
	}
	if _, ok := s.store.ReceiptURL(evt.PIN); ok {
		return nil
	}
	_, err := s.PublishReceipt(ctx, evt.PIN)
	return err
}
