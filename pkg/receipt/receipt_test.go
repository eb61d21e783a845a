package receipt

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mesa-order-client/pkg/order"

	"github.com/shopspring/decimal"
)

func sampleTicket() *order.Ticket {
	return &order.Ticket{
		Restaurant: "La Fonda de Doña Ana",
		Table:      "4",
		Status:     order.StatusAwaitingPayment,
		Total:      decimal.RequireFromString("43.50"),
		Items: []order.TicketItem{
			{Name: "Tacos", Quantity: 2, Subtotal: decimal.RequireFromString("25"), Status: order.ItemFulfilled},
			{Name: "Agua de jamaica", Quantity: 1, Subtotal: decimal.RequireFromString("18.5"), Status: order.ItemPending},
		},
	}
}

func TestRenderProducesPDF(t *testing.T) {
	out, err := Render(sampleTicket(), Options{Table: "12", IssuedAt: time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("expected a pdf document")
	}
}

func TestRenderRequiresTicket(t *testing.T) {
	if _, err := Render(nil, Options{}); err == nil {
		t.Fatalf("expected error for nil ticket")
	}
}

type recordingUploader struct {
	key         string
	contentType string
	err         error
}

func (u *recordingUploader) PutObject(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	u.key = key
	u.contentType = contentType
	if u.err != nil {
		return "", u.err
	}
	return "https://cdn.example.com/" + key, nil
}

func TestPublish(t *testing.T) {
	up := &recordingUploader{}
	url, err := Publish(context.Background(), up, "1234", []byte("%PDF-1.3"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !strings.HasPrefix(up.key, "recibos/1234/") || !strings.HasSuffix(up.key, ".pdf") {
		t.Fatalf("unexpected key %s", up.key)
	}
	if up.contentType != ContentType || url != "https://cdn.example.com/"+up.key {
		t.Fatalf("unexpected upload %+v -> %s", up, url)
	}

	if _, err := Publish(context.Background(), nil, "1234", []byte("x")); err == nil {
		t.Fatalf("expected error without uploader")
	}
	failing := &recordingUploader{err: errors.New("denied")}
	if _, err := Publish(context.Background(), failing, "1234", []byte("x")); err == nil {
		t.Fatalf("expected upload error")
	}
}

func TestKeySanitizesPIN(t *testing.T) {
	if k := Key("../12 34"); !strings.HasPrefix(k, "recibos/12_34/") {
		t.Fatalf("unexpected key %s", k)
	}
	if k := Key(""); !strings.HasPrefix(k, "recibos/mesa/") {
		t.Fatalf("unexpected key %s", k)
	}
}
