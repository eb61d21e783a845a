// Package receipt renders a table's tracking ticket as a PDF and publishes it
// for sharing.
package receipt

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"mesa-order-client/pkg/cart"
	"mesa-order-client/pkg/order"

	"github.com/google/uuid"
	"github.com/phpdave11/gofpdf"
)

const ContentType = "application/pdf"

type Options struct {
	// Table overrides the ticket's table label, e.g. with the id assigned
	// on the last confirmed order.
	Table    string
	Currency string
	IssuedAt time.Time
}

// Render lays the ticket out on a single A4 page. Items are listed in
// ticket order with their fulfilment state.
func Render(t *order.Ticket, opts Options) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("receipt: no ticket")
	}

	table := strings.TrimSpace(opts.Table)
	if table == "" {
		table = t.Table
	}
	restaurant := strings.TrimSpace(t.Restaurant)
	if restaurant == "" {
		restaurant = "Restaurant"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr(restaurant), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	if table != "" {
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Table %s", table)), "", 1, "C", false, 0, "")
	}
	if !opts.IssuedAt.IsZero() {
		pdf.CellFormat(0, 5, opts.IssuedAt.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	}
	if t.AwaitingPayment() {
		pdf.CellFormat(0, 5, "Bill requested", "", 1, "C", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Items", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, item := range t.Items {
		line := fmt.Sprintf("%dx %s", item.Quantity, item.Name)
		if item.Status == order.ItemFulfilled {
			line += " (served)"
		}
		pdf.CellFormat(140, 5, tr(line), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, money(item.Subtotal.StringFixed(2), opts.Currency), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(140, 6, "Total", "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, money(cart.FormatMoney(t.Total), opts.Currency), "T", 1, "R", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("receipt: render: %w", err)
	}
	return out.Bytes(), nil
}

func money(amount, currency string) string {
	if currency == "" {
		return "$" + amount
	}
	return currency + " " + amount
}

// Uploader is satisfied by *storage.ObjectStore.
type Uploader interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Publish uploads pdf under a fresh key scoped to the table PIN and returns
// the public URL.
func Publish(ctx context.Context, up Uploader, pin string, pdf []byte) (string, error) {
	if up == nil {
		return "", fmt.Errorf("receipt: publishing is not configured")
	}
	if len(pdf) == 0 {
		return "", fmt.Errorf("receipt: empty document")
	}
	url, err := up.PutObject(ctx, Key(pin), pdf, ContentType)
	if err != nil {
		return "", fmt.Errorf("receipt: publish: %w", err)
	}
	return url, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func Key(pin string) string {
	clean := strings.Trim(unsafeKeyChars.ReplaceAllString(pin, "_"), "_")
	if clean == "" {
		clean = "mesa"
	}
	return fmt.Sprintf("recibos/%s/%s.pdf", clean, uuid.NewString())
}
