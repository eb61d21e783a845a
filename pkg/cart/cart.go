package cart

import (
	"strings"

	"mesa-order-client/pkg/apperr"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Line is one cart entry. Two lines for the same product with different
// notes are distinct.
type Line struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Notes     string
	Quantity  int
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type key struct {
	productID string
	notes     string
}

func (l Line) key() key {
	return key{productID: l.ProductID, notes: l.Notes}
}

// Store keeps cart lines in insertion order. It is not safe for concurrent
// use; the owner serializes access.
type Store struct {
	lines []Line
}

func NewStore() *Store {
	return &Store{}
}

// Add merges into the line with the same (product, notes) or appends a new one.
func (s *Store) Add(p Product, quantity int, notes string) error {
	if strings.TrimSpace(p.ID) == "" {
		return apperr.Validation(apperr.CodeInvalidProduct, "Product id is required")
	}
	if p.Price.IsNegative() {
		return apperr.Validation(apperr.CodeInvalidProduct, "Product price cannot be negative")
	}
	if quantity < 1 {
		return apperr.Validation(apperr.CodeInvalidQuantity, "Quantity must be at least 1")
	}

	if i := s.indexOf(key{productID: p.ID, notes: notes}); i >= 0 {
		s.lines[i].Quantity += quantity
		return nil
	}

	s.lines = append(s.lines, Line{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Notes:     notes,
		Quantity:  quantity,
	})
	return nil
}

// UpdateQuantity applies delta to the matching line unless the result would
// drop below 1, in which case the call is ignored. Missing lines are a no-op.
func (s *Store) UpdateQuantity(productID string, delta int, notes string) {
	i := s.indexOf(key{productID: productID, notes: notes})
	if i < 0 {
		return
	}
	next := s.lines[i].Quantity + delta
	if next < 1 {
		return
	}
	s.lines[i].Quantity = next
}

func (s *Store) Remove(productID string, notes string) {
	i := s.indexOf(key{productID: productID, notes: notes})
	if i < 0 {
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
}

func (s *Store) Clear() {
	s.lines = nil
}

// Lines returns a copy in insertion order.
func (s *Store) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) Line(productID string, notes string) (Line, bool) {
	i := s.indexOf(key{productID: productID, notes: notes})
	if i < 0 {
		return Line{}, false
	}
	return s.lines[i], true
}

func (s *Store) Len() int {
	return len(s.lines)
}

func (s *Store) Empty() bool {
	return len(s.lines) == 0
}

// Total is the exact sum of line subtotals.
func (s *Store) Total() decimal.Decimal {
	return Total(s.lines)
}

func (s *Store) TotalItems() int {
	count := 0
	for _, line := range s.lines {
		count += line.Quantity
	}
	return count
}

func (s *Store) indexOf(k key) int {
	for i, line := range s.lines {
		if line.key() == k {
			return i
		}
	}
	return -1
}

func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// FormatMoney renders an amount with two decimals for display.
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
