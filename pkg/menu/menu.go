package menu

import (
	"strings"

	"mesa-order-client/pkg/cart"

	"github.com/shopspring/decimal"
)

const DefaultCategory = "General"

type Item struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Image       string
	Category    string
}

func (i Item) Product() cart.Product {
	return cart.Product{ID: i.ID, Name: i.Name, Price: i.Price}
}

type Section struct {
	Category string
	Items    []Item
}

// Group splits items into sections in order of first appearance. Items
// without a category land in DefaultCategory.
func Group(items []Item) []Section {
	index := make(map[string]int)
	sections := make([]Section, 0)
	for _, item := range items {
		category := strings.TrimSpace(item.Category)
		if category == "" {
			category = DefaultCategory
		}
		i, ok := index[category]
		if !ok {
			i = len(sections)
			index[category] = i
			sections = append(sections, Section{Category: category})
		}
		sections[i].Items = append(sections[i].Items, item)
	}
	return sections
}

// Search matches name or description case-insensitively.
func Search(items []Item, query string) []Item {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return items
	}
	out := make([]Item, 0)
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), query) || strings.Contains(strings.ToLower(item.Description), query) {
			out = append(out, item)
		}
	}
	return out
}
