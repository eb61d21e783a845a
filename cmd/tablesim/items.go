package main

import (
	"fmt"
	"strconv"
	"strings"
)

type pick struct {
	ProductID string
	Quantity  int
	Notes     string
}

// parseItems reads "id[xqty][:notes]" entries separated by commas.
func parseItems(raw string) ([]pick, error) {
	var out []pick
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		head, notes, _ := strings.Cut(entry, ":")
		id, qtyText, hasQty := strings.Cut(head, "x")
		qty := 1
		if hasQty {
			n, err := strconv.Atoi(strings.TrimSpace(qtyText))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid quantity in %q", entry)
			}
			qty = n
		}
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("missing product id in %q", entry)
		}
		out = append(out, pick{ProductID: id, Quantity: qty, Notes: strings.TrimSpace(notes)})
	}
	return out, nil
}
