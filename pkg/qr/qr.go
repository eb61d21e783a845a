// Package qr turns a decoded restaurant QR payload into a restaurant binding.
// The camera and barcode decoding live in the presentation layer.
package qr

import (
	"bytes"
	"encoding/json"
	"strings"

	"mesa-order-client/pkg/apperr"
	"mesa-order-client/pkg/session"
)

const defaultRestaurantName = "Restaurant"

type payload struct {
	RestaurantID json.RawMessage `json:"id_restaurante"`
	Name         string          `json:"nombre"`
}

func invalid() error {
	return apperr.Validation(apperr.CodeInvalidQR, "QR not recognized. Scan the restaurant's QR code.")
}

// Decode accepts the restaurant id as a JSON string or number.
func Decode(data string) (session.Restaurant, error) {
	var p payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &p); err != nil {
		return session.Restaurant{}, invalid()
	}

	id := restaurantID(p.RestaurantID)
	if id == "" {
		return session.Restaurant{}, invalid()
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = defaultRestaurantName
	}
	return session.Restaurant{ID: id, Name: name}, nil
}

func restaurantID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}
