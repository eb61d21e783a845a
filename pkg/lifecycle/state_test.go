package lifecycle

import (
	"reflect"
	"testing"

	"mesa-order-client/pkg/order"
)

func TestRoutesFor(t *testing.T) {
	tests := []struct {
		name   string
		pinSet bool
		status order.Status
		want   []Screen
	}{
		{"guest", false, order.StatusNone, []Screen{ScreenHome, ScreenQRScanner, ScreenMenu, ScreenCart}},
		{"guest ignores status", false, order.StatusActive, []Screen{ScreenHome, ScreenQRScanner, ScreenMenu, ScreenCart}},
		{"table without order", true, order.StatusNone, []Screen{ScreenHome, ScreenMenu, ScreenCart, ScreenOrderDetails}},
		{"order active", true, order.StatusActive, []Screen{ScreenHome, ScreenMenu, ScreenCart, ScreenOrderDetails, ScreenPayment}},
		{"awaiting payment", true, order.StatusAwaitingPayment, []Screen{ScreenHome, ScreenMenu, ScreenCart, ScreenOrderDetails}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoutesFor(tt.pinSet, tt.status)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestStateFor(t *testing.T) {
	tests := []struct {
		pinSet, scanning, bound bool
		status                  order.Status
		want                    State
	}{
		{false, false, false, order.StatusNone, StateGuest},
		{false, true, false, order.StatusNone, StateScanning},
		{false, false, true, order.StatusNone, StateBrowsing},
		{true, false, false, order.StatusNone, StateActiveTable},
		{true, false, true, order.StatusActive, StateOrderPlaced},
		{true, false, true, order.StatusAwaitingPayment, StateAwaitingPayment},
	}
	for _, tt := range tests {
		if got := stateFor(tt.pinSet, tt.scanning, tt.bound, tt.status); got != tt.want {
			t.Fatalf("stateFor(%v,%v,%v,%q): expected %s, got %s", tt.pinSet, tt.scanning, tt.bound, tt.status, tt.want, got)
		}
	}
}
