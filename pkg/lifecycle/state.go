package lifecycle

import "mesa-order-client/pkg/order"

type State int

const (
	StateGuest State = iota
	StateScanning
	StateBrowsing
	StateActiveTable
	StateOrderPlaced
	StateAwaitingPayment
	// StateClosed is only reported to listeners while a full reset runs; the
	// controller always settles in StateGuest afterwards.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateGuest:
		return "guest"
	case StateScanning:
		return "scanning"
	case StateBrowsing:
		return "browsing"
	case StateActiveTable:
		return "active-table"
	case StateOrderPlaced:
		return "order-placed"
	case StateAwaitingPayment:
		return "awaiting-payment"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Screen string

const (
	ScreenHome         Screen = "Home"
	ScreenQRScanner    Screen = "QRScanner"
	ScreenMenu         Screen = "Menu"
	ScreenCart         Screen = "Cart"
	ScreenOrderDetails Screen = "OrderDetails"
	ScreenPayment      Screen = "Payment"
)

// RoutesFor lists the reachable screens. It depends on nothing but whether a
// PIN is bound and the server-reported order status.
func RoutesFor(pinSet bool, status order.Status) []Screen {
	if !pinSet {
		return []Screen{ScreenHome, ScreenQRScanner, ScreenMenu, ScreenCart}
	}
	switch status {
	case order.StatusActive:
		return []Screen{ScreenHome, ScreenMenu, ScreenCart, ScreenOrderDetails, ScreenPayment}
	default:
		return []Screen{ScreenHome, ScreenMenu, ScreenCart, ScreenOrderDetails}
	}
}

func CanVisitFor(pinSet bool, status order.Status, screen Screen) bool {
	for _, s := range RoutesFor(pinSet, status) {
		if s == screen {
			return true
		}
	}
	return false
}

func stateFor(pinSet, scanning, restaurantBound bool, status order.Status) State {
	if !pinSet {
		switch {
		case scanning:
			return StateScanning
		case restaurantBound:
			return StateBrowsing
		default:
			return StateGuest
		}
	}
	switch status {
	case order.StatusActive:
		return StateOrderPlaced
	case order.StatusAwaitingPayment, order.StatusClosed:
		return StateAwaitingPayment
	default:
		return StateActiveTable
	}
}
