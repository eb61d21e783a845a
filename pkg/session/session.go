// Package session holds the binding between this device and a restaurant
// table: the scanned restaurant, the table PIN and the table assigned by the
// backend once an order is confirmed.
//
// The PIN is the only discriminant between guest mode (unset) and active
// table mode (set). A table id never outlives the PIN it was assigned under.
package session

import "strings"

type Restaurant struct {
	ID   string
	Name string
}

func (r Restaurant) Bound() bool {
	return strings.TrimSpace(r.ID) != ""
}

// Snapshot is an immutable copy of State.
type Snapshot struct {
	Restaurant Restaurant
	PIN        string
	TableID    string
}

func (s Snapshot) Active() bool {
	return s.PIN != ""
}

// State is not safe for concurrent use; the owner serializes access.
type State struct {
	restaurant Restaurant
	pin        string
	tableID    string
}

func New() *State {
	return &State{}
}

// Bind sets the restaurant identity. It does not imply a PIN.
func (s *State) Bind(r Restaurant) {
	s.restaurant = r
}

// SetPIN never touches the table id.
func (s *State) SetPIN(pin string) {
	s.pin = pin
}

// ClearPIN also clears the table id.
func (s *State) ClearPIN() {
	s.pin = ""
	s.tableID = ""
}

// SetTableID reports false and does nothing while no PIN is bound.
func (s *State) SetTableID(tableID string) bool {
	if s.pin == "" {
		return false
	}
	s.tableID = tableID
	return true
}

// FullReset clears PIN, table id and restaurant together. Every exit path
// goes through here.
func (s *State) FullReset() {
	s.restaurant = Restaurant{}
	s.pin = ""
	s.tableID = ""
}

func (s *State) Restaurant() Restaurant { return s.restaurant }
func (s *State) PIN() string            { return s.pin }
func (s *State) TableID() string        { return s.tableID }
func (s *State) Active() bool           { return s.pin != "" }

func (s *State) Snapshot() Snapshot {
	return Snapshot{Restaurant: s.restaurant, PIN: s.pin, TableID: s.tableID}
}
