package adr

import (
	"github.com/brocaar/lorawan"
)

// DeviceState tracks the search state the ADR-Lite handler keeps per device.
// Assigned always mirrors the configuration at CurrentIndex.
type DeviceState struct {
	// CurrentIndex is the configuration-space index assigned to the device.
	CurrentIndex int

	// Assigned is the configuration at CurrentIndex.
	Assigned Configuration
}

// Store keeps per-device ADR state, keyed by device address. Entries are
// created lazily and never removed during a run. It must only be accessed
// from the simulation goroutine.
type Store struct {
	devices map[lorawan.DevAddr]*DeviceState
}

// NewStore creates a new device state store.
func NewStore() *Store {
	return &Store{
		devices: make(map[lorawan.DevAddr]*DeviceState),
	}
}

// Get returns the state for the given device address.
func (s *Store) Get(devAddr lorawan.DevAddr) (*DeviceState, bool) {
	state, ok := s.devices[devAddr]
	return state, ok
}

// GetOrCreate returns the state for the given device address, creating it
// with the given index and configuration when no state exists yet.
func (s *Store) GetOrCreate(devAddr lorawan.DevAddr, index int, c Configuration) *DeviceState {
	if state, ok := s.devices[devAddr]; ok {
		return state
	}

	state := &DeviceState{
		CurrentIndex: index,
		Assigned:     c,
	}
	s.devices[devAddr] = state
	return state
}

// Count returns the number of devices with state.
func (s *Store) Count() int {
	return len(s.devices)
}

// Range calls f for every device state in the store. Iteration order is
// undefined.
func (s *Store) Range(f func(devAddr lorawan.DevAddr, state *DeviceState)) {
	for devAddr, state := range s.devices {
		f(devAddr, state)
	}
}
