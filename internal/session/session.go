// Package session implements the in-memory store for the network-server
// side device state.
package session

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/brocaar/lorawan"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/band"
)

// DeviceSession holds the network-server state of a single device.
type DeviceSession struct {
	DevAddr lorawan.DevAddr

	// DR holds the data-rate of the last received uplink.
	DR int

	// TxPowerIndex holds the tx-power index the device acknowledged last.
	TxPowerIndex int

	// NbTrans holds the transmission redundancy the device acknowledged
	// last.
	NbTrans int

	// EnabledUplinkChannels holds the channel indices the device is known
	// to have enabled.
	EnabledUplinkChannels []int

	// ExtraUplinkChannels holds the non-default channels installed on the
	// device through NewChannelReq (channel index to frequency).
	ExtraUplinkChannels map[int]uint32

	FCntUp   uint32
	FCntDown uint32

	UplinkHistory []UplinkHistory

	// LastDevStatusRequested holds the simulated time at which the last
	// DevStatusReq was sent to the device.
	LastDevStatusRequested time.Duration
	LastDevStatusBattery   uint8
	LastDevStatusMargin    int8

	pendingMACCommands map[lorawan.CID]lorawan.MACCommand
}

// AppendUplinkHistory appends an uplink history item and makes sure the
// list never exceeds UplinkHistorySize. Re-transmissions (same FCnt as
// the last item) are ignored.
func (s *DeviceSession) AppendUplinkHistory(up UplinkHistory) {
	if count := len(s.UplinkHistory); count > 0 {
		if s.UplinkHistory[count-1].FCnt == up.FCnt {
			return
		}
	}

	s.UplinkHistory = append(s.UplinkHistory, up)
	if count := len(s.UplinkHistory); count > UplinkHistorySize {
		s.UplinkHistory = s.UplinkHistory[count-UplinkHistorySize : count]
	}
}

// SetPendingMACCommand stores the given request until its answer arrives.
// A pending request with the same CID is replaced.
func (s *DeviceSession) SetPendingMACCommand(cmd lorawan.MACCommand) {
	if s.pendingMACCommands == nil {
		s.pendingMACCommands = make(map[lorawan.CID]lorawan.MACCommand)
	}
	s.pendingMACCommands[cmd.CID] = cmd
}

// PendingMACCommand returns the pending request for the given CID.
func (s *DeviceSession) PendingMACCommand(cid lorawan.CID) (lorawan.MACCommand, bool) {
	cmd, ok := s.pendingMACCommands[cid]
	return cmd, ok
}

// DeletePendingMACCommand removes the pending request for the given CID.
func (s *DeviceSession) DeletePendingMACCommand(cid lorawan.CID) {
	delete(s.pendingMACCommands, cid)
}

// Store holds the device-sessions of a simulation run.
type Store struct {
	sessions map[lorawan.DevAddr]*DeviceSession
}

// NewStore creates a new device-session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[lorawan.DevAddr]*DeviceSession),
	}
}

// Get returns the device-session for the given DevAddr.
func (st *Store) Get(devAddr lorawan.DevAddr) (*DeviceSession, error) {
	ds, ok := st.sessions[devAddr]
	if !ok {
		return nil, ErrDoesNotExist
	}
	return ds, nil
}

// GetOrCreate returns the device-session for the given DevAddr, creating
// it with the band default channels on first contact.
func (st *Store) GetOrCreate(devAddr lorawan.DevAddr) *DeviceSession {
	if ds, ok := st.sessions[devAddr]; ok {
		return ds
	}

	ds := &DeviceSession{
		DevAddr:               devAddr,
		NbTrans:               1,
		EnabledUplinkChannels: band.Band().GetStandardUplinkChannelIndices(),
		ExtraUplinkChannels:   make(map[int]uint32),
		pendingMACCommands:    make(map[lorawan.CID]lorawan.MACCommand),
	}
	st.sessions[devAddr] = ds

	log.WithFields(log.Fields{
		"dev_addr": devAddr,
	}).Info("session: device-session created")

	return ds
}

// Count returns the number of stored device-sessions.
func (st *Store) Count() int {
	return len(st.sessions)
}

// Range calls f for every stored device-session.
func (st *Store) Range(f func(ds *DeviceSession)) {
	for _, ds := range st.sessions {
		f(ds)
	}
}
