package adr

import (
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/brocaar/lorawan"
)

// txPowerToleranceDbm is the maximum difference at which two transmission
// power values are considered equal.
const txPowerToleranceDbm = 0.1

// ADRLiteOptions configures which configuration axes the ADR-Lite handler
// compares and adjusts.
type ADRLiteOptions struct {
	// AdjustTXPower enables the transmission-power axis. When disabled the
	// requested tx-power always equals the power the device used last.
	AdjustTXPower bool

	// AdjustChannel includes the channel axis in the match between the
	// received and the assigned configuration.
	AdjustChannel bool

	// AdjustCodingRate includes the coding-rate axis in the match between
	// the received and the assigned configuration.
	AdjustCodingRate bool
}

// ADRLiteHandler implements the ADR-Lite algorithm. Instead of collecting
// an uplink history it performs a binary search over the energy-ordered
// configuration space: an uplink transmitted with the assigned configuration
// halves the search window towards cheaper entries, any other uplink halves
// it towards more robust ones.
type ADRLiteHandler struct {
	space *Space
	store *Store
	opts  ADRLiteOptions
}

// NewADRLiteHandler creates an ADR-Lite handler operating on the given
// configuration space and device state store.
func NewADRLiteHandler(space *Space, store *Store, opts ADRLiteOptions) *ADRLiteHandler {
	return &ADRLiteHandler{
		space: space,
		store: store,
		opts:  opts,
	}
}

// ID returns the ID.
func (h *ADRLiteHandler) ID() string {
	return "adr-lite"
}

// Name returns the name.
func (h *ADRLiteHandler) Name() string {
	return "ADR-Lite binary-search algorithm"
}

// Handle handles the ADR request. The device search state always advances
// to the binary-search midpoint; a LinkADRReq is only requested (through a
// response that differs from the request) when the midpoint changes the
// spreading-factor or, with the tx-power axis enabled, the tx-power.
func (h *ADRLiteHandler) Handle(req HandleRequest) (HandleResponse, error) {
	resp := HandleResponse{
		DR:           req.DR,
		TxPowerIndex: req.TxPowerIndex,
		NbTrans:      req.NbTrans,
	}

	if !req.ADR {
		return resp, nil
	}

	state := h.deviceState(req.DevAddr)
	prev := state.CurrentIndex
	current := state.Assigned

	var minIndex, maxIndex int
	if h.matchesAssigned(req, current) {
		// The device transmitted with the assigned configuration, so the
		// link sustains it. Search the cheaper half.
		minIndex, maxIndex = 0, prev
	} else {
		// The device transmitted with a different configuration, most
		// likely because it never received the request. Search the more
		// robust half.
		minIndex, maxIndex = prev, h.space.MaxIndex()
	}

	next := (minIndex + maxIndex) / 2
	if next < 0 {
		next = 0
	}
	if next > h.space.MaxIndex() {
		next = h.space.MaxIndex()
	}

	proposed := h.space.At(next)
	state.CurrentIndex = next
	state.Assigned = proposed

	changed := proposed.SpreadingFactor != current.SpreadingFactor
	if h.opts.AdjustTXPower {
		changed = changed || math.Abs(proposed.TXPowerDbm-current.TXPowerDbm) > txPowerToleranceDbm
	}
	if !changed {
		return resp, nil
	}

	txPowerDbm := proposed.TXPowerDbm
	if !h.opts.AdjustTXPower {
		txPowerDbm = req.TXPowerDbm
	}

	resp.DR = dataRateForSpreadingFactor(proposed.SpreadingFactor)
	resp.TxPowerIndex = txPowerIndexForDbm(txPowerDbm)
	resp.NbTrans = 1

	log.WithFields(log.Fields{
		"dev_addr":     req.DevAddr,
		"prev_index":   prev,
		"new_index":    next,
		"dr":           resp.DR,
		"tx_power_idx": resp.TxPowerIndex,
	}).Debug("adr: adr-lite selected a new configuration")

	return resp, nil
}

// HandleDownlinkFailure moves the device towards a more robust configuration
// after a downlink towards it could not be delivered. There is no uplink to
// compare against, so the binary search is bypassed.
func (h *ADRLiteHandler) HandleDownlinkFailure(devAddr lorawan.DevAddr) {
	state, ok := h.store.Get(devAddr)
	if !ok {
		return
	}

	next := (state.CurrentIndex + h.space.MaxIndex()) / 2
	if next < h.space.MaxIndex() {
		next++
	}

	log.WithFields(log.Fields{
		"dev_addr":   devAddr,
		"prev_index": state.CurrentIndex,
		"new_index":  next,
	}).Warning("adr: downlink failed, moving device to a more robust configuration")

	state.CurrentIndex = next
	state.Assigned = h.space.At(next)
}

func (h *ADRLiteHandler) deviceState(devAddr lorawan.DevAddr) *DeviceState {
	if state, ok := h.store.Get(devAddr); ok {
		return state
	}

	// New devices start at the most robust configuration.
	state := h.store.GetOrCreate(devAddr, h.space.MaxIndex(), h.space.At(h.space.MaxIndex()))

	log.WithFields(log.Fields{
		"dev_addr":     devAddr,
		"config_index": state.CurrentIndex,
		"sf":           state.Assigned.SpreadingFactor,
		"tx_power_dbm": state.Assigned.TXPowerDbm,
	}).Info("adr: device search state initialized")

	return state
}

func (h *ADRLiteHandler) matchesAssigned(req HandleRequest, assigned Configuration) bool {
	if req.SpreadingFactor != assigned.SpreadingFactor {
		return false
	}
	if h.opts.AdjustTXPower && math.Abs(req.TXPowerDbm-assigned.TXPowerDbm) >= txPowerToleranceDbm {
		return false
	}
	if h.opts.AdjustChannel && req.ChannelIndex != assigned.ChannelIndex {
		return false
	}
	if h.opts.AdjustCodingRate && req.CodingRate != assigned.CodingRate {
		return false
	}
	return true
}

// dataRateForSpreadingFactor maps a spreading-factor to its EU868 uplink
// data-rate (SF12 = DR0 .. SF7 = DR5).
func dataRateForSpreadingFactor(sf int) int {
	if sf < 7 {
		sf = 7
	}
	if sf > 12 {
		sf = 12
	}
	return 12 - sf
}

// txPowerIndexForDbm maps a transmission power to its EU868 tx-power index
// (0 = 14 dBm, in steps of 2 dB).
func txPowerIndexForDbm(dbm float64) int {
	if dbm < 2 {
		dbm = 2
	}
	if dbm > 14 {
		dbm = 14
	}
	return int((14 - dbm) / 2)
}
