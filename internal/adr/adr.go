// Package adr provides the ADR decision engines together with the registry
// through which the network server resolves them by ID.
package adr

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/brocaar/lorawan"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
)

// Handler defines the ADR handler interface.
type Handler interface {
	// ID returns the ID under which the handler is registered.
	ID() string

	// Name returns a human-readable name.
	Name() string

	// Handle handles the ADR request.
	Handle(HandleRequest) (HandleResponse, error)
}

// DownlinkFailureHandler is implemented by handlers that must be informed
// when a downlink towards a device could not be delivered.
type DownlinkFailureHandler interface {
	HandleDownlinkFailure(devAddr lorawan.DevAddr)
}

// HandleRequest implements the ADR handle request.
type HandleRequest struct {
	// DevAddr of the device.
	DevAddr lorawan.DevAddr

	// ADR defines if the device has ADR enabled.
	ADR bool

	// DR holds the uplink data-rate of the device.
	DR int

	// TxPowerIndex holds the current tx-power index of the device.
	TxPowerIndex int

	// NbTrans holds the number of transmissions for the device.
	NbTrans int

	// MaxTxPowerIndex defines the max allowed tx-power index.
	MaxTxPowerIndex int

	// RequiredSNRForDR defines the min. required SNR for the current data-rate.
	RequiredSNRForDR float32

	// InstallationMargin defines the configured installation margin.
	InstallationMargin float32

	// MinDR defines the min. allowed data-rate.
	MinDR int

	// MaxDR defines the max. allowed data-rate.
	MaxDR int

	// UplinkHistory contains the meta-data of the last uplinks.
	UplinkHistory []UplinkMetaData

	// SpreadingFactor holds the spreading-factor of the received uplink.
	SpreadingFactor int

	// TXPowerDbm holds the transmission power the device used for the
	// received uplink.
	TXPowerDbm float64

	// ChannelIndex holds the uplink channel on which the uplink was
	// received.
	ChannelIndex int

	// CodingRate holds the coding-rate of the received uplink.
	CodingRate int
}

// HandleResponse implements the ADR handle response.
type HandleResponse struct {
	// DR holds the data-rate to which the device must change.
	DR int

	// TxPowerIndex holds the tx-power index to which the device must change.
	TxPowerIndex int

	// NbTrans holds the number of transmissions which the device must use
	// for each uplink.
	NbTrans int
}

// UplinkMetaData contains the meta-data of an uplink transmission.
type UplinkMetaData struct {
	FCnt         uint32
	MaxSNR       float32
	MaxRSSI      int32
	TXPowerIndex int
	GatewayCount int
}

var (
	handlers = make(map[string]Handler)

	space *Space
	store *Store
)

// Setup configures the ADR handlers from the given configuration.
func Setup(conf config.Config) error {
	handlers = make(map[string]Handler)

	space = NewSpace()
	store = NewStore()

	adrConf := conf.NetworkServer.ADR

	for _, h := range []Handler{
		&NoopHandler{},
		NewADRLiteHandler(space, store, ADRLiteOptions{
			AdjustTXPower:    adrConf.AdjustTXPower,
			AdjustChannel:    adrConf.AdjustChannel,
			AdjustCodingRate: adrConf.AdjustCodingRate,
		}),
		NewSNRHandler(SNRMax),
		NewSNRHandler(SNRAvg),
		NewSNRHandler(SNRMin),
	} {
		if err := Register(h); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"handlers": registeredIDs(),
	}).Info("adr: handlers registered")

	return nil
}

// Register registers the given ADR handler.
func Register(h Handler) error {
	id := h.ID()
	if _, ok := handlers[id]; ok {
		return fmt.Errorf("adr handler %s is already registered", id)
	}
	handlers[id] = h
	return nil
}

// GetHandler returns the ADR handler for the given ID.
func GetHandler(id string) (Handler, error) {
	h, ok := handlers[id]
	if !ok {
		return nil, fmt.Errorf("adr handler %s does not exist", id)
	}
	return h, nil
}

// DeviceStore returns the state store shared by the stateful handlers.
func DeviceStore() *Store {
	return store
}

// ConfigurationSpace returns the configuration space built during Setup.
func ConfigurationSpace() *Space {
	return space
}

func registeredIDs() []string {
	ids := make([]string, 0, len(handlers))
	for id := range handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NoopHandler implements an ADR handler which never requests any change.
type NoopHandler struct{}

// ID returns the ID.
func (h *NoopHandler) ID() string {
	return "none"
}

// Name returns the name.
func (h *NoopHandler) Name() string {
	return "No ADR adjustments"
}

// Handle returns the current device parameters unchanged.
func (h *NoopHandler) Handle(req HandleRequest) (HandleResponse, error) {
	return HandleResponse{
		DR:           req.DR,
		TxPowerIndex: req.TxPowerIndex,
		NbTrans:      req.NbTrans,
	}, nil
}
