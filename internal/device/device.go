// Package device implements the end-device MAC: uplink construction, the
// confirmed-uplink retransmission state machine, the duty-cycle gated
// channel selection and the handling of downlink MAC commands.
package device

import (
	"math/rand"
	"time"

	"github.com/brocaar/lorawan"
	"github.com/pkg/errors"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/band"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/channels"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/energy"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/models"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/scheduler"
)

// ackTimeout is how long the device keeps its receive windows open after
// the first window opens before it gives up on an acknowledgment.
const ackTimeout = 2 * time.Second

// Payload-size validation parameters for the regional payload tables.
const (
	macVersion        = "1.0.3"
	regParamsRevision = "A"
)

// CompletionInfo reports the terminal outcome of a confirmed uplink
// sequence.
type CompletionInfo struct {
	// TransmissionsUsed is the number of attempts the sequence took.
	TransmissionsUsed int

	// Success is true when an acknowledgment was received.
	Success bool

	// FirstAttempt is the simulated time of the first transmission.
	FirstAttempt time.Duration

	// Packet is the application payload of the sequence.
	Packet []byte
}

// Options contains the per-device wiring.
type Options struct {
	DevAddr lorawan.DevAddr

	// Transmit delivers a transmitted frame to the radio medium. It is
	// called at the end of the frame's airtime.
	Transmit func(lorawan.PHYPayload, models.TXInfo)

	// OnComplete is called on terminal success or failure of a confirmed
	// uplink sequence.
	OnComplete func(CompletionInfo)
}

// retxParameters holds the retransmission state of the pending confirmed
// uplink.
type retxParameters struct {
	waitingAck   bool
	retxLeft     int
	packet       []byte
	firstAttempt time.Duration
}

// Device models a single class-A end-device.
type Device struct {
	devAddr lorawan.DevAddr

	scheduler *scheduler.Scheduler
	plan      *channels.Plan
	meter     *energy.Meter

	adr               bool
	confirmed         bool
	externallyPowered bool
	dataRate          int
	txPowerDbm        float64
	codingRate        int
	nbTrans           int
	rx1Delay          time.Duration

	fCnt    uint32
	txCount int

	// macCommands holds the MAC command replies and requests riding on
	// the next uplink.
	macCommands []lorawan.Payload

	retx      retxParameters
	nextTx    *scheduler.Event
	rxOpen    *scheduler.Event
	rxTimeout *scheduler.Event

	lastRxSNR        float64
	lastLinkMargin   uint8
	lastGatewayCount uint8

	transmit   func(lorawan.PHYPayload, models.TXInfo)
	onComplete func(CompletionInfo)
}

// New returns a Device configured from the simulation device settings,
// with the band default channels installed.
func New(conf config.Config, opts Options, sched *scheduler.Scheduler, rng *rand.Rand) (*Device, error) {
	plan, err := channels.NewPlan(rng)
	if err != nil {
		return nil, errors.Wrap(err, "new channel plan error")
	}

	d := Device{
		devAddr:           opts.DevAddr,
		scheduler:         sched,
		plan:              plan,
		meter:             energy.NewMeter(conf, sched.Now()),
		adr:               conf.Simulation.Device.ADR,
		confirmed:         conf.Simulation.Device.Confirmed,
		externallyPowered: conf.Simulation.Device.ExternallyPowered,
		dataRate:          conf.Simulation.Device.DataRate,
		txPowerDbm:        conf.Simulation.Device.TXPowerDbm,
		codingRate:        1,
		nbTrans:           conf.Simulation.Device.NbTrans,
		rx1Delay:          time.Duration(conf.NetworkServer.NetworkSettings.RX1Delay) * time.Second,
		transmit:          opts.Transmit,
		onComplete:        opts.OnComplete,
	}
	d.retx.retxLeft = d.nbTrans

	return &d, nil
}

// DevAddr returns the device address.
func (d *Device) DevAddr() lorawan.DevAddr {
	return d.devAddr
}

// DataRate returns the current uplink data-rate.
func (d *Device) DataRate() int {
	return d.dataRate
}

// TXPowerDbm returns the current uplink transmission power.
func (d *Device) TXPowerDbm() float64 {
	return d.txPowerDbm
}

// NbTrans returns the current transmission budget per confirmed uplink.
func (d *Device) NbTrans() int {
	return d.nbTrans
}

// FCnt returns the current uplink frame-counter.
func (d *Device) FCnt() uint32 {
	return d.fCnt
}

// TransmissionCount returns the total number of uplink transmissions,
// retransmissions included.
func (d *Device) TransmissionCount() int {
	return d.txCount
}

// Plan returns the device channel plan.
func (d *Device) Plan() *channels.Plan {
	return d.plan
}

// Meter returns the device energy meter.
func (d *Device) Meter() *energy.Meter {
	return d.meter
}

// buildUplink assembles an uplink frame carrying the given application
// payload and the queued MAC commands.
func (d *Device) buildUplink(payload []byte, fCnt uint32) lorawan.PHYPayload {
	mType := lorawan.UnconfirmedDataUp
	if d.confirmed {
		mType = lorawan.ConfirmedDataUp
	}
	fPort := uint8(1)

	return lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: mType,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: &lorawan.MACPayload{
			FHDR: lorawan.FHDR{
				DevAddr: d.devAddr,
				FCtrl: lorawan.FCtrl{
					ADR: d.adr,
				},
				FCnt:  fCnt,
				FOpts: append([]lorawan.Payload{}, d.macCommands...),
			},
			FPort: &fPort,
			FRMPayload: []lorawan.Payload{
				&lorawan.DataPayload{Bytes: payload},
			},
		},
	}
}

// queueMACCommand queues a MAC command for the next uplink.
func (d *Device) queueMACCommand(cid lorawan.CID, pl lorawan.MACCommandPayload) {
	d.macCommands = append(d.macCommands, &lorawan.MACCommand{
		CID:     cid,
		Payload: pl,
	})
}

// validUplinkDataRate returns true when the given data-rate maps to a
// LoRa spreading-factor / bandwidth pair usable for uplink.
func (d *Device) validUplinkDataRate(dr int) bool {
	return dr >= 0 && dr <= band.MaxLoRaDR()
}
