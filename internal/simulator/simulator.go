package simulator

import (
	"encoding/binary"
	"math"
	"math/rand"
	"time"

	"github.com/brocaar/lorawan"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/band"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/device"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/models"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/networkserver"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/scheduler"
)

// node couples a device with its position and its traffic statistics.
type node struct {
	dev      *device.Device
	position Position

	packetsSent     int
	packetsReceived int
	packetsAcked    int
	completions     int

	// lastCountedFCnt is the highest frame-counter counted as received, so
	// that retransmissions of the same packet count once.
	lastCountedFCnt uint32
}

// Simulator owns a single simulation run: the scheduler, the radio medium,
// the gateway, the network-server and the devices.
type Simulator struct {
	conf  config.Config
	runID uuid.UUID

	sched   *scheduler.Scheduler
	rng     *rand.Rand
	medium  *Medium
	gateway *Gateway
	ns      *networkserver.NetworkServer

	nodes map[lorawan.DevAddr]*node
	order []*node
}

// New creates a Simulator from the given configuration. The band and the
// ADR handlers must have been set up before.
func New(conf config.Config) (*Simulator, error) {
	if conf.Simulation.DeviceCount <= 0 {
		return nil, errors.New("device count must be positive")
	}
	if conf.Simulation.TrafficInterval <= 0 {
		return nil, errors.New("traffic interval must be positive")
	}
	if conf.Simulation.Duration <= 0 {
		return nil, errors.New("simulation duration must be positive")
	}

	runID, err := uuid.NewV4()
	if err != nil {
		return nil, errors.Wrap(err, "new uuid error")
	}

	s := Simulator{
		conf:  conf,
		runID: runID,
		sched: scheduler.New(),
		rng:   rand.New(rand.NewSource(conf.Simulation.Seed)),
		nodes: make(map[lorawan.DevAddr]*node),
	}
	s.medium = NewMedium(conf, s.rng)
	s.gateway = NewGateway(Position{Z: gatewayHeightMeters}, s.medium, s.sched)

	ns, err := networkserver.New(conf, s.sched, networkserver.Options{
		SendDownlink: s.sendDownlink,
	})
	if err != nil {
		return nil, errors.Wrap(err, "new network-server error")
	}
	s.ns = ns
	s.gateway.forward = ns.HandleUplink

	for i := 0; i < conf.Simulation.DeviceCount; i++ {
		if err := s.addNode(uint32(i + 1)); err != nil {
			return nil, err
		}
	}

	return &s, nil
}

// RunID returns the unique ID of the run.
func (s *Simulator) RunID() uuid.UUID {
	return s.runID
}

// Run executes the scenario until the configured duration and returns the
// collected results.
func (s *Simulator) Run() *Report {
	log.WithFields(log.Fields{
		"run_id":       s.runID,
		"algorithm_id": s.conf.NetworkServer.ADR.AlgorithmID,
		"device_count": s.conf.Simulation.DeviceCount,
		"duration":     s.conf.Simulation.Duration,
		"seed":         s.conf.Simulation.Seed,
	}).Info("simulator: simulation started")

	s.sched.RunUntil(s.conf.Simulation.Duration)

	report := s.report()

	log.WithFields(log.Fields{
		"run_id":           s.runID,
		"packets_sent":     report.TotalSent,
		"packets_received": report.TotalReceived,
		"pdr":              report.PDRPercent,
		"total_energy_j":   report.TotalEnergyJoules,
	}).Info("simulator: simulation finished")

	return report
}

// addNode creates a device at a uniformly random position within the
// configured radius around the gateway and schedules its traffic.
func (s *Simulator) addNode(id uint32) error {
	var devAddr lorawan.DevAddr
	binary.BigEndian.PutUint32(devAddr[:], id)

	radius := s.conf.Simulation.RadiusMeters * math.Sqrt(s.rng.Float64())
	theta := 2 * math.Pi * s.rng.Float64()

	n := node{
		position: Position{
			X: radius * math.Cos(theta),
			Y: radius * math.Sin(theta),
			Z: deviceHeightMeters,
		},
	}

	dev, err := device.New(s.conf, device.Options{
		DevAddr: devAddr,
		Transmit: func(phy lorawan.PHYPayload, txInfo models.TXInfo) {
			s.transmitUplink(&n, phy, txInfo)
		},
		OnComplete: func(info device.CompletionInfo) {
			n.completions++
			if info.Success {
				n.packetsAcked++
			}
		},
	}, s.sched, s.rng)
	if err != nil {
		return errors.Wrap(err, "new device error")
	}
	n.dev = dev

	s.nodes[devAddr] = &n
	s.order = append(s.order, &n)

	s.scheduleTraffic(&n)
	s.scheduleLinkChecks(&n)

	log.WithFields(log.Fields{
		"dev_addr": devAddr,
		"distance": n.position.DistanceTo(s.gateway.position),
	}).Debug("simulator: device placed")

	return nil
}

// scheduleTraffic schedules the periodic application traffic of the node.
// The first packet goes out at a random offset within one interval so the
// devices do not transmit in lockstep.
func (s *Simulator) scheduleTraffic(n *node) {
	interval := s.conf.Simulation.TrafficInterval

	var tick func()
	tick = func() {
		payload := make([]byte, s.conf.Simulation.PayloadSize)
		s.rng.Read(payload)

		n.packetsSent++
		n.dev.Send(payload)

		s.sched.ScheduleIn(interval, tick)
	}

	offset := time.Duration(s.rng.Int63n(int64(interval)))
	s.sched.ScheduleAt(offset, tick)
}

// scheduleLinkChecks queues a periodic LinkCheckReq on the next uplink of
// the node when a link-check interval is configured.
func (s *Simulator) scheduleLinkChecks(n *node) {
	interval := s.conf.Simulation.Device.LinkCheckInterval
	if interval <= 0 {
		return
	}

	var check func()
	check = func() {
		n.dev.RequestLinkCheck()
		s.sched.ScheduleIn(interval, check)
	}
	s.sched.ScheduleIn(interval, check)
}

// transmitUplink carries a device transmission over the medium to the
// gateway. Retransmissions of the same frame-counter count as one received
// packet.
func (s *Simulator) transmitUplink(n *node, phy lorawan.PHYPayload, txInfo models.TXInfo) {
	rxPower := s.medium.ReceivedPower(txInfo.TXPowerDbm, n.position, s.gateway.position)
	if !s.gateway.Receive(phy, txInfo, rxPower) {
		return
	}

	macPL, ok := phy.MACPayload.(*lorawan.MACPayload)
	if !ok {
		return
	}
	if fCnt := macPL.FHDR.FCnt; fCnt > n.lastCountedFCnt {
		n.lastCountedFCnt = fCnt
		n.packetsReceived++
	}
}

// sendDownlink carries a network-server downlink over the medium to the
// device. It reports whether the device received the frame.
func (s *Simulator) sendDownlink(devAddr lorawan.DevAddr, frame models.DownlinkFrame) bool {
	n, ok := s.nodes[devAddr]
	if !ok {
		log.WithFields(log.Fields{
			"dev_addr": devAddr,
		}).Error("simulator: downlink for unknown device")
		return false
	}

	dataRate, err := band.Band().GetDataRate(frame.DataRate)
	if err != nil {
		log.WithError(err).Error("simulator: get downlink data-rate error")
		return false
	}
	floor, ok := deviceSensitivity[dataRate.SpreadFactor]
	if !ok {
		log.WithFields(log.Fields{
			"sf": dataRate.SpreadFactor,
		}).Error("simulator: no device sensitivity for spreading-factor")
		return false
	}

	rxPower := s.medium.ReceivedPower(downlinkTXPowerDbm, s.gateway.position, n.position)
	if rxPower < floor {
		downlinkLostCounter().Inc()
		log.WithFields(log.Fields{
			"dev_addr": devAddr,
			"freq":     frame.Frequency,
			"sf":       dataRate.SpreadFactor,
			"rx_power": rxPower,
		}).Debug("simulator: downlink below device sensitivity, dropped")
		return false
	}

	downlinkReceivedCounter().Inc()

	frame.LoRaSNR = s.medium.SNR(rxPower)
	n.dev.HandleDownlink(frame)

	return true
}
