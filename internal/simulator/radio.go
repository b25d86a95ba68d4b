// Package simulator wires the simulated devices, the radio medium, the
// gateway and the network-server into a runnable scenario and collects the
// per-device results.
package simulator

import (
	"math"
	"math/rand"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
)

// Antenna heights, in meters.
const (
	gatewayHeightMeters = 15.0
	deviceHeightMeters  = 1.5
)

// downlinkTXPowerDbm is the power at which the gateway transmits its RX1
// downlinks.
const downlinkTXPowerDbm = 14.0

// noiseFloorDbm is the thermal noise floor of a 125 kHz LoRa channel,
// including a 6 dB receiver noise figure.
const noiseFloorDbm = -117.0

// gatewaySensitivity holds the minimum received power per spreading-factor
// at which the gateway still demodulates an uplink.
var gatewaySensitivity = map[int]float64{
	7:  -130.0,
	8:  -132.5,
	9:  -135.0,
	10: -137.5,
	11: -140.0,
	12: -142.5,
}

// deviceSensitivity holds the minimum received power per spreading-factor
// at which an end-device still demodulates a downlink.
var deviceSensitivity = map[int]float64{
	7:  -124.0,
	8:  -127.0,
	9:  -130.0,
	10: -133.0,
	11: -135.0,
	12: -137.0,
}

// Position is a location in the simulated space, in meters.
type Position struct {
	X float64
	Y float64
	Z float64
}

// DistanceTo returns the euclidean distance to the given position.
func (p Position) DistanceTo(o Position) float64 {
	dx := p.X - o.X
	dy := p.Y - o.Y
	dz := p.Z - o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Medium implements the radio link model: log-distance path loss plus a
// uniform random extra loss drawn for every transmission.
type Medium struct {
	exponent        float64
	refDistance     float64
	refLossDB       float64
	maxRandomLossDB float64

	rng *rand.Rand
}

// NewMedium creates a Medium from the radio configuration.
func NewMedium(conf config.Config, rng *rand.Rand) *Medium {
	return &Medium{
		exponent:        conf.Radio.PathLossExponent,
		refDistance:     conf.Radio.ReferenceDistanceMeters,
		refLossDB:       conf.Radio.ReferenceLossDB,
		maxRandomLossDB: conf.Radio.MaxRandomLossDB,
		rng:             rng,
	}
}

// ReceivedPower returns the power at which a transmission from 'from' with
// the given tx-power arrives at 'to'. Every call draws a new random extra
// loss.
func (m *Medium) ReceivedPower(txPowerDbm float64, from, to Position) float64 {
	return txPowerDbm - m.pathLoss(from.DistanceTo(to))
}

// SNR returns the signal to noise ratio of a frame received at the given
// power.
func (m *Medium) SNR(rxPowerDbm float64) float64 {
	return rxPowerDbm - noiseFloorDbm
}

func (m *Medium) pathLoss(distance float64) float64 {
	if distance < m.refDistance {
		distance = m.refDistance
	}
	loss := m.refLossDB + 10*m.exponent*math.Log10(distance/m.refDistance)
	if m.maxRandomLossDB > 0 {
		loss += m.rng.Float64() * m.maxRandomLossDB
	}
	return loss
}
