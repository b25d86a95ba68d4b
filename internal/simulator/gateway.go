package simulator

import (
	"github.com/brocaar/lorawan"
	log "github.com/sirupsen/logrus"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/models"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/scheduler"
)

// Gateway models the single network gateway: a fixed position that receives
// every uplink arriving above its sensitivity and forwards it to the
// network-server.
type Gateway struct {
	position Position
	medium   *Medium
	sched    *scheduler.Scheduler

	// forward hands a received uplink to the network-server.
	forward func(models.RXPacket) error
}

// NewGateway creates a Gateway at the given position.
func NewGateway(pos Position, medium *Medium, sched *scheduler.Scheduler) *Gateway {
	return &Gateway{
		position: pos,
		medium:   medium,
		sched:    sched,
	}
}

// Receive handles an uplink transmission arriving at the given received
// power. It returns false when the frame stays below the gateway
// sensitivity for its spreading-factor.
func (g *Gateway) Receive(phy lorawan.PHYPayload, txInfo models.TXInfo, rxPowerDbm float64) bool {
	floor, ok := gatewaySensitivity[txInfo.SpreadingFactor]
	if !ok {
		log.WithFields(log.Fields{
			"sf": txInfo.SpreadingFactor,
		}).Error("simulator: no gateway sensitivity for spreading-factor")
		return false
	}

	if rxPowerDbm < floor {
		uplinkLostCounter().Inc()
		log.WithFields(log.Fields{
			"freq":     txInfo.Frequency,
			"sf":       txInfo.SpreadingFactor,
			"rx_power": rxPowerDbm,
		}).Debug("simulator: uplink below gateway sensitivity, dropped")
		return false
	}

	uplinkReceivedCounter().Inc()

	rxPacket := models.RXPacket{
		PHYPayload: phy,
		TXInfo:     txInfo,
		RXInfo: models.RXInfo{
			RSSI:    int(rxPowerDbm),
			LoRaSNR: g.medium.SNR(rxPowerDbm),
		},
		ReceivedAt: g.sched.Now(),
	}

	if g.forward != nil {
		if err := g.forward(rxPacket); err != nil {
			log.WithError(err).Error("simulator: handle uplink error")
		}
	}

	return true
}
