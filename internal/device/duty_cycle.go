package device

import (
	"math"

	"github.com/brocaar/lorawan"
	log "github.com/sirupsen/logrus"
)

// handleDutyCycleReq sets the device-wide duty-cycle to 1 / 2^MaxDCCycle
// and always acks.
func (d *Device) handleDutyCycleReq(pl *lorawan.DutyCycleReqPayload) {
	if pl.MaxDCycle > 15 {
		log.Panicf("device: duty-cycle field exceeds 4 bits: %d", pl.MaxDCycle)
	}

	dc := 1 / math.Pow(2, float64(pl.MaxDCycle))
	d.plan.SetAggregatedDutyCycle(dc)

	log.WithFields(log.Fields{
		"dev_addr":   d.devAddr,
		"duty_cycle": dc,
	}).Debug("device: aggregated duty-cycle set")

	d.queueMACCommand(lorawan.DutyCycleAns, nil)
}
