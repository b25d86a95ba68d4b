package device

import (
	"math"

	"github.com/brocaar/lorawan"
	log "github.com/sirupsen/logrus"
)

// handleDevStatusReq queues a DevStatusAns carrying the battery level and
// the SNR of the last received downlink.
func (d *Device) handleDevStatusReq() {
	battery := uint8(255) // could not measure
	if d.externallyPowered {
		battery = 0
	} else if d.meter.Enabled() {
		// Map the remaining fraction to the 1-254 range.
		battery = uint8(d.meter.BatteryFraction(d.scheduler.Now())*253 + 1.5)
	}

	snr := math.Round(d.lastRxSNR)
	if snr < -32 {
		snr = -32
	}
	if snr > 31 {
		snr = 31
	}

	log.WithFields(log.Fields{
		"dev_addr": d.devAddr,
		"battery":  battery,
		"margin":   int8(snr),
	}).Debug("device: dev-status answered")

	d.queueMACCommand(lorawan.DevStatusAns, &lorawan.DevStatusAnsPayload{
		Battery: battery,
		Margin:  int8(snr),
	})
}
