package device

import (
	"github.com/brocaar/lorawan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/channels"
)

// handleLinkADRReq validates and applies a LinkADRReq. The three ack bits
// are validated independently; the configuration is applied only when all
// of them are true. The reply is always queued.
func (d *Device) handleLinkADRReq(pl *lorawan.LinkADRReqPayload) {
	if pl.DataRate > 15 {
		log.Panicf("device: link-adr data-rate field exceeds 4 bits: %d", pl.DataRate)
	}
	if pl.TXPower > 15 {
		log.Panicf("device: link-adr tx-power field exceeds 4 bits: %d", pl.TXPower)
	}
	if pl.Redundancy.ChMaskCntl > 7 {
		log.Panicf("device: link-adr ch-mask-cntl field exceeds 3 bits: %d", pl.Redundancy.ChMaskCntl)
	}
	if pl.Redundancy.NbRep > 15 {
		log.Panicf("device: link-adr nb-trans field exceeds 4 bits: %d", pl.Redundancy.NbRep)
	}

	chMask := pl.ChMask
	channelMaskAck, dataRateAck, powerAck := true, true, true

	switch pl.Redundancy.ChMaskCntl {
	case 0:
		// Every bit set in the mask must address an existing channel.
		for i := 0; i < channels.MaxChannels; i++ {
			if chMask[i] && !d.plan.HasChannel(i) {
				log.WithFields(log.Fields{
					"dev_addr": d.devAddr,
					"channel":  i,
				}).Warning("device: channel mask addresses a missing channel")
				channelMaskAck = false
				break
			}
		}
	case 6:
		// All channels on, independently of the mask field value.
		chMask = lorawan.ChMask{}
		for i := 0; i < channels.MaxChannels; i++ {
			if d.plan.HasChannel(i) {
				chMask[i] = true
			}
		}
	default:
		log.WithFields(log.Fields{
			"dev_addr":     d.devAddr,
			"ch_mask_cntl": pl.Redundancy.ChMaskCntl,
		}).Warning("device: invalid channel mask cntl field")
		channelMaskAck = false
	}

	if chMask == (lorawan.ChMask{}) {
		log.WithFields(log.Fields{
			"dev_addr": d.devAddr,
		}).Warning("device: channel mask disables all channels")
		channelMaskAck = false
	}

	if !d.adr {
		// ADR disabled: only the channel mask is considered and only its
		// ack bit may report success.
		if channelMaskAck {
			if d.maskSupportsDataRate(chMask, d.dataRate) {
				d.applyChannelMask(chMask)
			} else {
				log.WithFields(log.Fields{
					"dev_addr":  d.devAddr,
					"data_rate": d.dataRate,
				}).Warning("device: channel mask incompatible with current data-rate")
				channelMaskAck = false
			}
		}
		dataRateAck, powerAck = false, false

		d.queueLinkADRAns(channelMaskAck, dataRateAck, powerAck)
		return
	}

	if pl.DataRate != 0x0f && !d.dataRateAcceptable(chMask, int(pl.DataRate)) {
		log.WithFields(log.Fields{
			"dev_addr":  d.devAddr,
			"data_rate": pl.DataRate,
		}).Warning("device: requested data-rate not supported by masked channels")
		dataRateAck = false
	}

	if pl.TXPower != 0x0f {
		if _, err := dbmForTXPowerIndex(int(pl.TXPower)); err != nil {
			log.WithFields(log.Fields{
				"dev_addr": d.devAddr,
				"tx_power": pl.TXPower,
			}).Warning("device: requested tx-power index not supported")
			powerAck = false
		}
	}

	// All-or-nothing: apply only when every field validated.
	if channelMaskAck && dataRateAck && powerAck {
		d.applyChannelMask(chMask)
		if pl.TXPower != 0x0f {
			d.txPowerDbm, _ = dbmForTXPowerIndex(int(pl.TXPower))
		}
		if pl.DataRate != 0x0f {
			d.dataRate = int(pl.DataRate)
		}
		d.nbTrans = int(pl.Redundancy.NbRep)
		if d.nbTrans == 0 {
			d.nbTrans = 1
		}

		log.WithFields(log.Fields{
			"dev_addr":  d.devAddr,
			"data_rate": d.dataRate,
			"tx_power":  d.txPowerDbm,
			"nb_trans":  d.nbTrans,
		}).Info("device: link-adr request applied")
	}

	d.queueLinkADRAns(channelMaskAck, dataRateAck, powerAck)
}

func (d *Device) queueLinkADRAns(channelMaskAck, dataRateAck, powerAck bool) {
	d.queueMACCommand(lorawan.LinkADRAns, &lorawan.LinkADRAnsPayload{
		ChannelMaskACK: channelMaskAck,
		DataRateACK:    dataRateAck,
		PowerACK:       powerAck,
	})
}

// maskSupportsDataRate returns true when some channel enabled by the mask
// exists and accepts the given data-rate.
func (d *Device) maskSupportsDataRate(chMask lorawan.ChMask, dr int) bool {
	for i := 0; i < channels.MaxChannels; i++ {
		if !chMask[i] {
			continue
		}
		c, err := d.plan.GetChannel(i)
		if err != nil {
			continue
		}
		if dr >= c.MinDR && dr <= c.MaxDR {
			return true
		}
	}
	return false
}

// dataRateAcceptable returns true when the data-rate fits some channel
// enabled by the mask. Masked slots without a channel fall back to the
// plain data-rate validity check.
func (d *Device) dataRateAcceptable(chMask lorawan.ChMask, dr int) bool {
	for i := 0; i < channels.MaxChannels; i++ {
		if !chMask[i] {
			continue
		}
		c, err := d.plan.GetChannel(i)
		if err != nil {
			if d.validUplinkDataRate(dr) {
				return true
			}
			continue
		}
		if dr >= c.MinDR && dr <= c.MaxDR {
			return true
		}
	}
	return false
}

// applyChannelMask enables and disables the existing channels per mask.
func (d *Device) applyChannelMask(chMask lorawan.ChMask) {
	for i := 0; i < channels.MaxChannels; i++ {
		if !d.plan.HasChannel(i) {
			continue
		}
		if chMask[i] {
			if err := d.plan.EnableUplinkChannel(i); err != nil {
				log.WithError(err).Error("device: enable uplink channel error")
			}
		} else {
			if err := d.plan.DisableUplinkChannel(i); err != nil {
				log.WithError(err).Error("device: disable uplink channel error")
			}
		}
	}
}

// dbmForTXPowerIndex maps a LinkADRReq tx-power index to dBm for a
// 14 dBm max EIRP region.
func dbmForTXPowerIndex(index int) (float64, error) {
	if index < 0 || index > 6 {
		return 0, errors.Errorf("tx-power index %d not supported", index)
	}
	return float64(14 - 2*index), nil
}
