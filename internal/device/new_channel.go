package device

import (
	"github.com/brocaar/lorawan"
	log "github.com/sirupsen/logrus"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/channels"
)

// handleNewChannelReq validates and applies a NewChannelReq. Only the
// non-default slots may be written. A zero frequency parks the slot. The
// two-bit reply is always queued.
func (d *Device) handleNewChannelReq(pl *lorawan.NewChannelReqPayload) {
	if pl.MinDR > 15 {
		log.Panicf("device: new-channel min data-rate field exceeds 4 bits: %d", pl.MinDR)
	}
	if pl.MaxDR > 15 {
		log.Panicf("device: new-channel max data-rate field exceeds 4 bits: %d", pl.MaxDR)
	}

	dataRateRangeOK := true
	channelFrequencyOK := true

	if int(pl.ChIndex) < 3 || int(pl.ChIndex) > channels.MaxChannels-1 {
		log.WithFields(log.Fields{
			"dev_addr": d.devAddr,
			"channel":  pl.ChIndex,
		}).Warning("device: invalid channel index")
		dataRateRangeOK, channelFrequencyOK = false, false
	}

	if pl.Freq != 0 && !d.plan.IsFrequencyValid(pl.Freq) {
		log.WithFields(log.Fields{
			"dev_addr": d.devAddr,
			"freq":     pl.Freq,
		}).Warning("device: invalid frequency")
		channelFrequencyOK = false
	}

	if !d.validUplinkDataRate(int(pl.MinDR)) {
		log.WithFields(log.Fields{
			"dev_addr": d.devAddr,
			"min_dr":   pl.MinDR,
		}).Warning("device: invalid min data-rate")
		dataRateRangeOK = false
	}

	if !d.validUplinkDataRate(int(pl.MaxDR)) {
		log.WithFields(log.Fields{
			"dev_addr": d.devAddr,
			"max_dr":   pl.MaxDR,
		}).Warning("device: invalid max data-rate")
		dataRateRangeOK = false
	}

	if pl.MaxDR < pl.MinDR {
		log.WithFields(log.Fields{
			"dev_addr": d.devAddr,
		}).Warning("device: max data-rate below min data-rate")
		dataRateRangeOK = false
	}

	if dataRateRangeOK && channelFrequencyOK {
		if err := d.plan.SetChannel(int(pl.ChIndex), pl.Freq, int(pl.MinDR), int(pl.MaxDR)); err != nil {
			log.WithError(err).Error("device: set channel error")
		} else {
			log.WithFields(log.Fields{
				"dev_addr": d.devAddr,
				"channel":  pl.ChIndex,
				"freq":     pl.Freq,
				"min_dr":   pl.MinDR,
				"max_dr":   pl.MaxDR,
			}).Debug("device: channel installed")
		}
	}

	d.queueMACCommand(lorawan.NewChannelAns, &lorawan.NewChannelAnsPayload{
		ChannelFrequencyOK: channelFrequencyOK,
		DataRateRangeOK:    dataRateRangeOK,
	})
}
