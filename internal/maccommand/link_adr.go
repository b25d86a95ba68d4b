package maccommand

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/brocaar/lorawan"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/session"
)

// RequestLinkADR builds a LinkADRReq for the given parameters, with a
// channel mask covering the channels the device is known to have enabled.
// The request is stored as pending until the device answers it.
func RequestLinkADR(ds *session.DeviceSession, dr, txPowerIndex, nbTrans int) lorawan.Payload {
	var chMask lorawan.ChMask
	for _, i := range ds.EnabledUplinkChannels {
		if i < len(chMask) {
			chMask[i] = true
		}
	}

	cmd := lorawan.MACCommand{
		CID: lorawan.LinkADRReq,
		Payload: &lorawan.LinkADRReqPayload{
			DataRate: uint8(dr),
			TXPower:  uint8(txPowerIndex),
			ChMask:   chMask,
			Redundancy: lorawan.Redundancy{
				ChMaskCntl: 0,
				NbRep:      uint8(nbTrans),
			},
		},
	}
	ds.SetPendingMACCommand(cmd)

	return &cmd
}

func handleLinkADRAns(ds *session.DeviceSession, cmd *lorawan.MACCommand) ([]lorawan.Payload, error) {
	macCommandCounter("link_adr_ans").Inc()

	pl, ok := cmd.Payload.(*lorawan.LinkADRAnsPayload)
	if !ok {
		return nil, fmt.Errorf("expected *lorawan.LinkADRAnsPayload, got %T", cmd.Payload)
	}

	pending, ok := ds.PendingMACCommand(lorawan.LinkADRReq)
	if !ok {
		return nil, fmt.Errorf("pending link-adr request expected for: %s", ds.DevAddr)
	}
	ds.DeletePendingMACCommand(lorawan.LinkADRReq)

	reqPL, ok := pending.Payload.(*lorawan.LinkADRReqPayload)
	if !ok {
		return nil, fmt.Errorf("expected *lorawan.LinkADRReqPayload, got %T", pending.Payload)
	}

	if !pl.ChannelMaskACK || !pl.DataRateACK || !pl.PowerACK {
		log.WithFields(log.Fields{
			"dev_addr":         ds.DevAddr,
			"channel_mask_ack": pl.ChannelMaskACK,
			"data_rate_ack":    pl.DataRateACK,
			"power_ack":        pl.PowerACK,
		}).Warning("maccommand: link-adr request not acknowledged")
		return nil, nil
	}

	var enabled []int
	for i, on := range reqPL.ChMask {
		if on {
			enabled = append(enabled, i)
		}
	}

	ds.DR = int(reqPL.DataRate)
	ds.TxPowerIndex = int(reqPL.TXPower)
	ds.NbTrans = int(reqPL.Redundancy.NbRep)
	ds.EnabledUplinkChannels = enabled

	log.WithFields(log.Fields{
		"dev_addr":       ds.DevAddr,
		"dr":             ds.DR,
		"tx_power_index": ds.TxPowerIndex,
		"nb_trans":       ds.NbTrans,
	}).Info("maccommand: link-adr request acknowledged")

	return nil, nil
}
