package maccommand

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/brocaar/lorawan"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/session"
)

// RequestNewChannel builds a NewChannelReq installing the given extra
// channel on the device. The request is stored as pending until the
// device answers it.
func RequestNewChannel(ds *session.DeviceSession, chIndex int, freq uint32, minDR, maxDR int) lorawan.Payload {
	cmd := lorawan.MACCommand{
		CID: lorawan.NewChannelReq,
		Payload: &lorawan.NewChannelReqPayload{
			ChIndex: uint8(chIndex),
			Freq:    freq,
			MinDR:   uint8(minDR),
			MaxDR:   uint8(maxDR),
		},
	}
	ds.SetPendingMACCommand(cmd)

	return &cmd
}

func handleNewChannelAns(ds *session.DeviceSession, cmd *lorawan.MACCommand) ([]lorawan.Payload, error) {
	macCommandCounter("new_channel_ans").Inc()

	pl, ok := cmd.Payload.(*lorawan.NewChannelAnsPayload)
	if !ok {
		return nil, fmt.Errorf("expected *lorawan.NewChannelAnsPayload, got %T", cmd.Payload)
	}

	pending, ok := ds.PendingMACCommand(lorawan.NewChannelReq)
	if !ok {
		return nil, fmt.Errorf("pending new-channel request expected for: %s", ds.DevAddr)
	}
	ds.DeletePendingMACCommand(lorawan.NewChannelReq)

	reqPL, ok := pending.Payload.(*lorawan.NewChannelReqPayload)
	if !ok {
		return nil, fmt.Errorf("expected *lorawan.NewChannelReqPayload, got %T", pending.Payload)
	}

	if !pl.ChannelFrequencyOK || !pl.DataRateRangeOK {
		log.WithFields(log.Fields{
			"dev_addr":             ds.DevAddr,
			"channel":              reqPL.ChIndex,
			"frequency":            reqPL.Freq,
			"channel_frequency_ok": pl.ChannelFrequencyOK,
			"data_rate_range_ok":   pl.DataRateRangeOK,
		}).Warning("maccommand: new-channel request not acknowledged")
		return nil, nil
	}

	ds.ExtraUplinkChannels[int(reqPL.ChIndex)] = reqPL.Freq

	var found bool
	for _, i := range ds.EnabledUplinkChannels {
		if i == int(reqPL.ChIndex) {
			found = true
		}
	}
	if !found {
		ds.EnabledUplinkChannels = append(ds.EnabledUplinkChannels, int(reqPL.ChIndex))
	}

	log.WithFields(log.Fields{
		"dev_addr":  ds.DevAddr,
		"channel":   reqPL.ChIndex,
		"frequency": reqPL.Freq,
		"min_dr":    reqPL.MinDR,
		"max_dr":    reqPL.MaxDR,
	}).Info("maccommand: new-channel request acknowledged")

	return nil, nil
}
