package networkserver

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/lorawan"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/adr"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/band"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/maccommand"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/models"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/session"
)

// ErrAbort is used to abort the flow without error
var ErrAbort = errors.New("nothing to do")

var tasks = []func(*dataContext) error{
	setContextFromDataPHYPayload,
	getDeviceSession,
	logUplinkFrame,
	setUplinkDataRate,
	setFCntUp,
	handleFOptsMACCommands,
	appendUplinkHistory,
	handleADR,
	requestNewChannels,
	requestDevStatus,
	scheduleDownlink,
}

type dataContext struct {
	ns *NetworkServer

	RXPacket            models.RXPacket
	MACPayload          *lorawan.MACPayload
	DeviceSession       *session.DeviceSession
	DataRate            int
	MACCommandResponses []lorawan.Payload
}

// HandleUplink handles an uplink data frame received by the gateway.
func (n *NetworkServer) HandleUplink(rxPacket models.RXPacket) error {
	uplinkFrameCounter(rxPacket.PHYPayload.MHDR.MType.String()).Inc()

	ctx := dataContext{
		ns:       n,
		RXPacket: rxPacket,
	}

	for _, t := range tasks {
		if err := t(&ctx); err != nil {
			if err == ErrAbort {
				return nil
			}

			return err
		}
	}

	return nil
}

func setContextFromDataPHYPayload(ctx *dataContext) error {
	macPL, ok := ctx.RXPacket.PHYPayload.MACPayload.(*lorawan.MACPayload)
	if !ok {
		return fmt.Errorf("expected *lorawan.MACPayload, got: %T", ctx.RXPacket.PHYPayload.MACPayload)
	}
	ctx.MACPayload = macPL
	return nil
}

func getDeviceSession(ctx *dataContext) error {
	ctx.DeviceSession = ctx.ns.store.GetOrCreate(ctx.MACPayload.FHDR.DevAddr)
	return nil
}

func logUplinkFrame(ctx *dataContext) error {
	log.WithFields(log.Fields{
		"dev_addr":  ctx.MACPayload.FHDR.DevAddr,
		"m_type":    ctx.RXPacket.PHYPayload.MHDR.MType,
		"f_cnt":     ctx.MACPayload.FHDR.FCnt,
		"frequency": ctx.RXPacket.TXInfo.Frequency,
		"sf":        ctx.RXPacket.TXInfo.SpreadingFactor,
		"snr":       ctx.RXPacket.RXInfo.LoRaSNR,
	}).Info("networkserver: uplink frame received")
	return nil
}

func setUplinkDataRate(ctx *dataContext) error {
	dr, err := band.DataRateIndexForSF(ctx.RXPacket.TXInfo.SpreadingFactor)
	if err != nil {
		return errors.Wrap(err, "get data-rate index error")
	}
	ctx.DataRate = dr

	// The device changed its data-rate. Possibly it also reset its
	// tx-power to max power, so the uplink history no longer describes
	// the current configuration.
	if ctx.DeviceSession.DR != dr {
		ctx.DeviceSession.TxPowerIndex = 0
		ctx.DeviceSession.UplinkHistory = nil
	}
	ctx.DeviceSession.DR = dr

	return nil
}

func setFCntUp(ctx *dataContext) error {
	ctx.DeviceSession.FCntUp = ctx.MACPayload.FHDR.FCnt
	return nil
}

func handleFOptsMACCommands(ctx *dataContext) error {
	for _, pl := range ctx.MACPayload.FHDR.FOpts {
		cmd, ok := pl.(*lorawan.MACCommand)
		if !ok {
			log.WithFields(log.Fields{
				"dev_addr": ctx.DeviceSession.DevAddr,
			}).Errorf("networkserver: expected *lorawan.MACCommand, got %T", pl)
			continue
		}

		resp, err := maccommand.Handle(ctx.DeviceSession, cmd, ctx.RXPacket)
		if err != nil {
			log.WithFields(log.Fields{
				"dev_addr": ctx.DeviceSession.DevAddr,
				"cid":      cmd.CID,
			}).Errorf("networkserver: handle mac-command error: %s", err)
			continue
		}

		ctx.MACCommandResponses = append(ctx.MACCommandResponses, resp...)
	}

	return nil
}

// appendUplinkHistory must run after the mac-commands: a LinkADRAns in the
// FOpts updates the tx-power index stored with the history item.
func appendUplinkHistory(ctx *dataContext) error {
	ctx.DeviceSession.AppendUplinkHistory(session.UplinkHistory{
		FCnt:         ctx.MACPayload.FHDR.FCnt,
		MaxSNR:       ctx.RXPacket.RXInfo.LoRaSNR,
		MaxRSSI:      int32(ctx.RXPacket.RXInfo.RSSI),
		TXPowerIndex: ctx.DeviceSession.TxPowerIndex,
		GatewayCount: 1,
	})
	return nil
}

func handleADR(ctx *dataContext) error {
	if ctx.ns.disableADR || !ctx.MACPayload.FHDR.FCtrl.ADR {
		return nil
	}

	requiredSNR, err := band.RequiredSNRForDR(ctx.DataRate)
	if err != nil {
		return errors.Wrap(err, "get required snr error")
	}

	req := adr.HandleRequest{
		DevAddr:            ctx.DeviceSession.DevAddr,
		ADR:                ctx.MACPayload.FHDR.FCtrl.ADR,
		DR:                 ctx.DataRate,
		TxPowerIndex:       ctx.DeviceSession.TxPowerIndex,
		NbTrans:            ctx.DeviceSession.NbTrans,
		MaxTxPowerIndex:    band.MaxTXPowerIndex(),
		RequiredSNRForDR:   float32(requiredSNR),
		InstallationMargin: float32(ctx.ns.installationMargin),
		MinDR:              0,
		MaxDR:              band.MaxLoRaDR(),
		SpreadingFactor:    ctx.RXPacket.TXInfo.SpreadingFactor,
		TXPowerDbm:         ctx.RXPacket.TXInfo.TXPowerDbm,
		ChannelIndex:       ctx.RXPacket.TXInfo.ChannelIndex,
		CodingRate:         ctx.RXPacket.TXInfo.CodingRate,
	}

	for _, h := range ctx.DeviceSession.UplinkHistory {
		req.UplinkHistory = append(req.UplinkHistory, adr.UplinkMetaData{
			FCnt:         h.FCnt,
			MaxSNR:       float32(h.MaxSNR),
			MaxRSSI:      h.MaxRSSI,
			TXPowerIndex: h.TXPowerIndex,
			GatewayCount: h.GatewayCount,
		})
	}

	resp, err := ctx.ns.handler.Handle(req)
	if err != nil {
		return errors.Wrap(err, "handle adr error")
	}

	if resp.DR == req.DR && resp.TxPowerIndex == req.TxPowerIndex && resp.NbTrans == req.NbTrans {
		return nil
	}

	adrRequestCounter().Inc()

	log.WithFields(log.Fields{
		"dev_addr":       ctx.DeviceSession.DevAddr,
		"dr":             resp.DR,
		"tx_power_index": resp.TxPowerIndex,
		"nb_trans":       resp.NbTrans,
	}).Info("networkserver: adr request queued")

	ctx.MACCommandResponses = append(ctx.MACCommandResponses,
		maccommand.RequestLinkADR(ctx.DeviceSession, resp.DR, resp.TxPowerIndex, resp.NbTrans))

	return nil
}

// requestNewChannels pushes at most one extra channel per downlink and
// keeps re-issuing the request until the device acknowledges it.
func requestNewChannels(ctx *dataContext) error {
	for _, ec := range ctx.ns.extraChannels {
		if f, ok := ctx.DeviceSession.ExtraUplinkChannels[ec.index]; ok && f == ec.frequency {
			continue
		}

		ctx.MACCommandResponses = append(ctx.MACCommandResponses,
			maccommand.RequestNewChannel(ctx.DeviceSession, ec.index, ec.frequency, ec.minDR, ec.maxDR))
		return nil
	}

	return nil
}

func requestDevStatus(ctx *dataContext) error {
	interval := ctx.ns.devStatusReqInterval
	if interval == 0 {
		return nil
	}

	if ctx.RXPacket.ReceivedAt-ctx.DeviceSession.LastDevStatusRequested < interval {
		return nil
	}

	ctx.MACCommandResponses = append(ctx.MACCommandResponses,
		maccommand.RequestDevStatus(ctx.DeviceSession, ctx.RXPacket.ReceivedAt))

	return nil
}

func scheduleDownlink(ctx *dataContext) error {
	ack := ctx.RXPacket.PHYPayload.MHDR.MType == lorawan.ConfirmedDataUp
	if !ack && len(ctx.MACCommandResponses) == 0 {
		return ErrAbort
	}

	fCnt := ctx.DeviceSession.FCntDown
	ctx.DeviceSession.FCntDown++

	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: lorawan.UnconfirmedDataDown,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: &lorawan.MACPayload{
			FHDR: lorawan.FHDR{
				DevAddr: ctx.DeviceSession.DevAddr,
				FCtrl: lorawan.FCtrl{
					ADR: true,
					ACK: ack,
				},
				FCnt:  fCnt,
				FOpts: ctx.MACCommandResponses,
			},
		},
	}

	freq, err := band.Band().GetRX1FrequencyForUplinkFrequency(ctx.RXPacket.TXInfo.Frequency)
	if err != nil {
		return errors.Wrap(err, "get rx1 frequency error")
	}

	dr, err := band.Band().GetRX1DataRateIndex(ctx.DataRate, 0)
	if err != nil {
		return errors.Wrap(err, "get rx1 data-rate error")
	}

	frame := models.DownlinkFrame{
		PHYPayload: phy,
		Frequency:  freq,
		DataRate:   dr,
	}

	ns := ctx.ns
	devAddr := ctx.DeviceSession.DevAddr

	ns.sched.ScheduleIn(ns.rx1Delay, func() {
		downlinkFrameCounter().Inc()

		if ns.sendDownlink(devAddr, frame) {
			return
		}

		downlinkFrameLostCounter().Inc()
		log.WithFields(log.Fields{
			"dev_addr": devAddr,
			"f_cnt":    fCnt,
		}).Warning("networkserver: downlink frame lost")

		if ns.failureHandler != nil {
			ns.failureHandler.HandleDownlinkFailure(devAddr)
		}
	})

	log.WithFields(log.Fields{
		"dev_addr":     devAddr,
		"f_cnt":        fCnt,
		"ack":          ack,
		"mac_commands": len(ctx.MACCommandResponses),
	}).Info("networkserver: downlink frame scheduled")

	return nil
}
