package device

import (
	"github.com/brocaar/lorawan"
	log "github.com/sirupsen/logrus"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/energy"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/models"
)

// HandleDownlink processes a downlink frame addressed to the device:
// acknowledgment handling first, then the enclosed MAC commands in order.
func (d *Device) HandleDownlink(frame models.DownlinkFrame) {
	now := d.scheduler.Now()
	d.lastRxSNR = frame.LoRaSNR

	macPL, ok := frame.PHYPayload.MACPayload.(*lorawan.MACPayload)
	if !ok {
		log.WithFields(log.Fields{
			"dev_addr": d.devAddr,
		}).Errorf("device: expected *lorawan.MACPayload, got %T", frame.PHYPayload.MACPayload)
		return
	}

	if d.retx.waitingAck {
		if macPL.FHDR.FCtrl.ACK {
			txs := d.nbTrans - d.retx.retxLeft
			log.WithFields(log.Fields{
				"dev_addr":      d.devAddr,
				"transmissions": txs,
			}).Debug("device: acknowledgment received, stopping retransmission procedure")
			d.complete(CompletionInfo{
				TransmissionsUsed: txs,
				Success:           true,
				FirstAttempt:      d.retx.firstAttempt,
				Packet:            d.retx.packet,
			})
			d.resetRetransmissionParameters()
		} else {
			log.WithFields(log.Fields{
				"dev_addr": d.devAddr,
			}).Error("device: downlink without ack received while waiting for one")
		}
	}

	for _, p := range macPL.FHDR.FOpts {
		cmd, ok := p.(*lorawan.MACCommand)
		if !ok {
			log.WithFields(log.Fields{
				"dev_addr": d.devAddr,
			}).Errorf("device: expected *lorawan.MACCommand, got %T", p)
			continue
		}
		d.handleMACCommand(cmd)
	}

	// Receive windows are done for this uplink.
	d.meter.SetState(energy.StateSleep, now)
}

// handleMACCommand dispatches a single downlink MAC command. Unsupported
// commands are logged and skipped.
func (d *Device) handleMACCommand(cmd *lorawan.MACCommand) {
	switch cmd.CID {
	case lorawan.LinkADRReq:
		pl, ok := cmd.Payload.(*lorawan.LinkADRReqPayload)
		if !ok {
			log.Errorf("device: expected *lorawan.LinkADRReqPayload, got %T", cmd.Payload)
			return
		}
		d.handleLinkADRReq(pl)
	case lorawan.DutyCycleReq:
		pl, ok := cmd.Payload.(*lorawan.DutyCycleReqPayload)
		if !ok {
			log.Errorf("device: expected *lorawan.DutyCycleReqPayload, got %T", cmd.Payload)
			return
		}
		d.handleDutyCycleReq(pl)
	case lorawan.DevStatusReq:
		d.handleDevStatusReq()
	case lorawan.NewChannelReq:
		pl, ok := cmd.Payload.(*lorawan.NewChannelReqPayload)
		if !ok {
			log.Errorf("device: expected *lorawan.NewChannelReqPayload, got %T", cmd.Payload)
			return
		}
		d.handleNewChannelReq(pl)
	case lorawan.LinkCheckAns:
		pl, ok := cmd.Payload.(*lorawan.LinkCheckAnsPayload)
		if !ok {
			log.Errorf("device: expected *lorawan.LinkCheckAnsPayload, got %T", cmd.Payload)
			return
		}
		d.handleLinkCheckAns(pl)
	default:
		log.WithFields(log.Fields{
			"dev_addr": d.devAddr,
			"cid":      cmd.CID,
		}).Warning("device: cid not recognized or supported")
	}
}
