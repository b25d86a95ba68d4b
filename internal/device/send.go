package device

import (
	"time"

	"github.com/brocaar/lorawan"
	log "github.com/sirupsen/logrus"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/adr"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/band"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/energy"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/models"
)

// Send hands a new application payload to the MAC. The transmission is
// deferred when the duty-cycle does not allow a transmission right now.
func (d *Device) Send(payload []byte) {
	d.send(payload, true)
}

func (d *Device) send(payload []byte, newPacket bool) {
	delay, ok := d.plan.NextTransmissionDelay(d.scheduler.Now())
	if !ok {
		log.WithFields(log.Fields{
			"dev_addr": d.devAddr,
		}).Warning("device: no channels enabled for uplink, dropping packet")
		return
	}
	if delay > 0 {
		d.postpone(delay, payload, newPacket)
		return
	}
	d.doSend(payload, newPacket)
}

// postpone defers the transmission, cancelling a previously deferred one.
// Only the most recent deferred packet survives.
func (d *Device) postpone(delay time.Duration, payload []byte, newPacket bool) {
	d.nextTx.Cancel()
	d.nextTx = d.scheduler.ScheduleIn(delay, func() {
		d.doSend(payload, newPacket)
	})

	log.WithFields(log.Fields{
		"dev_addr": d.devAddr,
		"delay":    delay,
	}).Debug("device: duty-cycle does not allow transmission, postponed")
}

// doSend runs the channel gate and transmits the packet as either a new
// uplink or a retransmission.
func (d *Device) doSend(payload []byte, newPacket bool) {
	now := d.scheduler.Now()

	chIndex, ok := d.plan.ChannelForTx(d.dataRate, now)
	if !ok {
		if !newPacket && d.retx.retxLeft <= 0 {
			log.WithFields(log.Fields{
				"dev_addr": d.devAddr,
			}).Info("device: transmission budget exhausted, packet not transmitted")
			return
		}
		delay, ok := d.plan.NextTransmissionDelay(now)
		if !ok || delay <= 0 {
			log.WithFields(log.Fields{
				"dev_addr":  d.devAddr,
				"data_rate": d.dataRate,
			}).Warning("device: no channel accepts the current data-rate, dropping packet")
			return
		}
		d.postpone(delay, payload, newPacket)
		return
	}

	if newPacket {
		d.sendNew(payload, chIndex)
		return
	}
	d.retransmit(chIndex)
}

// sendNew transmits a fresh application packet. A still outstanding
// confirmed uplink is completed as a failure first: new application data
// takes priority over retransmissions.
func (d *Device) sendNew(payload []byte, chIndex int) {
	now := d.scheduler.Now()
	d.fCnt++

	if d.retx.waitingAck {
		txs := d.nbTrans - d.retx.retxLeft
		log.WithFields(log.Fields{
			"dev_addr":      d.devAddr,
			"transmissions": txs,
		}).Debug("device: new packet supersedes pending confirmed uplink")
		d.complete(CompletionInfo{
			TransmissionsUsed: txs,
			Success:           false,
			FirstAttempt:      d.retx.firstAttempt,
			Packet:            d.retx.packet,
		})
	}
	d.resetRetransmissionParameters()

	if maxSize, err := band.Band().GetMaxPayloadSizeForDataRateIndex(macVersion, regParamsRevision, d.dataRate); err == nil {
		if len(payload) > maxSize.N {
			log.WithFields(log.Fields{
				"dev_addr":     d.devAddr,
				"data_rate":    d.dataRate,
				"payload_size": len(payload),
				"max_size":     maxSize.N,
			}).Warning("device: payload exceeds max size for data-rate, transmission canceled")
			return
		}
	}

	phy := d.buildUplink(payload, d.fCnt)
	d.macCommands = nil

	if d.confirmed {
		d.retx.packet = payload
		d.retx.waitingAck = true
		d.retx.firstAttempt = now
		d.retx.retxLeft = d.nbTrans - 1
	}

	d.transmitFrame(phy, chIndex)
}

// retransmit transmits the pending confirmed packet again. The frame
// counter and ADR bit stay fixed for the life of the sequence, queued MAC
// commands ride along.
func (d *Device) retransmit(chIndex int) {
	if !d.retx.waitingAck {
		return
	}
	d.retx.retxLeft--

	log.WithFields(log.Fields{
		"dev_addr":  d.devAddr,
		"retx_left": d.retx.retxLeft,
	}).Debug("device: retransmitting pending confirmed uplink")

	d.transmitFrame(d.buildUplink(d.retx.packet, d.fCnt), chIndex)
}

// transmitFrame puts the frame on the air: it accounts the duty-cycle
// and energy cost, delivers the frame to the radio at the end of its
// airtime and opens the receive windows.
func (d *Device) transmitFrame(phy lorawan.PHYPayload, chIndex int) {
	now := d.scheduler.Now()

	ch, err := d.plan.GetChannel(chIndex)
	if err != nil {
		log.WithError(err).Error("device: get channel error")
		return
	}
	dr, err := band.Band().GetDataRate(d.dataRate)
	if err != nil {
		log.WithError(err).Error("device: get data-rate error")
		return
	}

	airtime := adr.TimeOnAir(dr.SpreadFactor, d.codingRate, d.frameSize(phy))
	if err := d.plan.RecordTransmission(chIndex, now, airtime); err != nil {
		log.WithError(err).Error("device: record transmission error")
	}

	txInfo := models.TXInfo{
		Frequency:       ch.Frequency,
		ChannelIndex:    chIndex,
		SpreadingFactor: dr.SpreadFactor,
		CodingRate:      d.codingRate,
		TXPowerDbm:      d.txPowerDbm,
		Airtime:         airtime,
	}

	d.txCount++
	d.meter.SetState(energy.StateTX, now)

	log.WithFields(log.Fields{
		"dev_addr": d.devAddr,
		"fcnt":     phy.MACPayload.(*lorawan.MACPayload).FHDR.FCnt,
		"freq":     ch.Frequency,
		"sf":       dr.SpreadFactor,
		"power":    d.txPowerDbm,
		"airtime":  airtime,
	}).Debug("device: uplink transmission started")

	d.rxOpen.Cancel()
	d.rxTimeout.Cancel()

	txEnd := now + airtime
	d.scheduler.ScheduleAt(txEnd, func() {
		d.meter.SetState(energy.StateStandby, d.scheduler.Now())
		if d.transmit != nil {
			d.transmit(phy, txInfo)
		}
	})
	d.rxOpen = d.scheduler.ScheduleAt(txEnd+d.rx1Delay, func() {
		d.meter.SetState(energy.StateRX, d.scheduler.Now())
	})
	d.rxTimeout = d.scheduler.ScheduleAt(txEnd+d.rx1Delay+ackTimeout, d.onRXWindowsClosed)
}

// onRXWindowsClosed fires when the receive windows closed without an
// acknowledgment. It retransmits while budget is left, otherwise the
// sequence completes as a failure.
func (d *Device) onRXWindowsClosed() {
	d.meter.SetState(energy.StateSleep, d.scheduler.Now())

	if !d.retx.waitingAck {
		return
	}

	if d.retx.retxLeft > 0 {
		d.send(d.retx.packet, false)
		return
	}

	txs := d.nbTrans - d.retx.retxLeft
	log.WithFields(log.Fields{
		"dev_addr":      d.devAddr,
		"transmissions": txs,
	}).Info("device: retransmission budget exhausted, giving up")
	d.complete(CompletionInfo{
		TransmissionsUsed: txs,
		Success:           false,
		FirstAttempt:      d.retx.firstAttempt,
		Packet:            d.retx.packet,
	})
	d.resetRetransmissionParameters()
}

// resetRetransmissionParameters returns the retransmission state to its
// defaults and cancels a scheduled transmission, if any.
func (d *Device) resetRetransmissionParameters() {
	d.retx.waitingAck = false
	d.retx.retxLeft = d.nbTrans
	d.retx.packet = nil
	d.retx.firstAttempt = 0
	d.nextTx.Cancel()
}

func (d *Device) complete(info CompletionInfo) {
	if d.onComplete != nil {
		d.onComplete(info)
	}
}

// frameSize returns the size of the frame as it would appear on the air.
func (d *Device) frameSize(phy lorawan.PHYPayload) int {
	b, err := phy.MarshalBinary()
	if err != nil {
		log.WithError(err).Error("device: marshal frame error")
		// MHDR + FHDR + FPort + MIC overhead.
		size := 13
		if macPL, ok := phy.MACPayload.(*lorawan.MACPayload); ok && len(macPL.FRMPayload) == 1 {
			if data, ok := macPL.FRMPayload[0].(*lorawan.DataPayload); ok {
				size += len(data.Bytes)
			}
		}
		return size
	}
	return len(b)
}
