package device

import (
	"github.com/brocaar/lorawan"
	log "github.com/sirupsen/logrus"
)

// RequestLinkCheck queues a LinkCheckReq for the next uplink.
func (d *Device) RequestLinkCheck() {
	d.queueMACCommand(lorawan.LinkCheckReq, nil)
}

// handleLinkCheckAns stores the link margin and gateway count reported by
// the network. Both are exposed for polling, the command never fails.
func (d *Device) handleLinkCheckAns(pl *lorawan.LinkCheckAnsPayload) {
	d.lastLinkMargin = pl.Margin
	d.lastGatewayCount = pl.GwCnt

	log.WithFields(log.Fields{
		"dev_addr": d.devAddr,
		"margin":   pl.Margin,
		"gw_cnt":   pl.GwCnt,
	}).Info("device: link check answered")
}

// LastLinkMargin returns the margin of the last LinkCheckAns.
func (d *Device) LastLinkMargin() uint8 {
	return d.lastLinkMargin
}

// LastGatewayCount returns the gateway count of the last LinkCheckAns.
func (d *Device) LastGatewayCount() uint8 {
	return d.lastGatewayCount
}
