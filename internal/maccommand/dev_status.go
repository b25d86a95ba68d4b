package maccommand

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/brocaar/lorawan"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/session"
)

// RequestDevStatus builds a DevStatusReq and records the request time so
// that the next request is only issued after the configured interval.
func RequestDevStatus(ds *session.DeviceSession, now time.Duration) lorawan.Payload {
	ds.LastDevStatusRequested = now
	return &lorawan.MACCommand{
		CID: lorawan.DevStatusReq,
	}
}

func handleDevStatusAns(ds *session.DeviceSession, cmd *lorawan.MACCommand) ([]lorawan.Payload, error) {
	macCommandCounter("dev_status_ans").Inc()

	pl, ok := cmd.Payload.(*lorawan.DevStatusAnsPayload)
	if !ok {
		return nil, fmt.Errorf("expected *lorawan.DevStatusAnsPayload, got %T", cmd.Payload)
	}

	ds.LastDevStatusBattery = pl.Battery
	ds.LastDevStatusMargin = pl.Margin

	log.WithFields(log.Fields{
		"dev_addr": ds.DevAddr,
		"battery":  pl.Battery,
		"margin":   pl.Margin,
	}).Info("maccommand: dev-status answer received")

	return nil, nil
}
