package maccommand

import (
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/lorawan"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/session"
)

func handleDutyCycleAns(ds *session.DeviceSession) ([]lorawan.Payload, error) {
	macCommandCounter("duty_cycle_ans").Inc()

	ds.DeletePendingMACCommand(lorawan.DutyCycleReq)

	log.WithFields(log.Fields{
		"dev_addr": ds.DevAddr,
	}).Info("maccommand: duty-cycle answer received")

	return nil, nil
}
