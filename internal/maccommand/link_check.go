package maccommand

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/brocaar/lorawan"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/models"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/session"
)

func handleLinkCheckReq(ds *session.DeviceSession, rxPacket models.RXPacket) ([]lorawan.Payload, error) {
	macCommandCounter("link_check_req").Inc()

	requiredSNR, ok := config.SpreadFactorToRequiredSNRTable[rxPacket.TXInfo.SpreadingFactor]
	if !ok {
		return nil, fmt.Errorf("sf %d not in sf to required snr table", rxPacket.TXInfo.SpreadingFactor)
	}

	margin := rxPacket.RXInfo.LoRaSNR - requiredSNR
	if margin < 0 {
		margin = 0
	}

	log.WithFields(log.Fields{
		"dev_addr": ds.DevAddr,
		"margin":   margin,
	}).Info("maccommand: link-check request answered")

	return []lorawan.Payload{
		&lorawan.MACCommand{
			CID: lorawan.LinkCheckAns,
			Payload: &lorawan.LinkCheckAnsPayload{
				Margin: uint8(margin),
				GwCnt:  1,
			},
		},
	}, nil
}
