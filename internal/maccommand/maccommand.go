// Package maccommand handles the MAC commands received from devices and
// builds the requests the network server sends back.
package maccommand

import (
	"fmt"

	"github.com/brocaar/lorawan"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/models"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/session"
)

// Handle handles a MAC command sent by a device. It returns the MAC
// commands to send back to the device, if any.
func Handle(ds *session.DeviceSession, cmd *lorawan.MACCommand, rxPacket models.RXPacket) ([]lorawan.Payload, error) {
	switch cmd.CID {
	case lorawan.LinkADRAns:
		return handleLinkADRAns(ds, cmd)
	case lorawan.LinkCheckReq:
		return handleLinkCheckReq(ds, rxPacket)
	case lorawan.DevStatusAns:
		return handleDevStatusAns(ds, cmd)
	case lorawan.NewChannelAns:
		return handleNewChannelAns(ds, cmd)
	case lorawan.DutyCycleAns:
		return handleDutyCycleAns(ds)
	default:
		return nil, fmt.Errorf("undefined CID %d", cmd.CID)
	}
}
