package maccommand

import (
	"testing"

	"github.com/brocaar/lorawan"
	"github.com/stretchr/testify/require"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/models"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/session"
)

func TestHandle(t *testing.T) {
	t.Run("Duty-cycle answer clears the pending request", func(t *testing.T) {
		assert := require.New(t)

		var ds session.DeviceSession
		ds.SetPendingMACCommand(lorawan.MACCommand{
			CID:     lorawan.DutyCycleReq,
			Payload: &lorawan.DutyCycleReqPayload{MaxDCycle: 4},
		})

		resp, err := Handle(&ds, &lorawan.MACCommand{CID: lorawan.DutyCycleAns}, models.RXPacket{})
		assert.NoError(err)
		assert.Nil(resp)

		_, ok := ds.PendingMACCommand(lorawan.DutyCycleReq)
		assert.False(ok)
	})

	t.Run("Undefined CID", func(t *testing.T) {
		assert := require.New(t)

		var ds session.DeviceSession
		_, err := Handle(&ds, &lorawan.MACCommand{CID: lorawan.RXTimingSetupAns}, models.RXPacket{})
		assert.Error(err)
	})
}
