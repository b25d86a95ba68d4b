package maccommand

import (
	"testing"

	"github.com/brocaar/lorawan"
	"github.com/stretchr/testify/require"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/models"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/session"
)

func TestHandleLinkCheckReq(t *testing.T) {
	rx := func(sf int, snr float64) models.RXPacket {
		return models.RXPacket{
			TXInfo: models.TXInfo{SpreadingFactor: sf},
			RXInfo: models.RXInfo{LoRaSNR: snr},
		}
	}

	t.Run("Margin above the demodulation floor", func(t *testing.T) {
		assert := require.New(t)

		// SF7 demodulates down to -7.5 dB, so 5 dB leaves a 12.5 dB margin.
		var ds session.DeviceSession
		resp, err := handleLinkCheckReq(&ds, rx(7, 5))
		assert.NoError(err)
		assert.Equal([]lorawan.Payload{
			&lorawan.MACCommand{
				CID: lorawan.LinkCheckAns,
				Payload: &lorawan.LinkCheckAnsPayload{
					Margin: 12,
					GwCnt:  1,
				},
			},
		}, resp)
	})

	t.Run("Margin clamps at zero", func(t *testing.T) {
		assert := require.New(t)

		var ds session.DeviceSession
		resp, err := handleLinkCheckReq(&ds, rx(7, -20))
		assert.NoError(err)

		pl := resp[0].(*lorawan.MACCommand).Payload.(*lorawan.LinkCheckAnsPayload)
		assert.Equal(uint8(0), pl.Margin)
	})

	t.Run("Unknown spreading-factor", func(t *testing.T) {
		assert := require.New(t)

		var ds session.DeviceSession
		_, err := handleLinkCheckReq(&ds, rx(5, 5))
		assert.Error(err)
	})
}
