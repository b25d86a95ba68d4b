package device

import (
	"testing"

	"github.com/brocaar/lorawan"
	"github.com/stretchr/testify/require"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/test"
)

func dutyCycleReq(maxDCCycle uint8) lorawan.Payload {
	return &lorawan.MACCommand{
		CID: lorawan.DutyCycleReq,
		Payload: &lorawan.DutyCycleReqPayload{
			MaxDCycle: maxDCCycle,
		},
	}
}

func TestHandleDutyCycleReq(t *testing.T) {
	t.Run("Aggregated duty-cycle set", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		conf.Simulation.Device.Confirmed = false
		env := newTestDevice(t, conf)

		env.dev.HandleDownlink(downlink(false, dutyCycleReq(4)))

		assert.Equal(1.0/16, env.dev.Plan().AggregatedDutyCycle())
		assert.Equal([]lorawan.Payload{
			&lorawan.MACCommand{CID: lorawan.DutyCycleAns},
		}, env.dev.macCommands)
	})

	t.Run("Field width violation panics", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		env := newTestDevice(t, conf)

		assert.Panics(func() {
			env.dev.handleDutyCycleReq(&lorawan.DutyCycleReqPayload{MaxDCycle: 16})
		})
	})
}
