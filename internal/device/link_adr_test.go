package device

import (
	"testing"

	"github.com/brocaar/lorawan"
	"github.com/stretchr/testify/require"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/test"
)

func linkADRReq(dr, txPower uint8, chMask lorawan.ChMask, chMaskCntl, nbRep uint8) lorawan.Payload {
	return &lorawan.MACCommand{
		CID: lorawan.LinkADRReq,
		Payload: &lorawan.LinkADRReqPayload{
			DataRate: dr,
			TXPower:  txPower,
			ChMask:   chMask,
			Redundancy: lorawan.Redundancy{
				ChMaskCntl: chMaskCntl,
				NbRep:      nbRep,
			},
		},
	}
}

func linkADRAns(channelMaskAck, dataRateAck, powerAck bool) []lorawan.Payload {
	return []lorawan.Payload{
		&lorawan.MACCommand{
			CID: lorawan.LinkADRAns,
			Payload: &lorawan.LinkADRAnsPayload{
				ChannelMaskACK: channelMaskAck,
				DataRateACK:    dataRateAck,
				PowerACK:       powerAck,
			},
		},
	}
}

func TestHandleLinkADRReq(t *testing.T) {
	t.Run("Request applied", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		conf.Simulation.Device.Confirmed = false
		env := newTestDevice(t, conf)

		env.dev.HandleDownlink(downlink(false, linkADRReq(2, 2, lorawan.ChMask{true, true}, 0, 2)))

		assert.Equal(linkADRAns(true, true, true), env.dev.macCommands)
		assert.Equal(2, env.dev.DataRate())
		assert.Equal(float64(10), env.dev.TXPowerDbm())
		assert.Equal(2, env.dev.NbTrans())
		assert.Equal([]int{0, 1}, env.dev.Plan().EnabledUplinkChannelIndices())
	})

	t.Run("Data-rate and tx-power sentinels leave the values untouched", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		conf.Simulation.Device.Confirmed = false
		env := newTestDevice(t, conf)

		env.dev.HandleDownlink(downlink(false, linkADRReq(0x0f, 0x0f, lorawan.ChMask{false, true, true}, 0, 0)))

		assert.Equal(linkADRAns(true, true, true), env.dev.macCommands)
		assert.Equal(0, env.dev.DataRate())
		assert.Equal(float64(14), env.dev.TXPowerDbm())
		// NbTrans 0 is remapped to the default of 1.
		assert.Equal(1, env.dev.NbTrans())
		assert.Equal([]int{1, 2}, env.dev.Plan().EnabledUplinkChannelIndices())
	})

	t.Run("Unsupported data-rate", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		conf.Simulation.Device.Confirmed = false
		env := newTestDevice(t, conf)

		env.dev.HandleDownlink(downlink(false, linkADRReq(6, 0, lorawan.ChMask{true, true, true}, 0, 1)))

		assert.Equal(linkADRAns(true, false, true), env.dev.macCommands)
		assert.Equal(0, env.dev.DataRate())
		assert.Equal(float64(14), env.dev.TXPowerDbm())
		assert.Equal(8, env.dev.NbTrans())
	})

	t.Run("Unsupported tx-power index", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		conf.Simulation.Device.Confirmed = false
		env := newTestDevice(t, conf)

		env.dev.HandleDownlink(downlink(false, linkADRReq(0, 10, lorawan.ChMask{true, true, true}, 0, 1)))

		assert.Equal(linkADRAns(true, true, false), env.dev.macCommands)
		assert.Equal(float64(14), env.dev.TXPowerDbm())
	})

	t.Run("Mask addresses a missing channel", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		conf.Simulation.Device.Confirmed = false
		env := newTestDevice(t, conf)

		mask := lorawan.ChMask{true, true, true}
		mask[5] = true
		env.dev.HandleDownlink(downlink(false, linkADRReq(0x0f, 0x0f, mask, 0, 1)))

		assert.Equal(linkADRAns(false, true, true), env.dev.macCommands)
		assert.Equal([]int{0, 1, 2}, env.dev.Plan().EnabledUplinkChannelIndices())
	})

	t.Run("Mask disables all channels", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		conf.Simulation.Device.Confirmed = false
		env := newTestDevice(t, conf)

		env.dev.HandleDownlink(downlink(false, linkADRReq(0x0f, 0x0f, lorawan.ChMask{}, 0, 1)))

		assert.Equal(linkADRAns(false, true, true), env.dev.macCommands)
		assert.Equal([]int{0, 1, 2}, env.dev.Plan().EnabledUplinkChannelIndices())
	})

	t.Run("ChMaskCntl 6 enables all existing channels", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		conf.Simulation.Device.Confirmed = false
		env := newTestDevice(t, conf)

		assert.NoError(env.dev.Plan().SetChannel(3, 867100000, 0, 5))
		assert.NoError(env.dev.Plan().DisableUplinkChannel(0))

		env.dev.HandleDownlink(downlink(false, linkADRReq(0x0f, 0x0f, lorawan.ChMask{}, 6, 1)))

		assert.Equal(linkADRAns(true, true, true), env.dev.macCommands)
		assert.Equal([]int{0, 1, 2, 3}, env.dev.Plan().EnabledUplinkChannelIndices())
	})

	t.Run("Invalid ch-mask-cntl", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		conf.Simulation.Device.Confirmed = false
		env := newTestDevice(t, conf)

		env.dev.HandleDownlink(downlink(false, linkADRReq(0x0f, 0x0f, lorawan.ChMask{true, true, true}, 3, 1)))

		assert.Equal(linkADRAns(false, true, true), env.dev.macCommands)
	})

	t.Run("ADR disabled applies a compatible mask only", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		conf.Simulation.Device.Confirmed = false
		conf.Simulation.Device.ADR = false
		env := newTestDevice(t, conf)

		env.dev.HandleDownlink(downlink(false, linkADRReq(2, 2, lorawan.ChMask{true, true}, 0, 2)))

		assert.Equal(linkADRAns(true, false, false), env.dev.macCommands)
		assert.Equal([]int{0, 1}, env.dev.Plan().EnabledUplinkChannelIndices())
		// Data-rate, power and redundancy stay untouched.
		assert.Equal(0, env.dev.DataRate())
		assert.Equal(float64(14), env.dev.TXPowerDbm())
		assert.Equal(8, env.dev.NbTrans())
	})

	t.Run("ADR disabled rejects a mask incompatible with the data-rate", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		conf.Simulation.Device.Confirmed = false
		conf.Simulation.Device.ADR = false
		env := newTestDevice(t, conf)

		// Channel 3 does not accept the current data-rate 0.
		assert.NoError(env.dev.Plan().SetChannel(3, 867100000, 3, 5))

		mask := lorawan.ChMask{}
		mask[3] = true
		env.dev.HandleDownlink(downlink(false, linkADRReq(0x0f, 0x0f, mask, 0, 1)))

		assert.Equal(linkADRAns(false, false, false), env.dev.macCommands)
		assert.Equal([]int{0, 1, 2, 3}, env.dev.Plan().EnabledUplinkChannelIndices())
	})

	t.Run("Field width violations panic", func(t *testing.T) {
		assert := require.New(t)

		conf := test.GetConfig()
		env := newTestDevice(t, conf)

		assert.Panics(func() {
			env.dev.handleLinkADRReq(&lorawan.LinkADRReqPayload{DataRate: 16})
		})
		assert.Panics(func() {
			env.dev.handleLinkADRReq(&lorawan.LinkADRReqPayload{TXPower: 16})
		})
		assert.Panics(func() {
			env.dev.handleLinkADRReq(&lorawan.LinkADRReqPayload{
				Redundancy: lorawan.Redundancy{ChMaskCntl: 8},
			})
		})
		assert.Panics(func() {
			env.dev.handleLinkADRReq(&lorawan.LinkADRReqPayload{
				Redundancy: lorawan.Redundancy{NbRep: 16},
			})
		})
	})
}
