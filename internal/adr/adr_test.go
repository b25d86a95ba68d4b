package adr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/test"
)

func TestSetup(t *testing.T) {
	assert := require.New(t)

	conf := test.GetConfig()
	assert.NoError(Setup(conf))

	for _, id := range []string{"none", "adr-lite", "snr-max", "snr-avg", "snr-min"} {
		h, err := GetHandler(id)
		assert.NoError(err)
		assert.Equal(id, h.ID())
	}

	_, err := GetHandler("does-not-exist")
	assert.Error(err)

	assert.NotNil(DeviceStore())
	assert.NotNil(ConfigurationSpace())
	assert.Equal(504, ConfigurationSpace().Len())

	// Re-registering a taken ID fails.
	assert.Error(Register(&NoopHandler{}))
}

func TestNoopHandler(t *testing.T) {
	assert := require.New(t)

	h := &NoopHandler{}
	resp, err := h.Handle(HandleRequest{DR: 2, TxPowerIndex: 3, NbTrans: 2})
	assert.NoError(err)
	assert.Equal(HandleResponse{DR: 2, TxPowerIndex: 3, NbTrans: 2}, resp)
}
