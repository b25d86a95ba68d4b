package simulator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/test"
)

func TestPositionDistanceTo(t *testing.T) {
	assert := require.New(t)

	a := Position{}
	b := Position{X: 3, Y: 4, Z: 12}

	assert.Equal(13.0, a.DistanceTo(b))
	assert.Equal(13.0, b.DistanceTo(a))
	assert.Equal(0.0, b.DistanceTo(b))
}

func TestMedium(t *testing.T) {
	conf := test.GetConfig()
	conf.Radio.MaxRandomLossDB = 0

	t.Run("Deterministic path loss", func(t *testing.T) {
		assert := require.New(t)
		m := NewMedium(conf, rand.New(rand.NewSource(1)))

		// At the reference distance only the reference loss applies.
		assert.InDelta(14-7.7, m.ReceivedPower(14, Position{}, Position{X: 1}), 1e-9)

		// One hundred meters adds 10 * 3.76 * log10(100) = 75.2 dB.
		assert.InDelta(14-82.9, m.ReceivedPower(14, Position{}, Position{X: 100}), 1e-9)
	})

	t.Run("Distances below the reference clamp to the reference", func(t *testing.T) {
		assert := require.New(t)
		m := NewMedium(conf, rand.New(rand.NewSource(1)))

		assert.InDelta(14-7.7, m.ReceivedPower(14, Position{}, Position{X: 0.25}), 1e-9)
	})

	t.Run("Random extra loss stays within bounds", func(t *testing.T) {
		assert := require.New(t)

		randConf := conf
		randConf.Radio.MaxRandomLossDB = 10
		m := NewMedium(randConf, rand.New(rand.NewSource(1)))

		min, max := 0.0, -200.0
		for i := 0; i < 100; i++ {
			p := m.ReceivedPower(14, Position{}, Position{X: 100})
			assert.Less(p, 14-82.9+1e-9)
			assert.GreaterOrEqual(p, 14-92.9)

			if p < min {
				min = p
			}
			if p > max {
				max = p
			}
		}

		// The loss must actually vary between transmissions.
		assert.Greater(max-min, 1.0)
	})

	t.Run("SNR relative to the noise floor", func(t *testing.T) {
		assert := require.New(t)
		m := NewMedium(conf, rand.New(rand.NewSource(1)))

		assert.InDelta(17.0, m.SNR(-100), 1e-9)
		assert.InDelta(-13.0, m.SNR(-130), 1e-9)
	})
}
