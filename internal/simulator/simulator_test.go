package simulator

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/brocaar/lorawan"
	"github.com/stretchr/testify/require"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/adr"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/band"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/test"
)

func setupSimulator(t *testing.T, conf config.Config) *Simulator {
	assert := require.New(t)

	assert.NoError(band.Setup(conf))
	assert.NoError(adr.Setup(conf))

	s, err := New(conf)
	assert.NoError(err)

	return s
}

func TestNew(t *testing.T) {
	conf := test.GetConfig()
	require.NoError(t, band.Setup(conf))
	require.NoError(t, adr.Setup(conf))

	t.Run("Device count must be positive", func(t *testing.T) {
		invalid := conf
		invalid.Simulation.DeviceCount = 0
		_, err := New(invalid)
		require.EqualError(t, err, "device count must be positive")
	})

	t.Run("Traffic interval must be positive", func(t *testing.T) {
		invalid := conf
		invalid.Simulation.TrafficInterval = 0
		_, err := New(invalid)
		require.EqualError(t, err, "traffic interval must be positive")
	})

	t.Run("Duration must be positive", func(t *testing.T) {
		invalid := conf
		invalid.Simulation.Duration = 0
		_, err := New(invalid)
		require.EqualError(t, err, "simulation duration must be positive")
	})

	t.Run("Unknown ADR algorithm", func(t *testing.T) {
		invalid := conf
		invalid.NetworkServer.ADR.AlgorithmID = "does-not-exist"
		_, err := New(invalid)
		require.Error(t, err)
	})

	t.Run("Devices are placed within the configured radius", func(t *testing.T) {
		assert := require.New(t)

		placed := conf
		placed.Simulation.DeviceCount = 25
		placed.Simulation.RadiusMeters = 200

		s, err := New(placed)
		assert.NoError(err)
		assert.Len(s.order, 25)

		for _, n := range s.order {
			horizontal := Position{X: n.position.X, Y: n.position.Y}
			assert.LessOrEqual(horizontal.DistanceTo(Position{}), 200.0)
			assert.Equal(deviceHeightMeters, n.position.Z)
		}
	})
}

func TestRunWithoutADR(t *testing.T) {
	assert := require.New(t)

	conf := test.GetConfig()
	conf.Simulation.DeviceCount = 3
	conf.Simulation.Duration = 10 * time.Minute
	conf.Simulation.TrafficInterval = time.Minute
	conf.Simulation.RadiusMeters = 100
	conf.Simulation.Device.DataRate = 5
	conf.Simulation.Device.Confirmed = true
	conf.NetworkServer.ADR.AlgorithmID = "none"

	s := setupSimulator(t, conf)
	report := s.Run()

	assert.Equal(s.RunID(), report.RunID)
	assert.Equal("none", report.AlgorithmID)
	assert.Equal(3, report.DeviceCount)
	assert.Equal(10*time.Minute, report.Duration)
	assert.Len(report.Devices, 3)

	// Ten packets per device fit the horizon exactly; the tail ack of the
	// last packet may fall past it.
	assert.Equal(30, report.TotalSent)
	assert.Equal(30, report.TotalTransmissions)
	assert.GreaterOrEqual(report.TotalReceived, 27)
	assert.GreaterOrEqual(report.TotalAcked, 27)
	assert.GreaterOrEqual(report.PDRPercent, 90.0)
	assert.GreaterOrEqual(report.MeanDevicePDR, 90.0)
	assert.Greater(report.TotalEnergyJoules, 0.0)
	assert.Greater(report.AvgEnergyPerPacketMilliJoules, 0.0)

	for _, d := range report.Devices {
		assert.Equal(10, d.PacketsSent)
		assert.Equal(10, d.Transmissions)
		assert.GreaterOrEqual(d.PacketsReceived, 9)
		assert.GreaterOrEqual(d.PacketsAcked, 9)
		assert.Greater(d.EnergyJoules, 0.0)

		// Without ADR the device keeps its initial configuration.
		assert.Equal(5, d.FinalDataRate)
		assert.Equal(14.0, d.FinalTXPowerDbm)
	}
}

func TestRunADRLite(t *testing.T) {
	assert := require.New(t)

	conf := test.GetConfig()
	conf.Simulation.DeviceCount = 1
	conf.Simulation.Duration = time.Hour
	conf.Simulation.TrafficInterval = 5 * time.Minute
	conf.Simulation.RadiusMeters = 10
	conf.Simulation.Device.Confirmed = false

	s := setupSimulator(t, conf)
	report := s.Run()

	assert.Equal(12, report.TotalSent)
	assert.GreaterOrEqual(report.TotalReceived, 11)
	assert.Len(report.Devices, 1)

	// This close to the gateway every uplink matches the assigned
	// configuration, so the binary search walks down to the cheapest
	// entry: SF7 at 2 dBm.
	d := report.Devices[0]
	assert.Equal(5, d.FinalDataRate)
	assert.Equal(2.0, d.FinalTXPowerDbm)
	assert.Greater(d.EnergyJoules, 0.0)

	state, ok := adr.DeviceStore().Get(lorawan.DevAddr{0, 0, 0, 1})
	assert.True(ok)
	assert.Equal(0, state.CurrentIndex)
}

func TestRunDeterminism(t *testing.T) {
	assert := require.New(t)

	conf := test.GetConfig()
	conf.Simulation.DeviceCount = 3
	conf.Simulation.Duration = 10 * time.Minute
	conf.Simulation.TrafficInterval = time.Minute
	conf.Simulation.RadiusMeters = 300
	conf.Simulation.Device.DataRate = 5
	conf.Simulation.Seed = 42

	first := setupSimulator(t, conf).Run()
	second := setupSimulator(t, conf).Run()

	// Runs only differ in their ID.
	second.RunID = first.RunID
	assert.Equal(first, second)
}

func TestReportCSV(t *testing.T) {
	assert := require.New(t)

	conf := test.GetConfig()
	conf.Simulation.DeviceCount = 2
	conf.Simulation.Duration = 10 * time.Minute
	conf.Simulation.TrafficInterval = time.Minute
	conf.Simulation.RadiusMeters = 100
	conf.Simulation.Device.DataRate = 5
	conf.NetworkServer.ADR.AlgorithmID = "none"

	report := setupSimulator(t, conf).Run()

	var buf bytes.Buffer
	assert.NoError(report.WriteCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	assert.NoError(err)

	// Header, one row per device, summary.
	assert.Len(records, 4)
	assert.Equal(csvHeader, records[0])
	assert.Equal(report.RunID.String(), records[1][0])
	assert.Equal("00000001", records[1][2])
	assert.Equal("00000002", records[2][2])
	assert.Equal("all", records[3][2])
	assert.Equal("20", records[3][4])
}
