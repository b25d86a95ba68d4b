// Package test contains helpers for tests.
package test

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

// GetConfig returns the test configuration.
func GetConfig() config.Config {
	var c config.Config

	c.General.LogLevel = 4

	c.Simulation.DeviceCount = 10
	c.Simulation.Duration = time.Hour
	c.Simulation.TrafficInterval = time.Minute
	c.Simulation.PayloadSize = 50
	c.Simulation.Seed = 1
	c.Simulation.RadiusMeters = 500

	c.Simulation.Device.NbTrans = 8
	c.Simulation.Device.DataRate = 0
	c.Simulation.Device.TXPowerDbm = 14
	c.Simulation.Device.ADR = true
	c.Simulation.Device.Confirmed = true

	c.NetworkServer.Band.Name = "EU868"
	c.NetworkServer.NetworkSettings.InstallationMargin = 10
	c.NetworkServer.NetworkSettings.RX1Delay = 1
	c.NetworkServer.ADR.AlgorithmID = "adr-lite"
	c.NetworkServer.ADR.AdjustTXPower = true

	c.Radio.PathLossExponent = 3.76
	c.Radio.ReferenceDistanceMeters = 1
	c.Radio.ReferenceLossDB = 7.7
	c.Radio.MaxRandomLossDB = 10

	c.Energy.Enabled = true
	c.Energy.InitialJoules = 10000
	c.Energy.SupplyVoltage = 3.3
	c.Energy.TXCurrentAmpere = 0.028
	c.Energy.RXCurrentAmpere = 0.0112
	c.Energy.StandbyCurrentAmpere = 0.0014
	c.Energy.SleepCurrentAmpere = 0.0000015

	return c
}
