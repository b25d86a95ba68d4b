package band

import (
	"github.com/pkg/errors"

	"github.com/brocaar/lorawan"
	loraband "github.com/brocaar/lorawan/band"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
)

var band loraband.Band

var maxLoRaDR int

// Setup sets up the band with the given configuration.
func Setup(c config.Config) error {
	dwellTime := lorawan.DwellTimeNoLimit
	if c.NetworkServer.Band.DownlinkDwellTime400ms {
		dwellTime = lorawan.DwellTime400ms
	}
	bandConfig, err := loraband.GetConfig(c.NetworkServer.Band.Name, c.NetworkServer.Band.RepeaterCompatible, dwellTime)
	if err != nil {
		return errors.Wrap(err, "get band config error")
	}
	for _, ec := range c.NetworkServer.NetworkSettings.ExtraChannels {
		if err := bandConfig.AddChannel(ec.Frequency, ec.MinDR, ec.MaxDR); err != nil {
			return errors.Wrap(err, "add channel error")
		}
	}
	band = bandConfig

	maxLoRaDR = 0
	enabledDRs := band.GetEnabledUplinkDataRates()
	for _, i := range enabledDRs {
		dr, err := band.GetDataRate(i)
		if err != nil {
			return errors.Wrap(err, "get max lora DR error")
		}

		if dr.Modulation == loraband.LoRaModulation && dr.Bandwidth == 125 {
			maxLoRaDR = i
		}
	}
	return nil
}

// Band returns the configured band.
func Band() loraband.Band {
	return band
}

// MaxLoRaDR returns the max LoRa (125 kHz) data-rate index.
func MaxLoRaDR() int {
	return maxLoRaDR
}

// RequiredSNRForDR returns the SNR required to demodulate a frame sent
// with the given data-rate index.
func RequiredSNRForDR(dr int) (float64, error) {
	dataRate, err := band.GetDataRate(dr)
	if err != nil {
		return 0, errors.Wrap(err, "get data-rate error")
	}
	snr, ok := config.SpreadFactorToRequiredSNRTable[dataRate.SpreadFactor]
	if !ok {
		return 0, errors.Errorf("no required snr for spread-factor %d", dataRate.SpreadFactor)
	}
	return snr, nil
}

// DataRateIndexForSF returns the uplink data-rate index for the given
// LoRa spreading-factor (125 kHz bandwidth).
func DataRateIndexForSF(sf int) (int, error) {
	dr, err := band.GetDataRateIndex(true, loraband.DataRate{
		Modulation:   loraband.LoRaModulation,
		SpreadFactor: sf,
		Bandwidth:    125,
	})
	if err != nil {
		return 0, errors.Wrap(err, "get data-rate index error")
	}
	return dr, nil
}

// MaxTXPowerIndex returns the highest LinkADRReq tx-power index the band
// supports. EU868 defines indices 0-6, from 14 dBm down in 2 dB steps.
func MaxTXPowerIndex() int {
	return 6
}

// TXPowerIndexForDbm returns the LinkADRReq tx-power index for the given
// EIRP, for a 14 dBm max EIRP band.
func TXPowerIndexForDbm(dbm float64) int {
	if dbm > 14 {
		dbm = 14
	}
	if dbm < 2 {
		dbm = 2
	}
	return int((14 - dbm) / 2)
}
