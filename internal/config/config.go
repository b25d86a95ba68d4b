package config

import (
	"time"

	"github.com/brocaar/lorawan/band"
)

// Version defines the lorawan-adr-simulator version.
var Version string

// Config defines the configuration structure.
type Config struct {
	General struct {
		LogLevel int `mapstructure:"log_level"`
	} `mapstructure:"general"`

	Simulation struct {
		DeviceCount     int           `mapstructure:"device_count"`
		Duration        time.Duration `mapstructure:"duration"`
		TrafficInterval time.Duration `mapstructure:"traffic_interval"`
		PayloadSize     int           `mapstructure:"payload_size"`
		Seed            int64         `mapstructure:"seed"`
		RadiusMeters    float64       `mapstructure:"radius_meters"`
		ResultsFile     string        `mapstructure:"results_file"`

		Device struct {
			NbTrans           int           `mapstructure:"nb_trans"`
			DataRate          int           `mapstructure:"data_rate"`
			TXPowerDbm        float64       `mapstructure:"tx_power_dbm"`
			ADR               bool          `mapstructure:"adr"`
			Confirmed         bool          `mapstructure:"confirmed"`
			ExternallyPowered bool          `mapstructure:"externally_powered"`
			LinkCheckInterval time.Duration `mapstructure:"link_check_interval"`
		} `mapstructure:"device"`
	} `mapstructure:"simulation"`

	NetworkServer struct {
		Band struct {
			Name                   band.Name `mapstructure:"name"`
			RepeaterCompatible     bool      `mapstructure:"repeater_compatible"`
			DownlinkDwellTime400ms bool      `mapstructure:"downlink_dwell_time_400ms"`
		} `mapstructure:"band"`

		NetworkSettings struct {
			InstallationMargin   float64       `mapstructure:"installation_margin"`
			RX1Delay             int           `mapstructure:"rx1_delay"`
			DisableADR           bool          `mapstructure:"disable_adr"`
			DevStatusReqInterval time.Duration `mapstructure:"dev_status_req_interval"`

			ExtraChannels []struct {
				Frequency uint32 `mapstructure:"frequency"`
				MinDR     int    `mapstructure:"min_dr"`
				MaxDR     int    `mapstructure:"max_dr"`
			} `mapstructure:"extra_channels"`
		} `mapstructure:"network_settings"`

		ADR struct {
			AlgorithmID      string `mapstructure:"algorithm_id"`
			AdjustTXPower    bool   `mapstructure:"adjust_tx_power"`
			AdjustChannel    bool   `mapstructure:"adjust_channel"`
			AdjustCodingRate bool   `mapstructure:"adjust_coding_rate"`
		} `mapstructure:"adr"`
	} `mapstructure:"network_server"`

	Radio struct {
		PathLossExponent        float64 `mapstructure:"path_loss_exponent"`
		ReferenceDistanceMeters float64 `mapstructure:"reference_distance_meters"`
		ReferenceLossDB         float64 `mapstructure:"reference_loss_db"`
		MaxRandomLossDB         float64 `mapstructure:"max_random_loss_db"`
	} `mapstructure:"radio"`

	Energy struct {
		Enabled              bool    `mapstructure:"enabled"`
		InitialJoules        float64 `mapstructure:"initial_joules"`
		SupplyVoltage        float64 `mapstructure:"supply_voltage"`
		TXCurrentAmpere      float64 `mapstructure:"tx_current_ampere"`
		RXCurrentAmpere      float64 `mapstructure:"rx_current_ampere"`
		StandbyCurrentAmpere float64 `mapstructure:"standby_current_ampere"`
		SleepCurrentAmpere   float64 `mapstructure:"sleep_current_ampere"`
	} `mapstructure:"energy"`

	Metrics struct {
		Prometheus struct {
			EndpointEnabled bool   `mapstructure:"endpoint_enabled"`
			Bind            string `mapstructure:"bind"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"metrics"`
}

// SpreadFactorToRequiredSNRTable contains the required SNR to demodulate a
// LoRa frame for the given spreadfactor.
// These values are taken from the SX1276 datasheet.
var SpreadFactorToRequiredSNRTable = map[int]float64{
	6:  -5,
	7:  -7.5,
	8:  -10,
	9:  -12.5,
	10: -15,
	11: -17.5,
	12: -20,
}

// C holds the global configuration.
var C Config
