package cmd

import (
	"os"
	"text/template"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
)

const configTemplate = `[general]
# Log level
#
# debug=5, info=4, warning=3, error=2, fatal=1, panic=0
log_level={{ .General.LogLevel }}


# Simulation settings.
[simulation]
# Number of simulated devices.
device_count={{ .Simulation.DeviceCount }}

# Simulated duration of the run.
#
# The simulation stops once the virtual clock passes this duration. Valid
# time units are 'ms', 's', 'm', 'h'.
duration="{{ .Simulation.Duration }}"

# Application traffic interval.
#
# Every device hands a new application payload to its MAC layer at this
# interval. The first packet of each device is sent at a random offset
# within one interval.
traffic_interval="{{ .Simulation.TrafficInterval }}"

# Application payload size (bytes).
payload_size={{ .Simulation.PayloadSize }}

# Random seed.
#
# Runs with the same seed and configuration produce identical results.
seed={{ .Simulation.Seed }}

# Placement radius (meters).
#
# Devices are placed uniformly within a disc of this radius around the
# gateway.
radius_meters={{ .Simulation.RadiusMeters }}

# Results file.
#
# When set, the per-device results and the run summary are written to
# this file as CSV.
results_file="{{ .Simulation.ResultsFile }}"


  # Device settings.
  [simulation.device]
  # Number of transmissions per confirmed uplink.
  #
  # A device gives up on a confirmed uplink after this many transmissions
  # without an acknowledgment.
  nb_trans={{ .Simulation.Device.NbTrans }}

  # Initial uplink data-rate (0 - 5).
  data_rate={{ .Simulation.Device.DataRate }}

  # Initial transmission power (dBm).
  tx_power_dbm={{ .Simulation.Device.TXPowerDbm }}

  # Request adaptive data-rate.
  #
  # When set, the devices set the ADR flag on their uplinks and apply the
  # link-adr requests of the network-server.
  adr={{ .Simulation.Device.ADR }}

  # Send confirmed uplinks.
  confirmed={{ .Simulation.Device.Confirmed }}

  # Externally powered devices.
  #
  # When set, the devices report an external power source in their
  # dev-status answers and the battery never drains.
  externally_powered={{ .Simulation.Device.ExternallyPowered }}

  # Link-check interval.
  #
  # When set, every device queues a link-check request at this interval
  # to learn its demodulation margin. Set to 0 to disable.
  link_check_interval="{{ .Simulation.Device.LinkCheckInterval }}"


# Network-server settings.
[network_server]

  # LoRaWAN regional band configuration.
  [network_server.band]
  # Name of the band.
  #
  # Only the EU868 band parameters have been validated for simulation.
  name="{{ .NetworkServer.Band.Name }}"

  # Enforce 400ms dwell-time on downlink.
  downlink_dwell_time_400ms={{ .NetworkServer.Band.DownlinkDwellTime400ms }}

  # Band is repeater compatible.
  repeater_compatible={{ .NetworkServer.Band.RepeaterCompatible }}


  # Network settings.
  [network_server.network_settings]
  # Installation margin (dB) used by the SNR based ADR engines.
  #
  # A higher number means that the network-server will keep more margin,
  # resulting in a lower data-rate but decreasing the chance that the
  # device gets disconnected because it is unable to reach one of the
  # surrounded gateways.
  installation_margin={{ .NetworkServer.NetworkSettings.InstallationMargin }}

  # RX1 delay (1 - 15 seconds).
  rx1_delay={{ .NetworkServer.NetworkSettings.RX1Delay }}

  # Disable ADR handling.
  disable_adr={{ .NetworkServer.NetworkSettings.DisableADR }}

  # Device-status request interval.
  #
  # When set, the network-server requests the battery level and the
  # demodulation margin of every device at this interval. Set to 0 to
  # disable.
  dev_status_req_interval="{{ .NetworkServer.NetworkSettings.DevStatusReqInterval }}"

  # Extra channels to push to the devices.
  #
  # The channels are rolled out with new-channel requests, one channel
  # per downlink, on top of the three standard EU868 channels.
  #
  # Example:
  # [[network_server.network_settings.extra_channels]]
  # frequency=867100000
  # min_dr=0
  # max_dr=5
{{ range $index, $element := .NetworkServer.NetworkSettings.ExtraChannels }}
  [[network_server.network_settings.extra_channels]]
  frequency={{ $element.Frequency }}
  min_dr={{ $element.MinDR }}
  max_dr={{ $element.MaxDR }}
{{ end }}

  # ADR settings.
  [network_server.adr]
  # ADR algorithm.
  #
  # Available algorithms:
  #   adr-lite : binary search over the energy-ordered configuration space
  #   snr-max  : margin from the best SNR in the uplink history
  #   snr-avg  : margin from the average SNR in the uplink history
  #   snr-min  : margin from the worst SNR in the uplink history
  #   none     : never request a change
  algorithm_id="{{ .NetworkServer.ADR.AlgorithmID }}"

  # Adjust the transmission power.
  #
  # When disabled, the adr-lite algorithm only steers the data-rate and
  # leaves the device transmission power untouched.
  adjust_tx_power={{ .NetworkServer.ADR.AdjustTXPower }}

  # Include the channel in the configuration match.
  adjust_channel={{ .NetworkServer.ADR.AdjustChannel }}

  # Include the coding-rate in the configuration match.
  adjust_coding_rate={{ .NetworkServer.ADR.AdjustCodingRate }}


# Radio link model settings.
[radio]
# Log-distance path loss exponent.
path_loss_exponent={{ .Radio.PathLossExponent }}

# Reference distance (meters).
reference_distance_meters={{ .Radio.ReferenceDistanceMeters }}

# Path loss at the reference distance (dB).
reference_loss_db={{ .Radio.ReferenceLossDB }}

# Maximum random extra loss (dB).
#
# Every transmission draws a uniform random extra loss between 0 and this
# value.
max_random_loss_db={{ .Radio.MaxRandomLossDB }}


# Energy model settings.
[energy]
# Account the energy consumption of the devices.
enabled={{ .Energy.Enabled }}

# Initial battery energy (joules).
initial_joules={{ .Energy.InitialJoules }}

# Supply voltage (volts).
supply_voltage={{ .Energy.SupplyVoltage }}

# Radio current draw per state (amperes).
tx_current_ampere={{ .Energy.TXCurrentAmpere }}
rx_current_ampere={{ .Energy.RXCurrentAmpere }}
standby_current_ampere={{ .Energy.StandbyCurrentAmpere }}
sleep_current_ampere={{ .Energy.SleepCurrentAmpere }}


# Metrics collection settings.
[metrics]

  # Metrics stored in Prometheus.
  #
  # These metrics expose information about the state of the simulation run
  # and are intended to be scraped by Prometheus.
  [metrics.prometheus]
  # Expose Prometheus metrics endpoint.
  endpoint_enabled={{ .Metrics.Prometheus.EndpointEnabled }}

  # The ip:port to bind the Prometheus metrics server to for serving the
  # metrics endpoint.
  bind="{{ .Metrics.Prometheus.Bind }}"
`

var configCmd = &cobra.Command{
	Use:   "configfile",
	Short: "Print the LoRaWAN ADR simulator configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := template.Must(template.New("config").Parse(configTemplate))
		err := t.Execute(os.Stdout, &config.C)
		if err != nil {
			return errors.Wrap(err, "execute config template error")
		}
		return nil
	},
}
