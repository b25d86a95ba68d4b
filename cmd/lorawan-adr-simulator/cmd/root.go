package cmd

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
)

var (
	cfgFile    string
	cpuprofile string
	version    string
)

var rootCmd = &cobra.Command{
	Use:   "lorawan-adr-simulator",
	Short: "LoRaWAN ADR simulator",
	Long: `lorawan-adr-simulator runs a discrete-event LoRaWAN class-A simulation
	in which the network-server steers the devices with the configured
	adaptive data-rate algorithm and reports per-device delivery and
	energy results`,
	RunE: run,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file (optional)")
	rootCmd.PersistentFlags().StringVarP(&cpuprofile, "cpu-profile", "", "", "write cpu profile to file (optional)")
	rootCmd.PersistentFlags().Int("log-level", 4, "debug=5, info=4, error=2, fatal=1, panic=0")

	viper.BindPFlag("general.log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	// default values
	viper.SetDefault("simulation.device_count", 100)
	viper.SetDefault("simulation.duration", time.Hour)
	viper.SetDefault("simulation.traffic_interval", time.Minute)
	viper.SetDefault("simulation.payload_size", 50)
	viper.SetDefault("simulation.seed", 1)
	viper.SetDefault("simulation.radius_meters", 500)

	viper.SetDefault("simulation.device.nb_trans", 8)
	viper.SetDefault("simulation.device.data_rate", 0)
	viper.SetDefault("simulation.device.tx_power_dbm", 14)
	viper.SetDefault("simulation.device.adr", true)

	viper.SetDefault("network_server.band.name", "EU868")

	viper.SetDefault("network_server.network_settings.installation_margin", 10)
	viper.SetDefault("network_server.network_settings.rx1_delay", 1)
	viper.SetDefault("network_server.network_settings.disable_adr", false)

	viper.SetDefault("network_server.adr.algorithm_id", "adr-lite")
	viper.SetDefault("network_server.adr.adjust_tx_power", true)

	viper.SetDefault("radio.path_loss_exponent", 3.76)
	viper.SetDefault("radio.reference_distance_meters", 1)
	viper.SetDefault("radio.reference_loss_db", 7.7)
	viper.SetDefault("radio.max_random_loss_db", 10)

	viper.SetDefault("energy.enabled", true)
	viper.SetDefault("energy.initial_joules", 10000)
	viper.SetDefault("energy.supply_voltage", 3.3)
	viper.SetDefault("energy.tx_current_ampere", 0.028)
	viper.SetDefault("energy.rx_current_ampere", 0.0112)
	viper.SetDefault("energy.standby_current_ampere", 0.0014)
	viper.SetDefault("energy.sleep_current_ampere", 0.0000015)

	viper.SetDefault("metrics.prometheus.bind", "0.0.0.0:8070")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute executes the root command.
func Execute(v string) {
	version = v

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func initConfig() {
	config.Version = version

	if cfgFile != "" {
		b, err := ioutil.ReadFile(cfgFile)
		if err != nil {
			log.WithError(err).WithField("config", cfgFile).Fatal("error loading config file")
		}
		viper.SetConfigType("toml")
		if err := viper.ReadConfig(bytes.NewBuffer(b)); err != nil {
			log.WithError(err).WithField("config", cfgFile).Fatal("error loading config file")
		}
	} else {
		viper.SetConfigName("lorawan-adr-simulator")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/lorawan-adr-simulator")
		viper.AddConfigPath("/etc/lorawan-adr-simulator")
		if err := viper.ReadInConfig(); err != nil {
			switch err.(type) {
			case viper.ConfigFileNotFoundError:
				log.Warning("No configuration file found, using defaults.")
			default:
				log.WithError(err).Fatal("read configuration file error")
			}
		}
	}

	for _, pair := range os.Environ() {
		d := strings.SplitN(pair, "=", 2)
		if strings.Contains(d[0], ".") {
			log.Warning("Using dots in env variable is illegal and deprecated. Please use double underscore `__` for: ", d[0])
			underscoreName := strings.ReplaceAll(d[0], ".", "__")
			// Set only when the underscore version doesn't already exist.
			if _, exists := os.LookupEnv(underscoreName); !exists {
				os.Setenv(underscoreName, d[1])
			}
		}
	}

	viperBindEnvs(config.C)

	viperHooks := mapstructure.ComposeDecodeHookFunc(
		viperDecodeJSONSlice,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := viper.Unmarshal(&config.C, viper.DecodeHook(viperHooks)); err != nil {
		log.WithError(err).Fatal("unmarshal config error")
	}
}

func viperBindEnvs(iface interface{}, parts ...string) {
	ifv := reflect.ValueOf(iface)
	ift := reflect.TypeOf(iface)
	for i := 0; i < ift.NumField(); i++ {
		v := ifv.Field(i)
		t := ift.Field(i)
		tv, ok := t.Tag.Lookup("mapstructure")
		if !ok {
			tv = strings.ToLower(t.Name)
		}
		if tv == "-" {
			continue
		}

		switch v.Kind() {
		case reflect.Struct:
			viperBindEnvs(v.Interface(), append(parts, tv)...)
		default:
			// Bash doesn't allow env variable names with a dot so
			// bind the double underscore version.
			keyDot := strings.Join(append(parts, tv), ".")
			keyUnderscore := strings.Join(append(parts, tv), "__")
			viper.BindEnv(keyDot, strings.ToUpper(keyUnderscore))
		}
	}
}

func viperDecodeJSONSlice(rf reflect.Kind, rt reflect.Kind, data interface{}) (interface{}, error) {
	// input must be a string and destination must be a slice
	if rf != reflect.String || rt != reflect.Slice {
		return data, nil
	}

	raw := data.(string)

	// this decoder expects a JSON list
	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
		return data, nil
	}

	var out []map[string]interface{}
	err := json.Unmarshal([]byte(raw), &out)

	return out, err
}
