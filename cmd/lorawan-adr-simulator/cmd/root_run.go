package cmd

import (
	"os"
	"runtime/pprof"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/adr"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/band"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/metrics"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/simulator"
)

func run(cmd *cobra.Command, args []string) error {
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			return errors.Wrap(err, "could not create cpu profile file")
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			return errors.Wrap(err, "could not start cpu profile")
		}
		defer pprof.StopCPUProfile()
	}

	tasks := []func() error{
		setLogLevel,
		setupBand,
		setupADR,
		setupMetrics,
		printStartMessage,
	}

	for _, t := range tasks {
		if err := t(); err != nil {
			log.Fatal(err)
		}
	}

	sim, err := simulator.New(config.C)
	if err != nil {
		return errors.Wrap(err, "new simulator error")
	}

	report := sim.Run()

	log.WithFields(log.Fields{
		"run_id":          report.RunID,
		"packets_sent":    report.TotalSent,
		"pdr":             report.PDRPercent,
		"mean_device_pdr": report.MeanDevicePDR,
		"total_energy_j":  report.TotalEnergyJoules,
		"avg_energy_mj":   report.AvgEnergyPerPacketMilliJoules,
	}).Info("simulation completed")

	if path := config.C.Simulation.ResultsFile; path != "" {
		if err := report.Save(path); err != nil {
			return errors.Wrap(err, "save results error")
		}
		log.WithField("file", path).Info("results written")
	}

	return nil
}

func setLogLevel() error {
	log.SetLevel(log.Level(uint8(config.C.General.LogLevel)))
	return nil
}

func setupBand() error {
	if err := band.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup band error")
	}
	return nil
}

func setupADR() error {
	if err := adr.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup adr error")
	}
	return nil
}

func setupMetrics() error {
	if err := metrics.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup metrics error")
	}
	return nil
}

func printStartMessage() error {
	log.WithFields(log.Fields{
		"version":      version,
		"band":         config.C.NetworkServer.Band.Name,
		"algorithm_id": config.C.NetworkServer.ADR.AlgorithmID,
	}).Info("starting LoRaWAN ADR simulator")
	return nil
}
