package simulator

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/brocaar/lorawan"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// DeviceResult holds the outcome of a run for a single device.
type DeviceResult struct {
	DevAddr        lorawan.DevAddr
	DistanceMeters float64

	// PacketsSent counts the application packets handed to the MAC,
	// PacketsReceived the ones that reached the gateway at least once and
	// PacketsAcked the confirmed sequences that ended with an
	// acknowledgment.
	PacketsSent     int
	PacketsReceived int
	PacketsAcked    int

	// Transmissions counts every uplink put on the air, retransmissions
	// included.
	Transmissions int

	PDRPercent                    float64
	EnergyJoules                  float64
	AvgEnergyPerPacketMilliJoules float64

	FinalDataRate   int
	FinalTXPowerDbm float64
}

// Report holds the outcome of a run.
type Report struct {
	RunID       uuid.UUID
	AlgorithmID string
	DeviceCount int
	Duration    time.Duration
	Seed        int64

	TotalSent          int
	TotalReceived      int
	TotalAcked         int
	TotalTransmissions int

	// PDRPercent is the network-wide packet delivery ratio.
	PDRPercent float64

	// MeanDevicePDR and StdDevDevicePDR aggregate the per-device delivery
	// ratios.
	MeanDevicePDR   float64
	StdDevDevicePDR float64

	TotalEnergyJoules float64

	// AvgEnergyPerPacketMilliJoules is the total consumed energy divided
	// by the number of delivered packets.
	AvgEnergyPerPacketMilliJoules float64

	Devices []DeviceResult
}

// report snapshots the per-device statistics into a Report.
func (s *Simulator) report() *Report {
	now := s.sched.Now()

	r := Report{
		RunID:       s.runID,
		AlgorithmID: s.conf.NetworkServer.ADR.AlgorithmID,
		DeviceCount: len(s.order),
		Duration:    now,
		Seed:        s.conf.Simulation.Seed,
	}

	pdrs := make([]float64, 0, len(s.order))
	for _, n := range s.order {
		res := DeviceResult{
			DevAddr:         n.dev.DevAddr(),
			DistanceMeters:  n.position.DistanceTo(s.gateway.position),
			PacketsSent:     n.packetsSent,
			PacketsReceived: n.packetsReceived,
			PacketsAcked:    n.packetsAcked,
			Transmissions:   n.dev.TransmissionCount(),
			EnergyJoules:    n.dev.Meter().ConsumedJoules(now),
			FinalDataRate:   n.dev.DataRate(),
			FinalTXPowerDbm: n.dev.TXPowerDbm(),
		}
		if res.PacketsSent > 0 {
			res.PDRPercent = float64(res.PacketsReceived) / float64(res.PacketsSent) * 100
		}
		if res.PacketsReceived > 0 {
			res.AvgEnergyPerPacketMilliJoules = res.EnergyJoules / float64(res.PacketsReceived) * 1000
		}

		r.TotalSent += res.PacketsSent
		r.TotalReceived += res.PacketsReceived
		r.TotalAcked += res.PacketsAcked
		r.TotalTransmissions += res.Transmissions
		r.TotalEnergyJoules += res.EnergyJoules

		pdrs = append(pdrs, res.PDRPercent)
		r.Devices = append(r.Devices, res)
	}

	if r.TotalSent > 0 {
		r.PDRPercent = float64(r.TotalReceived) / float64(r.TotalSent) * 100
	}
	if r.TotalReceived > 0 {
		r.AvgEnergyPerPacketMilliJoules = r.TotalEnergyJoules / float64(r.TotalReceived) * 1000
	}

	r.MeanDevicePDR = stat.Mean(pdrs, nil)
	if len(pdrs) > 1 {
		r.StdDevDevicePDR = stat.StdDev(pdrs, nil)
	}

	return &r
}

// csvHeader lists the columns of the results file.
var csvHeader = []string{
	"run_id",
	"algorithm",
	"dev_addr",
	"distance_m",
	"packets_sent",
	"packets_received",
	"packets_acked",
	"transmissions",
	"pdr_percent",
	"energy_j",
	"avg_energy_mj",
	"final_dr",
	"final_tx_power_dbm",
}

// WriteCSV writes the report as CSV: a header, one row per device and a
// summary row aggregating the whole run.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write header error")
	}

	for _, d := range r.Devices {
		row := []string{
			r.RunID.String(),
			r.AlgorithmID,
			d.DevAddr.String(),
			strconv.FormatFloat(d.DistanceMeters, 'f', 1, 64),
			strconv.Itoa(d.PacketsSent),
			strconv.Itoa(d.PacketsReceived),
			strconv.Itoa(d.PacketsAcked),
			strconv.Itoa(d.Transmissions),
			strconv.FormatFloat(d.PDRPercent, 'f', 2, 64),
			strconv.FormatFloat(d.EnergyJoules, 'f', 6, 64),
			strconv.FormatFloat(d.AvgEnergyPerPacketMilliJoules, 'f', 3, 64),
			strconv.Itoa(d.FinalDataRate),
			strconv.FormatFloat(d.FinalTXPowerDbm, 'f', 1, 64),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write device row error")
		}
	}

	summary := []string{
		r.RunID.String(),
		r.AlgorithmID,
		"all",
		"",
		strconv.Itoa(r.TotalSent),
		strconv.Itoa(r.TotalReceived),
		strconv.Itoa(r.TotalAcked),
		strconv.Itoa(r.TotalTransmissions),
		strconv.FormatFloat(r.PDRPercent, 'f', 2, 64),
		strconv.FormatFloat(r.TotalEnergyJoules, 'f', 6, 64),
		strconv.FormatFloat(r.AvgEnergyPerPacketMilliJoules, 'f', 3, 64),
		"",
		"",
	}
	if err := cw.Write(summary); err != nil {
		return errors.Wrap(err, "write summary row error")
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush error")
}

// Save writes the report to the given file as CSV.
func (r *Report) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create results file error")
	}

	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return err
	}

	return errors.Wrap(f.Close(), "close results file error")
}
