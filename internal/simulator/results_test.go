package simulator

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brocaar/lorawan"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
)

func TestReportSave(t *testing.T) {
	assert := require.New(t)

	report := Report{
		RunID:       uuid.Must(uuid.FromString("6ba7b810-9dad-11d1-80b4-00c04fd430c8")),
		AlgorithmID: "adr-lite",
		DeviceCount: 1,
		Duration:    time.Hour,
		Seed:        1,

		TotalSent:          10,
		TotalReceived:      9,
		TotalAcked:         8,
		TotalTransmissions: 12,

		PDRPercent:                    90,
		MeanDevicePDR:                 90,
		TotalEnergyJoules:             1.5,
		AvgEnergyPerPacketMilliJoules: 166.667,

		Devices: []DeviceResult{
			{
				DevAddr:                       lorawan.DevAddr{1, 2, 3, 4},
				DistanceMeters:                123.45,
				PacketsSent:                   10,
				PacketsReceived:               9,
				PacketsAcked:                  8,
				Transmissions:                 12,
				PDRPercent:                    90,
				EnergyJoules:                  1.5,
				AvgEnergyPerPacketMilliJoules: 166.667,
				FinalDataRate:                 5,
				FinalTXPowerDbm:               8,
			},
		},
	}

	path := filepath.Join(t.TempDir(), "results.csv")
	assert.NoError(report.Save(path))

	f, err := os.Open(path)
	assert.NoError(err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	assert.NoError(err)
	assert.Len(records, 3)

	assert.Equal([]string{
		"6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"adr-lite",
		"01020304",
		"123.5",
		"10",
		"9",
		"8",
		"12",
		"90.00",
		"1.500000",
		"166.667",
		"5",
		"8.0",
	}, records[1])

	assert.Equal([]string{
		"6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"adr-lite",
		"all",
		"",
		"10",
		"9",
		"8",
		"12",
		"90.00",
		"1.500000",
		"166.667",
		"",
		"",
	}, records[2])
}
