package models

import (
	"time"

	"github.com/brocaar/lorawan"
)

// TXInfo contains the radio parameters a device actually used for an
// uplink transmission.
type TXInfo struct {
	// Frequency in Hz.
	Frequency uint32

	// ChannelIndex is the logical channel the device transmitted on.
	ChannelIndex int

	// SpreadingFactor used for the transmission.
	SpreadingFactor int

	// CodingRate used for the transmission (1 = 4/5 .. 4 = 4/8).
	CodingRate int

	// TXPowerDbm is the transmission power in dBm.
	TXPowerDbm float64

	// Airtime of the transmission.
	Airtime time.Duration
}

// RXInfo contains the reception metadata added by the gateway.
type RXInfo struct {
	RSSI    int
	LoRaSNR float64
}

// RXPacket contains a received PHYPayload together with its TX and RX
// metadata.
type RXPacket struct {
	PHYPayload lorawan.PHYPayload
	TXInfo     TXInfo
	RXInfo     RXInfo

	// ReceivedAt is the simulated reception time.
	ReceivedAt time.Duration
}

// DownlinkFrame contains a downlink PHYPayload together with the metadata
// needed to deliver it to the device.
type DownlinkFrame struct {
	PHYPayload lorawan.PHYPayload

	// Frequency in Hz.
	Frequency uint32

	// DataRate of the downlink transmission.
	DataRate int

	// LoRaSNR as observed by the device radio.
	LoRaSNR float64
}
