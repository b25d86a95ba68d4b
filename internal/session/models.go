package session

// UplinkHistorySize contains the number of uplinks to keep for the
// ADR uplink history.
const UplinkHistorySize = 20

// UplinkHistory contains the meta-data of a single uplink transmission.
type UplinkHistory struct {
	FCnt         uint32
	MaxSNR       float64
	MaxRSSI      int32
	TXPowerIndex int
	GatewayCount int
}
