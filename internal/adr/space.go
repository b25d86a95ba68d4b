package adr

import (
	"math"
	"sort"
	"time"
)

// Radio parameters of the energy model used to rank configurations. The
// ranking is computed for a fixed reference payload so that it only depends
// on the axes below.
const (
	costBandwidthHz     = 125000
	costPreambleSymbols = 8
	costPayloadBytes    = 20
)

// Configuration space axes.
var (
	spreadingFactors = []int{7, 8, 9, 10, 11, 12}
	txPowersDbm      = []float64{2, 4, 6, 8, 10, 12, 14}
	channelIndices   = []int{0, 1, 2}
	codingRates      = []int{1, 2, 3, 4}
)

// Configuration is a single point of the transmission parameter space.
type Configuration struct {
	SpreadingFactor int
	TXPowerDbm      float64
	ChannelIndex    int
	CodingRate      int

	// EnergyCost is the reference transmission energy for this
	// configuration. Only its ordering is meaningful.
	EnergyCost float64
}

// Space holds every combination of the configuration axes, sorted ascending
// by energy cost. Index 0 is the cheapest and least robust entry, the last
// index the most expensive and most robust one. A Space is immutable after
// construction.
type Space struct {
	configs []Configuration
}

// NewSpace enumerates and ranks the full configuration space. Entries with
// equal cost keep their enumeration order, so the result is reproducible.
func NewSpace() *Space {
	configs := make([]Configuration, 0,
		len(spreadingFactors)*len(txPowersDbm)*len(channelIndices)*len(codingRates))

	for _, sf := range spreadingFactors {
		for _, p := range txPowersDbm {
			for _, ch := range channelIndices {
				for _, cr := range codingRates {
					toa := TimeOnAir(sf, cr, costPayloadBytes)
					configs = append(configs, Configuration{
						SpreadingFactor: sf,
						TXPowerDbm:      p,
						ChannelIndex:    ch,
						CodingRate:      cr,
						EnergyCost:      toa.Seconds() * milliwatts(p),
					})
				}
			}
		}
	}

	sort.SliceStable(configs, func(i, j int) bool {
		return configs[i].EnergyCost < configs[j].EnergyCost
	})

	return &Space{configs: configs}
}

// Len returns the number of configurations.
func (s *Space) Len() int {
	return len(s.configs)
}

// MaxIndex returns the index of the most robust configuration.
func (s *Space) MaxIndex() int {
	return len(s.configs) - 1
}

// At returns the configuration at the given index.
func (s *Space) At(i int) Configuration {
	return s.configs[i]
}

// TimeOnAir returns the duration a LoRa transmission of payloadBytes
// occupies the channel at the given spreading factor and coding rate
// (1 = 4/5 .. 4 = 4/8), for a 125 kHz channel with an 8 symbol preamble and
// an explicit header. Low data rate optimization is applied for SF11 and
// SF12.
func TimeOnAir(sf, codingRate, payloadBytes int) time.Duration {
	tSymbol := math.Pow(2, float64(sf)) / costBandwidthHz
	tPreamble := (costPreambleSymbols + 4.25) * tSymbol

	var de float64
	if sf >= 11 {
		de = 1
	}
	const h = 0 // explicit header

	num := 8*float64(payloadBytes) - 4*float64(sf) + 28 + 16 - 20*h
	den := 4 * (float64(sf) - 2*de)
	nPayload := 8 + math.Max(math.Ceil(num/den)*float64(codingRate+4), 0)
	tPayload := nPayload * tSymbol

	return time.Duration((tPreamble + tPayload) * float64(time.Second))
}

func milliwatts(dbm float64) float64 {
	return math.Pow(10, dbm/10)
}
