// Package channels implements the device-side logical channel plan:
// the uplink channel slots together with the per sub-band and aggregated
// duty-cycle accounting that gates when the device may transmit.
package channels

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/band"
)

// MaxChannels is the number of logical channel slots a device carries.
const MaxChannels = 16

// LogicalChannel is a single uplink channel slot of the device plan.
type LogicalChannel struct {
	// Frequency in Hz. A zero frequency parks the slot: the channel keeps
	// its data-rate range but can not be used for uplink.
	Frequency uint32

	// MinDR is the lowest data-rate the channel accepts.
	MinDR int

	// MaxDR is the highest data-rate the channel accepts.
	MaxDR int

	enabled bool
}

// subBand is a regulatory sub-band with its duty-cycle bookkeeping.
// nextTX holds the earliest simulated time at which the sub-band may be
// used again.
type subBand struct {
	minFrequency uint32
	maxFrequency uint32
	dutyCycle    float64

	nextTX time.Duration
}

// eu868SubBands returns the EU868 regulatory sub-bands with their
// duty-cycle limits (ETSI EN 300 220).
func eu868SubBands() []subBand {
	return []subBand{
		{minFrequency: 863000000, maxFrequency: 865000000, dutyCycle: 0.001},
		{minFrequency: 865000000, maxFrequency: 868000000, dutyCycle: 0.01},
		{minFrequency: 868000000, maxFrequency: 868600000, dutyCycle: 0.01},
		{minFrequency: 868700000, maxFrequency: 869200000, dutyCycle: 0.001},
		{minFrequency: 869400000, maxFrequency: 869650000, dutyCycle: 0.1},
		{minFrequency: 869700000, maxFrequency: 870000000, dutyCycle: 0.01},
	}
}

// Plan holds the channel slots of a single device together with the
// duty-cycle state. It is owned by the simulation goroutine and is not
// safe for concurrent use.
type Plan struct {
	channels [MaxChannels]*LogicalChannel
	subBands []subBand

	// aggregatedDutyCycle is the device-wide duty-cycle set through
	// DutyCycleReq. 1 means no additional restriction.
	aggregatedDutyCycle float64
	aggregatedNextTX    time.Duration

	rng *rand.Rand
}

// NewPlan returns a Plan with the band default uplink channels installed
// and enabled. The given random source is used for channel selection.
func NewPlan(rng *rand.Rand) (*Plan, error) {
	p := Plan{
		subBands:            eu868SubBands(),
		aggregatedDutyCycle: 1,
		rng:                 rng,
	}

	for i, ci := range band.Band().GetStandardUplinkChannelIndices() {
		if i >= MaxChannels {
			break
		}
		c, err := band.Band().GetUplinkChannel(ci)
		if err != nil {
			return nil, errors.Wrap(err, "get uplink channel error")
		}
		p.channels[i] = &LogicalChannel{
			Frequency: c.Frequency,
			MinDR:     c.MinDR,
			MaxDR:     c.MaxDR,
			enabled:   true,
		}
	}

	return &p, nil
}

// HasChannel returns true when the given slot holds a channel.
func (p *Plan) HasChannel(i int) bool {
	return i >= 0 && i < MaxChannels && p.channels[i] != nil
}

// GetChannel returns a copy of the channel in the given slot.
func (p *Plan) GetChannel(i int) (LogicalChannel, error) {
	if !p.HasChannel(i) {
		return LogicalChannel{}, errors.Errorf("channel %d does not exist", i)
	}
	return *p.channels[i], nil
}

// SetChannel installs or replaces the channel in the given slot. A zero
// frequency parks the slot, any other frequency enables it for uplink.
func (p *Plan) SetChannel(i int, frequency uint32, minDR, maxDR int) error {
	if i < 0 || i >= MaxChannels {
		return errors.Errorf("channel %d does not exist", i)
	}
	p.channels[i] = &LogicalChannel{
		Frequency: frequency,
		MinDR:     minDR,
		MaxDR:     maxDR,
		enabled:   frequency != 0,
	}
	return nil
}

// EnableUplinkChannel enables the channel in the given slot for uplink.
func (p *Plan) EnableUplinkChannel(i int) error {
	if !p.HasChannel(i) {
		return errors.Errorf("channel %d does not exist", i)
	}
	p.channels[i].enabled = true
	return nil
}

// DisableUplinkChannel disables the channel in the given slot for uplink.
func (p *Plan) DisableUplinkChannel(i int) error {
	if !p.HasChannel(i) {
		return errors.Errorf("channel %d does not exist", i)
	}
	p.channels[i].enabled = false
	return nil
}

// EnabledUplinkChannelIndices returns the slots that are enabled for
// uplink.
func (p *Plan) EnabledUplinkChannelIndices() []int {
	var out []int
	for i, c := range p.channels {
		if c != nil && c.enabled {
			out = append(out, i)
		}
	}
	return out
}

// IsFrequencyValid returns true when the given frequency falls within one
// of the regulatory sub-bands.
func (p *Plan) IsFrequencyValid(frequency uint32) bool {
	return p.subBandFor(frequency) != nil
}

// SetAggregatedDutyCycle sets the device-wide duty-cycle (DutyCycleReq).
func (p *Plan) SetAggregatedDutyCycle(dc float64) {
	p.aggregatedDutyCycle = dc
}

// AggregatedDutyCycle returns the device-wide duty-cycle.
func (p *Plan) AggregatedDutyCycle() float64 {
	return p.aggregatedDutyCycle
}

// ChannelForTx selects uniformly at random one of the channels that are
// enabled for uplink, accept the given data-rate and have no pending
// duty-cycle wait. It returns false when no such channel exists.
func (p *Plan) ChannelForTx(dataRate int, now time.Duration) (int, bool) {
	var candidates []int
	for i, c := range p.channels {
		if c == nil || !c.enabled {
			continue
		}
		if dataRate < c.MinDR || dataRate > c.MaxDR {
			continue
		}
		if p.waitTime(c, now) > 0 {
			continue
		}
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[p.rng.Intn(len(candidates))], true
}

// NextTransmissionDelay returns the smallest duty-cycle wait over the
// channels enabled for uplink. It returns false when no channel is
// enabled.
func (p *Plan) NextTransmissionDelay(now time.Duration) (time.Duration, bool) {
	var (
		found bool
		wait  time.Duration
	)
	for _, c := range p.channels {
		if c == nil || !c.enabled {
			continue
		}
		w := p.waitTime(c, now)
		if !found || w < wait {
			found = true
			wait = w
		}
	}
	return wait, found
}

// RecordTransmission accounts a transmission of the given airtime that
// started at the given time on the channel in slot i. The sub-band of the
// channel is blocked until start + airtime / dutyCycle, the aggregated
// duty-cycle is accounted the same way.
func (p *Plan) RecordTransmission(i int, start, airtime time.Duration) error {
	if !p.HasChannel(i) {
		return errors.Errorf("channel %d does not exist", i)
	}

	sb := p.subBandFor(p.channels[i].Frequency)
	if sb == nil {
		return errors.Errorf("frequency %d outside any sub-band", p.channels[i].Frequency)
	}
	sb.nextTX = start + time.Duration(float64(airtime)/sb.dutyCycle)

	if p.aggregatedDutyCycle > 0 {
		p.aggregatedNextTX = start + time.Duration(float64(airtime)/p.aggregatedDutyCycle)
	}

	return nil
}

// waitTime returns the duty-cycle wait for the given channel: the larger
// of the sub-band wait and the aggregated wait.
func (p *Plan) waitTime(c *LogicalChannel, now time.Duration) time.Duration {
	var wait time.Duration
	if sb := p.subBandFor(c.Frequency); sb != nil && sb.nextTX > now {
		wait = sb.nextTX - now
	}
	if agg := p.aggregatedNextTX - now; agg > wait {
		wait = agg
	}
	return wait
}

func (p *Plan) subBandFor(frequency uint32) *subBand {
	for i := range p.subBands {
		if frequency >= p.subBands[i].minFrequency && frequency <= p.subBands[i].maxFrequency {
			return &p.subBands[i]
		}
	}
	return nil
}
