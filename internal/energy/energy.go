// Package energy implements the per-device energy accounting of the
// simulation. A Meter tracks how long the radio spends in each state and
// derives the consumed charge from the configured current draws; the
// remaining battery fraction feeds the DevStatusAns battery byte.
package energy

import (
	"time"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
)

// RadioState enumerates the radio states the meter accounts for.
type RadioState int

// Available radio states.
const (
	StateSleep RadioState = iota
	StateStandby
	StateRX
	StateTX
)

// String implements fmt.Stringer.
func (s RadioState) String() string {
	switch s {
	case StateSleep:
		return "SLEEP"
	case StateStandby:
		return "STANDBY"
	case StateRX:
		return "RX"
	case StateTX:
		return "TX"
	default:
		return "UNKNOWN"
	}
}

// Meter accumulates the time one device spends in each radio state.
// It is owned by the simulation goroutine and is not safe for concurrent
// use.
type Meter struct {
	enabled bool

	initialJoules  float64
	supplyVoltage  float64
	txCurrent      float64
	rxCurrent      float64
	standbyCurrent float64
	sleepCurrent   float64

	state     RadioState
	settledAt time.Duration

	spentSleep   time.Duration
	spentStandby time.Duration
	spentRX      time.Duration
	spentTX      time.Duration
}

// NewMeter returns a Meter for a radio that is sleeping at the given
// time.
func NewMeter(conf config.Config, now time.Duration) *Meter {
	return &Meter{
		enabled:        conf.Energy.Enabled,
		initialJoules:  conf.Energy.InitialJoules,
		supplyVoltage:  conf.Energy.SupplyVoltage,
		txCurrent:      conf.Energy.TXCurrentAmpere,
		rxCurrent:      conf.Energy.RXCurrentAmpere,
		standbyCurrent: conf.Energy.StandbyCurrentAmpere,
		sleepCurrent:   conf.Energy.SleepCurrentAmpere,
		state:          StateSleep,
		settledAt:      now,
	}
}

// Enabled returns true when energy accounting is enabled.
func (m *Meter) Enabled() bool {
	return m.enabled
}

// State returns the current radio state.
func (m *Meter) State() RadioState {
	return m.state
}

// SetState settles the time spent in the current state and switches the
// radio to the given state.
func (m *Meter) SetState(state RadioState, now time.Duration) {
	m.settle(now)
	m.state = state
}

// TimeInState returns the total time spent in the given state up to now.
func (m *Meter) TimeInState(state RadioState, now time.Duration) time.Duration {
	m.settle(now)
	switch state {
	case StateSleep:
		return m.spentSleep
	case StateStandby:
		return m.spentStandby
	case StateRX:
		return m.spentRX
	case StateTX:
		return m.spentTX
	default:
		return 0
	}
}

// ConsumedJoules returns the energy consumed up to now.
func (m *Meter) ConsumedJoules(now time.Duration) float64 {
	m.settle(now)
	consumed := m.spentSleep.Seconds() * m.sleepCurrent
	consumed += m.spentStandby.Seconds() * m.standbyCurrent
	consumed += m.spentRX.Seconds() * m.rxCurrent
	consumed += m.spentTX.Seconds() * m.txCurrent
	return consumed * m.supplyVoltage
}

// BatteryFraction returns the remaining battery charge as a fraction in
// [0, 1].
func (m *Meter) BatteryFraction(now time.Duration) float64 {
	if m.initialJoules <= 0 {
		return 0
	}
	remaining := m.initialJoules - m.ConsumedJoules(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining / m.initialJoules
}

// settle accounts the time since the last settlement to the current
// state.
func (m *Meter) settle(now time.Duration) {
	if now < m.settledAt {
		return
	}
	delta := now - m.settledAt
	switch m.state {
	case StateSleep:
		m.spentSleep += delta
	case StateStandby:
		m.spentStandby += delta
	case StateRX:
		m.spentRX += delta
	case StateTX:
		m.spentTX += delta
	}
	m.settledAt = now
}
