// Package battery simulates the state of charge of the microgrid storage unit
// for a planned power sequence.
package battery

import "github.com/kilianp07/microgrid/core/model"

// Trajectory is the result of a simulation.
type Trajectory struct {
	// SoC holds T+1 fractions of capacity, SoC[0] being the initial state.
	SoC []float64
	// Shortfall[t] is the fraction of capacity the lower SoC clamp added back
	// after step t. Overflow[t] is the fraction the upper clamp removed.
	Shortfall []float64
	Overflow  []float64
}

// Clamped reports whether any step hit the SoC window.
func (tr Trajectory) Clamped() bool {
	for t := range tr.Shortfall {
		if tr.Shortfall[t] > 0 || tr.Overflow[t] > 0 {
			return true
		}
	}
	return false
}

// Simulate returns the SoC trajectory for the battery power sequence.
// Positive power discharges the battery, negative power charges it.
func Simulate(power []float64, p model.BatteryParams) []float64 {
	return Trace(power, p).SoC
}

// Trace runs the simulation and also reports how much each step was clamped
// into [MinSoC, MaxSoC].
func Trace(power []float64, p model.BatteryParams) Trajectory {
	tr := Trajectory{
		SoC:       make([]float64, len(power)+1),
		Shortfall: make([]float64, len(power)),
		Overflow:  make([]float64, len(power)),
	}
	capacity := p.CapacityKWh
	minE := p.MinSoC * capacity
	maxE := p.MaxSoC * capacity

	energy := p.InitialSoC * capacity
	tr.SoC[0] = p.InitialSoC
	for t, pw := range power {
		if pw >= 0 {
			// losses make the battery give up more than it delivers
			energy -= pw * p.StepHours / p.DischargeEff
		} else {
			energy += -pw * p.StepHours * p.ChargeEff
		}
		if energy < minE {
			tr.Shortfall[t] = (minE - energy) / capacity
			energy = minE
		}
		if energy > maxE {
			tr.Overflow[t] = (energy - maxE) / capacity
			energy = maxE
		}
		tr.SoC[t+1] = energy / capacity
	}
	return tr
}
