package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams is returned when system parameters are inconsistent.
var ErrInvalidParams = errors.New("invalid system parameters")

// Costs are the unit costs of each controllable resource in $/kWh.
type Costs struct {
	Grid    float64 `json:"grid"`
	Diesel  float64 `json:"diesel"`
	Battery float64 `json:"battery"`
}

// Limits are the hard power limits in kW.
type Limits struct {
	MaxGrid      float64 `json:"max_grid"`
	MaxDiesel    float64 `json:"max_diesel"`
	MaxCharge    float64 `json:"max_charge"`
	MaxDischarge float64 `json:"max_discharge"`
}

// BatteryParams describes the storage unit. SoC values are fractions of
// CapacityKWh.
type BatteryParams struct {
	CapacityKWh  float64 `json:"capacity_kwh"`
	InitialSoC   float64 `json:"initial_soc"`
	MinSoC       float64 `json:"min_soc"`
	MaxSoC       float64 `json:"max_soc"`
	ChargeEff    float64 `json:"charge_eff"`
	DischargeEff float64 `json:"discharge_eff"`
	StepHours    float64 `json:"step_hours"`
}

// SystemParams groups every parameter of the microgrid. It is passed by value
// and never mutated after validation.
type SystemParams struct {
	Costs   Costs         `json:"costs"`
	Limits  Limits        `json:"limits"`
	Battery BatteryParams `json:"battery"`
}

// DefaultSystemParams returns the parameters of the reference microgrid.
func DefaultSystemParams() SystemParams {
	return SystemParams{
		Costs:  Costs{Grid: 0.15, Diesel: 0.30, Battery: 0.02},
		Limits: Limits{MaxGrid: 100, MaxDiesel: 50, MaxCharge: 30, MaxDischarge: 30},
		Battery: BatteryParams{
			CapacityKWh:  100,
			InitialSoC:   0.5,
			MinSoC:       0.2,
			MaxSoC:       0.9,
			ChargeEff:    0.95,
			DischargeEff: 0.95,
			StepHours:    1,
		},
	}
}

// Validate checks the parameters for physical consistency.
func (p SystemParams) Validate() error {
	c, l, b := p.Costs, p.Limits, p.Battery
	if !finite(c.Grid, c.Diesel, c.Battery, l.MaxGrid, l.MaxDiesel, l.MaxCharge, l.MaxDischarge,
		b.CapacityKWh, b.InitialSoC, b.MinSoC, b.MaxSoC, b.ChargeEff, b.DischargeEff, b.StepHours) {
		return fmt.Errorf("%w: values must be finite", ErrInvalidParams)
	}
	if c.Grid < 0 || c.Diesel < 0 || c.Battery < 0 {
		return fmt.Errorf("%w: costs must be non-negative", ErrInvalidParams)
	}
	if l.MaxGrid < 0 || l.MaxDiesel < 0 || l.MaxCharge < 0 || l.MaxDischarge < 0 {
		return fmt.Errorf("%w: limits must be non-negative", ErrInvalidParams)
	}
	return b.Validate()
}

// Validate checks the battery parameters.
func (b BatteryParams) Validate() error {
	switch {
	case b.CapacityKWh <= 0:
		return fmt.Errorf("%w: capacity_kwh must be positive", ErrInvalidParams)
	case b.MinSoC < 0 || b.MaxSoC > 1 || b.MinSoC > b.MaxSoC:
		return fmt.Errorf("%w: soc window [%g, %g] outside [0, 1]", ErrInvalidParams, b.MinSoC, b.MaxSoC)
	case b.InitialSoC < b.MinSoC || b.InitialSoC > b.MaxSoC:
		return fmt.Errorf("%w: initial_soc %g outside [%g, %g]", ErrInvalidParams, b.InitialSoC, b.MinSoC, b.MaxSoC)
	case b.ChargeEff <= 0 || b.ChargeEff > 1:
		return fmt.Errorf("%w: charge_eff must be in (0, 1]", ErrInvalidParams)
	case b.DischargeEff <= 0 || b.DischargeEff > 1:
		return fmt.Errorf("%w: discharge_eff must be in (0, 1]", ErrInvalidParams)
	case b.StepHours <= 0:
		return fmt.Errorf("%w: step_hours must be positive", ErrInvalidParams)
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
