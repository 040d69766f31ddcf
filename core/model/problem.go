package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidData is returned when problem data violates its preconditions.
var ErrInvalidData = errors.New("invalid problem data")

// ProblemData holds the per-timestep supply and demand for one horizon.
// All series are in kW and share the same length.
type ProblemData struct {
	PV   []float64 `json:"pv"`
	Wind []float64 `json:"wind"`
	Load []float64 `json:"load"`
}

// Horizon returns the number of timesteps T.
func (d ProblemData) Horizon() int { return len(d.Load) }

// Series returns the series stored for the channel, or nil when the channel
// is not part of the dispatch problem.
func (d ProblemData) Series(c Channel) []float64 {
	switch c {
	case ChannelLoad:
		return d.Load
	case ChannelPV:
		return d.PV
	case ChannelWind:
		return d.Wind
	default:
		return nil
	}
}

// SetSeries stores values for one of the required channels.
func (d *ProblemData) SetSeries(c Channel, values []float64) error {
	switch c {
	case ChannelLoad:
		d.Load = values
	case ChannelPV:
		d.PV = values
	case ChannelWind:
		d.Wind = values
	default:
		return fmt.Errorf("%w: channel %s is not a dispatch input", ErrInvalidData, c)
	}
	return nil
}

// Validate checks lengths, finiteness and the sign of renewable supply.
func (d ProblemData) Validate() error {
	t := d.Horizon()
	if t == 0 {
		return fmt.Errorf("%w: empty horizon", ErrInvalidData)
	}
	for _, c := range []Channel{ChannelPV, ChannelWind, ChannelLoad} {
		s := d.Series(c)
		if len(s) != t {
			return fmt.Errorf("%w: %s has %d values, want %d", ErrInvalidData, c, len(s), t)
		}
		for i, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s[%d] is not finite", ErrInvalidData, c, i)
			}
			if c != ChannelLoad && v < 0 {
				return fmt.Errorf("%w: %s[%d] is negative", ErrInvalidData, c, i)
			}
		}
	}
	return nil
}
