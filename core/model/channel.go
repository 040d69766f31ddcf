package model

import "fmt"

// Channel identifies a named time series handed over by the forecasting and
// physical-model collaborators.
type Channel int

const (
	ChannelLoad Channel = iota
	ChannelPV
	ChannelWind
	ChannelIrradiance
	ChannelTemperature
)

// Channels lists every known channel in declaration order.
var Channels = []Channel{ChannelLoad, ChannelPV, ChannelWind, ChannelIrradiance, ChannelTemperature}

// String returns the column name used for the channel in datasets.
func (c Channel) String() string {
	switch c {
	case ChannelLoad:
		return "load"
	case ChannelPV:
		return "pv"
	case ChannelWind:
		return "wind"
	case ChannelIrradiance:
		return "irradiance"
	case ChannelTemperature:
		return "temperature"
	default:
		return "unknown"
	}
}

// ParseChannel maps a column name to its Channel.
func ParseChannel(name string) (Channel, error) {
	for _, c := range Channels {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", name)
}

// Required reports whether the dispatch problem needs the channel.
func (c Channel) Required() bool {
	return c == ChannelLoad || c == ChannelPV || c == ChannelWind
}
