package state

import (
	"strconv"
	"strings"
	"time"
)

// ChannelCount is the number of logical channels per receiver.
const ChannelCount = 2

// UnknownValue is the rendering of a field that has never been reported.
const UnknownValue = "unknown"

// Mute renderings.
const (
	MuteMuted   = "muted"
	MuteUnmuted = "unmuted"
)

// Attribute names accepted by ChannelState.Attribute.
const (
	AttrName      = "name"
	AttrMute      = "mute"
	AttrFrequency = "frequency"
	AttrGain      = "gain"
	AttrBattery   = "battery"
	AttrWarnings  = "warnings"
	AttrMates     = "mates"
)

// Attributes lists every queryable channel attribute in display order.
var Attributes = []string{
	AttrName, AttrMute, AttrFrequency, AttrGain, AttrBattery, AttrWarnings, AttrMates,
}

// ChannelState is the reconciled state of one channel.
// Every field is either concrete or Unknown.
type ChannelState struct {
	Name      Field[string]
	Mute      Field[bool]
	Frequency Field[string]
	Gain      Field[string]
	Battery   Field[float64] // minutes
	Warnings  Field[[]string]
	Mates     Field[[]string]
}

// Clone returns a deep copy of the channel.
func (c ChannelState) Clone() ChannelState {
	c.Warnings = cloneList(c.Warnings)
	c.Mates = cloneList(c.Mates)
	return c
}

// Attribute returns the rendered value of a single attribute.
//
// Returns:
//   - string: Rendered value; may be "" for a concrete empty list
//   - error: ErrAttributeNotFound for an invalid name, ErrAttributeUnknown
//     if the attribute has never been reported
func (c ChannelState) Attribute(name string) (string, error) {
	var known bool
	switch name {
	case AttrName:
		known = c.Name.IsKnown()
	case AttrMute:
		known = c.Mute.IsKnown()
	case AttrFrequency:
		known = c.Frequency.IsKnown()
	case AttrGain:
		known = c.Gain.IsKnown()
	case AttrBattery:
		known = c.Battery.IsKnown()
	case AttrWarnings:
		known = c.Warnings.IsKnown()
	case AttrMates:
		known = c.Mates.IsKnown()
	default:
		return "", ErrAttributeNotFound
	}
	if !known {
		return "", ErrAttributeUnknown
	}
	return c.Snapshot().value(name), nil
}

// Snapshot renders every field as a string.
func (c ChannelState) Snapshot() ChannelSnapshot {
	return ChannelSnapshot{
		Name:      renderString(c.Name),
		Mute:      renderMute(c.Mute),
		Frequency: renderString(c.Frequency),
		Gain:      renderString(c.Gain),
		Battery:   renderBattery(c.Battery),
		Warnings:  renderList(c.Warnings),
		Mates:     renderList(c.Mates),
	}
}

// DeviceState is the reconciled state of one receiver.
type DeviceState struct {
	Key       string
	Channels  [ChannelCount]ChannelState
	UpdatedAt time.Time
}

// Channel returns channel n (1-based).
func (d *DeviceState) Channel(n int) (ChannelState, error) {
	if n < 1 || n > ChannelCount {
		return ChannelState{}, ErrChannelNotFound
	}
	return d.Channels[n-1], nil
}

// Clone returns a deep copy of the device state.
func (d *DeviceState) Clone() DeviceState {
	out := *d
	for i := range out.Channels {
		out.Channels[i] = d.Channels[i].Clone()
	}
	return out
}

// Snapshot renders both channels.
func (d *DeviceState) Snapshot() DeviceSnapshot {
	return DeviceSnapshot{
		Channel1: d.Channels[0].Snapshot(),
		Channel2: d.Channels[1].Snapshot(),
	}
}

// ChannelSnapshot is the rendered form of a ChannelState.
type ChannelSnapshot struct {
	Name      string `json:"name"`
	Mute      string `json:"mute"`
	Frequency string `json:"frequency"`
	Gain      string `json:"gain"`
	Battery   string `json:"battery"`
	Warnings  string `json:"warnings"`
	Mates     string `json:"mates"`
}

func (s ChannelSnapshot) value(name string) string {
	switch name {
	case AttrName:
		return s.Name
	case AttrMute:
		return s.Mute
	case AttrFrequency:
		return s.Frequency
	case AttrGain:
		return s.Gain
	case AttrBattery:
		return s.Battery
	case AttrWarnings:
		return s.Warnings
	case AttrMates:
		return s.Mates
	}
	return ""
}

// DeviceSnapshot is the rendered form of a DeviceState.
type DeviceSnapshot struct {
	Channel1 ChannelSnapshot `json:"channel1"`
	Channel2 ChannelSnapshot `json:"channel2"`
}

// Snapshot maps device keys to their rendered state.
type Snapshot map[string]DeviceSnapshot

func renderString(f Field[string]) string {
	if v, ok := f.Get(); ok {
		return v
	}
	return UnknownValue
}

func renderMute(f Field[bool]) string {
	v, ok := f.Get()
	switch {
	case !ok:
		return UnknownValue
	case v:
		return MuteMuted
	default:
		return MuteUnmuted
	}
}

// renderBattery formats the lifetime in minutes, e.g. "42 minutes".
func renderBattery(f Field[float64]) string {
	v, ok := f.Get()
	if !ok {
		return UnknownValue
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + " minutes"
}

func renderList(f Field[[]string]) string {
	v, ok := f.Get()
	if !ok {
		return UnknownValue
	}
	return strings.Join(v, ", ")
}
