package ssc

import "github.com/nerrad567/ssc-monitor/internal/state"

// Ensure the engine satisfies Reconciler.
var _ Reconciler = (*state.Engine)(nil)

// State maps the update onto the receiver state model.
//
// Channel n is present when the update carries an rx-n record or a tx-n
// mate record. Mute and battery come from the mate record; rx mute is
// not a mute source.
func (u Update) State() state.Update {
	var out state.Update
	if name, ok := u.DeviceName(); ok {
		out.DeviceName = state.Known(name)
	}

	for n := 1; n <= state.ChannelCount; n++ {
		rx, mate := u.Channel(n), u.Mate(n)
		if rx == nil && mate == nil {
			continue
		}

		ch := &state.ChannelUpdate{}
		if rx != nil {
			ch.Name = field(rx.Name)
			ch.Frequency = scalarField(rx.Frequency)
			ch.Gain = scalarField(rx.Gain)
			ch.Warnings = listField(rx.Warnings)
			ch.Mates = listField(rx.Mates)
		}
		if mate != nil {
			ch.Mute = field(mate.Mute)
			if minutes, ok := mate.BatteryMinutes(); ok {
				ch.BatteryMinutes = state.Known(minutes)
			}
		}
		out.Channels[n-1] = ch
	}
	return out
}

func field[T any](o Optional[T]) state.Field[T] {
	if v, ok := o.Get(); ok {
		return state.Known(v)
	}
	return state.Unknown[T]()
}

func scalarField(o Optional[Scalar]) state.Field[string] {
	if v, ok := o.Get(); ok {
		return state.Known(v.String())
	}
	return state.Unknown[string]()
}

func listField(o Optional[TextList]) state.Field[[]string] {
	if v, ok := o.Get(); ok {
		return state.Known([]string(v))
	}
	return state.Unknown[[]string]()
}
