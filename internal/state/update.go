package state

// Update is one receiver notification, already attributed to a device.
type Update struct {
	// DeviceName is the device-level name. It names every channel in the
	// same update that carries no rx name of its own.
	DeviceName Field[string]

	// Channels[n-1] is nil when the notification carried nothing for
	// channel n. A non-nil entry with every field Unknown still counts
	// as channel data.
	Channels [ChannelCount]*ChannelUpdate
}

// ChannelUpdate holds the fields one notification reported for a channel.
// Unknown means the field was absent.
type ChannelUpdate struct {
	Name           Field[string]
	Mute           Field[bool]
	Frequency      Field[string]
	Gain           Field[string]
	BatteryMinutes Field[float64]
	Warnings       Field[[]string]
	Mates          Field[[]string]
}
