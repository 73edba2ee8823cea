package state

import "errors"

// Lookup errors for the state store.
//
// The API maps all of these to 404:
//
//	if errors.Is(err, state.ErrDeviceNotFound) {
//	    // no update has been merged for this receiver yet
//	}
var (
	// ErrDeviceNotFound is returned when no state exists for a device key.
	ErrDeviceNotFound = errors.New("state: device not found")

	// ErrChannelNotFound is returned for a channel number other than 1 or 2.
	ErrChannelNotFound = errors.New("state: channel not found")

	// ErrAttributeNotFound is returned for an unrecognised attribute name.
	ErrAttributeNotFound = errors.New("state: attribute not found")

	// ErrAttributeUnknown is returned when the attribute has never been reported.
	ErrAttributeUnknown = errors.New("state: attribute unknown")
)
