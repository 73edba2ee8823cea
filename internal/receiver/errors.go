package receiver

import "errors"

// Domain errors for the receiver package.
//
//	if errors.Is(err, receiver.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when no receiver has the given key or address.
	ErrDeviceNotFound = errors.New("receiver: not found")

	// ErrDuplicateKey is returned when two receivers share a state key.
	ErrDuplicateKey = errors.New("receiver: duplicate key")

	// ErrDuplicateAddress is returned when two receivers share an IP address.
	// Inbound datagrams are attributed by address, so it must be unique.
	ErrDuplicateAddress = errors.New("receiver: duplicate address")

	// ErrInvalidDevice is returned when a receiver definition is incomplete or malformed.
	ErrInvalidDevice = errors.New("receiver: invalid")
)
