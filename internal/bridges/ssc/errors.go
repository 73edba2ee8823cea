package ssc

import "errors"

// Domain errors for the SSC bridge package.
var (
	// ErrMalformedPayload is returned when an inbound datagram is not a
	// well-formed JSON object matching the SSC update shape.
	ErrMalformedPayload = errors.New("ssc: malformed payload")

	// ErrUnknownSource is returned when a datagram arrives from an address
	// that is not in the receiver registry.
	ErrUnknownSource = errors.New("ssc: unknown source")

	// ErrSendFailed is returned when a subscription could not be transmitted.
	ErrSendFailed = errors.New("ssc: send failed")

	// ErrTransportClosed is returned when sending on a closed transport.
	ErrTransportClosed = errors.New("ssc: transport closed")
)
