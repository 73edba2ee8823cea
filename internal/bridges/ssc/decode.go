package ssc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/nerrad567/ssc-monitor/internal/receiver"
)

// Directory resolves a datagram's source address to a registered receiver.
// Satisfied by *receiver.Registry.
type Directory interface {
	ByAddress(addr netip.Addr) (receiver.Device, error)
}

// Decoder turns raw datagrams into attributed updates.
//
// Thread Safety:
//   - Decoder holds no mutable state; Decode is safe for concurrent use
//     if the Directory is.
type Decoder struct {
	directory Directory
}

// NewDecoder creates a decoder that attributes datagrams via directory.
func NewDecoder(directory Directory) *Decoder {
	return &Decoder{directory: directory}
}

// Decode parses raw and attributes it to the receiver at source.
//
// The payload is parsed before the source is looked up, so a malformed
// datagram from an unknown address reports ErrMalformedPayload.
//
// Parameters:
//   - raw: Datagram payload
//   - source: Sender address; only the IP is matched
//
// Returns:
//   - receiver.Device: The attributed receiver
//   - Update: The decoded update
//   - error: ErrMalformedPayload or ErrUnknownSource (wrapped)
func (d *Decoder) Decode(raw []byte, source netip.Addr) (receiver.Device, Update, error) {
	update, err := ParseUpdate(raw)
	if err != nil {
		return receiver.Device{}, Update{}, err
	}

	dev, err := d.directory.ByAddress(source)
	if err != nil {
		return receiver.Device{}, Update{}, fmt.Errorf("%w: %s: %w", ErrUnknownSource, source, err)
	}

	return dev, update, nil
}

// ParseUpdate decodes a datagram payload without attributing it.
// Only invalid JSON or a top level other than an object is malformed; a
// field with an unexpected type is dropped and the rest is kept.
func ParseUpdate(raw []byte) (Update, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Update{}, fmt.Errorf("%w: not a JSON object", ErrMalformedPayload)
	}

	var update Update
	if err := json.Unmarshal(trimmed, &update); err != nil {
		return Update{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return update, nil
}
