package receiver

import (
	"fmt"
	"net/netip"

	"github.com/nerrad567/ssc-monitor/internal/infrastructure/config"
)

// Device is one statically configured SSC receiver.
type Device struct {
	// Key is the unique state key, e.g. "R1".
	Key string

	// Name is the display name used in logs.
	Name string

	// Addr is the receiver's IP address and SSC port.
	Addr netip.AddrPort
}

// String returns "key (addr)" for log output.
func (d Device) String() string {
	return fmt.Sprintf("%s (%s)", d.Key, d.Addr)
}

// Registry is the immutable set of known receivers.
//
// Thread Safety:
//   - Registry is never mutated after NewRegistry returns, so all methods
//     are safe for concurrent use without locking.
type Registry struct {
	devices []Device
	keys    map[string]struct{}
	byAddr  map[netip.Addr]int
}

// NewRegistry builds a registry from devices, preserving their order.
//
// Returns:
//   - *Registry: The registry
//   - error: ErrInvalidDevice, ErrDuplicateKey or ErrDuplicateAddress
func NewRegistry(devices []Device) (*Registry, error) {
	r := &Registry{
		devices: make([]Device, 0, len(devices)),
		keys:    make(map[string]struct{}, len(devices)),
		byAddr:  make(map[netip.Addr]int, len(devices)),
	}

	for _, d := range devices {
		if d.Key == "" {
			return nil, fmt.Errorf("%w: empty key", ErrInvalidDevice)
		}
		if !d.Addr.IsValid() || d.Addr.Port() == 0 {
			return nil, fmt.Errorf("%w: %s: address %q", ErrInvalidDevice, d.Key, d.Addr)
		}
		if _, exists := r.keys[d.Key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, d.Key)
		}

		d.Addr = netip.AddrPortFrom(d.Addr.Addr().Unmap(), d.Addr.Port())
		if other, exists := r.byAddr[d.Addr.Addr()]; exists {
			return nil, fmt.Errorf("%w: %s and %s share %s",
				ErrDuplicateAddress, r.devices[other].Key, d.Key, d.Addr.Addr())
		}
		if d.Name == "" {
			d.Name = d.Key
		}

		r.keys[d.Key] = struct{}{}
		r.byAddr[d.Addr.Addr()] = len(r.devices)
		r.devices = append(r.devices, d)
	}

	return r, nil
}

// FromConfig builds a registry from the receivers section of config.yaml.
func FromConfig(receivers []config.ReceiverConfig) (*Registry, error) {
	devices := make([]Device, 0, len(receivers))
	for i, rc := range receivers {
		addr, err := netip.ParseAddr(rc.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: receivers[%d]: %w", ErrInvalidDevice, i, err)
		}
		port := rc.Port
		if port == 0 {
			port = config.DefaultSSCPort
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("%w: receivers[%d]: port %d", ErrInvalidDevice, i, port)
		}
		devices = append(devices, Device{
			Key:  rc.Key,
			Name: rc.Name,
			Addr: netip.AddrPortFrom(addr, uint16(port)), // #nosec G115 -- range checked above
		})
	}
	return NewRegistry(devices)
}

// ByAddress returns the receiver with exactly this IP address.
// IPv4-mapped IPv6 addresses match their IPv4 form; the source port is
// not considered.
func (r *Registry) ByAddress(addr netip.Addr) (Device, error) {
	i, ok := r.byAddr[addr.Unmap()]
	if !ok {
		return Device{}, fmt.Errorf("%w: address %s", ErrDeviceNotFound, addr)
	}
	return r.devices[i], nil
}

// List returns all receivers in configuration order.
func (r *Registry) List() []Device {
	out := make([]Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// Len returns the number of registered receivers.
func (r *Registry) Len() int {
	return len(r.devices)
}
