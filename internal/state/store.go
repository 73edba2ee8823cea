package state

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Logger defines the logging interface used by the state package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Listener is notified after every reconciled update.
type Listener interface {
	OnStateChanged(ctx context.Context, key string)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, key string)

// OnStateChanged calls f(ctx, key).
func (f ListenerFunc) OnStateChanged(ctx context.Context, key string) {
	f(ctx, key)
}

// Store holds the reconciled state of every receiver.
//
// The Engine is the only writer. Readers receive deep copies or rendered
// snapshots, so nothing they hold aliases stored state.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	devices map[string]*DeviceState

	listeners   []Listener
	listenersMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		devices: make(map[string]*DeviceState),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// AddListener registers l for change notifications.
// Listeners are called in registration order.
func (s *Store) AddListener(l Listener) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, l)
	s.listenersMu.Unlock()
}

// notify calls every listener. Must be called without s.mu held.
func (s *Store) notify(ctx context.Context, key string) {
	s.listenersMu.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		s.callListener(ctx, l, key)
	}
}

func (s *Store) callListener(ctx context.Context, l Listener, key string) {
	defer func() {
		if r := recover(); r != nil {
			s.getLogger().Error("state listener panic", "device", key, "panic", fmt.Sprint(r))
		}
	}()
	l.OnStateChanged(ctx, key)
}

// Snapshot renders every device.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Snapshot, len(s.devices))
	for key, ds := range s.devices {
		out[key] = ds.Snapshot()
	}
	return out
}

// Device returns a deep copy of one device's state.
//
// Returns:
//   - DeviceState: Copy of the stored state
//   - error: ErrDeviceNotFound if no update has been merged for key
func (s *Store) Device(key string) (DeviceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.devices[key]
	if !ok {
		return DeviceState{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, key)
	}
	return ds.Clone(), nil
}

// DeviceSnapshot renders one device.
func (s *Store) DeviceSnapshot(key string) (DeviceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.devices[key]
	if !ok {
		return DeviceSnapshot{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, key)
	}
	return ds.Snapshot(), nil
}

// Channel renders channel n (1 or 2) of one device.
func (s *Store) Channel(key string, n int) (ChannelSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.devices[key]
	if !ok {
		return ChannelSnapshot{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, key)
	}
	ch, err := ds.Channel(n)
	if err != nil {
		return ChannelSnapshot{}, fmt.Errorf("%w: %s/%d", err, key, n)
	}
	return ch.Snapshot(), nil
}

// Attribute renders a single attribute of one channel.
//
// Returns:
//   - string: Rendered value; "" is a valid concrete value
//   - error: ErrDeviceNotFound, ErrChannelNotFound, ErrAttributeNotFound
//     or ErrAttributeUnknown (wrapped)
func (s *Store) Attribute(key string, n int, attribute string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.devices[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, key)
	}
	ch, err := ds.Channel(n)
	if err != nil {
		return "", fmt.Errorf("%w: %s/%d", err, key, n)
	}
	v, err := ch.Attribute(attribute)
	if err != nil {
		return "", fmt.Errorf("%w: %s/%d/%s", err, key, n, attribute)
	}
	return v, nil
}

// Keys returns the keys of every device with state, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.devices))
	for key := range s.devices {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of devices with state.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

func (s *Store) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}
