package state

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// EngineStats holds reconciliation counters.
type EngineStats struct {
	Reconciled     uint64 `json:"reconciled"`
	ChannelMerges  uint64 `json:"channel_merges"`
	DevicesCreated uint64 `json:"devices_created"`
}

// Engine folds decoded updates into the Store.
//
// Reconcile is the only code path that mutates stored state. A field that
// has been reported is only ever replaced by a newer reported value; an
// update that omits it leaves it untouched.
//
// Thread Safety:
//   - Reconcile may be called concurrently; merges are serialised by the
//     store's write lock.
type Engine struct {
	store *Store
	now   func() time.Time

	logger   Logger
	loggerMu sync.RWMutex

	reconciled     atomic.Uint64
	channelMerges  atomic.Uint64
	devicesCreated atomic.Uint64
}

// NewEngine creates an engine writing to store.
func NewEngine(store *Store) *Engine {
	return &Engine{
		store:  store,
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.loggerMu.Lock()
	e.logger = logger
	e.loggerMu.Unlock()
}

// Reconcile merges update into the state of the receiver with the given
// key and notifies listeners.
//
// Channel c is merged only when update.Channels[c-1] is non-nil. The device
// entry is created on the first merge. Listeners are notified exactly once
// per call, after the lock is released, whether or not anything was merged.
func (e *Engine) Reconcile(ctx context.Context, key string, update Update) {
	e.reconciled.Add(1)

	merged := e.merge(key, update)
	if len(merged) > 0 {
		e.getLogger().Debug("state reconciled", "device", key, "channels", merged)
	} else {
		e.getLogger().Debug("update carried no channel data", "device", key)
	}

	e.store.notify(ctx, key)
}

// merge applies update under the store write lock and returns the merged
// channel numbers.
func (e *Engine) merge(key string, update Update) []int {
	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var merged []int
	ds := s.devices[key]

	for n := 1; n <= ChannelCount; n++ {
		ch := update.Channels[n-1]
		if ch == nil {
			continue
		}

		if ds == nil {
			ds = &DeviceState{Key: key}
			s.devices[key] = ds
			e.devicesCreated.Add(1)
			e.getLogger().Info("receiver state created", "device", key)
		}

		ds.Channels[n-1] = mergeChannel(ds.Channels[n-1], ch, update.DeviceName)
		merged = append(merged, n)
	}

	if len(merged) > 0 {
		ds.UpdatedAt = e.now()
		e.channelMerges.Add(uint64(len(merged)))
	}
	return merged
}

// mergeChannel resolves each field of one channel against its prior value.
func mergeChannel(prior ChannelState, ch *ChannelUpdate, deviceName Field[string]) ChannelState {
	next := ChannelState{
		Name:      nonEmpty(ch.Name).Or(nonEmpty(deviceName)),
		Mute:      ch.Mute,
		Frequency: nonEmpty(ch.Frequency),
		Gain:      ch.Gain,
		Battery:   ch.BatteryMinutes,
		Warnings:  cloneList(ch.Warnings),
		Mates:     cloneList(ch.Mates),
	}

	return ChannelState{
		Name:      next.Name.Or(prior.Name),
		Mute:      next.Mute.Or(prior.Mute),
		Frequency: next.Frequency.Or(prior.Frequency),
		Gain:      next.Gain.Or(prior.Gain),
		Battery:   next.Battery.Or(prior.Battery),
		Warnings:  next.Warnings.Or(prior.Warnings),
		Mates:     next.Mates.Or(prior.Mates),
	}
}

// nonEmpty treats an empty string as carrying no information.
func nonEmpty(f Field[string]) Field[string] {
	if v, ok := f.Get(); ok && v == "" {
		return Unknown[string]()
	}
	return f
}

// Stats returns reconciliation counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Reconciled:     e.reconciled.Load(),
		ChannelMerges:  e.channelMerges.Load(),
		DevicesCreated: e.devicesCreated.Load(),
	}
}

func (e *Engine) getLogger() Logger {
	e.loggerMu.RLock()
	defer e.loggerMu.RUnlock()
	return e.logger
}
