package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/ssc-monitor/internal/infrastructure/mqtt"
	"github.com/nerrad567/ssc-monitor/internal/state"
)

// RetainedPublisher publishes retained MQTT messages.
// Satisfied by *mqtt.Client.
type RetainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// MQTTStats holds republisher counters.
type MQTTStats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
}

// MQTTPublisher republishes each receiver's snapshot as a retained message
// on {prefix}/state/{key} whenever the store reports a change.
//
// Receivers with no merged state are skipped. Publish failures are logged
// and counted; the next change publishes the full snapshot again.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type MQTTPublisher struct {
	publisher RetainedPublisher
	topics    mqtt.Topics
	states    StateReader

	logger   Logger
	loggerMu sync.RWMutex

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewMQTTPublisher creates a publisher writing through publisher.
func NewMQTTPublisher(publisher RetainedPublisher, topics mqtt.Topics, states StateReader) *MQTTPublisher {
	return &MQTTPublisher{
		publisher: publisher,
		topics:    topics,
		states:    states,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the publisher.
func (p *MQTTPublisher) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

// OnStateChanged publishes the snapshot of the changed receiver.
func (p *MQTTPublisher) OnStateChanged(ctx context.Context, key string) {
	if contextDone(ctx) {
		return
	}
	p.publishDevice(key)
}

// PublishAll republishes every receiver that has state. Called after a
// broker reconnect so retained topics reflect the current store.
func (p *MQTTPublisher) PublishAll(ctx context.Context) {
	for _, key := range p.states.Keys() {
		if contextDone(ctx) {
			return
		}
		p.publishDevice(key)
	}
}

func (p *MQTTPublisher) publishDevice(key string) {
	ds, err := p.states.Device(key)
	if errors.Is(err, state.ErrDeviceNotFound) {
		p.getLogger().Debug("no state to publish yet", "device", key)
		return
	}
	if err != nil {
		p.getLogger().Error("reading receiver state", "device", key, "error", err)
		return
	}

	payload, err := json.Marshal(ds.Snapshot())
	if err != nil {
		p.failed.Add(1)
		p.getLogger().Error("encoding receiver snapshot", "device", key, "error", err)
		return
	}

	topic := p.topics.State(key)
	if err := p.publisher.PublishRetained(topic, payload); err != nil {
		p.failed.Add(1)
		p.getLogger().Warn("publishing receiver state failed", "device", key, "topic", topic, "error", err)
		return
	}

	p.published.Add(1)
	p.getLogger().Debug("receiver state published", "device", key, "topic", topic)
}

// Stats returns republisher counters.
func (p *MQTTPublisher) Stats() MQTTStats {
	return MQTTStats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *MQTTPublisher) getLogger() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}
