package publish

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/ssc-monitor/internal/bridges/ssc"
	"github.com/nerrad567/ssc-monitor/internal/infrastructure/mqtt"
	"github.com/nerrad567/ssc-monitor/internal/state"
)

type retainedMessage struct {
	topic   string
	payload []byte
}

type fakeRetained struct {
	mu       sync.Mutex
	err      error
	messages []retainedMessage
}

func (f *fakeRetained) PublishRetained(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, retainedMessage{topic: topic, payload: payload})
	return nil
}

func (f *fakeRetained) sent() []retainedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]retainedMessage(nil), f.messages...)
}

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
	ts          time.Time
}

type fakePointWriter struct {
	mu     sync.Mutex
	points []point
}

func (f *fakePointWriter) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	f.mu.Lock()
	f.points = append(f.points, point{measurement, tags, fields, ts})
	f.mu.Unlock()
}

func (f *fakePointWriter) written() []point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]point(nil), f.points...)
}

func newStore(t *testing.T) (*state.Store, func(key, raw string)) {
	t.Helper()
	store := state.NewStore()
	engine := state.NewEngine(store)
	apply := func(key, raw string) {
		u, err := ssc.ParseUpdate([]byte(raw))
		require.NoError(t, err)
		engine.Reconcile(context.Background(), key, u.State())
	}
	return store, apply
}

func TestMQTTPublisher_PublishesSnapshot(t *testing.T) {
	store, apply := newStore(t)
	fake := &fakeRetained{}
	store.AddListener(NewMQTTPublisher(fake, mqtt.NewTopics("ssc"), store))

	apply("R1", `{"rx1":{"name":"Vocal1","gain":5}}`)

	msgs := fake.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ssc/state/R1", msgs[0].topic)

	var snap state.DeviceSnapshot
	require.NoError(t, json.Unmarshal(msgs[0].payload, &snap))
	assert.Equal(t, "Vocal1", snap.Channel1.Name)
	assert.Equal(t, "5", snap.Channel1.Gain)
	assert.Equal(t, state.UnknownValue, snap.Channel2.Name)
}

func TestMQTTPublisher_SkipsDeviceWithoutState(t *testing.T) {
	store, apply := newStore(t)
	fake := &fakeRetained{}
	p := NewMQTTPublisher(fake, mqtt.NewTopics("ssc"), store)
	store.AddListener(p)

	apply("R1", `{"device":{"name":"Main"}}`)

	assert.Empty(t, fake.sent())
	assert.Equal(t, MQTTStats{}, p.Stats())
}

func TestMQTTPublisher_FailureCounted(t *testing.T) {
	store, apply := newStore(t)
	fake := &fakeRetained{err: mqtt.ErrNotConnected}
	p := NewMQTTPublisher(fake, mqtt.NewTopics("ssc"), store)
	store.AddListener(p)

	apply("R1", `{"rx1":{"name":"Vocal1"}}`)
	assert.Equal(t, uint64(1), p.Stats().Failed)

	fake.mu.Lock()
	fake.err = nil
	fake.mu.Unlock()

	apply("R1", `{"rx1":{"gain":1}}`)
	assert.Equal(t, MQTTStats{Published: 1, Failed: 1}, p.Stats())
}

func TestMQTTPublisher_PublishAll(t *testing.T) {
	store, apply := newStore(t)
	apply("R1", `{"rx1":{"name":"a"}}`)
	apply("R2", `{"rx2":{"name":"b"}}`)

	fake := &fakeRetained{}
	p := NewMQTTPublisher(fake, mqtt.NewTopics("venue/"), store)
	p.PublishAll(context.Background())

	msgs := fake.sent()
	require.Len(t, msgs, 2)
	assert.Equal(t, "venue/state/R1", msgs[0].topic)
	assert.Equal(t, "venue/state/R2", msgs[1].topic)
}

func TestMQTTPublisher_CancelledContext(t *testing.T) {
	store, apply := newStore(t)
	apply("R1", `{"rx1":{"name":"a"}}`)

	fake := &fakeRetained{}
	p := NewMQTTPublisher(fake, mqtt.NewTopics("ssc"), store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.OnStateChanged(ctx, "R1")
	p.PublishAll(ctx)

	assert.Empty(t, fake.sent())
}

func TestMetricsWriter_Fields(t *testing.T) {
	store, apply := newStore(t)
	writer := &fakePointWriter{}
	m := NewMetricsWriter(writer, store)
	store.AddListener(m)

	apply("R1", `{"rx1":{"frequency":"470.100","gain":"n/a","name":"Vocal1"},`+
		`"mates":{"tx1":{"mute":true,"battery":{"lifetime":42}}}}`)

	points := writer.written()
	require.Len(t, points, 1, "channel 2 has no numeric fields")
	p := points[0]
	assert.Equal(t, MeasurementReceiverChannel, p.measurement)
	assert.Equal(t, map[string]string{"receiver": "R1", "channel": "1"}, p.tags)
	assert.Equal(t, map[string]any{
		"battery_minutes": 42.0,
		"frequency":       470.1,
		"muted":           1.0,
	}, p.fields)
	assert.False(t, p.ts.IsZero())
	assert.Equal(t, uint64(1), m.Points())
}

func TestMetricsWriter_BothChannels(t *testing.T) {
	store, apply := newStore(t)
	writer := &fakePointWriter{}
	store.AddListener(NewMetricsWriter(writer, store))

	apply("R1", `{"mates":{"tx1":{"mute":false},"tx2":{"battery":{"lifetime":15}}}}`)

	points := writer.written()
	require.Len(t, points, 2)
	assert.Equal(t, "1", points[0].tags["channel"])
	assert.Equal(t, map[string]any{"muted": 0.0}, points[0].fields)
	assert.Equal(t, "2", points[1].tags["channel"])
	assert.Equal(t, map[string]any{"battery_minutes": 15.0}, points[1].fields)
}

func TestMetricsWriter_SkipsDeviceWithoutState(t *testing.T) {
	store, apply := newStore(t)
	writer := &fakePointWriter{}
	store.AddListener(NewMetricsWriter(writer, store))

	apply("R1", `{"device":{"name":"Main"}}`)
	assert.Empty(t, writer.written())
}
