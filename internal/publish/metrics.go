package publish

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/ssc-monitor/internal/state"
)

// MeasurementReceiverChannel is the InfluxDB measurement for channel telemetry.
const MeasurementReceiverChannel = "receiver_channel"

// PointWriter queues time-series points.
// Satisfied by *influxdb.Client.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

// MetricsWriter records numeric channel telemetry for every change.
//
// One point is written per channel that has at least one numeric field:
// battery_minutes, gain and frequency when known and parseable, and muted
// as 0/1 when known.
type MetricsWriter struct {
	writer PointWriter
	states StateReader
	now    func() time.Time

	logger   Logger
	loggerMu sync.RWMutex

	points atomic.Uint64
}

// NewMetricsWriter creates a telemetry writer.
func NewMetricsWriter(writer PointWriter, states StateReader) *MetricsWriter {
	return &MetricsWriter{
		writer: writer,
		states: states,
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the writer.
func (m *MetricsWriter) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

// OnStateChanged writes one point per channel of the changed receiver.
func (m *MetricsWriter) OnStateChanged(ctx context.Context, key string) {
	if contextDone(ctx) {
		return
	}

	ds, err := m.states.Device(key)
	if errors.Is(err, state.ErrDeviceNotFound) {
		return
	}
	if err != nil {
		m.getLogger().Error("reading receiver state", "device", key, "error", err)
		return
	}

	ts := ds.UpdatedAt
	if ts.IsZero() {
		ts = m.now()
	}

	for i, ch := range ds.Channels {
		fields := channelFields(ch)
		if len(fields) == 0 {
			continue
		}
		m.writer.WritePointWithTime(MeasurementReceiverChannel, map[string]string{
			"receiver": key,
			"channel":  strconv.Itoa(i + 1),
		}, fields, ts)
		m.points.Add(1)
	}
}

// Points returns the number of points queued.
func (m *MetricsWriter) Points() uint64 {
	return m.points.Load()
}

// channelFields extracts the numeric fields of one channel.
func channelFields(ch state.ChannelState) map[string]any {
	fields := make(map[string]any, 4)

	if battery, ok := ch.Battery.Get(); ok {
		fields["battery_minutes"] = battery
	}
	if v, ok := numeric(ch.Gain); ok {
		fields["gain"] = v
	}
	if v, ok := numeric(ch.Frequency); ok {
		fields["frequency"] = v
	}
	if muted, ok := ch.Mute.Get(); ok {
		v := 0.0
		if muted {
			v = 1.0
		}
		fields["muted"] = v
	}
	return fields
}

func numeric(f state.Field[string]) (float64, bool) {
	s, ok := f.Get()
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func (m *MetricsWriter) getLogger() Logger {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	return m.logger
}
