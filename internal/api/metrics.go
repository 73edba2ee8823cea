package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/ssc-monitor/internal/bridges/ssc"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	WebSocket     WSMetrics          `json:"websocket"`
	MQTT          MQTTMetrics        `json:"mqtt"`
	Bridge        *ssc.BridgeMetrics `json:"bridge,omitempty"`
	State         StateMetrics       `json:"state"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	Broadcasts       uint64 `json:"broadcasts"`
}

// MQTTMetrics contains MQTT client and republisher statistics.
type MQTTMetrics struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
}

// StateMetrics contains state store and reconciliation statistics.
type StateMetrics struct {
	Receivers      int    `json:"receivers"`
	Reconciled     uint64 `json:"reconciled"`
	ChannelMerges  uint64 `json:"channel_merges"`
	DevicesCreated uint64 `json:"devices_created"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			Broadcasts:       s.hub.Broadcasts(),
		},
		State: StateMetrics{
			Receivers: s.store.Len(),
		},
	}

	if s.mqtt != nil {
		metrics.MQTT.Connected = s.mqtt.IsConnected()
	}
	if s.publisher != nil {
		ps := s.publisher.Stats()
		metrics.MQTT.Published = ps.Published
		metrics.MQTT.Failed = ps.Failed
	}

	if s.bridge != nil {
		bm := s.bridge.Metrics()
		metrics.Bridge = &bm
	}

	if s.engine != nil {
		es := s.engine.Stats()
		metrics.State.Reconciled = es.Reconciled
		metrics.State.ChannelMerges = es.ChannelMerges
		metrics.State.DevicesCreated = es.DevicesCreated
	}

	writeJSON(w, http.StatusOK, metrics)
}
