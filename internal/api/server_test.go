package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/ssc-monitor/internal/bridges/ssc"
	"github.com/nerrad567/ssc-monitor/internal/infrastructure/config"
	"github.com/nerrad567/ssc-monitor/internal/infrastructure/logging"
	"github.com/nerrad567/ssc-monitor/internal/publish"
	"github.com/nerrad567/ssc-monitor/internal/state"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Path:           "/ws",
		MaxMessageSize: 8192,
		PingInterval:   30,
		PongTimeout:    10,
	}
}

// testServer creates a Server over a fresh store and engine.
func testServer(t *testing.T) (*Server, *state.Engine) {
	t.Helper()

	store := state.NewStore()
	engine := state.NewEngine(store)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS:      testWSConfig(),
		Logger:  testLogger(),
		Store:   store,
		Engine:  engine,
		Version: "test",
	})
	require.NoError(t, err)
	return srv, engine
}

// reconcile applies a raw SSC datagram from receiver key.
func reconcile(t *testing.T, engine *state.Engine, key, raw string) {
	t.Helper()

	update, err := ssc.ParseUpdate([]byte(raw))
	require.NoError(t, err, "ParseUpdate(%s)", raw)
	engine.Reconcile(context.Background(), key, update.State())
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

// decode unmarshals a JSON response body into v.
func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Deps{Store: state.NewStore()})
	assert.Error(t, err, "New() without logger should fail")

	_, err = New(Deps{Logger: testLogger()})
	assert.Error(t, err, "New() without store should fail")
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	w := get(t, srv, "/api/v1/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "test", resp["version"])
}

func TestHealth_ContentType(t *testing.T) {
	srv, _ := testServer(t)

	w := get(t, srv, "/api/v1/health")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t)

	w := get(t, srv, "/api/v1/health")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	assert.Equal(t, "client-123", w.Header().Get("X-Request-ID"))
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/receivers", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv, _ := testServer(t)
	srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)

	w := get(t, srv, "/api/v1/nonexistent")
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp Error
	decode(t, w, &resp)
	assert.Equal(t, ErrCodeNotFound, resp.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/receivers", nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// ─── Receiver Query Tests ──────────────────────────────────────────

func TestListReceivers_Empty(t *testing.T) {
	srv, _ := testServer(t)

	w := get(t, srv, "/api/v1/receivers")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "{}\n", w.Body.String())
}

func TestListReceivers(t *testing.T) {
	srv, engine := testServer(t)
	reconcile(t, engine, "R1", `{"rx1":{"name":"Vocal1"}}`)
	reconcile(t, engine, "R2", `{"mates":{"tx2":{"mute":true}}}`)

	w := get(t, srv, "/api/v1/receivers")
	require.Equal(t, http.StatusOK, w.Code)

	var snap state.Snapshot
	decode(t, w, &snap)
	require.Len(t, snap, 2)
	assert.Equal(t, "Vocal1", snap["R1"].Channel1.Name)
	assert.Equal(t, state.MuteMuted, snap["R2"].Channel2.Mute)
	assert.Equal(t, state.UnknownValue, snap["R2"].Channel1.Name)
}

func TestGetReceiver(t *testing.T) {
	srv, engine := testServer(t)
	reconcile(t, engine, "R1", `{"rx1":{"name":"Vocal1","frequency":"470.100"}}`)

	w := get(t, srv, "/api/v1/receivers/R1")
	require.Equal(t, http.StatusOK, w.Code)

	var snap state.DeviceSnapshot
	decode(t, w, &snap)
	assert.Equal(t, "470.100", snap.Channel1.Frequency)
}

func TestGetReceiver_NotFound(t *testing.T) {
	srv, engine := testServer(t)
	// Device-only updates never create state.
	reconcile(t, engine, "R1", `{"device":{"name":"Main"}}`)

	for _, path := range []string{"/api/v1/receivers/R1", "/api/v1/receivers/R9"} {
		assert.Equal(t, http.StatusNotFound, get(t, srv, path).Code, "GET %s", path)
	}
}

func TestGetChannel(t *testing.T) {
	srv, engine := testServer(t)
	reconcile(t, engine, "R1", `{"rx2":{"name":"Guitar","gain":12}}`)

	w := get(t, srv, "/api/v1/receivers/R1/channels/2")
	require.Equal(t, http.StatusOK, w.Code)

	var ch state.ChannelSnapshot
	decode(t, w, &ch)
	assert.Equal(t, "Guitar", ch.Name)
	assert.Equal(t, "12", ch.Gain)
	assert.Equal(t, state.UnknownValue, ch.Battery)
}

func TestGetChannel_NotFound(t *testing.T) {
	srv, engine := testServer(t)
	reconcile(t, engine, "R1", `{"rx1":{"name":"Vocal1"}}`)

	tests := []string{
		"/api/v1/receivers/R9/channels/1",
		"/api/v1/receivers/R1/channels/0",
		"/api/v1/receivers/R1/channels/3",
		"/api/v1/receivers/R1/channels/left",
	}
	for _, path := range tests {
		assert.Equal(t, http.StatusNotFound, get(t, srv, path).Code, "GET %s", path)
	}
}

func TestGetAttribute(t *testing.T) {
	srv, engine := testServer(t)
	reconcile(t, engine, "R1", `{"rx1":{"name":"Vocal1","warnings":[]},"mates":{"tx1":{"battery":{"lifetime":90}}}}`)

	tests := []struct {
		attribute string
		want      string
	}{
		{state.AttrName, "Vocal1"},
		{state.AttrBattery, "90 minutes"},
		// A reported empty list is a concrete value.
		{state.AttrWarnings, ""},
	}

	for _, tt := range tests {
		t.Run(tt.attribute, func(t *testing.T) {
			w := get(t, srv, "/api/v1/receivers/R1/channels/1/"+tt.attribute)
			require.Equal(t, http.StatusOK, w.Code)

			var resp map[string]string
			decode(t, w, &resp)
			assert.Equal(t, map[string]string{tt.attribute: tt.want}, resp)
		})
	}
}

func TestGetAttribute_MistypedFieldKeepsRest(t *testing.T) {
	srv, engine := testServer(t)
	reconcile(t, engine, "R1", `{"rx1":{"frequency":"470.100","name":"Vocal1"},"mates":{"tx1":{"mute":0}}}`)

	w := get(t, srv, "/api/v1/receivers/R1/channels/1")
	require.Equal(t, http.StatusOK, w.Code)

	var ch state.ChannelSnapshot
	decode(t, w, &ch)
	assert.Equal(t, "Vocal1", ch.Name)
	assert.Equal(t, "470.100", ch.Frequency)
	assert.Equal(t, state.UnknownValue, ch.Mute)
}

func TestGetAttribute_NotFound(t *testing.T) {
	srv, engine := testServer(t)
	reconcile(t, engine, "R1", `{"rx1":{"name":"Vocal1"}}`)

	tests := []struct {
		name string
		path string
		msg  string
	}{
		{"unknown device", "/api/v1/receivers/R9/channels/1/name", "receiver not found"},
		{"bad channel", "/api/v1/receivers/R1/channels/3/name", "channel not found"},
		{"invalid attribute", "/api/v1/receivers/R1/channels/1/volume", "attribute not found"},
		{"never reported", "/api/v1/receivers/R1/channels/1/gain", "attribute not yet reported"},
		{"other channel unknown", "/api/v1/receivers/R1/channels/2/name", "attribute not yet reported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, srv, tt.path)
			require.Equal(t, http.StatusNotFound, w.Code)

			var resp Error
			decode(t, w, &resp)
			assert.Equal(t, tt.msg, resp.Message)
		})
	}
}

func TestDeviceStatesRoutes(t *testing.T) {
	srv, engine := testServer(t)
	reconcile(t, engine, "R1", `{"rx1":{"name":"Vocal1"},"rx2":{"gain":3}}`)

	tests := []struct {
		path string
		code int
		want string
	}{
		{"/deviceStates", http.StatusOK, ""},
		{"/deviceStates/R1", http.StatusOK, ""},
		{"/deviceStates/R1/channel1", http.StatusOK, ""},
		{"/deviceStates/R1/channel2/gain", http.StatusOK, `{"gain":"3"}` + "\n"},
		{"/deviceStates/R1/channel1/name", http.StatusOK, `{"name":"Vocal1"}` + "\n"},
		{"/deviceStates/R9", http.StatusNotFound, ""},
		{"/deviceStates/R1/channel3", http.StatusNotFound, ""},
		{"/deviceStates/R1/channel1/gain", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, srv, tt.path)
			require.Equal(t, tt.code, w.Code)
			if tt.want != "" {
				assert.Equal(t, tt.want, w.Body.String())
			}
		})
	}

	var snap state.Snapshot
	decode(t, get(t, srv, "/deviceStates"), &snap)
	assert.Equal(t, "Vocal1", snap["R1"].Channel1.Name)
}

// ─── Metrics Tests ─────────────────────────────────────────────────

type stubBridge struct{ m ssc.BridgeMetrics }

func (b stubBridge) Metrics() ssc.BridgeMetrics { return b.m }

type stubMQTT struct{ connected bool }

func (m stubMQTT) IsConnected() bool { return m.connected }

type stubPublisher struct{ s publish.MQTTStats }

func (p stubPublisher) Stats() publish.MQTTStats { return p.s }

func TestMetrics(t *testing.T) {
	srv, engine := testServer(t)
	srv.bridge = stubBridge{m: ssc.BridgeMetrics{Receivers: 8, DatagramsReceived: 3}}
	srv.mqtt = stubMQTT{connected: true}
	srv.publisher = stubPublisher{s: publish.MQTTStats{Published: 4, Failed: 1}}

	reconcile(t, engine, "R1", `{"rx1":{"name":"a"},"rx2":{"name":"b"}}`)
	reconcile(t, engine, "R1", `{"device":{"name":"Main"}}`)

	w := get(t, srv, "/api/v1/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var m SystemMetrics
	decode(t, w, &m)
	assert.Equal(t, "test", m.Version)
	assert.NotZero(t, m.Runtime.Goroutines)

	require.NotNil(t, m.Bridge)
	assert.Equal(t, 8, m.Bridge.Receivers)
	assert.Equal(t, uint64(3), m.Bridge.DatagramsReceived)

	assert.Equal(t, MQTTMetrics{Connected: true, Published: 4, Failed: 1}, m.MQTT)
	assert.Equal(t, StateMetrics{Receivers: 1, Reconciled: 2, ChannelMerges: 2, DevicesCreated: 1}, m.State)
}

func TestMetrics_OptionalDepsOmitted(t *testing.T) {
	srv, _ := testServer(t)

	var resp map[string]any
	decode(t, get(t, srv, "/api/v1/metrics"), &resp)
	assert.NotContains(t, resp, "bridge", "bridge metrics present without a bridge")
}

// ─── Hub Tests ─────────────────────────────────────────────────────

func newTestClient(hub *Hub) *WSClient {
	return &WSClient{
		id:   "test",
		hub:  hub,
		send: make(chan []byte, wsSendBufferSize),
	}
}

func readSnapshot(t *testing.T, client *WSClient) state.Snapshot {
	t.Helper()

	select {
	case data := <-client.send:
		var msg struct {
			Type      string         `json:"type"`
			EventType string         `json:"event_type"`
			Payload   state.Snapshot `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		require.Equal(t, WSTypeEvent, msg.Type)
		require.Equal(t, EventReceiversSnapshot, msg.EventType)
		return msg.Payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestHub_RegisterSendsSnapshot(t *testing.T) {
	store := state.NewStore()
	engine := state.NewEngine(store)
	reconcile(t, engine, "R1", `{"rx1":{"name":"Vocal1"}}`)

	hub := NewHub(testWSConfig(), testLogger(), store)
	client := newTestClient(hub)
	hub.Register(client)

	snap := readSnapshot(t, client)
	assert.Equal(t, "Vocal1", snap["R1"].Channel1.Name)
}

func TestHub_BroadcastOnStateChange(t *testing.T) {
	store := state.NewStore()
	engine := state.NewEngine(store)
	hub := NewHub(testWSConfig(), testLogger(), store)
	store.AddListener(hub)

	client := newTestClient(hub)
	hub.Register(client)
	assert.Empty(t, readSnapshot(t, client))

	reconcile(t, engine, "R3", `{"mates":{"tx1":{"mute":false}}}`)

	snap := readSnapshot(t, client)
	assert.Equal(t, state.MuteUnmuted, snap["R3"].Channel1.Mute)
	assert.Equal(t, uint64(1), hub.Broadcasts())
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger(), state.NewStore())
	hub.Broadcast()

	assert.Equal(t, uint64(0), hub.Broadcasts())
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger(), state.NewStore())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	assert.Equal(t, 0, hub.ClientCount())

	client := newTestClient(hub)
	hub.Register(client)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(client)
	assert.Equal(t, 0, hub.ClientCount())

	// A second unregister must not close the channel again.
	assert.NotPanics(t, func() { hub.Unregister(client) })
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger(), state.NewStore())
	client := &WSClient{id: "slow", hub: hub, send: make(chan []byte)}
	hub.Register(client)

	done := make(chan struct{})
	go func() {
		hub.Broadcast()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client buffer")
	}
}

// ─── Server Lifecycle Tests ────────────────────────────────────────

// startServer starts srv on an ephemeral port and returns its address.
func startServer(t *testing.T, srv *Server) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, srv.Start(ctx))
	t.Cleanup(func() { srv.Close() })

	addr := srv.Addr()
	require.NotEmpty(t, addr, "Addr() empty after Start")
	return addr
}

func TestServer_StartAndClose(t *testing.T) {
	srv, _ := testServer(t)
	addr := startServer(t, srv)

	resp, err := http.Get("http://" + addr + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NoError(t, srv.HealthCheck(context.Background()))
	assert.Error(t, srv.Start(context.Background()), "second Start() should fail")
	assert.NoError(t, srv.Close())

	_, err = http.Get("http://" + addr + "/api/v1/health")
	assert.Error(t, err, "server still responding after Close()")
}

func TestServer_StartBindFailure(t *testing.T) {
	first, _ := testServer(t)
	addr := startServer(t, first)

	second, _ := testServer(t)
	ap := netip.MustParseAddrPort(addr)
	second.cfg.Port = int(ap.Port())

	if err := second.Start(context.Background()); err == nil {
		second.Close()
		t.Fatal("Start() on a bound port should fail")
	}
}

func TestServer_HealthCheckNotStarted(t *testing.T) {
	srv, _ := testServer(t)

	assert.Error(t, srv.HealthCheck(context.Background()), "HealthCheck() before Start should fail")
	assert.NoError(t, srv.Close(), "Close() before Start")
}

// ─── WebSocket Tests ───────────────────────────────────────────────

func connectWebSocket(t *testing.T, addr string) *websocket.Conn {
	t.Helper()

	ws, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/ws", nil)
	require.NoError(t, err, "websocket dial (resp: %v)", resp)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()

	//nolint:errcheck // Test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestWebSocket_InitialSnapshotAndBroadcast(t *testing.T) {
	srv, engine := testServer(t)
	reconcile(t, engine, "R1", `{"rx1":{"name":"Vocal1"}}`)
	addr := startServer(t, srv)

	ws := connectWebSocket(t, addr)

	first := readMessage(t, ws)
	require.Equal(t, EventReceiversSnapshot, first.EventType)
	payload, ok := first.Payload.(map[string]any)
	require.True(t, ok, "payload type = %T", first.Payload)
	assert.Contains(t, payload, "R1")

	reconcile(t, engine, "R2", `{"rx2":{"gain":3}}`)

	next := readMessage(t, ws)
	payload, ok = next.Payload.(map[string]any)
	require.True(t, ok, "payload type = %T", next.Payload)
	assert.Len(t, payload, 2)
}

func TestWebSocket_Ping(t *testing.T) {
	srv, _ := testServer(t)
	addr := startServer(t, srv)

	ws := connectWebSocket(t, addr)
	readMessage(t, ws)

	require.NoError(t, ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}))

	resp := readMessage(t, ws)
	assert.Equal(t, WSTypePong, resp.Type)
	assert.Equal(t, "ping-1", resp.ID)
}

func TestWebSocket_InvalidMessage(t *testing.T) {
	srv, _ := testServer(t)
	addr := startServer(t, srv)

	ws := connectWebSocket(t, addr)
	readMessage(t, ws)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, WSTypeError, readMessage(t, ws).Type)

	require.NoError(t, ws.WriteJSON(WSMessage{Type: "subscribe", ID: "s-1"}))
	resp := readMessage(t, ws)
	assert.Equal(t, WSTypeError, resp.Type)
	assert.Equal(t, "s-1", resp.ID)
}
