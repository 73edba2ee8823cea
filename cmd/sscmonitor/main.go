// SSC Monitor - wireless microphone receiver state service
//
// This is the main entry point for SSC Monitor. It subscribes to a fixed set
// of SSC receivers over UDP, reconciles their notifications into per-channel
// state, and serves that state over HTTP and WebSocket. MQTT retained state
// and InfluxDB telemetry are optional outputs.
package main

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/ssc-monitor/internal/api"
	"github.com/nerrad567/ssc-monitor/internal/bridges/ssc"
	"github.com/nerrad567/ssc-monitor/internal/infrastructure/config"
	"github.com/nerrad567/ssc-monitor/internal/infrastructure/influxdb"
	"github.com/nerrad567/ssc-monitor/internal/infrastructure/logging"
	"github.com/nerrad567/ssc-monitor/internal/infrastructure/mqtt"
	"github.com/nerrad567/ssc-monitor/internal/publish"
	"github.com/nerrad567/ssc-monitor/internal/receiver"
	"github.com/nerrad567/ssc-monitor/internal/state"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SSC Monitor",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	registry, err := receiver.FromConfig(cfg.Receivers)
	if err != nil {
		return fmt.Errorf("loading receiver registry: %w", err)
	}
	log.Info("receiver registry loaded", "receivers", registry.Len())

	store := state.NewStore()
	store.SetLogger(log.Component("state"))
	engine := state.NewEngine(store)
	engine.SetLogger(log.Component("state"))

	// Optional outputs are wired as store listeners before the bridge
	// starts so no update is missed.
	mqttClient, publisher, err := startMQTT(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	influxClient, err := startInfluxDB(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	bridge, err := startBridge(ctx, cfg, registry, engine, log)
	if err != nil {
		return fmt.Errorf("starting SSC bridge: %w", err)
	}

	apiDeps := api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log.Component("api"),
		Store:   store,
		Engine:  engine,
		Bridge:  bridge,
		Version: version,
	}
	if mqttClient != nil {
		apiDeps.MQTT = mqttClient
		apiDeps.Publisher = publisher
	}
	apiServer, err := api.New(apiDeps)
	if err != nil {
		bridge.Stop()
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		bridge.Stop()
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Stop ingest first so no update races the outputs shutting down.
	defer func() {
		log.Info("stopping SSC bridge")
		bridge.Stop()
	}()

	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. SSC bridge
	// 2. API server
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)

	log.Info("SSC Monitor stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SSCMONITOR_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SSCMONITOR_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startMQTT connects to the broker and registers the retained-state
// republisher. Returns nils when MQTT is disabled.
func startMQTT(ctx context.Context, cfg *config.Config, store *state.Store, log *logging.Logger) (*mqtt.Client, *publish.MQTTPublisher, error) {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil, nil, nil
	}

	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttLog := log.Component("mqtt")
	client.SetLogger(mqttLog)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	publisher := publish.NewMQTTPublisher(client, client.Topics(), store)
	publisher.SetLogger(mqttLog)
	store.AddListener(publisher)

	// Retained state is republished after every reconnect so a broker
	// restart does not lose it.
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		publisher.PublishAll(ctx)
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	return client, publisher, nil
}

// startInfluxDB connects to InfluxDB and registers the telemetry writer.
// Returns nil when InfluxDB is disabled.
func startInfluxDB(ctx context.Context, cfg *config.Config, store *state.Store, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})

	writer := publish.NewMetricsWriter(client, store)
	writer.SetLogger(log.Component("influxdb"))
	store.AddListener(writer)

	return client, nil
}

// startBridge binds the SSC socket, creates the subscription client and
// starts the bridge.
//
// Parameters:
//   - ctx: Context for bind and renewal lifetime
//   - cfg: Application configuration
//   - registry: Receivers to subscribe
//   - reconciler: Receives attributed updates
//   - log: Logger instance
//
// Returns:
//   - *ssc.Bridge: Running bridge
//   - error: If the socket cannot be bound or the bridge fails to start
func startBridge(ctx context.Context, cfg *config.Config, registry *receiver.Registry, reconciler ssc.Reconciler, log *logging.Logger) (*ssc.Bridge, error) {
	listenAddr, err := netip.ParseAddr(cfg.SSC.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("parsing ssc.listen_address %q: %w", cfg.SSC.ListenAddress, err)
	}

	sscLog := log.Component("ssc")

	transport, err := ssc.Listen(ctx, ssc.TransportConfig{
		ListenAddr:   netip.AddrPortFrom(listenAddr, uint16(cfg.SSC.ListenPort)), //nolint:gosec // validated 1-65535
		ReadTimeout:  time.Duration(cfg.SSC.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.SSC.WriteTimeout) * time.Second,
		QueueSize:    cfg.SSC.QueueSize,
	})
	if err != nil {
		return nil, err
	}
	transport.SetLogger(sscLog)
	log.Info("SSC socket bound", "address", transport.LocalAddr().String())

	client, err := ssc.NewClient(ssc.ClientOptions{
		Sender: transport,
		Cadence: &ssc.Cadence{
			Min: time.Duration(cfg.SSC.MinInterval) * time.Millisecond,
			Max: time.Duration(cfg.SSC.MaxInterval) * time.Millisecond,
		},
		RenewInterval: cfg.GetRenewInterval(),
		Logger:        sscLog,
	})
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("creating SSC client: %w", err)
	}

	bridge, err := ssc.NewBridge(ssc.BridgeOptions{
		Transport:  transport,
		Registry:   registry,
		Client:     client,
		Reconciler: reconciler,
		Logger:     sscLog,
	})
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("creating SSC bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		bridge.Stop()
		return nil, err
	}
	return bridge, nil
}

// healthCheck verifies optional output connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// The SSC bridge has no connection to verify: UDP is connectionless
	// and an unresponsive receiver is not a startup failure.

	return nil
}
