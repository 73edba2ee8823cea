package ssc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/ssc-monitor/internal/receiver"
	"github.com/nerrad567/ssc-monitor/internal/state"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Reconciler folds an attributed update into receiver state.
// Satisfied by *state.Engine.
type Reconciler interface {
	Reconcile(ctx context.Context, key string, update state.Update)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Transport carries datagrams in both directions. Required.
	Transport Transport

	// Registry lists the receivers to subscribe and attributes inbound
	// datagrams. Required.
	Registry *receiver.Registry

	// Client sends subscriptions and renewals. Required; it should send
	// through the same Transport so replies reach the bound port.
	Client *Client

	// Reconciler receives every attributed update. Required.
	Reconciler Reconciler

	// Logger is optional.
	Logger Logger
}

// BridgeMetrics contains counters for the API metrics endpoint.
type BridgeMetrics struct {
	Receivers         int       `json:"receivers"`
	DatagramsReceived uint64    `json:"datagrams_received"`
	DatagramsDropped  uint64    `json:"datagrams_dropped"`
	UpdatesApplied    uint64    `json:"updates_applied"`
	Malformed         uint64    `json:"malformed"`
	UnknownSource     uint64    `json:"unknown_source"`
	SubscriptionsSent uint64    `json:"subscriptions_sent"`
	SendFailures      uint64    `json:"send_failures"`
	Renewals          uint64    `json:"renewals"`
	TransportErrors   uint64    `json:"transport_errors"`
	LastActivity      time.Time `json:"last_activity,omitzero"`
}

// Bridge connects SSC receivers to the state engine.
// It handles:
//   - Subscribing every registered receiver and renewing on schedule
//   - Decoding inbound datagrams and attributing them by source address
//   - Handing attributed updates to the Reconciler in arrival order
//
// Malformed datagrams and datagrams from unknown sources are logged,
// counted and dropped; they never reach the Reconciler.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	transport  Transport
	registry   *receiver.Registry
	decoder    *Decoder
	client     *Client
	reconciler Reconciler

	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx
	stopOnce  sync.Once

	logger   Logger
	loggerMu sync.RWMutex

	updatesApplied atomic.Uint64
	malformed      atomic.Uint64
	unknownSource  atomic.Uint64
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("ssc: transport is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("ssc: registry is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("ssc: client is required")
	}
	if opts.Reconciler == nil {
		return nil, fmt.Errorf("ssc: reconciler is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		transport:  opts.Transport,
		registry:   opts.Registry,
		decoder:    NewDecoder(opts.Registry),
		client:     opts.Client,
		reconciler: opts.Reconciler,
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		logger:     noopLogger{},
	}
	if opts.Logger != nil {
		b.logger = opts.Logger
	}

	return b, nil
}

// Start installs the datagram handler and subscribes every receiver.
// Renewals run until Stop is called or ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	b.transport.SetOnDatagram(b.handleDatagram)

	if err := b.client.Start(ctx, b.registry.List()); err != nil {
		return fmt.Errorf("starting subscriptions: %w", err)
	}

	b.getLogger().Info("bridge started", "receivers", b.registry.Len())
	return nil
}

// Stop cancels renewals and closes the transport.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.client.Stop()
		b.ctxCancel()

		if err := b.transport.Close(); err != nil {
			b.getLogger().Error("closing transport", "error", err)
		}

		b.getLogger().Info("bridge stopped")
	})
}

// handleDatagram decodes one datagram and reconciles it.
// Invoked by the transport's single worker, so calls never overlap.
func (b *Bridge) handleDatagram(d Datagram) {
	dev, update, err := b.decoder.Decode(d.Payload, d.Source.Addr())
	if err != nil {
		switch {
		case errors.Is(err, ErrMalformedPayload):
			b.malformed.Add(1)
			b.getLogger().Warn("dropping malformed datagram",
				"source", d.Source.String(),
				"bytes", len(d.Payload),
				"error", err)
		case errors.Is(err, ErrUnknownSource):
			b.unknownSource.Add(1)
			b.getLogger().Warn("dropping datagram from unknown source",
				"source", d.Source.String())
		default:
			b.getLogger().Error("decode failed", "source", d.Source.String(), "error", err)
		}
		return
	}

	b.getLogger().Debug("update received", "device", dev.Key, "bytes", len(d.Payload))
	b.reconciler.Reconcile(b.ctx, dev.Key, update.State())
	b.updatesApplied.Add(1)
}

// Metrics returns current bridge counters.
func (b *Bridge) Metrics() BridgeMetrics {
	ts := b.transport.Stats()
	cs := b.client.Stats()

	return BridgeMetrics{
		Receivers:         b.registry.Len(),
		DatagramsReceived: ts.DatagramsRx,
		DatagramsDropped:  ts.DatagramsDropped,
		UpdatesApplied:    b.updatesApplied.Load(),
		Malformed:         b.malformed.Load(),
		UnknownSource:     b.unknownSource.Load(),
		SubscriptionsSent: cs.SubscriptionsSent,
		SendFailures:      cs.SendFailures,
		Renewals:          cs.Renewals,
		TransportErrors:   ts.ErrorsTotal,
		LastActivity:      ts.LastActivity,
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}
