package ssc

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/ssc-monitor/internal/receiver"
)

// DefaultRenewInterval is how often each subscription is re-issued.
// Receivers expire subscriptions that are not renewed.
const DefaultRenewInterval = 50 * time.Second

// Sender is the outbound half of a Transport.
type Sender interface {
	Send(ctx context.Context, dst netip.AddrPort, payload []byte) error
}

// ClientOptions holds configuration for creating a subscription client.
type ClientOptions struct {
	// Sender transmits subscription datagrams. Required.
	Sender Sender

	// Clock drives the renewal scheduler. Default: RealClock.
	Clock Clock

	// Cadence is the notification period requested from receivers.
	// Nil means DefaultMinInterval/DefaultMaxInterval.
	Cadence *Cadence

	// RenewInterval is the subscription renewal period.
	// Default: DefaultRenewInterval.
	RenewInterval time.Duration

	// Logger is optional.
	Logger Logger
}

// ClientStats holds subscription counters.
type ClientStats struct {
	SubscriptionsSent uint64
	SendFailures      uint64
	Renewals          uint64
	ScheduledDevices  int
}

// Client subscribes receivers to state notifications and keeps the
// subscriptions alive with periodic renewals.
//
// A failed send is logged and counted. It is never retried early and
// never removes the receiver: the next renewal goes out on schedule.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	sender        Sender
	scheduler     *Scheduler
	request       []byte
	renewInterval time.Duration

	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex

	subscriptionsSent atomic.Uint64
	sendFailures      atomic.Uint64
	renewals          atomic.Uint64
}

// NewClient creates a subscription client. Call Start to begin.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("ssc: sender is required")
	}
	cadence := Cadence{Min: DefaultMinInterval, Max: DefaultMaxInterval}
	if opts.Cadence != nil {
		cadence = *opts.Cadence
	}
	if opts.RenewInterval <= 0 {
		opts.RenewInterval = DefaultRenewInterval
	}

	request, err := BuildSubscribeRequest(cadence)
	if err != nil {
		return nil, err
	}

	c := &Client{
		sender:        opts.Sender,
		scheduler:     NewScheduler(opts.Clock),
		request:       request,
		renewInterval: opts.RenewInterval,
		logger:        noopLogger{},
	}
	if opts.Logger != nil {
		c.SetLogger(opts.Logger)
	}
	return c, nil
}

// Subscribe sends the subscription request to dev.
//
// Returns:
//   - error: ErrSendFailed or ErrTransportClosed (wrapped); already logged
func (c *Client) Subscribe(ctx context.Context, dev receiver.Device) error {
	if err := c.sender.Send(ctx, dev.Addr, c.request); err != nil {
		c.sendFailures.Add(1)
		c.getLogger().Error("subscription send failed",
			"device", dev.Key,
			"address", dev.Addr.String(),
			"error", err)
		return fmt.Errorf("subscribe %s: %w", dev.Key, err)
	}

	c.subscriptionsSent.Add(1)
	c.getLogger().Debug("subscription sent", "device", dev.Key, "address", dev.Addr.String())
	return nil
}

// Renew re-issues the identical subscription to dev.
func (c *Client) Renew(ctx context.Context, dev receiver.Device) error {
	c.renewals.Add(1)
	c.getLogger().Info("renewing subscription", "device", dev.Key, "name", dev.Name)
	return c.Subscribe(ctx, dev)
}

// Start subscribes every device once and schedules its renewal.
// A failed initial subscription does not prevent scheduling.
//
// Parameters:
//   - ctx: Lifetime of the renewal tasks; cancelling it stops renewals
//   - devices: Receivers to subscribe
//
// Returns:
//   - error: Only if a renewal task cannot be scheduled
func (c *Client) Start(ctx context.Context, devices []receiver.Device) error {
	for _, dev := range devices {
		dev := dev
		_ = c.Subscribe(ctx, dev) // logged and counted by Subscribe

		if err := c.scheduler.Schedule(ctx, dev.Key, c.renewInterval, func(taskCtx context.Context) {
			_ = c.Renew(taskCtx, dev)
		}); err != nil {
			return fmt.Errorf("schedule renewal for %s: %w", dev.Key, err)
		}
	}

	c.getLogger().Info("subscriptions started",
		"devices", len(devices),
		"renew_interval", c.renewInterval.String())
	return nil
}

// Stop cancels all renewal tasks. Only used at process shutdown.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.scheduler.Stop()
		c.getLogger().Info("subscriptions stopped")
	})
}

// Stats returns subscription counters.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		SubscriptionsSent: c.subscriptionsSent.Load(),
		SendFailures:      c.sendFailures.Load(),
		Renewals:          c.renewals.Load(),
		ScheduledDevices:  len(c.scheduler.Keys()),
	}
}

// SetLogger sets the logger for the client and its scheduler.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
	c.scheduler.SetLogger(logger)
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}
