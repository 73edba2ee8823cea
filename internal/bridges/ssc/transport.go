package ssc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultReadTimeout  = 1 * time.Second
	defaultWriteTimeout = 5 * time.Second
	defaultQueueSize    = 256

	// maxDatagramSize is the largest UDP payload. Larger datagrams are
	// truncated by the kernel and then fail to decode.
	maxDatagramSize = 64 * 1024
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Datagram is one inbound UDP payload with its sender.
type Datagram struct {
	Payload    []byte
	Source     netip.AddrPort
	ReceivedAt time.Time
}

// TransportStats holds operational counters for a transport.
type TransportStats struct {
	DatagramsRx      uint64
	DatagramsTx      uint64
	DatagramsDropped uint64 // Dropped because the inbound queue was full
	ErrorsTotal      uint64
	LastActivity     time.Time
}

// Transport sends and receives SSC datagrams.
// This allows the bridge to be tested without a real socket.
type Transport interface {
	Send(ctx context.Context, dst netip.AddrPort, payload []byte) error
	SetOnDatagram(callback func(Datagram))
	Stats() TransportStats
	Close() error
}

// Ensure UDPTransport implements Transport.
var _ Transport = (*UDPTransport)(nil)

// TransportConfig holds UDP transport settings.
type TransportConfig struct {
	// ListenAddr is the local address and port to bind.
	ListenAddr netip.AddrPort

	// ReadTimeout bounds each socket read so the receive loop can
	// observe Close. Default: 1 second.
	ReadTimeout time.Duration

	// WriteTimeout bounds each send. Default: 5 seconds.
	WriteTimeout time.Duration

	// QueueSize is the inbound queue depth. Default: 256.
	QueueSize int
}

// UDPTransport is a Transport over a single bound UDP socket.
//
// Inbound datagrams are queued and handed to the callback by a single
// worker, so the callback observes them in arrival order and never runs
// concurrently with itself. When the queue is full the datagram is
// dropped and counted.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type UDPTransport struct {
	cfg  TransportConfig
	conn *net.UDPConn

	onDatagram func(Datagram)
	callbackMu sync.RWMutex

	queue chan Datagram

	// sendMu serialises writes so each send owns the write deadline.
	sendMu sync.Mutex

	done *closeOnce
	wg   sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex

	datagramsRx      atomic.Uint64
	datagramsTx      atomic.Uint64
	datagramsDropped atomic.Uint64
	errorsTotal      atomic.Uint64
	lastActivity     atomic.Int64 // Unix nanoseconds
}

// Listen binds the UDP socket and starts the receive loop and worker.
//
// Parameters:
//   - ctx: Context for the bind operation
//   - cfg: Transport configuration
//
// Returns:
//   - *UDPTransport: Bound transport ready for use
//   - error: If the socket cannot be bound
func Listen(ctx context.Context, cfg TransportConfig) (*UDPTransport, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", cfg.ListenAddr.String())
	if err != nil {
		return nil, fmt.Errorf("ssc: bind %s: %w", cfg.ListenAddr, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("ssc: bind %s: unexpected connection type %T", cfg.ListenAddr, pc)
	}

	t := &UDPTransport{
		cfg:    cfg,
		conn:   conn,
		queue:  make(chan Datagram, cfg.QueueSize),
		done:   newCloseOnce(),
		logger: noopLogger{},
	}

	t.wg.Add(2)
	go t.worker()
	go t.receiveLoop()

	return t, nil
}

// LocalAddr returns the bound address, useful when listening on port 0.
func (t *UDPTransport) LocalAddr() netip.AddrPort {
	return t.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// receiveLoop reads datagrams until Close.
func (t *UDPTransport) receiveLoop() {
	defer t.wg.Done()

	buf := make([]byte, maxDatagramSize)

	for {
		if t.isClosed() {
			return
		}

		if err := t.conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout)); err != nil {
			if t.isClosed() {
				return
			}
			t.logError("set read deadline failed", err)
		}

		n, src, err := t.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if t.handleReadError(err) {
				return
			}
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		t.enqueue(Datagram{
			Payload:    payload,
			Source:     netip.AddrPortFrom(src.Addr().Unmap(), src.Port()),
			ReceivedAt: time.Now(),
		})
	}
}

// handleReadError returns true if the receive loop should stop.
func (t *UDPTransport) handleReadError(err error) bool {
	if t.isClosed() || errors.Is(err, net.ErrClosed) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}

	t.errorsTotal.Add(1)
	t.logError("read failed", err)
	return false
}

func (t *UDPTransport) enqueue(d Datagram) {
	t.datagramsRx.Add(1)
	t.lastActivity.Store(d.ReceivedAt.UnixNano())

	select {
	case t.queue <- d:
	default:
		t.datagramsDropped.Add(1)
		t.logWarn("inbound queue full, dropping datagram", "source", d.Source.String())
	}
}

// worker delivers queued datagrams to the callback in arrival order.
func (t *UDPTransport) worker() {
	defer t.wg.Done()

	for {
		select {
		case <-t.done.Done():
			t.drainQueue()
			return
		case d := <-t.queue:
			t.deliver(d)
		}
	}
}

func (t *UDPTransport) deliver(d Datagram) {
	t.callbackMu.RLock()
	callback := t.onDatagram
	t.callbackMu.RUnlock()

	if callback == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			t.errorsTotal.Add(1)
			t.logError("datagram callback panic", fmt.Errorf("%v", r))
		}
	}()
	callback(d)
}

func (t *UDPTransport) drainQueue() {
	for {
		select {
		case <-t.queue:
		default:
			return
		}
	}
}

func (t *UDPTransport) isClosed() bool {
	select {
	case <-t.done.Done():
		return true
	default:
		return false
	}
}

// Send writes payload to dst.
//
// Returns:
//   - error: ErrTransportClosed after Close, ErrSendFailed (wrapped) otherwise
func (t *UDPTransport) Send(ctx context.Context, dst netip.AddrPort, payload []byte) error {
	if t.isClosed() {
		return ErrTransportClosed
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrSendFailed, ctx.Err())
	default:
	}

	deadline := time.Now().Add(t.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		t.errorsTotal.Add(1)
		return fmt.Errorf("%w: set deadline: %w", ErrSendFailed, err)
	}

	if _, err := t.conn.WriteToUDPAddrPort(payload, dst); err != nil {
		t.errorsTotal.Add(1)
		if t.isClosed() {
			return ErrTransportClosed
		}
		return fmt.Errorf("%w: write to %s: %w", ErrSendFailed, dst, err)
	}

	t.datagramsTx.Add(1)
	t.lastActivity.Store(time.Now().UnixNano())
	return nil
}

// SetOnDatagram sets the callback for inbound datagrams.
// Panics in the callback are recovered and logged.
func (t *UDPTransport) SetOnDatagram(callback func(Datagram)) {
	t.callbackMu.Lock()
	t.onDatagram = callback
	t.callbackMu.Unlock()
}

// SetLogger sets the logger for this transport.
func (t *UDPTransport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

// Stats returns current operational statistics.
func (t *UDPTransport) Stats() TransportStats {
	var last time.Time
	if ns := t.lastActivity.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return TransportStats{
		DatagramsRx:      t.datagramsRx.Load(),
		DatagramsTx:      t.datagramsTx.Load(),
		DatagramsDropped: t.datagramsDropped.Load(),
		ErrorsTotal:      t.errorsTotal.Load(),
		LastActivity:     last,
	}
}

// Close stops the receive loop and worker and closes the socket.
// Safe to call multiple times.
func (t *UDPTransport) Close() error {
	t.done.Close()
	err := t.conn.Close()
	t.wg.Wait()

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("ssc: close socket: %w", err)
	}
	return nil
}

func (t *UDPTransport) getLogger() Logger {
	t.loggerMu.RLock()
	defer t.loggerMu.RUnlock()
	return t.logger
}

func (t *UDPTransport) logWarn(msg string, keysAndValues ...any) {
	t.getLogger().Warn(msg, keysAndValues...)
}

func (t *UDPTransport) logError(msg string, err error) {
	t.getLogger().Error(msg, "error", err)
}
