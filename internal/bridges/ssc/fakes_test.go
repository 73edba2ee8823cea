package ssc

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/nerrad567/ssc-monitor/internal/receiver"
	"github.com/nerrad567/ssc-monitor/internal/state"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Ticker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{
		c:      make(chan time.Time, 1),
		period: d,
		next:   c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward and fires every ticker that came due.
// Like time.Ticker, a tick is dropped if the previous one is unread.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	for _, t := range c.tickers {
		t.mu.Lock()
		for !t.stopped && !t.next.After(c.now) {
			select {
			case t.c <- t.next:
			default:
			}
			t.next = t.next.Add(t.period)
		}
		t.mu.Unlock()
	}
}

func (c *fakeClock) activeTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		t.mu.Lock()
		if !t.stopped {
			n++
		}
		t.mu.Unlock()
	}
	return n
}

type fakeTicker struct {
	mu      sync.Mutex
	c       chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// sentDatagram records one Send call.
type sentDatagram struct {
	dst     netip.AddrPort
	payload []byte
}

// fakeTransport records sends and lets tests inject inbound datagrams.
type fakeTransport struct {
	mu         sync.Mutex
	sendErr    error
	onDatagram func(Datagram)
	closed     bool
	sent       chan sentDatagram
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(chan sentDatagram, 64)}
}

func (f *fakeTransport) Send(_ context.Context, dst netip.AddrPort, payload []byte) error {
	f.mu.Lock()
	err := f.sendErr
	f.mu.Unlock()

	f.sent <- sentDatagram{dst: dst, payload: append([]byte(nil), payload...)}
	return err
}

func (f *fakeTransport) setSendErr(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) SetOnDatagram(callback func(Datagram)) {
	f.mu.Lock()
	f.onDatagram = callback
	f.mu.Unlock()
}

func (f *fakeTransport) deliver(src string, payload string) {
	f.mu.Lock()
	cb := f.onDatagram
	f.mu.Unlock()
	cb(Datagram{Payload: []byte(payload), Source: netip.MustParseAddrPort(src), ReceivedAt: time.Now()})
}

func (f *fakeTransport) Stats() TransportStats { return TransportStats{} }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// recordingReconciler captures every reconciled update.
type recordingReconciler struct {
	mu      sync.Mutex
	calls   []reconcileCall
	applied chan struct{}
}

type reconcileCall struct {
	key    string
	update state.Update
}

func newRecordingReconciler() *recordingReconciler {
	return &recordingReconciler{applied: make(chan struct{}, 64)}
}

func (r *recordingReconciler) Reconcile(_ context.Context, key string, update state.Update) {
	r.mu.Lock()
	r.calls = append(r.calls, reconcileCall{key: key, update: update})
	r.mu.Unlock()
	r.applied <- struct{}{}
}

func (r *recordingReconciler) snapshot() []reconcileCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reconcileCall(nil), r.calls...)
}

func testRegistry(devices ...receiver.Device) *receiver.Registry {
	if len(devices) == 0 {
		devices = []receiver.Device{
			{Key: "R1", Name: "Receiver 1", Addr: netip.MustParseAddrPort("192.168.9.13:45")},
			{Key: "R2", Name: "Receiver 2", Addr: netip.MustParseAddrPort("192.168.9.177:45")},
		}
	}
	reg, err := receiver.NewRegistry(devices)
	if err != nil {
		panic(err)
	}
	return reg
}
