package conn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeConn is a scriptable transport connection.
type fakeConn struct {
	frames chan []byte
	writes chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		writes: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		return nil, errors.New("connection lost")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	select {
	case c.writes <- data:
		return nil
	default:
		return errors.New("write buffer full")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// fakeDialer hands out scripted connections; a nil entry means a dial error.
type fakeDialer struct {
	conns chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	select {
	case c := <-d.conns:
		if c == nil {
			return nil, errors.New("dial refused")
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestManager(t *testing.T) (*Manager, *fakeDialer, chan Event) {
	return newTestManagerDelay(t, 20*time.Millisecond)
}

func newTestManagerDelay(t *testing.T, delay time.Duration) (*Manager, *fakeDialer, chan Event) {
	t.Helper()
	events := make(chan Event, 64)
	d := newFakeDialer()
	m := NewManager("ws://test/ws", d, events, nil)
	m.RetryDelay = delay

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		m.Stop()
	})
	return m, d, events
}

// recvStatus waits for the next StatusChanged, skipping frames.
func recvStatus(t *testing.T, events <-chan Event, within time.Duration) StatusChanged {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case ev := <-events:
			if sc, ok := ev.(StatusChanged); ok {
				return sc
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status change")
			return StatusChanged{}
		}
	}
}

func recvFrame(t *testing.T, events <-chan Event, within time.Duration) []byte {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case ev := <-events:
			if f, ok := ev.(Frame); ok {
				return f.Data
			}
		case <-deadline:
			t.Fatalf("timed out waiting for frame")
			return nil
		}
	}
}

func recvNoEvent(t *testing.T, events <-chan Event, within time.Duration) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("expected no event within %v, got %+v", within, ev)
	case <-time.After(within):
	}
}

func TestConnectTransitionsToConnected(t *testing.T) {
	m, d, events := newTestManager(t)

	d.conns <- newFakeConn()
	m.Connect()

	if sc := recvStatus(t, events, time.Second); sc.Status != StatusConnecting {
		t.Fatalf("status = %v, want connecting", sc.Status)
	}
	if sc := recvStatus(t, events, time.Second); sc.Status != StatusConnected {
		t.Fatalf("status = %v, want connected", sc.Status)
	}
	if got := m.Status(); got != StatusConnected {
		t.Fatalf("Status() = %v, want connected", got)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	m, d, events := newTestManager(t)

	d.conns <- newFakeConn()
	m.Connect()
	m.Connect()
	m.Connect()

	recvStatus(t, events, time.Second) // connecting
	recvStatus(t, events, time.Second) // connected

	// a duplicate dial would consume this sentinel connection
	select {
	case d.conns <- newFakeConn():
	default:
		t.Fatal("dialer queue unexpectedly full")
	}
	recvNoEvent(t, events, 100*time.Millisecond)
}

func TestReconnectAfterCloseScenario(t *testing.T) {
	m, d, events := newTestManager(t)

	first := newFakeConn()
	d.conns <- first
	m.Connect()
	recvStatus(t, events, time.Second) // connecting
	recvStatus(t, events, time.Second) // connected

	// server drops the connection
	second := newFakeConn()
	d.conns <- second
	first.Close()

	if sc := recvStatus(t, events, time.Second); sc.Status != StatusDisconnected {
		t.Fatalf("status = %v, want disconnected", sc.Status)
	}
	if sc := recvStatus(t, events, time.Second); sc.Status != StatusConnecting {
		t.Fatalf("status = %v, want connecting", sc.Status)
	}
	if sc := recvStatus(t, events, time.Second); sc.Status != StatusConnected {
		t.Fatalf("status = %v, want connected", sc.Status)
	}

	// the new connection is live
	second.frames <- []byte(`{"Enqueued":"p1"}`)
	if got := recvFrame(t, events, time.Second); string(got) != `{"Enqueued":"p1"}` {
		t.Fatalf("frame = %s", got)
	}
}

func TestDialFailureRetriesOnFixedDelay(t *testing.T) {
	m, d, events := newTestManager(t)

	d.conns <- nil // first attempt refused
	d.conns <- newFakeConn()
	m.Connect()

	if sc := recvStatus(t, events, time.Second); sc.Status != StatusConnecting {
		t.Fatalf("status = %v, want connecting", sc.Status)
	}
	sc := recvStatus(t, events, time.Second)
	if sc.Status != StatusDisconnected || sc.Err == nil {
		t.Fatalf("status = %+v, want disconnected with error", sc)
	}
	if sc := recvStatus(t, events, time.Second); sc.Status != StatusConnecting {
		t.Fatalf("status = %v, want connecting retry", sc.Status)
	}
	if sc := recvStatus(t, events, time.Second); sc.Status != StatusConnected {
		t.Fatalf("status = %v, want connected", sc.Status)
	}
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	// generous delay so Disconnect always beats the pending timer
	m, d, events := newTestManagerDelay(t, 500*time.Millisecond)

	first := newFakeConn()
	d.conns <- first
	m.Connect()
	recvStatus(t, events, time.Second) // connecting
	recvStatus(t, events, time.Second) // connected

	first.Close()
	recvStatus(t, events, time.Second) // disconnected, reconnect pending

	m.Disconnect()

	// no reconnect attempt fires even well past the retry delay
	d.conns <- newFakeConn()
	recvNoEvent(t, events, 2*m.RetryDelay)
	if got := m.Status(); got != StatusDisconnected {
		t.Fatalf("Status() = %v, want disconnected", got)
	}
}

func TestSendOnlyWhenConnected(t *testing.T) {
	m, d, events := newTestManager(t)

	if m.Send([]byte("early")) {
		t.Fatal("send succeeded while disconnected")
	}

	c := newFakeConn()
	d.conns <- c
	m.Connect()
	recvStatus(t, events, time.Second) // connecting
	recvStatus(t, events, time.Second) // connected

	if !m.Send([]byte("hello")) {
		t.Fatal("send failed while connected")
	}
	select {
	case got := <-c.writes:
		if string(got) != "hello" {
			t.Fatalf("wrote %q, want hello", got)
		}
	case <-time.After(time.Second):
		t.Fatal("write never reached the transport")
	}
}

func TestInboundFramesAreForwardedUnparsed(t *testing.T) {
	m, d, events := newTestManager(t)

	c := newFakeConn()
	d.conns <- c
	m.Connect()
	recvStatus(t, events, time.Second)
	recvStatus(t, events, time.Second)

	c.frames <- []byte("not even json")
	if got := recvFrame(t, events, time.Second); string(got) != "not even json" {
		t.Fatalf("frame = %q", got)
	}
}
