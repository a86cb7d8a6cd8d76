package conn

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Event is what the Manager emits to its consumer: status transitions and
// raw, unparsed inbound frames.
type Event interface{ isConnEvent() }

type StatusChanged struct {
	Status Status
	Err    error
}

type Frame struct{ Data []byte }

func (StatusChanged) isConnEvent() {}
func (Frame) isConnEvent()         {}

// Conn is one open transport connection.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens transport connections; swapped for a fake in tests.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

const (
	// DefaultRetryDelay is the fixed pause between reconnect attempts.
	// Unconditional and uncapped: the stream is the only source of truth,
	// so the client keeps trying until told to stop.
	DefaultRetryDelay = 2 * time.Second

	writeTimeout = 3 * time.Second
)

type command interface{ isCommand() }

type cmdConnect struct{}
type cmdDisconnect struct{}
type cmdSend struct{ data []byte }

func (cmdConnect) isCommand()    {}
func (cmdDisconnect) isCommand() {}
func (cmdSend) isCommand()       {}

// internal loop messages from dial/read goroutines
type loopMsg interface{ isLoopMsg() }

type dialDone struct {
	id   int
	conn Conn
	err  error
}

type readResult struct {
	id   int
	data []byte
	err  error
}

func (dialDone) isLoopMsg()   {}
func (readResult) isLoopMsg() {}

// Manager owns one persistent connection and its lifecycle state machine.
// All transitions happen on a single loop goroutine; the public methods only
// post commands, so they are safe from any goroutine.
type Manager struct {
	// RetryDelay may be shortened before Start; tests rely on it.
	RetryDelay time.Duration

	url      string
	dialer   Dialer
	events   chan<- Event
	inbox    chan command
	internal chan loopMsg
	status   atomic.Value // Status
	log      *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewManager(url string, dialer Dialer, events chan<- Event, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		RetryDelay: DefaultRetryDelay,
		url:        url,
		dialer:     dialer,
		events:     events,
		inbox:      make(chan command, 16),
		internal:   make(chan loopMsg, 16),
		log:        log,
		done:       make(chan struct{}),
	}
	m.status.Store(StatusDisconnected)
	return m
}

// Start launches the state-machine loop. Call once.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.loop(ctx)
}

// Stop tears the loop down and closes any open connection.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.done
}

// Status is the current connection state, readable from any goroutine.
func (m *Manager) Status() Status {
	return m.status.Load().(Status)
}

// Connect asks the loop to open the transport. No-op while a connection or
// an attempt is already up.
func (m *Manager) Connect() { m.post(cmdConnect{}) }

// Disconnect cancels any pending reconnect and closes the transport. The
// close does not re-schedule a reconnect.
func (m *Manager) Disconnect() { m.post(cmdDisconnect{}) }

// Send writes one frame if connected. Returns false when disconnected: the
// frame is simply lost, and correctness relies on fresh authoritative events
// after reconnect, not redelivery of client intents.
func (m *Manager) Send(data []byte) bool {
	if m.Status() != StatusConnected {
		return false
	}
	m.post(cmdSend{data: data})
	return true
}

func (m *Manager) post(c command) {
	select {
	case m.inbox <- c:
	case <-m.done:
	}
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)

	var (
		active  Conn
		attempt int // id of the current dial/connection; stale results are dropped
		timer   *time.Timer
		timerC  <-chan time.Time
	)

	setStatus := func(s Status, err error) {
		if m.Status() == s {
			return
		}
		m.status.Store(s)
		m.log.Info("connection status changed", zap.String("status", string(s)), zap.Error(err))
		select {
		case m.events <- StatusChanged{Status: s, Err: err}:
		case <-ctx.Done():
		}
	}

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	// at most one reconnect pending at a time
	scheduleReconnect := func() {
		if timerC != nil {
			return
		}
		timer = time.NewTimer(m.RetryDelay)
		timerC = timer.C
	}

	dial := func() {
		attempt++
		id := attempt
		setStatus(StatusConnecting, nil)
		go func() {
			c, err := m.dialer.Dial(ctx, m.url)
			select {
			case m.internal <- dialDone{id: id, conn: c, err: err}:
			case <-ctx.Done():
				if c != nil {
					_ = c.Close()
				}
			}
		}()
	}

	dropConn := func() {
		if active != nil {
			_ = active.Close()
			active = nil
		}
		attempt++ // invalidate the reader
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			dropConn()
			m.status.Store(StatusDisconnected)
			return

		case <-timerC:
			timer = nil
			timerC = nil
			if m.Status() == StatusDisconnected {
				dial()
			}

		case c := <-m.inbox:
			switch c := c.(type) {
			case cmdConnect:
				if m.Status() != StatusDisconnected {
					break
				}
				stopTimer()
				dial()

			case cmdDisconnect:
				stopTimer()
				dropConn()
				setStatus(StatusDisconnected, nil)

			case cmdSend:
				if active == nil {
					break
				}
				wctx, cancel := context.WithTimeout(ctx, writeTimeout)
				err := active.Write(wctx, c.data)
				cancel()
				if err != nil {
					// The reader will observe the broken connection and
					// drive the reconnect; just log here.
					m.log.Warn("send failed", zap.Error(err))
				}
			}

		case msg := <-m.internal:
			switch msg := msg.(type) {
			case dialDone:
				if msg.id != attempt {
					if msg.conn != nil {
						_ = msg.conn.Close()
					}
					break
				}
				if msg.err != nil {
					setStatus(StatusDisconnected, msg.err)
					scheduleReconnect()
					break
				}
				active = msg.conn
				setStatus(StatusConnected, nil)
				go m.readLoop(ctx, msg.conn, msg.id)

			case readResult:
				if msg.id != attempt {
					break
				}
				if msg.err != nil {
					dropConn()
					setStatus(StatusDisconnected, msg.err)
					scheduleReconnect()
					break
				}
				select {
				case m.events <- Frame{Data: msg.data}:
				case <-ctx.Done():
				}
			}
		}
	}
}

func (m *Manager) readLoop(ctx context.Context, c Conn, id int) {
	for {
		data, err := c.Read(ctx)
		select {
		case m.internal <- readResult{id: id, data: data, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}
