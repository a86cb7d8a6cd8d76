package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/p5quared/openoutcry/internal/conn"
	"github.com/p5quared/openoutcry/internal/game"
	"github.com/p5quared/openoutcry/internal/matchmaking"
	"github.com/p5quared/openoutcry/internal/protocol"
	"github.com/p5quared/openoutcry/internal/router"
)

type msg interface{ isSessionMsg() }

type joinQueue struct{}
type leaveQueue struct{}
type placeBid struct{ value int }
type placeAsk struct{ value int }
type cancelBid struct{ price int }
type cancelAsk struct{ price int }
type moveCursor struct{ delta int }
type setCursor struct{ value int }
type leaveGame struct{}
type setRoster struct{ players []string }
type subscribe struct{ reply chan (<-chan View) }
type getView struct{ reply chan View }

func (joinQueue) isSessionMsg()  {}
func (leaveQueue) isSessionMsg() {}
func (placeBid) isSessionMsg()   {}
func (placeAsk) isSessionMsg()   {}
func (cancelBid) isSessionMsg()  {}
func (cancelAsk) isSessionMsg()  {}
func (moveCursor) isSessionMsg() {}
func (setCursor) isSessionMsg()  {}
func (leaveGame) isSessionMsg()  {}
func (setRoster) isSessionMsg()  {}
func (subscribe) isSessionMsg()  {}
func (getView) isSessionMsg()    {}

// MatchmakingView is an immutable copy of the matchmaking container.
type MatchmakingView struct {
	Status         matchmaking.Status
	PlayerID       string
	MatchedPlayers []string
	QueuedPlayers  []string
	QueueDepth     int
	EnqueuedAt     time.Time
	Error          string
}

// GameView is an immutable copy of the game container plus its derived
// analytics, recomputed on every broadcast.
type GameView struct {
	Phase           game.Phase
	GameID          string
	Countdown       int
	Players         []string
	LocalPlayer     string
	StartingPrice   int
	StartingBalance int
	CurrentPrice    int
	PriceHistory    []game.Sample
	BalanceHistory  []game.Sample
	Orders          []game.Order
	Cursor          int
	Stats           game.Stats
	ProfitLoss      int
	FinalBalances   map[string]int
}

// View is one consistent snapshot of everything a consumer can render.
type View struct {
	Conn        conn.Status
	ConnErr     string
	Matchmaking MatchmakingView
	Game        GameView
}

// Session is the composition root for one client session: it owns the two
// state containers, the router and the connection manager, and serializes
// every mutation on a single loop goroutine. Consumers read through
// broadcast Views, never through the containers directly.
type Session struct {
	mgr        *conn.Manager
	mm         *matchmaking.State
	game       *game.State
	rt         *router.Router
	log        *zap.Logger
	connEvents chan conn.Event
	inbox      chan msg
	subs       map[int]chan View
	nextSub    int
	connStatus conn.Status
	connErr    error
	cancel     context.CancelFunc
	done       chan struct{}
}

func New(url string, dialer conn.Dialer, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	connEvents := make(chan conn.Event, 64)
	mm := matchmaking.NewState()
	g := game.NewState()
	return &Session{
		mgr:        conn.NewManager(url, dialer, connEvents, log),
		mm:         mm,
		game:       g,
		rt:         router.New(mm, g, log),
		log:        log,
		connEvents: connEvents,
		inbox:      make(chan msg, 64),
		subs:       make(map[int]chan View),
		connStatus: conn.StatusDisconnected,
		done:       make(chan struct{}),
	}
}

// Manager exposes the connection manager for tests and status probes.
func (s *Session) Manager() *conn.Manager { return s.mgr }

// Start launches the loop and the connection manager, and opens the
// transport.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.mgr.Start(ctx)
	go s.loop(ctx)
	s.mgr.Connect()
}

func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	s.mgr.Stop()
}

func (s *Session) JoinQueue()           { s.post(joinQueue{}) }
func (s *Session) LeaveQueue()          { s.post(leaveQueue{}) }
func (s *Session) PlaceBid(value int)   { s.post(placeBid{value: value}) }
func (s *Session) PlaceAsk(value int)   { s.post(placeAsk{value: value}) }
func (s *Session) CancelBid(price int)  { s.post(cancelBid{price: price}) }
func (s *Session) CancelAsk(price int)  { s.post(cancelAsk{price: price}) }
func (s *Session) MoveCursor(delta int) { s.post(moveCursor{delta: delta}) }
func (s *Session) SetCursor(value int)  { s.post(setCursor{value: value}) }

// LeaveGame resets both containers, used on navigation back to the lobby.
func (s *Session) LeaveGame() { s.post(leaveGame{}) }

// SetQueueRoster feeds queue telemetry from the snapshot endpoint.
func (s *Session) SetQueueRoster(players []string) {
	s.post(setRoster{players: players})
}

// Subscribe returns a channel receiving a View after every applied event.
// Slow subscribers are skipped, never blocked on; they can always catch up
// with the next broadcast or an explicit View call.
func (s *Session) Subscribe() <-chan View {
	reply := make(chan (<-chan View), 1)
	s.post(subscribe{reply: reply})
	select {
	case ch := <-reply:
		return ch
	case <-s.done:
		closed := make(chan View)
		close(closed)
		return closed
	}
}

// View returns the current snapshot synchronously.
func (s *Session) View() View {
	reply := make(chan View, 1)
	s.post(getView{reply: reply})
	select {
	case v := <-reply:
		return v
	case <-s.done:
		return View{Conn: conn.StatusDisconnected}
	}
}

func (s *Session) post(m msg) {
	select {
	case s.inbox <- m:
	case <-s.done:
	}
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-s.connEvents:
			switch ev := ev.(type) {
			case conn.StatusChanged:
				s.connStatus = ev.Status
				s.connErr = ev.Err
				if ev.Status == conn.StatusDisconnected {
					// Local state is only as good as the stream feeding it;
					// a fresh connection brings a fresh authoritative
					// stream, so drop everything stale now.
					s.game.Reset()
					s.mm.Reset()
				}
			case conn.Frame:
				s.rt.Route(ev.Data)
			}
			s.broadcast()

		case m := <-s.inbox:
			s.handle(m)
		}
	}
}

func (s *Session) handle(m msg) {
	switch m := m.(type) {
	case joinQueue:
		s.send(protocol.JoinQueue())
	case leaveQueue:
		s.send(protocol.LeaveQueue())
	case placeBid:
		if id := s.game.GameID(); id != "" {
			s.send(protocol.PlaceBid(id, m.value))
		}
	case placeAsk:
		if id := s.game.GameID(); id != "" {
			s.send(protocol.PlaceAsk(id, m.value))
		}
	case cancelBid:
		if id := s.game.GameID(); id != "" {
			s.send(protocol.CancelBid(id, m.price))
		}
	case cancelAsk:
		if id := s.game.GameID(); id != "" {
			s.send(protocol.CancelAsk(id, m.price))
		}
	case moveCursor:
		s.game.MoveCursor(m.delta)
		s.broadcast()
	case setCursor:
		s.game.SetCursor(m.value)
		s.broadcast()
	case leaveGame:
		s.game.Reset()
		s.mm.Reset()
		s.broadcast()
	case setRoster:
		s.mm.SetQueuedPlayers(m.players, len(m.players))
		s.broadcast()
	case subscribe:
		ch := make(chan View, 8)
		s.subs[s.nextSub] = ch
		s.nextSub++
		ch <- s.view()
		m.reply <- ch
	case getView:
		m.reply <- s.view()
	}
}

// send builds and fires one outbound event; a false return just means we are
// disconnected and the intent is dropped, the server resynchronizes us on
// reconnect anyway.
func (s *Session) send(out protocol.Outbound) {
	payload, err := out.Encode()
	if err != nil {
		s.log.Error("encode outbound event", zap.Error(err))
		return
	}
	if !s.mgr.Send(payload) {
		s.log.Warn("dropped outbound event while disconnected", zap.String("type", out.Type))
	}
}

func (s *Session) view() View {
	local := s.game.LocalPlayer()
	errStr := ""
	if s.connErr != nil {
		errStr = s.connErr.Error()
	}
	return View{
		Conn:    s.connStatus,
		ConnErr: errStr,
		Matchmaking: MatchmakingView{
			Status:         s.mm.Status(),
			PlayerID:       s.mm.PlayerID(),
			MatchedPlayers: s.mm.MatchedPlayers(),
			QueuedPlayers:  s.mm.QueuedPlayers(),
			QueueDepth:     s.mm.QueueDepth(),
			EnqueuedAt:     s.mm.EnqueuedAt(),
			Error:          s.mm.Error(),
		},
		Game: GameView{
			Phase:           s.game.Phase(),
			GameID:          s.game.GameID(),
			Countdown:       s.game.Countdown(),
			Players:         s.game.Players(),
			LocalPlayer:     local,
			StartingPrice:   s.game.StartingPrice(),
			StartingBalance: s.game.StartingBalance(),
			CurrentPrice:    s.game.CurrentPrice(local),
			PriceHistory:    s.game.PriceHistory(local),
			BalanceHistory:  s.game.BalanceHistory(),
			Orders:          s.game.OpenOrders(),
			Cursor:          s.game.Cursor(),
			Stats:           s.game.Stats(local),
			ProfitLoss:      s.game.ProfitLoss(local),
			FinalBalances:   s.game.FinalBalances(),
		},
	}
}

func (s *Session) broadcast() {
	v := s.view()
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			// Full buffer: replace the oldest pending view with the
			// current one so a slow consumer always sees fresh state.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}
