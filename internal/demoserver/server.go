// Package demoserver is a scripted stand-in for the real game server, used
// by integration tests and for local play. It runs a trivial two-player
// queue and a random-walk game; placed orders are echoed back and filled on
// the following tick. It performs no real matching or settlement.
package demoserver

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/p5quared/openoutcry/internal/protocol"
)

type serverMsg interface{ isServerMsg() }

type clientJoined struct{ c *client }
type clientLeft struct{ c *client }
type fromClient struct {
	c   *client
	out protocol.Outbound
}
type queueSnapshot struct{ reply chan []string }
type gamePhase struct {
	gameID string
	// remaining > 0 is a countdown second; started begins the game; ticks
	// drive prices and fills until the scripted length runs out.
	remaining int
	started   bool
	tick      bool
}

func (clientJoined) isServerMsg()  {}
func (clientLeft) isServerMsg()    {}
func (fromClient) isServerMsg()    {}
func (queueSnapshot) isServerMsg() {}
func (gamePhase) isServerMsg()     {}

type client struct {
	id     string
	outbox chan []byte
}

type openOrder struct {
	side     string // "bid" | "ask"
	playerID string
	price    int
}

type scriptedGame struct {
	id        string
	players   []*client
	prices    map[string]int
	cash      map[string]int
	shares    map[string]int
	orders    []openOrder
	ticksLeft int
}

// Server is the scripted game server actor. All state lives on the loop
// goroutine; handlers only post messages.
type Server struct {
	CountdownSecs int
	TickInterval  time.Duration
	GameTicks     int
	StartPrice    int
	StartBalance  int

	inbox   chan serverMsg
	log     *zap.Logger
	clients map[*client]bool
	queue   []*client
	games   map[string]*scriptedGame
	byID    map[string]*scriptedGame // player id -> active game
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Server{
		CountdownSecs: 3,
		TickInterval:  time.Second,
		GameTicks:     60,
		StartPrice:    100,
		StartBalance:  1000,
		inbox:         make(chan serverMsg, 64),
		log:           log,
		clients:       make(map[*client]bool),
		games:         make(map[string]*scriptedGame),
		byID:          make(map[string]*scriptedGame),
		ctx:           ctx,
		cancel:        cancel,
	}
	go s.loop()
	return s
}

func (s *Server) Stop() { s.cancel() }

func (s *Server) post(m serverMsg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

// QueuedPlayers answers the snapshot endpoint.
func (s *Server) QueuedPlayers() []string {
	reply := make(chan []string, 1)
	s.post(queueSnapshot{reply: reply})
	select {
	case players := <-reply:
		return players
	case <-s.ctx.Done():
		return nil
	}
}

func (s *Server) loop() {
	for {
		select {
		case <-s.ctx.Done():
			for c := range s.clients {
				close(c.outbox)
			}
			return

		case m := <-s.inbox:
			switch m := m.(type) {
			case clientJoined:
				s.clients[m.c] = true

			case clientLeft:
				delete(s.clients, m.c)
				s.removeFromQueue(m.c)
				close(m.c.outbox)

			case fromClient:
				s.handleCommand(m.c, m.out)

			case queueSnapshot:
				ids := make([]string, len(s.queue))
				for i, c := range s.queue {
					ids[i] = c.id
				}
				m.reply <- ids

			case gamePhase:
				s.advanceGame(m)
			}
		}
	}
}

func (s *Server) handleCommand(c *client, out protocol.Outbound) {
	switch out.Type {
	case protocol.TypeJoinQueue:
		if s.inQueue(c) {
			s.sendTo(c, unitFrame("AlreadyQueued"))
			return
		}
		s.queue = append(s.queue, c)
		// Enqueued is addressed, not broadcast: the receiver adopts the id
		// as its own.
		s.sendTo(c, encode(frame{"Enqueued": c.id}))
		if len(s.queue) >= 2 {
			s.startMatch(s.queue[0], s.queue[1])
			s.queue = s.queue[2:]
		}

	case protocol.TypeLeaveQueue:
		if !s.inQueue(c) {
			s.sendTo(c, unitFrame("PlayerNotFound"))
			return
		}
		s.removeFromQueue(c)
		s.broadcast(frame{"Dequeued": c.id})

	case protocol.TypePlaceBid:
		s.placeOrder(c, out.GameID, "bid", out.Value)

	case protocol.TypePlaceAsk:
		s.placeOrder(c, out.GameID, "ask", out.Value)

	case protocol.TypeCancelBid:
		s.cancelOrder(c, out.GameID, "bid", out.Price)

	case protocol.TypeCancelAsk:
		s.cancelOrder(c, out.GameID, "ask", out.Price)

	default:
		s.log.Debug("ignoring unknown client command", zap.String("type", out.Type))
	}
}

func (s *Server) startMatch(a, b *client) {
	g := &scriptedGame{
		id:        uuid.NewString(),
		players:   []*client{a, b},
		prices:    map[string]int{a.id: s.StartPrice, b.id: s.StartPrice},
		cash:      map[string]int{a.id: s.StartBalance, b.id: s.StartBalance},
		shares:    map[string]int{a.id: 0, b.id: 0},
		ticksLeft: s.GameTicks,
	}
	s.games[g.id] = g
	s.byID[a.id] = g
	s.byID[b.id] = g

	s.sendGame(g, frame{"Matched": []string{a.id, b.id}})
	go s.driveGame(g.id)
}

// driveGame posts the scripted timeline into the actor so every mutation
// stays on the loop goroutine.
func (s *Server) driveGame(gameID string) {
	for r := s.CountdownSecs; r >= 1; r-- {
		s.post(gamePhase{gameID: gameID, remaining: r})
		if !s.sleep(s.TickInterval) {
			return
		}
	}
	s.post(gamePhase{gameID: gameID, started: true})
	for i := 0; i < s.GameTicks; i++ {
		if !s.sleep(s.TickInterval) {
			return
		}
		s.post(gamePhase{gameID: gameID, tick: true})
	}
}

func (s *Server) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Server) advanceGame(m gamePhase) {
	g := s.games[m.gameID]
	if g == nil {
		return
	}

	switch {
	case m.remaining > 0:
		s.sendGame(g, frame{"type": "countdown", "game_id": g.id, "remaining": m.remaining})

	case m.started:
		ids := make([]string, len(g.players))
		for i, c := range g.players {
			ids[i] = c.id
		}
		s.sendGame(g, frame{
			"type":             "game_started",
			"game_id":          g.id,
			"starting_price":   s.StartPrice,
			"starting_balance": s.StartBalance,
			"players":          ids,
		})

	case m.tick:
		s.tickGame(g)
	}
}

func (s *Server) tickGame(g *scriptedGame) {
	// every open order fills at its own price, then prices take a step
	for _, o := range g.orders {
		typ := "bid_filled"
		valueKey := "bid_value"
		if o.side == "ask" {
			typ = "ask_filled"
			valueKey = "ask_value"
			g.cash[o.playerID] += o.price
			g.shares[o.playerID]--
		} else {
			g.cash[o.playerID] -= o.price
			g.shares[o.playerID]++
		}
		s.sendGame(g, frame{"type": typ, "player_id": o.playerID, valueKey: o.price})
	}
	g.orders = nil

	for _, c := range g.players {
		p := g.prices[c.id] + rand.Intn(11) - 5
		if p < 1 {
			p = 1
		}
		g.prices[c.id] = p
		s.sendGame(g, frame{"type": "price_changed", "player_id": c.id, "price": p})
	}

	g.ticksLeft--
	if g.ticksLeft <= 0 {
		s.endGame(g)
	}
}

func (s *Server) endGame(g *scriptedGame) {
	final := make([][2]any, 0, len(g.players))
	for _, c := range g.players {
		worth := g.cash[c.id] + g.shares[c.id]*g.prices[c.id]
		final = append(final, [2]any{c.id, worth})
	}
	s.sendGame(g, frame{"type": "game_ended", "final_balances": final})

	delete(s.games, g.id)
	for _, c := range g.players {
		delete(s.byID, c.id)
	}
}

func (s *Server) placeOrder(c *client, gameID, side string, value int) {
	g := s.byID[c.id]
	if g == nil || g.id != gameID {
		return // stale or foreign game id
	}
	g.orders = append(g.orders, openOrder{side: side, playerID: c.id, price: value})
	typ, key := "bid_placed", "bid_value"
	if side == "ask" {
		typ, key = "ask_placed", "ask_value"
	}
	s.sendGame(g, frame{"type": typ, "player_id": c.id, key: value})
}

func (s *Server) cancelOrder(c *client, gameID, side string, price int) {
	g := s.byID[c.id]
	if g == nil || g.id != gameID {
		return
	}
	for i, o := range g.orders {
		if o.side == side && o.playerID == c.id && o.price == price {
			g.orders = append(g.orders[:i], g.orders[i+1:]...)
			typ := side + "_canceled"
			s.sendGame(g, frame{"type": typ, "player_id": c.id, "price": price})
			return
		}
	}
}

func (s *Server) inQueue(c *client) bool {
	for _, q := range s.queue {
		if q == c {
			return true
		}
	}
	return false
}

func (s *Server) removeFromQueue(c *client) {
	for i, q := range s.queue {
		if q == c {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

type frame map[string]any

func encode(f frame) []byte {
	payload, _ := json.Marshal(f)
	return payload
}

func (s *Server) broadcast(f frame) {
	payload := encode(f)
	for c := range s.clients {
		s.push(c, payload)
	}
}

func (s *Server) sendGame(g *scriptedGame, f frame) {
	payload := encode(f)
	for _, c := range g.players {
		s.push(c, payload)
	}
}

func (s *Server) sendTo(c *client, payload []byte) {
	s.push(c, payload)
}

func (s *Server) push(c *client, payload []byte) {
	if !s.clients[c] {
		return // already gone, outbox is closed
	}
	select {
	case c.outbox <- payload:
	default:
		// slow client, drop the frame
	}
}

// unitFrame encodes a payload-free matchmaking variant as its bare string
// form, matching the production server's encoding.
func unitFrame(name string) []byte {
	payload, _ := json.Marshal(name)
	return payload
}
