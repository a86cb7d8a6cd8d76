package router

import (
	"go.uber.org/zap"

	"github.com/p5quared/openoutcry/internal/game"
	"github.com/p5quared/openoutcry/internal/matchmaking"
	"github.com/p5quared/openoutcry/internal/protocol"
)

// Router classifies inbound frames and dispatches them to the state
// containers, strictly in arrival order. It holds no state of its own and
// never buffers, reorders or deduplicates.
type Router struct {
	mm   *matchmaking.State
	game *game.State
	log  *zap.Logger
}

func New(mm *matchmaking.State, g *game.State, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{mm: mm, game: g, log: log}
}

// Route decodes one raw frame and applies it. Undecodable frames are logged
// and dropped; unrecognized game tags are ignored.
func (r *Router) Route(raw []byte) {
	ev, err := protocol.Decode(raw)
	if err != nil {
		r.log.Warn("dropping undecodable frame",
			zap.Error(err),
			zap.ByteString("frame", raw))
		return
	}

	switch ev := ev.(type) {
	case protocol.Countdown:
		r.game.SetCountdown(ev.GameID, ev.Remaining)

	case protocol.GameStarted:
		r.game.Start(ev.GameID, ev.StartingPrice, ev.StartingBalance, ev.Players)
		r.log.Info("game started",
			zap.String("game_id", ev.GameID),
			zap.Int("starting_price", ev.StartingPrice),
			zap.Int("starting_balance", ev.StartingBalance))

	case protocol.PriceChanged:
		r.game.ApplyPrice(ev.PlayerID, ev.Price)

	case protocol.BidPlaced:
		r.game.ApplyOrderPlaced(game.SideBid, ev.PlayerID, ev.Value)

	case protocol.AskPlaced:
		r.game.ApplyOrderPlaced(game.SideAsk, ev.PlayerID, ev.Value)

	case protocol.BidFilled:
		r.game.ApplyFill(game.SideBid, ev.PlayerID, ev.Value)

	case protocol.AskFilled:
		r.game.ApplyFill(game.SideAsk, ev.PlayerID, ev.Value)

	case protocol.BidCanceled:
		r.game.ApplyOrderCanceled(game.SideBid, ev.PlayerID, ev.Price)

	case protocol.AskCanceled:
		r.game.ApplyOrderCanceled(game.SideAsk, ev.PlayerID, ev.Price)

	case protocol.GameEnded:
		final := make(map[string]int, len(ev.FinalBalances))
		for _, fb := range ev.FinalBalances {
			final[fb.PlayerID] = fb.Balance
		}
		r.game.End(final)
		r.log.Info("game ended", zap.Int("players", len(final)))

	case protocol.Enqueued:
		r.mm.SetEnqueued(ev.PlayerID)
		r.game.SetLocalPlayer(ev.PlayerID)

	case protocol.Matched:
		r.mm.SetMatched(ev.Players)

	case protocol.Dequeued:
		// Dequeue broadcasts may name another player; only an empty id or
		// our own moves us back to idle.
		if ev.PlayerID == "" || ev.PlayerID == r.mm.PlayerID() {
			r.mm.SetDequeued()
		}

	case protocol.AlreadyQueued:
		r.mm.SetAlreadyQueued()

	case protocol.PlayerNotFound:
		r.mm.SetPlayerNotFound()

	case protocol.Unknown:
		r.log.Debug("ignoring unknown game event", zap.String("tag", ev.Tag))
	}
}
