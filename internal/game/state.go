package game

import "time"

type Phase string

const (
	PhaseNone      Phase = "none"
	PhaseCountdown Phase = "countdown"
	PhaseRunning   Phase = "running"
	PhaseEnded     Phase = "ended"
)

type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Order is one entry of the open-order set. The set holds at most one entry
// per (Side, PlayerID, Price) tuple.
type Order struct {
	Side     Side
	PlayerID string
	Price    int
}

// Sample is one point of a history series: elapsed seconds since game start
// and the value at that instant.
type Sample struct {
	T float64
	V float64
}

// Ledger records every fill a participant received, split by side. Both
// sequences are append-only so realized P/L and cost basis stay
// reconstructable; balance and share count are derived from them, never
// stored.
type Ledger struct {
	Purchases []int
	Sales     []int
}

// timeEpsilon nudges a sample's time coordinate forward when several fills
// land in the same tick. Chart consumers require a strictly increasing axis.
const timeEpsilon = 0.001

// sharedTicker keys the price series used by single-shared-price game modes,
// where price_changed frames carry no player id.
const sharedTicker = ""

// State is the authoritative local mirror of one game session. It is not
// safe for concurrent use; the owning session loop serializes all calls.
type State struct {
	now func() time.Time

	localPlayer     string
	phase           Phase
	gameID          string
	countdown       int
	startingPrice   int
	startingBalance int
	players         []string
	startedAt       time.Time

	prices         map[string][]Sample
	balanceHistory []Sample
	ledgers        map[string]*Ledger
	orders         []Order
	cursor         int
	finalBalances  map[string]int
}

func NewState() *State {
	return &State{
		now:     time.Now,
		phase:   PhaseNone,
		prices:  make(map[string][]Sample),
		ledgers: make(map[string]*Ledger),
	}
}

// SetLocalPlayer records which participant this client is, so fills can be
// attributed to the local balance history. Assigned by the server on enqueue.
func (s *State) SetLocalPlayer(id string) { s.localPlayer = id }

func (s *State) LocalPlayer() string { return s.localPlayer }

func (s *State) Phase() Phase { return s.phase }

// GameID returns the identifier of the active session. Outbound orders must
// be stamped with this id; the server rejects orders for any other game.
func (s *State) GameID() string { return s.gameID }

func (s *State) Countdown() int { return s.countdown }

// SetCountdown moves the session into the countdown phase. Ignored once the
// game is running or ended; phases only move forward.
func (s *State) SetCountdown(gameID string, remaining int) {
	if s.phase != PhaseNone && s.phase != PhaseCountdown {
		return
	}
	s.phase = PhaseCountdown
	s.gameID = gameID
	s.countdown = remaining
}

// Start initializes the running session: snapshots the starting price and
// balance, captures the session start instant, and seeds every participant's
// price series and the local balance history at t=0.
func (s *State) Start(gameID string, startingPrice, startingBalance int, players []string) {
	if s.phase != PhaseNone && s.phase != PhaseCountdown {
		return
	}
	s.phase = PhaseRunning
	s.gameID = gameID
	s.countdown = 0
	s.startingPrice = startingPrice
	s.startingBalance = startingBalance
	s.players = append([]string(nil), players...)
	s.startedAt = s.now()
	s.cursor = clampCursor(startingPrice)

	s.prices = make(map[string][]Sample)
	for _, p := range players {
		s.prices[p] = []Sample{{T: 0, V: float64(startingPrice)}}
	}
	s.balanceHistory = []Sample{{T: 0, V: float64(startingBalance)}}
	s.ledgers = make(map[string]*Ledger)
	for _, p := range players {
		s.ledgers[p] = &Ledger{}
	}
	s.orders = nil
	s.finalBalances = nil
}

// ApplyPrice appends a price sample for the given participant, or to the
// shared series when playerID is empty. Timestamps are wall-clock seconds
// since Start, corrected to stay strictly increasing.
func (s *State) ApplyPrice(playerID string, price int) {
	if s.phase != PhaseRunning {
		return
	}
	s.prices[playerID] = appendSample(s.prices[playerID], s.elapsed(), float64(price))
}

// ApplyOrderPlaced inserts into the open-order set. A duplicate
// (side, player, price) tuple is ignored.
func (s *State) ApplyOrderPlaced(side Side, playerID string, price int) {
	if s.phase != PhaseRunning {
		return
	}
	if s.findOrder(side, playerID, price) >= 0 {
		return
	}
	s.orders = append(s.orders, Order{Side: side, PlayerID: playerID, Price: price})
}

// ApplyOrderCanceled removes the matching open order. Removing an entry that
// is not present is a no-op: the server is authoritative and may already
// have resolved it.
func (s *State) ApplyOrderCanceled(side Side, playerID string, price int) {
	s.removeOrder(side, playerID, price)
}

// ApplyFill removes the matching open order, appends the price to the
// owner's fill ledger, and extends the local balance history when the fill
// belongs to this client.
func (s *State) ApplyFill(side Side, playerID string, price int) {
	if s.phase != PhaseRunning {
		return
	}
	s.removeOrder(side, playerID, price)

	lg := s.ledgers[playerID]
	if lg == nil {
		lg = &Ledger{}
		s.ledgers[playerID] = lg
	}
	switch side {
	case SideBid:
		lg.Purchases = append(lg.Purchases, price)
	case SideAsk:
		lg.Sales = append(lg.Sales, price)
	}

	if playerID == s.localPlayer && s.localPlayer != "" {
		bal := balanceOf(lg, s.startingBalance)
		s.balanceHistory = appendSample(s.balanceHistory, s.elapsed(), float64(bal))
	}
}

// End moves the session to the ended phase and records the server's final
// balances, the only settlement values the client trusts. Open orders are
// cleared; the ledgers and histories stay for the post-game view.
func (s *State) End(finalBalances map[string]int) {
	if s.phase != PhaseRunning {
		return
	}
	s.phase = PhaseEnded
	s.orders = nil
	s.finalBalances = make(map[string]int, len(finalBalances))
	for k, v := range finalBalances {
		s.finalBalances[k] = v
	}
}

// MoveCursor shifts the price-selection cursor, clamping at 1.
func (s *State) MoveCursor(delta int) {
	s.cursor = clampCursor(s.cursor + delta)
}

// SetCursor positions the price-selection cursor, clamping at 1.
func (s *State) SetCursor(value int) {
	s.cursor = clampCursor(value)
}

func (s *State) Cursor() int { return s.cursor }

// Reset returns the container to its initial empty state. Idempotent; used
// when the client navigates back to the lobby.
func (s *State) Reset() {
	local, now := s.localPlayer, s.now
	*s = State{
		now:         now,
		localPlayer: local,
		phase:       PhaseNone,
		prices:      make(map[string][]Sample),
		ledgers:     make(map[string]*Ledger),
	}
}

func (s *State) Players() []string { return append([]string(nil), s.players...) }

func (s *State) StartingPrice() int { return s.startingPrice }

func (s *State) StartingBalance() int { return s.startingBalance }

// PriceHistory returns the participant's price series, falling back to the
// shared series in single-shared-price modes.
func (s *State) PriceHistory(playerID string) []Sample {
	if hist, ok := s.prices[playerID]; ok && len(hist) > 0 {
		return append([]Sample(nil), hist...)
	}
	return append([]Sample(nil), s.prices[sharedTicker]...)
}

func (s *State) BalanceHistory() []Sample {
	return append([]Sample(nil), s.balanceHistory...)
}

// CurrentPrice is the last recorded price for the participant, or the
// starting price before any tick has landed.
func (s *State) CurrentPrice(playerID string) int {
	hist := s.prices[playerID]
	if len(hist) == 0 {
		hist = s.prices[sharedTicker]
	}
	if len(hist) == 0 {
		return s.startingPrice
	}
	return int(hist[len(hist)-1].V)
}

func (s *State) OpenOrders() []Order { return append([]Order(nil), s.orders...) }

func (s *State) LedgerOf(playerID string) Ledger {
	lg := s.ledgers[playerID]
	if lg == nil {
		return Ledger{}
	}
	return Ledger{
		Purchases: append([]int(nil), lg.Purchases...),
		Sales:     append([]int(nil), lg.Sales...),
	}
}

func (s *State) FinalBalances() map[string]int {
	out := make(map[string]int, len(s.finalBalances))
	for k, v := range s.finalBalances {
		out[k] = v
	}
	return out
}

func (s *State) elapsed() float64 {
	return s.now().Sub(s.startedAt).Seconds()
}

func (s *State) findOrder(side Side, playerID string, price int) int {
	for i, o := range s.orders {
		if o.Side == side && o.PlayerID == playerID && o.Price == price {
			return i
		}
	}
	return -1
}

func (s *State) removeOrder(side Side, playerID string, price int) {
	if i := s.findOrder(side, playerID, price); i >= 0 {
		s.orders = append(s.orders[:i], s.orders[i+1:]...)
	}
}

func appendSample(series []Sample, t, v float64) []Sample {
	if n := len(series); n > 0 && t <= series[n-1].T {
		t = series[n-1].T + timeEpsilon
	}
	return append(series, Sample{T: t, V: v})
}

func balanceOf(lg *Ledger, startingBalance int) int {
	bal := startingBalance
	for _, p := range lg.Purchases {
		bal -= p
	}
	for _, p := range lg.Sales {
		bal += p
	}
	return bal
}

func clampCursor(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
