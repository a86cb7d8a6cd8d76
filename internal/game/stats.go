package game

import (
	"math"
	"sort"
)

// Stats is the derived ledger summary for one participant. Balance and
// shares are recomputed from the fill ledger on every read; nothing here is
// stored.
type Stats struct {
	Balance int
	Shares  int
	// CostBasis is the rounded mean of all purchase fills, independent of
	// the current position size. Valid only when HasCostBasis is true.
	CostBasis    int
	HasCostBasis bool
}

// Stats derives balance, share count and cost basis for the participant from
// its fill ledger and the starting balance snapshot.
func (s *State) Stats(playerID string) Stats {
	lg := s.ledgers[playerID]
	if lg == nil {
		return Stats{Balance: s.startingBalance}
	}

	st := Stats{
		Balance: balanceOf(lg, s.startingBalance),
		Shares:  len(lg.Purchases) - len(lg.Sales),
	}
	if len(lg.Purchases) > 0 {
		sum := 0
		for _, p := range lg.Purchases {
			sum += p
		}
		st.CostBasis = int(math.Round(float64(sum) / float64(len(lg.Purchases))))
		st.HasCostBasis = true
	}
	return st
}

// ProfitLoss is the participant's mark-to-market P/L against the starting
// balance: (balance + shares*currentPrice) - startingBalance. Zero when no
// game is active.
func (s *State) ProfitLoss(playerID string) int {
	if s.phase == PhaseNone {
		return 0
	}
	st := s.Stats(playerID)
	return st.Balance + st.Shares*s.CurrentPrice(playerID) - s.startingBalance
}

// Level is one aggregated price level of the order book as shown to a
// particular viewer.
type Level struct {
	Price int
	Count int
	// Own is set when the viewer has at least one open order at this level.
	Own bool
}

// AggregateOrderBook groups the open orders of one side by price level,
// sorted descending by price. Display convention only; the client never
// matches orders.
func AggregateOrderBook(orders []Order, side Side, viewerID string) []Level {
	byPrice := make(map[int]*Level)
	for _, o := range orders {
		if o.Side != side {
			continue
		}
		lv := byPrice[o.Price]
		if lv == nil {
			lv = &Level{Price: o.Price}
			byPrice[o.Price] = lv
		}
		lv.Count++
		if o.PlayerID == viewerID {
			lv.Own = true
		}
	}

	levels := make([]Level, 0, len(byPrice))
	for _, lv := range byPrice {
		levels = append(levels, *lv)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
	return levels
}

// Window returns the most recent n samples of a history series, for
// fixed-width chart rendering.
func Window(series []Sample, n int) []Sample {
	if n <= 0 || len(series) == 0 {
		return nil
	}
	if len(series) > n {
		series = series[len(series)-n:]
	}
	return append([]Sample(nil), series...)
}
