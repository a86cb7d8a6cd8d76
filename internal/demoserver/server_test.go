package demoserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/p5quared/openoutcry/internal/protocol"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(context.Background(), nil)
	s.CountdownSecs = 1
	s.TickInterval = 50 * time.Millisecond
	s.GameTicks = 5
	t.Cleanup(s.Stop)

	ts := httptest.NewServer(Routes(s))
	t.Cleanup(ts.Close)
	return s, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "done") })
	return c
}

func send(t *testing.T, c *websocket.Conn, payload string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(payload)))
}

func nextEvent(t *testing.T, c *websocket.Conn) protocol.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	ev, err := protocol.Decode(data)
	require.NoErrorf(t, err, "undecodable frame: %s", data)
	return ev
}

// waitFor reads events until pred matches, skipping everything else.
func waitFor(t *testing.T, c *websocket.Conn, pred func(protocol.Event) bool) protocol.Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if ev := nextEvent(t, c); pred(ev) {
			return ev
		}
	}
	t.Fatal("timed out waiting for event")
	return nil
}

func fetchQueue(t *testing.T, baseURL string) []string {
	t.Helper()
	resp, err := http.Get(baseURL + "/queue")
	require.NoError(t, err)
	defer resp.Body.Close()

	var q struct {
		Players []string `json:"players"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&q))
	return q.Players
}

func TestScriptedGameEndToEnd(t *testing.T) {
	s, ts := newTestServer(t)

	a := dial(t, wsURL(ts))
	b := dial(t, wsURL(ts))

	send(t, a, `{"type":"join_queue"}`)
	enq := waitFor(t, a, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.Enqueued)
		return ok
	}).(protocol.Enqueued)
	aID := enq.PlayerID

	assert.Equal(t, []string{aID}, fetchQueue(t, ts.URL))

	send(t, b, `{"type":"join_queue"}`)
	matched := waitFor(t, a, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.Matched)
		return ok
	}).(protocol.Matched)
	require.Len(t, matched.Players, 2)
	require.Contains(t, matched.Players, aID)

	var bID string
	for _, id := range matched.Players {
		if id != aID {
			bID = id
		}
	}

	// the queue is drained once the pair is matched
	assert.Empty(t, fetchQueue(t, ts.URL))

	started := waitFor(t, a, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.GameStarted)
		return ok
	}).(protocol.GameStarted)
	require.NotEmpty(t, started.GameID)
	assert.Equal(t, s.StartPrice, started.StartingPrice)
	assert.Equal(t, s.StartBalance, started.StartingBalance)
	assert.ElementsMatch(t, matched.Players, started.Players)

	send(t, a, fmt.Sprintf(`{"type":"place_bid","game_id":%q,"value":95}`, started.GameID))
	placed := waitFor(t, a, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.BidPlaced)
		return ok
	}).(protocol.BidPlaced)
	assert.Equal(t, aID, placed.PlayerID)
	assert.Equal(t, 95, placed.Value)

	filled := waitFor(t, a, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.BidFilled)
		return ok
	}).(protocol.BidFilled)
	assert.Equal(t, aID, filled.PlayerID)
	assert.Equal(t, 95, filled.Value)

	// drain to the end, tracking the last quoted price for each player
	lastPrice := map[string]int{aID: started.StartingPrice, bID: started.StartingPrice}
	var ended protocol.GameEnded
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "game never ended")
		switch ev := nextEvent(t, a).(type) {
		case protocol.PriceChanged:
			lastPrice[ev.PlayerID] = ev.Price
		case protocol.GameEnded:
			ended = ev
		}
		if len(ended.FinalBalances) > 0 {
			break
		}
	}

	final := make(map[string]int, len(ended.FinalBalances))
	for _, pb := range ended.FinalBalances {
		final[pb.PlayerID] = pb.Balance
	}
	require.Len(t, final, 2)
	// a holds one share bought at 95, b never traded
	assert.Equal(t, s.StartBalance-95+lastPrice[aID], final[aID])
	assert.Equal(t, s.StartBalance, final[bID])
}

func TestQueueMembershipErrors(t *testing.T) {
	_, ts := newTestServer(t)

	c := dial(t, wsURL(ts))

	send(t, c, `{"type":"join_queue"}`)
	waitFor(t, c, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.Enqueued)
		return ok
	})

	send(t, c, `{"type":"join_queue"}`)
	waitFor(t, c, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.AlreadyQueued)
		return ok
	})

	send(t, c, `{"type":"leave_queue"}`)
	deq := waitFor(t, c, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.Dequeued)
		return ok
	}).(protocol.Dequeued)
	assert.NotEmpty(t, deq.PlayerID)

	send(t, c, `{"type":"leave_queue"}`)
	waitFor(t, c, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.PlayerNotFound)
		return ok
	})
}
