// Package tui is the terminal presentation layer. It is a pure consumer of
// session views: every key press turns into a session command, every render
// reads the latest broadcast View.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/p5quared/openoutcry/internal/conn"
	"github.com/p5quared/openoutcry/internal/game"
	"github.com/p5quared/openoutcry/internal/matchmaking"
	"github.com/p5quared/openoutcry/internal/session"
)

const chartWidth = 60

type viewMsg session.View

type tickMsg time.Time

type Model struct {
	sess    *session.Session
	views   <-chan session.View
	current session.View
	spin    spinner.Model
	width   int
	height  int
}

func NewModel(sess *session.Session) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(purpleColor)
	return &Model{
		sess:  sess,
		views: sess.Subscribe(),
		spin:  sp,
		width: 80,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitView(), tick())
}

func (m *Model) waitView() tea.Cmd {
	return func() tea.Msg {
		v, ok := <-m.views
		if !ok {
			return tea.Quit()
		}
		return viewMsg(v)
	}
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case viewMsg:
		m.current = session.View(msg)
		return m, m.waitView()

	case tickMsg:
		// countdown and queue-elapsed displays re-render on the timer
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.current

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc":
		if v.Game.Phase == game.PhaseEnded {
			m.sess.LeaveGame()
			return m, nil
		}
		return m, tea.Quit
	}

	if v.Game.Phase == game.PhaseNone {
		switch msg.String() {
		case "j", "enter":
			if v.Conn == conn.StatusConnected && v.Matchmaking.Status == matchmaking.StatusIdle {
				m.sess.JoinQueue()
			}
		case "l":
			if v.Matchmaking.Status == matchmaking.StatusQueued {
				m.sess.LeaveQueue()
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		m.sess.MoveCursor(1)
	case "down":
		m.sess.MoveCursor(-1)
	case "b":
		if v.Game.Phase == game.PhaseRunning {
			m.sess.PlaceBid(v.Game.Cursor)
		}
	case "s":
		if v.Game.Phase == game.PhaseRunning {
			m.sess.PlaceAsk(v.Game.Cursor)
		}
	case "c":
		m.sess.CancelBid(v.Game.Cursor)
	case "x":
		m.sess.CancelAsk(v.Game.Cursor)
	}
	return m, nil
}

func (m *Model) View() string {
	v := m.current

	var b strings.Builder
	b.WriteString(m.statusBar(v))
	b.WriteString("\n")

	switch v.Game.Phase {
	case game.PhaseNone:
		b.WriteString(m.matchmakingScreen(v))
	case game.PhaseCountdown:
		b.WriteString(panelStyle.Render(fmt.Sprintf("Game starting in %d...", v.Game.Countdown)))
	default:
		b.WriteString(m.gameScreen(v))
	}
	return b.String()
}

func (m *Model) statusBar(v session.View) string {
	var status string
	switch v.Conn {
	case conn.StatusConnected:
		status = connectedStyle.Render("● connected")
	case conn.StatusConnecting:
		status = connectingStyle.Render(m.spin.View() + "connecting")
	default:
		status = disconnectedStyle.Render("○ disconnected")
	}
	if v.ConnErr != "" {
		status += mutedStyle.Render("  " + v.ConnErr)
	}
	return titleStyle.Render("open outcry") + "  " + status
}

func (m *Model) matchmakingScreen(v session.View) string {
	mm := v.Matchmaking
	var lines []string

	switch mm.Status {
	case matchmaking.StatusQueued:
		elapsed := time.Since(mm.EnqueuedAt).Round(time.Second)
		lines = append(lines, fmt.Sprintf("%sin queue as %s  (%s)", m.spin.View(), mm.PlayerID, elapsed))
	case matchmaking.StatusMatched:
		lines = append(lines, "matched: "+strings.Join(mm.MatchedPlayers, ", "))
	default:
		lines = append(lines, "press j to join the queue")
	}

	if mm.QueueDepth > 0 {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("%d in queue: %s",
			mm.QueueDepth, strings.Join(mm.QueuedPlayers, ", "))))
	}
	if mm.Error != "" {
		lines = append(lines, lossStyle.Render(mm.Error))
	}
	lines = append(lines, "", mutedStyle.Render("j join · l leave · q quit"))
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) gameScreen(v session.View) string {
	g := v.Game

	chart := panelStyle.Render(
		titleStyle.Render("price "+fmt.Sprintf("%d", g.CurrentPrice)) + "\n" +
			sparkline(game.Window(g.PriceHistory, chartWidth)))

	stats := m.statsPanel(g)
	book := m.bookPanel(g)

	var footer string
	if g.Phase == game.PhaseEnded {
		footer = m.resultsPanel(g)
	} else {
		footer = mutedStyle.Render(
			fmt.Sprintf("cursor %d · up/down move · b bid · s ask · c/x cancel bid/ask · q quit", g.Cursor))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		chart,
		lipgloss.JoinHorizontal(lipgloss.Top, stats, book),
		footer)
}

func (m *Model) statsPanel(g session.GameView) string {
	st := g.Stats
	costBasis := "-"
	if st.HasCostBasis {
		costBasis = fmt.Sprintf("%d", st.CostBasis)
	}
	pl := profitStyle
	if g.ProfitLoss < 0 {
		pl = lossStyle
	}
	body := fmt.Sprintf("balance  %d\nshares   %d\ncost     %s\nP/L      %s",
		st.Balance, st.Shares, costBasis, pl.Render(fmt.Sprintf("%+d", g.ProfitLoss)))
	return panelStyle.Render(titleStyle.Render("you") + "\n" + body)
}

func (m *Model) bookPanel(g session.GameView) string {
	asks := game.AggregateOrderBook(g.Orders, game.SideAsk, g.LocalPlayer)
	bids := game.AggregateOrderBook(g.Orders, game.SideBid, g.LocalPlayer)

	var lines []string
	for _, lv := range asks {
		lines = append(lines, levelLine(askStyle, "ask", lv))
	}
	for _, lv := range bids {
		lines = append(lines, levelLine(bidStyle, "bid", lv))
	}
	if len(lines) == 0 {
		lines = append(lines, mutedStyle.Render("no open orders"))
	}
	return panelStyle.Render(titleStyle.Render("book") + "\n" + strings.Join(lines, "\n"))
}

func levelLine(style lipgloss.Style, side string, lv game.Level) string {
	line := fmt.Sprintf("%s %4d ×%d", side, lv.Price, lv.Count)
	if lv.Own {
		return ownStyle.Render(line + " *")
	}
	return style.Render(line)
}

func (m *Model) resultsPanel(g session.GameView) string {
	var lines []string
	for _, p := range g.Players {
		bal, ok := g.FinalBalances[p]
		if !ok {
			continue
		}
		marker := ""
		if p == g.LocalPlayer {
			marker = " (you)"
		}
		lines = append(lines, fmt.Sprintf("%s%s  %d", p, marker, bal))
	}
	lines = append(lines, "", mutedStyle.Render("q back to lobby"))
	return panelStyle.Render(titleStyle.Render("final balances") + "\n" + strings.Join(lines, "\n"))
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// sparkline renders a history series as one line of block characters.
func sparkline(series []game.Sample) string {
	if len(series) == 0 {
		return mutedStyle.Render("waiting for ticks...")
	}
	lo, hi := series[0].V, series[0].V
	for _, s := range series {
		if s.V < lo {
			lo = s.V
		}
		if s.V > hi {
			hi = s.V
		}
	}
	span := hi - lo
	var b strings.Builder
	for _, s := range series {
		idx := 0
		if span > 0 {
			idx = int((s.V - lo) / span * float64(len(sparkLevels)-1))
		}
		b.WriteRune(sparkLevels[idx])
	}
	return b.String()
}
