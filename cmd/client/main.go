package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/p5quared/openoutcry/internal/config"
	"github.com/p5quared/openoutcry/internal/conn"
	"github.com/p5quared/openoutcry/internal/session"
	"github.com/p5quared/openoutcry/internal/snapshot"
	"github.com/p5quared/openoutcry/tui"
)

func main() {
	cfg := config.Load()

	// The TUI owns the terminal, so logs go to a file.
	logger := zap.NewNop()
	if path := os.Getenv("OPENOUTCRY_LOG"); path != "" {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.OutputPaths = []string{path}
		if l, err := zcfg.Build(); err == nil {
			logger = l
		}
	}
	defer logger.Sync()

	ctx := context.Background()
	sess := session.New(cfg.ServerURL, conn.WebsocketDialer{}, logger)
	sess.Start(ctx)
	defer sess.Stop()

	// Seed the idle-state queue display; purely informational.
	go func() {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if players, err := snapshot.Fetch(sctx, cfg.SnapshotURL()); err == nil {
			sess.SetQueueRoster(players)
		}
	}()

	p := tea.NewProgram(tui.NewModel(sess), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
