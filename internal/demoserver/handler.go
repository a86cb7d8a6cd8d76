package demoserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/p5quared/openoutcry/internal/protocol"
)

// Routes builds the demo server's HTTP surface: the websocket endpoint, the
// queue snapshot, and a health check.
func Routes(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.wsHandler())
	r.Get("/queue", s.queueHandler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (s *Server) queueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Players []string `json:"players"`
		}{Players: s.QueuedPlayers()})
	}
}

func (s *Server) wsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close(websocket.StatusNormalClosure, "bye")

		c := &client{
			id:     uuid.NewString(),
			outbox: make(chan []byte, 32),
		}
		s.post(clientJoined{c: c})
		defer func() { s.post(clientLeft{c: c}) }()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for payload := range c.outbox {
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = ws.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			_, data, err := ws.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var out protocol.Outbound
			if err := json.Unmarshal(data, &out); err != nil {
				s.log.Warn("bad client frame", zap.Error(err))
				continue
			}
			s.post(fromClient{c: c, out: out})
		}
	}
}
