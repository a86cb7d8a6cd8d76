package config

import (
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// EnvServerURL overrides the websocket endpoint.
	EnvServerURL = "OPENOUTCRY_WS_URL"

	DefaultServerURL = "ws://localhost:8080/ws"
)

type Config struct {
	// ServerURL is the persistent-connection endpoint.
	ServerURL string
}

// Load reads configuration from a .env file (when present) and the
// environment, falling back to defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{ServerURL: DefaultServerURL}
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.ServerURL = v
	}
	return cfg
}

// SnapshotURL derives the queue-snapshot endpoint from the websocket
// endpoint: ws -> http, wss -> https, path swapped for /queue.
func (c Config) SnapshotURL() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = strings.TrimSuffix(u.Path, "/ws")
	u.Path += "/queue"
	return u.String()
}
