// Package snapshot fetches the current queue contents over plain HTTP. It is
// only used for the initial/idle-state queue display and takes no part in the
// real-time state machine.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Queue struct {
	Players []string `json:"players"`
}

var client = &http.Client{Timeout: 5 * time.Second}

// Fetch GETs the queue snapshot endpoint and returns the queued player ids.
func Fetch(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch queue snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("queue snapshot returned %s", resp.Status)
	}

	var q Queue
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return nil, fmt.Errorf("decode queue snapshot: %w", err)
	}
	return q.Players, nil
}
