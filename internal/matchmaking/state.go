package matchmaking

import "time"

type Status string

const (
	StatusIdle    Status = "idle"
	StatusQueued  Status = "queued"
	StatusMatched Status = "matched"
)

// State tracks the client's queue membership lifecycle plus the last-known
// queue telemetry. The server is the source of truth: transitions happen only
// when a server event says so (or on an explicit local Reset).
type State struct {
	now func() time.Time

	status         Status
	playerID       string
	enqueuedAt     time.Time
	matchedPlayers []string
	queuedPlayers  []string
	queueDepth     int
	errMsg         string
}

func NewState() *State {
	return &State{now: time.Now, status: StatusIdle}
}

func (s *State) Status() Status { return s.status }

// PlayerID is the server-assigned identifier, set on enqueue.
func (s *State) PlayerID() string { return s.playerID }

func (s *State) MatchedPlayers() []string {
	return append([]string(nil), s.matchedPlayers...)
}

func (s *State) QueuedPlayers() []string {
	return append([]string(nil), s.queuedPlayers...)
}

func (s *State) QueueDepth() int { return s.queueDepth }

// Error returns the last server-reported, non-fatal error annotation.
func (s *State) Error() string { return s.errMsg }

// EnqueuedAt is the zero time unless the client is currently queued.
func (s *State) EnqueuedAt() time.Time { return s.enqueuedAt }

// SetEnqueued records a successful enqueue: the server assigned us an id.
func (s *State) SetEnqueued(playerID string) {
	s.status = StatusQueued
	s.playerID = playerID
	s.enqueuedAt = s.now()
	s.errMsg = ""
}

// SetMatched records the match roster and leaves the queue.
func (s *State) SetMatched(players []string) {
	s.status = StatusMatched
	s.matchedPlayers = append([]string(nil), players...)
	s.queuedPlayers = nil
	s.queueDepth = 0
	s.errMsg = ""
}

// SetDequeued returns to idle and clears everything queue-related.
func (s *State) SetDequeued() {
	s.status = StatusIdle
	s.playerID = ""
	s.enqueuedAt = time.Time{}
	s.matchedPlayers = nil
	s.errMsg = ""
}

// SetAlreadyQueued annotates the current state; the phase does not change
// because the server says we are already where we asked to be.
func (s *State) SetAlreadyQueued() {
	s.errMsg = "already in queue"
}

// SetPlayerNotFound annotates the current state without changing phase.
func (s *State) SetPlayerNotFound() {
	s.errMsg = "player not found in queue"
}

// SetQueuedPlayers is a telemetry-only update, valid in any phase. Fed by
// roster-bearing events and the queue snapshot fetch.
func (s *State) SetQueuedPlayers(players []string, depth int) {
	s.queuedPlayers = append([]string(nil), players...)
	s.queueDepth = depth
}

// Reset forces idle unconditionally, used on navigation away from the lobby.
// Idempotent.
func (s *State) Reset() {
	now := s.now
	*s = State{now: now, status: StatusIdle}
}
