package matchmaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueRecordsIdentityAndClearsError(t *testing.T) {
	s := NewState()
	s.SetPlayerNotFound()

	s.SetEnqueued("p1")

	assert.Equal(t, StatusQueued, s.Status())
	assert.Equal(t, "p1", s.PlayerID())
	assert.False(t, s.EnqueuedAt().IsZero())
	assert.Empty(t, s.Error())
}

func TestMatchedRecordsRoster(t *testing.T) {
	s := NewState()
	s.SetEnqueued("p1")
	s.SetQueuedPlayers([]string{"p1", "p2"}, 2)

	s.SetMatched([]string{"p1", "p2"})

	assert.Equal(t, StatusMatched, s.Status())
	assert.Equal(t, []string{"p1", "p2"}, s.MatchedPlayers())
	assert.Empty(t, s.QueuedPlayers())
	assert.Zero(t, s.QueueDepth())
}

func TestDequeueClearsEverything(t *testing.T) {
	s := NewState()
	s.SetEnqueued("p1")

	s.SetDequeued()

	assert.Equal(t, StatusIdle, s.Status())
	assert.Empty(t, s.PlayerID())
	assert.True(t, s.EnqueuedAt().IsZero())
}

func TestServerErrorsAnnotateWithoutChangingPhase(t *testing.T) {
	s := NewState()
	s.SetEnqueued("p1")

	s.SetAlreadyQueued()
	assert.Equal(t, StatusQueued, s.Status())
	assert.Equal(t, "already in queue", s.Error())

	s.SetPlayerNotFound()
	assert.Equal(t, StatusQueued, s.Status())
	assert.Equal(t, "player not found in queue", s.Error())
}

func TestQueueTelemetryUpdatesInAnyPhase(t *testing.T) {
	s := NewState()

	s.SetQueuedPlayers([]string{"a", "b", "c"}, 3)
	assert.Equal(t, 3, s.QueueDepth())
	assert.Equal(t, []string{"a", "b", "c"}, s.QueuedPlayers())

	s.SetMatched([]string{"a", "b"})
	s.SetQueuedPlayers([]string{"c"}, 1)
	assert.Equal(t, StatusMatched, s.Status())
	assert.Equal(t, 1, s.QueueDepth())
}

func TestResetIsIdempotent(t *testing.T) {
	s := NewState()
	s.now = func() time.Time { return time.Unix(42, 0) }
	s.SetEnqueued("p1")
	s.SetQueuedPlayers([]string{"p1"}, 1)

	s.Reset()
	s.Reset()

	assert.Equal(t, StatusIdle, s.Status())
	assert.Empty(t, s.PlayerID())
	assert.Empty(t, s.QueuedPlayers())
	assert.Zero(t, s.QueueDepth())
}
