package matchmaking

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clash-vn/clasharena/internal/domains/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchRecorder struct {
	mu      sync.Mutex
	matches []entities.Match
}

func (r *matchRecorder) handle(match entities.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = append(r.matches, match)
}

func (r *matchRecorder) all() []entities.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entities.Match(nil), r.matches...)
}

type stubChecker struct {
	inMatch map[string]bool
}

func (c *stubChecker) InActiveMatch(userId string) bool {
	return c.inMatch[userId]
}

func createTestQueue(t *testing.T) (*Queue, *matchRecorder) {
	t.Helper()
	recorder := &matchRecorder{}
	q := NewQueue(Config{MaxWait: time.Minute}, nil, recorder.handle)
	return q, recorder
}

func TestEnqueueForms1v1(t *testing.T) {
	q, recorder := createTestQueue(t)

	ticketA, err := q.Enqueue([]string{"user-a"}, 1, "ap-southeast-1")
	require.NoError(t, err)
	ticketB, err := q.Enqueue([]string{"user-b"}, 1, "ap-southeast-1")
	require.NoError(t, err)

	matches := recorder.all()
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"user-a"}, matches[0].TeamA)
	assert.Equal(t, []string{"user-b"}, matches[0].TeamB)
	assert.Equal(t, entities.MatchForming, matches[0].State)

	for _, ticketId := range []string{ticketA, ticketB} {
		status, matchId, err := q.Status(ticketId)
		require.NoError(t, err)
		assert.Equal(t, entities.TicketMatched, status)
		assert.Equal(t, matches[0].Id, matchId)
	}
}

func TestEnqueueValidation(t *testing.T) {
	q, _ := createTestQueue(t)

	_, err := q.Enqueue([]string{"user-a"}, 0, "ap")
	assert.ErrorIs(t, err, ErrInvalidTicket)

	_, err = q.Enqueue([]string{"user-a"}, MaxTeamSize+1, "ap")
	assert.ErrorIs(t, err, ErrInvalidTicket)

	_, err = q.Enqueue(nil, 2, "ap")
	assert.ErrorIs(t, err, ErrInvalidTicket)

	_, err = q.Enqueue([]string{"user-a", "user-b", "user-c"}, 2, "ap")
	assert.ErrorIs(t, err, ErrInvalidTicket)

	_, err = q.Enqueue([]string{"user-a", "user-a"}, 2, "ap")
	assert.ErrorIs(t, err, ErrInvalidTicket)

	_, err = q.Enqueue([]string{""}, 1, "ap")
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestEnqueueRejectsDoubleQueue(t *testing.T) {
	q, _ := createTestQueue(t)

	_, err := q.Enqueue([]string{"user-a"}, 2, "ap")
	require.NoError(t, err)

	_, err = q.Enqueue([]string{"user-a"}, 2, "ap")
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	_, err = q.Enqueue([]string{"user-b", "user-a"}, 2, "ap")
	assert.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestEnqueueRejectsUserInActiveMatch(t *testing.T) {
	recorder := &matchRecorder{}
	checker := &stubChecker{inMatch: map[string]bool{"user-a": true}}
	q := NewQueue(Config{MaxWait: time.Minute}, checker, recorder.handle)

	_, err := q.Enqueue([]string{"user-a"}, 1, "ap")
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	_, err = q.Enqueue([]string{"user-b"}, 1, "ap")
	assert.NoError(t, err)
}

func TestDequeue(t *testing.T) {
	q, _ := createTestQueue(t)

	ticketId, err := q.Enqueue([]string{"user-a"}, 2, "ap")
	require.NoError(t, err)

	require.NoError(t, q.Dequeue(ticketId))

	status, _, err := q.Status(ticketId)
	require.NoError(t, err)
	assert.Equal(t, entities.TicketWithdrawn, status)

	// Withdrawn requesters are free to queue again.
	_, err = q.Enqueue([]string{"user-a"}, 2, "ap")
	assert.NoError(t, err)

	assert.ErrorIs(t, q.Dequeue(ticketId), ErrTicketNotFound)
	assert.ErrorIs(t, q.Dequeue("missing"), ErrTicketNotFound)
}

func TestDequeueMatchedTicket(t *testing.T) {
	q, _ := createTestQueue(t)

	ticketId, err := q.Enqueue([]string{"user-a"}, 1, "ap")
	require.NoError(t, err)
	_, err = q.Enqueue([]string{"user-b"}, 1, "ap")
	require.NoError(t, err)

	assert.ErrorIs(t, q.Dequeue(ticketId), ErrTicketNotFound)
}

func TestPartyNeverSplit(t *testing.T) {
	q, recorder := createTestQueue(t)

	_, err := q.Enqueue([]string{"solo-1"}, 2, "ap")
	require.NoError(t, err)
	_, err = q.Enqueue([]string{"party-1", "party-2"}, 2, "ap")
	require.NoError(t, err)
	_, err = q.Enqueue([]string{"solo-2"}, 2, "ap")
	require.NoError(t, err)

	// The party did not fit next to solo-1 on team A, so it was skipped
	// in place and fills team B whole.
	matches := recorder.all()
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"solo-1", "solo-2"}, matches[0].TeamA)
	assert.Equal(t, []string{"party-1", "party-2"}, matches[0].TeamB)
}

func TestPartySkippedKeepsPriority(t *testing.T) {
	q, recorder := createTestQueue(t)

	_, err := q.Enqueue([]string{"party-1", "party-2", "party-3"}, 3, "ap")
	require.NoError(t, err)
	_, err = q.Enqueue([]string{"solo-1"}, 3, "ap")
	require.NoError(t, err)
	_, err = q.Enqueue([]string{"solo-2"}, 3, "ap")
	require.NoError(t, err)

	// Five queued requesters cannot fill two teams of three yet.
	require.Empty(t, recorder.all())

	_, err = q.Enqueue([]string{"solo-3"}, 3, "ap")
	require.NoError(t, err)

	matches := recorder.all()
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"party-1", "party-2", "party-3"}, matches[0].TeamA)
	assert.Equal(t, []string{"solo-1", "solo-2", "solo-3"}, matches[0].TeamB)
}

func TestRegionsDoNotMix(t *testing.T) {
	q, recorder := createTestQueue(t)

	_, err := q.Enqueue([]string{"user-a"}, 1, "ap-southeast-1")
	require.NoError(t, err)
	_, err = q.Enqueue([]string{"user-b"}, 1, "us-east-1")
	require.NoError(t, err)

	assert.Empty(t, recorder.all())
}

func TestTicketTimesOut(t *testing.T) {
	recorder := &matchRecorder{}
	q := NewQueue(Config{
		MaxWait:       20 * time.Millisecond,
		SweepInterval: 5 * time.Millisecond,
	}, nil, recorder.handle)
	q.Start()
	defer q.Stop()

	ticketId, err := q.Enqueue([]string{"user-a"}, 2, "ap")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		status, _, err := q.Status(ticketId)
		return err == nil && status == entities.TicketTimedOut
	}, time.Second, 5*time.Millisecond)

	// Timed-out requesters are released.
	_, err = q.Enqueue([]string{"user-a"}, 2, "ap")
	assert.NoError(t, err)
}

func TestExpiredTicketNeverMatched(t *testing.T) {
	recorder := &matchRecorder{}
	q := NewQueue(Config{MaxWait: 20 * time.Millisecond}, nil, recorder.handle)

	ticketA, err := q.Enqueue([]string{"user-a"}, 1, "ap")
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	// user-a is past the deadline but not yet swept; it must not be
	// pulled into a match.
	_, err = q.Enqueue([]string{"user-b"}, 1, "ap")
	require.NoError(t, err)
	require.Empty(t, recorder.all())

	_, err = q.Enqueue([]string{"user-c"}, 1, "ap")
	require.NoError(t, err)

	matches := recorder.all()
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"user-b"}, matches[0].TeamA)
	assert.Equal(t, []string{"user-c"}, matches[0].TeamB)

	status, _, err := q.Status(ticketA)
	require.NoError(t, err)
	assert.Equal(t, entities.TicketQueued, status)
}

func TestTerminalTicketsEvicted(t *testing.T) {
	recorder := &matchRecorder{}
	q := NewQueue(Config{
		MaxWait:       time.Minute,
		SweepInterval: 5 * time.Millisecond,
		TerminalTTL:   20 * time.Millisecond,
	}, nil, recorder.handle)
	q.Start()
	defer q.Stop()

	ticketId, err := q.Enqueue([]string{"user-a"}, 2, "ap")
	require.NoError(t, err)
	require.NoError(t, q.Dequeue(ticketId))

	status, _, err := q.Status(ticketId)
	require.NoError(t, err)
	assert.Equal(t, entities.TicketWithdrawn, status)

	assert.Eventually(t, func() bool {
		_, _, err := q.Status(ticketId)
		return errors.Is(err, ErrTicketNotFound)
	}, time.Second, 5*time.Millisecond)
}

func TestStatusUnknownTicket(t *testing.T) {
	q, _ := createTestQueue(t)

	_, _, err := q.Status("missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}
