package battle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clash-vn/clasharena/internal/domains/entities"
	"github.com/clash-vn/clasharena/internal/engine/score"
	"github.com/clash-vn/clasharena/internal/memstore"
	"github.com/clash-vn/clasharena/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	updates []Update
}

func (p *capturePublisher) PublishMatchUpdate(update Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, update)
}

func (p *capturePublisher) states() []entities.MatchState {
	p.mu.Lock()
	defer p.mu.Unlock()
	states := make([]entities.MatchState, len(p.updates))
	for i, u := range p.updates {
		states[i] = u.State
	}
	return states
}

func (p *capturePublisher) sawState(state entities.MatchState) bool {
	for _, s := range p.states() {
		if s == state {
			return true
		}
	}
	return false
}

type captureRewards struct {
	mu      sync.Mutex
	results []Result
}

func (r *captureRewards) MatchSettled(ctx context.Context, result Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

func (r *captureRewards) all() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

type testHarness struct {
	store     *memstore.Store
	scores    *score.Aggregator
	rewards   *captureRewards
	publisher *capturePublisher
	manager   *Manager
}

func createTestManager(t *testing.T, cfg Config) *testHarness {
	t.Helper()
	store := memstore.New()
	scores := score.NewAggregator(store)
	rewards := &captureRewards{}
	publisher := &capturePublisher{}
	return &testHarness{
		store:     store,
		scores:    scores,
		rewards:   rewards,
		publisher: publisher,
		manager:   NewManager(cfg, scores, store, rewards, publisher),
	}
}

func createTestMatch() entities.Match {
	return entities.Match{
		Id:        utils.GenerateUUID(),
		TeamSize:  1,
		Region:    "ap-southeast-1",
		TeamA:     []string{"user-a"},
		TeamB:     []string{"user-b"},
		State:     entities.MatchForming,
		CreatedAt: time.Now(),
	}
}

func TestMarkReadyStartsBattle(t *testing.T) {
	h := createTestManager(t, Config{ReadyTimeout: time.Minute, BattleDuration: time.Minute})
	match := createTestMatch()
	h.manager.HandleMatch(match)

	assert.True(t, h.manager.InActiveMatch("user-a"))
	assert.True(t, h.manager.InActiveMatch("user-b"))

	require.NoError(t, h.manager.MarkReady(match.Id, "user-a"))
	snap, err := h.manager.Status(context.Background(), match.Id)
	require.NoError(t, err)
	assert.Equal(t, entities.MatchAwaitingReady, snap.Match.State)
	assert.Equal(t, []string{"user-a"}, snap.Ready)

	require.NoError(t, h.manager.MarkReady(match.Id, "user-b"))
	snap, err = h.manager.Status(context.Background(), match.Id)
	require.NoError(t, err)
	assert.Equal(t, entities.MatchInProgress, snap.Match.State)
	assert.False(t, snap.Match.StartedAt.IsZero())
	assert.Positive(t, snap.RemainingSeconds)

	active, err := h.store.ListActiveMatches(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)

	// Repeating a ready call after the start changes nothing.
	require.NoError(t, h.manager.MarkReady(match.Id, "user-a"))
	snap, err = h.manager.Status(context.Background(), match.Id)
	require.NoError(t, err)
	assert.Equal(t, entities.MatchInProgress, snap.Match.State)
}

func TestMarkReadyConcurrentWithHandover(t *testing.T) {
	// Participants hammer MarkReady while the queue is still handing the
	// match over; every ready call that finds the match must succeed and
	// the battle must start normally.
	for i := 0; i < 50; i++ {
		h := createTestManager(t, Config{ReadyTimeout: time.Minute, BattleDuration: time.Minute})
		match := createTestMatch()

		var wg sync.WaitGroup
		for _, userId := range []string{"user-a", "user-b"} {
			wg.Add(1)
			go func(userId string) {
				defer wg.Done()
				for {
					if err := h.manager.MarkReady(match.Id, userId); err == nil {
						return
					}
				}
			}(userId)
		}
		h.manager.HandleMatch(match)
		wg.Wait()

		snap, err := h.manager.Status(context.Background(), match.Id)
		require.NoError(t, err)
		assert.Equal(t, entities.MatchInProgress, snap.Match.State)
	}
}

func TestMarkReadyNonParticipant(t *testing.T) {
	h := createTestManager(t, Config{ReadyTimeout: time.Minute, BattleDuration: time.Minute})
	match := createTestMatch()
	h.manager.HandleMatch(match)

	assert.ErrorIs(t, h.manager.MarkReady(match.Id, "stranger"), ErrNotParticipant)
	assert.ErrorIs(t, h.manager.MarkReady("missing", "user-a"), ErrMatchNotFound)
}

func TestReadyTimeoutCancels(t *testing.T) {
	h := createTestManager(t, Config{ReadyTimeout: 20 * time.Millisecond, BattleDuration: time.Minute})
	match := createTestMatch()
	h.manager.HandleMatch(match)
	require.NoError(t, h.manager.MarkReady(match.Id, "user-a"))

	assert.Eventually(t, func() bool {
		return h.publisher.sawState(entities.MatchCancelled)
	}, time.Second, 5*time.Millisecond)

	assert.False(t, h.manager.InActiveMatch("user-a"))
	assert.False(t, h.manager.InActiveMatch("user-b"))

	// A cancelled match is never archived.
	_, err := h.manager.Status(context.Background(), match.Id)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestLeaveCancelsBeforeStart(t *testing.T) {
	h := createTestManager(t, Config{ReadyTimeout: time.Minute, BattleDuration: time.Minute})
	match := createTestMatch()
	h.manager.HandleMatch(match)

	assert.ErrorIs(t, h.manager.Leave(match.Id, "stranger"), ErrNotParticipant)
	require.NoError(t, h.manager.Leave(match.Id, "user-b"))

	assert.True(t, h.publisher.sawState(entities.MatchCancelled))
	assert.False(t, h.manager.InActiveMatch("user-a"))
	assert.False(t, h.manager.InActiveMatch("user-b"))
}

func TestLeaveRejectedOnceStarted(t *testing.T) {
	h := createTestManager(t, Config{ReadyTimeout: time.Minute, BattleDuration: time.Minute})
	match := createTestMatch()
	h.manager.HandleMatch(match)
	require.NoError(t, h.manager.MarkReady(match.Id, "user-a"))
	require.NoError(t, h.manager.MarkReady(match.Id, "user-b"))

	assert.ErrorIs(t, h.manager.Leave(match.Id, "user-a"), ErrMatchNotCancelable)
}

func TestForceStopSettles(t *testing.T) {
	h := createTestManager(t, Config{ReadyTimeout: time.Minute, BattleDuration: time.Minute})
	match := createTestMatch()
	h.manager.HandleMatch(match)
	require.NoError(t, h.manager.MarkReady(match.Id, "user-a"))
	require.NoError(t, h.manager.MarkReady(match.Id, "user-b"))

	h.scores.RecordGift(match.Id, "user-a", 70)
	h.scores.RecordGift(match.Id, "user-b", 30)

	require.NoError(t, h.manager.ForceStop(match.Id))

	snap, err := h.manager.Status(context.Background(), match.Id)
	require.NoError(t, err)
	assert.Equal(t, entities.MatchCompleted, snap.Match.State)
	assert.Equal(t, entities.WinnerTeamA, snap.Match.Winner)
	assert.Equal(t, int64(70), snap.Match.ScoreA)
	assert.Equal(t, int64(30), snap.Match.ScoreB)

	assert.False(t, h.manager.InActiveMatch("user-a"))

	active, err := h.store.ListActiveMatches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.Eventually(t, func() bool {
		results := h.rewards.all()
		return len(results) == 1 &&
			results[0].MatchId == match.Id &&
			results[0].Winner == entities.WinnerTeamA
	}, time.Second, 5*time.Millisecond)

	// Settlement ran once; a second stop is rejected.
	assert.ErrorIs(t, h.manager.ForceStop(match.Id), ErrMatchNotFound)
}

func TestForceStopBeforeStart(t *testing.T) {
	h := createTestManager(t, Config{ReadyTimeout: time.Minute, BattleDuration: time.Minute})
	match := createTestMatch()
	h.manager.HandleMatch(match)

	assert.ErrorIs(t, h.manager.ForceStop(match.Id), ErrMatchNotInProgress)
}

func TestExpirySettlesWithTie(t *testing.T) {
	h := createTestManager(t, Config{ReadyTimeout: time.Minute, BattleDuration: 30 * time.Millisecond})
	match := createTestMatch()
	h.manager.HandleMatch(match)
	require.NoError(t, h.manager.MarkReady(match.Id, "user-a"))
	require.NoError(t, h.manager.MarkReady(match.Id, "user-b"))

	assert.Eventually(t, func() bool {
		snap, err := h.manager.Status(context.Background(), match.Id)
		return err == nil && snap.Match.State == entities.MatchCompleted
	}, time.Second, 5*time.Millisecond)

	snap, err := h.manager.Status(context.Background(), match.Id)
	require.NoError(t, err)
	assert.Equal(t, entities.WinnerTie, snap.Match.Winner)
	assert.Equal(t, int64(0), snap.Match.ScoreA)
	assert.Equal(t, int64(0), snap.Match.ScoreB)
}

func TestRestoreRebuildsScoresAndExpiry(t *testing.T) {
	h := createTestManager(t, Config{ReadyTimeout: time.Minute, BattleDuration: time.Minute})
	ctx := context.Background()

	match := createTestMatch()
	match.State = entities.MatchInProgress
	match.StartedAt = time.Now().Add(-10 * time.Millisecond)
	match.Duration = 50 * time.Millisecond

	require.NoError(t, h.store.AppendGiftEvent(ctx, entities.GiftEvent{
		Id:         utils.GenerateUUID(),
		SenderId:   "fan-1",
		ReceiverId: "user-b",
		Amount:     90,
		MatchId:    match.Id,
		CreatedAt:  time.Now(),
	}))

	require.NoError(t, h.manager.Restore(ctx, match))
	assert.True(t, h.manager.InActiveMatch("user-a"))

	snap, err := h.manager.Status(ctx, match.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(90), snap.Match.ScoreB)

	// The rebuilt timer still fires at startedAt plus duration.
	assert.Eventually(t, func() bool {
		snap, err := h.manager.Status(ctx, match.Id)
		return err == nil && snap.Match.State == entities.MatchCompleted
	}, time.Second, 5*time.Millisecond)

	snap, err = h.manager.Status(ctx, match.Id)
	require.NoError(t, err)
	assert.Equal(t, entities.WinnerTeamB, snap.Match.Winner)
}

func TestRestoreRejectsNonProgressMatch(t *testing.T) {
	h := createTestManager(t, Config{ReadyTimeout: time.Minute, BattleDuration: time.Minute})
	match := createTestMatch()

	assert.Error(t, h.manager.Restore(context.Background(), match))
}
