package battle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clash-vn/clasharena/internal/domains/entities"
	"github.com/clash-vn/clasharena/pkg/logging"
	"go.uber.org/zap"
)

var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrNotParticipant     = errors.New("user is not a participant")
	ErrMatchNotInProgress = errors.New("match is not in progress")
	ErrMatchNotCancelable = errors.New("match can no longer be cancelled")
)

// Scoreboard is the live score aggregator as the manager sees it: the
// manager only starts, freezes and reads scores, never writes them.
type Scoreboard interface {
	TrackMatch(matchId string, teamA, teamB []string)
	Freeze(matchId string) (int64, int64)
	GetScores(matchId string) (int64, int64, bool)
	Drop(matchId string)
	Rebuild(ctx context.Context, matchId string, teamA, teamB []string) error
}

// MatchStore persists the active-match record used for restart
// recovery and the final archive.
type MatchStore interface {
	PutActiveMatch(ctx context.Context, match entities.Match) error
	DeleteActiveMatch(ctx context.Context, matchId string) error
	ArchiveMatch(ctx context.Context, match entities.Match) error
	GetArchivedMatch(ctx context.Context, matchId string) (entities.Match, error)
}

// RewardHook receives the settlement result. Failures are logged and
// retried out of band; they never block match completion.
type RewardHook interface {
	MatchSettled(ctx context.Context, result Result) error
}

type Result struct {
	MatchId      string          `json:"matchId"`
	Winner       entities.Winner `json:"winner"`
	ScoreA       int64           `json:"scoreA"`
	ScoreB       int64           `json:"scoreB"`
	Participants []string        `json:"participants"`
}

// Publisher pushes match updates to the realtime channel. Polling via
// Status reads the same underlying state.
type Publisher interface {
	PublishMatchUpdate(update Update)
}

type Update struct {
	MatchId          string              `json:"matchId"`
	State            entities.MatchState `json:"state"`
	ScoreA           int64               `json:"scoreA"`
	ScoreB           int64               `json:"scoreB"`
	Winner           entities.Winner     `json:"winner,omitempty"`
	RemainingSeconds int64               `json:"remainingSeconds"`
}

type Snapshot struct {
	Match            entities.Match `json:"match"`
	Ready            []string       `json:"ready"`
	RemainingSeconds int64          `json:"remainingSeconds"`
}

type Config struct {
	ReadyTimeout   time.Duration
	BattleDuration time.Duration
	RewardRetries  int
}

type battleMatch struct {
	mu          sync.Mutex
	match       entities.Match
	ready       map[string]bool
	readyTimer  *time.Timer
	expiryTimer *time.Timer
}

// Manager drives a match from formation through readiness, the timed
// contest and settlement. Battle expiry is always derived from
// startedAt plus the fixed duration, so a restart can rebuild the
// timer from the persisted active-match record.
type Manager struct {
	cfg       Config
	scores    Scoreboard
	store     MatchStore
	rewards   RewardHook
	publisher Publisher

	mu      sync.Mutex
	matches map[string]*battleMatch
	active  map[string]string // userId -> matchId
}

func NewManager(
	cfg Config,
	scores Scoreboard,
	store MatchStore,
	rewards RewardHook,
	publisher Publisher,
) *Manager {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	if cfg.BattleDuration <= 0 {
		cfg.BattleDuration = 180 * time.Second
	}
	if cfg.RewardRetries <= 0 {
		cfg.RewardRetries = 3
	}
	return &Manager{
		cfg:       cfg,
		scores:    scores,
		store:     store,
		rewards:   rewards,
		publisher: publisher,
		matches:   make(map[string]*battleMatch),
		active:    make(map[string]string),
	}
}

// HandleMatch takes ownership of a match formed by the matchmaking
// queue and moves it into the ready-up phase.
func (m *Manager) HandleMatch(match entities.Match) {
	match.Duration = m.cfg.BattleDuration
	match.State = entities.MatchAwaitingReady

	bm := &battleMatch{
		match: match,
		ready: make(map[string]bool, len(match.TeamA)+len(match.TeamB)),
	}
	// MarkReady can run the instant the match is published; the timer
	// must exist before that.
	bm.readyTimer = time.AfterFunc(m.cfg.ReadyTimeout, func() {
		m.cancel(bm, "ready timeout")
	})

	m.mu.Lock()
	for _, id := range match.Participants() {
		if other, bound := m.active[id]; bound {
			m.mu.Unlock()
			bm.readyTimer.Stop()
			// A participant bound to two active matches means queue and
			// manager state diverged. Refuse the new match rather than
			// leave either inconsistent.
			logging.Error("participant already in an active match",
				zap.String("user_id", id),
				zap.String("match_id", match.Id),
				zap.String("other_match_id", other),
			)
			m.cancelDetached(match)
			return
		}
	}
	for _, id := range match.Participants() {
		m.active[id] = match.Id
	}
	m.matches[match.Id] = bm
	m.mu.Unlock()

	logging.Info("match awaiting ready",
		zap.String("match_id", match.Id),
		zap.Duration("ready_timeout", m.cfg.ReadyTimeout),
	)
	m.publish(Update{MatchId: match.Id, State: match.State})
}

// MarkReady flags one participant ready. Idempotent; the transition to
// in-progress fires exactly once, when the last participant readies.
func (m *Manager) MarkReady(matchId, userId string) error {
	bm, err := m.lookup(matchId)
	if err != nil {
		return err
	}

	bm.mu.Lock()
	if !bm.match.HasParticipant(userId) {
		bm.mu.Unlock()
		return ErrNotParticipant
	}
	if bm.match.State != entities.MatchAwaitingReady {
		// Ready-up already resolved one way or the other; repeating the
		// call changes nothing.
		bm.mu.Unlock()
		return nil
	}
	bm.ready[userId] = true
	allReady := len(bm.ready) == len(bm.match.TeamA)+len(bm.match.TeamB)
	if !allReady {
		bm.mu.Unlock()
		return nil
	}

	bm.readyTimer.Stop()
	bm.match.State = entities.MatchInProgress
	bm.match.StartedAt = time.Now()
	// Readiness is consumed by the transition out of ready-up.
	bm.ready = make(map[string]bool)
	match := bm.match
	bm.expiryTimer = time.AfterFunc(time.Until(match.ExpiresAt()), func() {
		m.settle(bm, "expired")
	})
	bm.mu.Unlock()

	m.scores.TrackMatch(match.Id, match.TeamA, match.TeamB)
	if err := m.store.PutActiveMatch(context.Background(), match); err != nil {
		logging.Error("failed to persist active match",
			zap.String("match_id", match.Id),
			zap.Error(err),
		)
	}

	logging.Info("battle started",
		zap.String("match_id", match.Id),
		zap.Time("started_at", match.StartedAt),
		zap.Duration("duration", match.Duration),
	)
	m.publish(Update{
		MatchId:          match.Id,
		State:            match.State,
		RemainingSeconds: int64(match.Duration.Seconds()),
	})
	return nil
}

// Leave withdraws a participant before the battle starts, cancelling
// the match and releasing everyone to re-enqueue.
func (m *Manager) Leave(matchId, userId string) error {
	bm, err := m.lookup(matchId)
	if err != nil {
		return err
	}
	bm.mu.Lock()
	if !bm.match.HasParticipant(userId) {
		bm.mu.Unlock()
		return ErrNotParticipant
	}
	if bm.match.State != entities.MatchForming && bm.match.State != entities.MatchAwaitingReady {
		bm.mu.Unlock()
		return ErrMatchNotCancelable
	}
	bm.mu.Unlock()
	m.cancel(bm, fmt.Sprintf("participant %s left", userId))
	return nil
}

// ForceStop ends an in-progress battle immediately. Treated exactly
// like duration expiry; already-recorded scores are untouched.
func (m *Manager) ForceStop(matchId string) error {
	bm, err := m.lookup(matchId)
	if err != nil {
		return err
	}
	bm.mu.Lock()
	inProgress := bm.match.State == entities.MatchInProgress
	bm.mu.Unlock()
	if !inProgress {
		return ErrMatchNotInProgress
	}
	m.settle(bm, "force stop")
	return nil
}

// InActiveMatch reports whether the user is bound to a live match.
// Consulted by the matchmaking queue before admitting a ticket.
func (m *Manager) InActiveMatch(userId string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[userId]
	return ok
}

// Status returns the current snapshot of a live match, or the archived
// record once settlement completed.
func (m *Manager) Status(ctx context.Context, matchId string) (Snapshot, error) {
	m.mu.Lock()
	bm, ok := m.matches[matchId]
	m.mu.Unlock()
	if !ok {
		archived, err := m.store.GetArchivedMatch(ctx, matchId)
		if err != nil {
			return Snapshot{}, ErrMatchNotFound
		}
		return Snapshot{Match: archived}, nil
	}

	bm.mu.Lock()
	snap := Snapshot{Match: bm.match}
	for id := range bm.ready {
		snap.Ready = append(snap.Ready, id)
	}
	bm.mu.Unlock()

	if snap.Match.State == entities.MatchInProgress {
		if a, b, ok := m.scores.GetScores(matchId); ok {
			snap.Match.ScoreA = a
			snap.Match.ScoreB = b
		}
		remaining := time.Until(snap.Match.ExpiresAt())
		if remaining > 0 {
			snap.RemainingSeconds = int64(remaining.Seconds())
		}
	}
	return snap, nil
}

// Restore re-registers an in-progress match after a restart: scores
// are rebuilt from the gift event log and the expiry timer is derived
// again from startedAt plus the fixed duration.
func (m *Manager) Restore(ctx context.Context, match entities.Match) error {
	if match.State != entities.MatchInProgress {
		return fmt.Errorf("cannot restore match in state %s", match.State)
	}
	if err := m.scores.Rebuild(ctx, match.Id, match.TeamA, match.TeamB); err != nil {
		return fmt.Errorf("failed to rebuild scores: %w", err)
	}

	bm := &battleMatch{
		match: match,
		ready: make(map[string]bool),
	}
	m.mu.Lock()
	for _, id := range match.Participants() {
		m.active[id] = match.Id
	}
	m.matches[match.Id] = bm
	m.mu.Unlock()

	// Assigned under bm.mu: settle reads the timer field under the same
	// lock, and an already-expired match cannot settle before it is
	// registered above.
	bm.mu.Lock()
	bm.expiryTimer = time.AfterFunc(time.Until(match.ExpiresAt()), func() {
		m.settle(bm, "expired")
	})
	bm.mu.Unlock()

	logging.Info("match restored",
		zap.String("match_id", match.Id),
		zap.Time("expires_at", match.ExpiresAt()),
	)
	return nil
}

// settle freezes scoring, decides the winner and completes the match.
// Runs at most once per match; expiry, force-stop and restart recovery
// all converge here.
func (m *Manager) settle(bm *battleMatch, reason string) {
	bm.mu.Lock()
	if bm.match.State != entities.MatchInProgress {
		bm.mu.Unlock()
		return
	}
	bm.match.State = entities.MatchSettling
	if bm.expiryTimer != nil {
		bm.expiryTimer.Stop()
	}
	matchId := bm.match.Id
	bm.mu.Unlock()

	m.publish(Update{MatchId: matchId, State: entities.MatchSettling})

	// Freeze before reading: no gift settled from here on moves the
	// totals.
	scoreA, scoreB := m.scores.Freeze(matchId)
	winner := entities.WinnerTie
	if scoreA > scoreB {
		winner = entities.WinnerTeamA
	} else if scoreB > scoreA {
		winner = entities.WinnerTeamB
	}

	bm.mu.Lock()
	bm.match.ScoreA = scoreA
	bm.match.ScoreB = scoreB
	bm.match.Winner = winner
	bm.match.State = entities.MatchCompleted
	match := bm.match
	bm.mu.Unlock()

	ctx := context.Background()
	if err := m.store.ArchiveMatch(ctx, match); err != nil {
		logging.Error("failed to archive match",
			zap.String("match_id", matchId),
			zap.Error(err),
		)
	}
	if err := m.store.DeleteActiveMatch(ctx, matchId); err != nil {
		logging.Error("failed to delete active match",
			zap.String("match_id", matchId),
			zap.Error(err),
		)
	}

	m.release(match)
	m.scores.Drop(matchId)

	logging.Info("match settled",
		zap.String("match_id", matchId),
		zap.String("reason", reason),
		zap.Int64("score_a", scoreA),
		zap.Int64("score_b", scoreB),
		zap.String("winner", string(winner)),
	)
	m.publish(Update{
		MatchId: matchId,
		State:   entities.MatchCompleted,
		ScoreA:  scoreA,
		ScoreB:  scoreB,
		Winner:  winner,
	})

	go m.invokeRewardHook(Result{
		MatchId:      matchId,
		Winner:       winner,
		ScoreA:       scoreA,
		ScoreB:       scoreB,
		Participants: match.Participants(),
	})
}

func (m *Manager) cancel(bm *battleMatch, reason string) {
	bm.mu.Lock()
	if bm.match.State != entities.MatchForming && bm.match.State != entities.MatchAwaitingReady {
		bm.mu.Unlock()
		return
	}
	bm.match.State = entities.MatchCancelled
	bm.ready = make(map[string]bool)
	if bm.readyTimer != nil {
		bm.readyTimer.Stop()
	}
	match := bm.match
	bm.mu.Unlock()

	m.release(match)
	logging.Info("match cancelled",
		zap.String("match_id", match.Id),
		zap.String("reason", reason),
	)
	m.publish(Update{MatchId: match.Id, State: entities.MatchCancelled})
}

// cancelDetached publishes a cancellation for a match that was never
// registered (invariant violation during handover).
func (m *Manager) cancelDetached(match entities.Match) {
	match.State = entities.MatchCancelled
	m.publish(Update{MatchId: match.Id, State: entities.MatchCancelled})
}

// release frees all participants and forgets the match.
func (m *Manager) release(match entities.Match) {
	m.mu.Lock()
	for _, id := range match.Participants() {
		if m.active[id] == match.Id {
			delete(m.active, id)
		}
	}
	delete(m.matches, match.Id)
	m.mu.Unlock()
}

func (m *Manager) invokeRewardHook(result Result) {
	if m.rewards == nil {
		return
	}
	for attempt := 1; attempt <= m.cfg.RewardRetries; attempt++ {
		err := m.rewards.MatchSettled(context.Background(), result)
		if err == nil {
			return
		}
		logging.Error("reward hook failed",
			zap.String("match_id", result.MatchId),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
}

func (m *Manager) lookup(matchId string) (*battleMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bm, ok := m.matches[matchId]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return bm, nil
}

func (m *Manager) publish(update Update) {
	if m.publisher != nil {
		m.publisher.PublishMatchUpdate(update)
	}
}
