package score

import (
	"context"
	"fmt"
	"sync"

	"github.com/clash-vn/clasharena/internal/domains/entities"
	"github.com/clash-vn/clasharena/pkg/logging"
	"go.uber.org/zap"
)

// EventSource reads the durable gift event log. Running totals held
// here are a cache; the log is the system of record.
type EventSource interface {
	ListGiftEventsByMatch(ctx context.Context, matchId string) ([]entities.GiftEvent, error)
}

type matchScore struct {
	mu     sync.Mutex
	teamA  map[string]bool
	teamB  map[string]bool
	totalA int64
	totalB int64
	frozen bool
}

// Aggregator keeps live per-team totals for matches in progress.
// Increments are serialized per match; different matches never block
// each other.
type Aggregator struct {
	events EventSource

	mu      sync.RWMutex
	matches map[string]*matchScore
}

func NewAggregator(events EventSource) *Aggregator {
	return &Aggregator{
		events:  events,
		matches: make(map[string]*matchScore),
	}
}

// TrackMatch starts accepting gift increments for a match. Called when
// the match enters progress.
func (a *Aggregator) TrackMatch(matchId string, teamA, teamB []string) {
	ms := &matchScore{
		teamA: make(map[string]bool, len(teamA)),
		teamB: make(map[string]bool, len(teamB)),
	}
	for _, id := range teamA {
		ms.teamA[id] = true
	}
	for _, id := range teamB {
		ms.teamB[id] = true
	}
	a.mu.Lock()
	a.matches[matchId] = ms
	a.mu.Unlock()
}

// Accepts reports whether a gift to receiverId would currently count
// toward the given match.
func (a *Aggregator) Accepts(matchId, receiverId string) bool {
	ms := a.match(matchId)
	if ms == nil {
		return false
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return !ms.frozen && (ms.teamA[receiverId] || ms.teamB[receiverId])
}

// RecordGift adds amount to the receiver's team total. Returns false
// if the match is not tracked, already frozen, or the receiver is not
// a participant.
func (a *Aggregator) RecordGift(matchId, receiverId string, amount int64) bool {
	ms := a.match(matchId)
	if ms == nil {
		return false
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.frozen {
		return false
	}
	switch {
	case ms.teamA[receiverId]:
		ms.totalA += amount
	case ms.teamB[receiverId]:
		ms.totalB += amount
	default:
		return false
	}
	return true
}

func (a *Aggregator) GetScores(matchId string) (int64, int64, bool) {
	ms := a.match(matchId)
	if ms == nil {
		return 0, 0, false
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.totalA, ms.totalB, true
}

// Freeze stops further increments for the match and returns the final
// totals. Gifts settled after this point remain valid transfers but no
// longer count.
func (a *Aggregator) Freeze(matchId string) (int64, int64) {
	ms := a.match(matchId)
	if ms == nil {
		return 0, 0
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.frozen = true
	return ms.totalA, ms.totalB
}

func (a *Aggregator) Drop(matchId string) {
	a.mu.Lock()
	delete(a.matches, matchId)
	a.mu.Unlock()
}

// Rebuild reconstructs the running totals for a match by replaying the
// gift event log. Used when recovering an in-progress match after a
// restart.
func (a *Aggregator) Rebuild(ctx context.Context, matchId string, teamA, teamB []string) error {
	a.TrackMatch(matchId, teamA, teamB)
	events, err := a.events.ListGiftEventsByMatch(ctx, matchId)
	if err != nil {
		return fmt.Errorf("failed to list gift events: %w", err)
	}
	for _, e := range events {
		a.RecordGift(matchId, e.ReceiverId, e.Amount)
	}
	logging.Info("score rebuilt",
		zap.String("match_id", matchId),
		zap.Int("events", len(events)),
	)
	return nil
}

func (a *Aggregator) match(matchId string) *matchScore {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.matches[matchId]
}
