package matchmaking

import (
	"errors"
	"sync"
	"time"

	"github.com/clash-vn/clasharena/internal/domains/entities"
	"github.com/clash-vn/clasharena/pkg/logging"
	"github.com/clash-vn/clasharena/pkg/utils"
	"go.uber.org/zap"
)

var (
	ErrAlreadyQueued  = errors.New("requester already queued or in a match")
	ErrTicketNotFound = errors.New("ticket not found")
	ErrInvalidTicket  = errors.New("invalid ticket")
)

const (
	MinTeamSize = 1
	MaxTeamSize = 5
)

// ActiveMatchChecker reports whether a user is currently bound to an
// active match. Wired to the battle manager.
type ActiveMatchChecker interface {
	InActiveMatch(userId string) bool
}

// MatchHandler receives a freshly formed match. Invoked synchronously
// during formation, before the consumed requesters are released from
// the queue's registry, so a requester can never slip back in between
// formation and battle registration.
type MatchHandler func(match entities.Match)

type Config struct {
	MaxWait       time.Duration
	SweepInterval time.Duration

	// TerminalTTL is how long a matched, withdrawn or timed-out ticket
	// stays pollable before the sweeper drops it from the index.
	TerminalTTL time.Duration
}

type bucketKey struct {
	teamSize int
	region   string
}

type ticketState struct {
	ticket  entities.Ticket
	status  entities.TicketStatus
	matchId string
	bucket  *bucket
	doneAt  time.Time // set when status leaves queued
}

// bucket holds the FIFO list of queued tickets for one
// (team size, region) pair. The list is guarded by the bucket's own
// mutex; buckets never contend with each other.
type bucket struct {
	mu      sync.Mutex
	key     bucketKey
	tickets []*ticketState
}

// Queue is the matchmaking queue. Lock order is always bucket.mu
// before q.mu: the bucket mutex serializes matching per bucket, q.mu
// guards the requester/ticket indices and ticket statuses.
type Queue struct {
	cfg     Config
	checker ActiveMatchChecker
	onMatch MatchHandler

	mu         sync.Mutex
	buckets    map[bucketKey]*bucket
	requesters map[string]string // userId -> active ticketId
	tickets    map[string]*ticketState

	done chan struct{}
	once sync.Once
}

func NewQueue(cfg Config, checker ActiveMatchChecker, onMatch MatchHandler) *Queue {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 2 * time.Minute
	}
	if cfg.TerminalTTL <= 0 {
		cfg.TerminalTTL = time.Minute
	}
	return &Queue{
		cfg:        cfg,
		checker:    checker,
		onMatch:    onMatch,
		buckets:    make(map[bucketKey]*bucket),
		requesters: make(map[string]string),
		tickets:    make(map[string]*ticketState),
		done:       make(chan struct{}),
	}
}

// Start launches the background sweeper that expires tickets older
// than the configured max wait.
func (q *Queue) Start() {
	go func() {
		ticker := time.NewTicker(q.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-q.done:
				return
			case <-ticker.C:
				q.sweep()
			}
		}
	}()
}

func (q *Queue) Stop() {
	q.once.Do(func() { close(q.done) })
}

// Enqueue registers a solo or party ticket and immediately attempts a
// matching pass on its bucket. Returns the ticket id for polling.
func (q *Queue) Enqueue(requesterIds []string, teamSize int, region string) (string, error) {
	if teamSize < MinTeamSize || teamSize > MaxTeamSize {
		return "", ErrInvalidTicket
	}
	if len(requesterIds) == 0 || len(requesterIds) > teamSize {
		return "", ErrInvalidTicket
	}
	seen := make(map[string]bool, len(requesterIds))
	for _, id := range requesterIds {
		if id == "" || seen[id] {
			return "", ErrInvalidTicket
		}
		seen[id] = true
	}

	ticket := entities.Ticket{
		Id:           utils.GenerateUUID(),
		RequesterIds: requesterIds,
		TeamSize:     teamSize,
		Region:       region,
		EnqueuedAt:   time.Now(),
	}

	b := q.bucketFor(bucketKey{teamSize: teamSize, region: region})

	b.mu.Lock()
	defer b.mu.Unlock()

	ts := &ticketState{ticket: ticket, status: entities.TicketQueued, bucket: b}
	q.mu.Lock()
	for _, id := range requesterIds {
		if _, queued := q.requesters[id]; queued {
			q.mu.Unlock()
			return "", ErrAlreadyQueued
		}
		if q.checker != nil && q.checker.InActiveMatch(id) {
			q.mu.Unlock()
			return "", ErrAlreadyQueued
		}
	}
	for _, id := range requesterIds {
		q.requesters[id] = ticket.Id
	}
	q.tickets[ticket.Id] = ts
	q.mu.Unlock()

	b.tickets = append(b.tickets, ts)
	logging.Info("ticket enqueued",
		zap.String("ticket_id", ticket.Id),
		zap.Int("party_size", len(requesterIds)),
		zap.Int("team_size", teamSize),
		zap.String("region", region),
	)

	q.tryFormLocked(b)
	return ticket.Id, nil
}

// Dequeue withdraws a ticket. A ticket that already matched or timed
// out is reported as not found.
func (q *Queue) Dequeue(ticketId string) error {
	q.mu.Lock()
	ts, ok := q.tickets[ticketId]
	q.mu.Unlock()
	if !ok {
		return ErrTicketNotFound
	}

	b := ts.bucket
	b.mu.Lock()
	defer b.mu.Unlock()
	q.mu.Lock()
	defer q.mu.Unlock()

	if ts.status != entities.TicketQueued {
		return ErrTicketNotFound
	}
	b.remove(ts)
	ts.status = entities.TicketWithdrawn
	ts.doneAt = time.Now()
	for _, id := range ts.ticket.RequesterIds {
		delete(q.requesters, id)
	}
	logging.Info("ticket withdrawn", zap.String("ticket_id", ticketId))
	return nil
}

// Status reports the poll-observable ticket state. Matchmaking timeout
// surfaces here, not as a push failure.
func (q *Queue) Status(ticketId string) (entities.TicketStatus, string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ts, ok := q.tickets[ticketId]
	if !ok {
		return "", "", ErrTicketNotFound
	}
	return ts.status, ts.matchId, nil
}

func (q *Queue) bucketFor(key bucketKey) *bucket {
	q.mu.Lock()
	defer q.mu.Unlock()
	b, ok := q.buckets[key]
	if !ok {
		b = &bucket{key: key}
		q.buckets[key] = b
	}
	return b
}

// tryFormLocked runs one matching pass. Caller holds b.mu.
//
// Oldest tickets are taken first; a party larger than the remaining
// room on the side being filled is skipped in place, keeping its
// priority for the next pass. Team A is filled before Team B, so a
// party skipped for A is still a candidate for B in the same pass.
// Tickets already past the max wait never enter a match; they sit out
// until the sweeper reports them timed out.
func (q *Queue) tryFormLocked(b *bucket) {
	teamSize := b.key.teamSize
	cutoff := time.Now().Add(-q.cfg.MaxWait)
	queued := 0
	for _, ts := range b.tickets {
		if ts.ticket.EnqueuedAt.Before(cutoff) {
			continue
		}
		queued += len(ts.ticket.RequesterIds)
	}
	if queued < 2*teamSize {
		return
	}

	used := make(map[*ticketState]bool)
	teamA := fillSide(b.tickets, teamSize, used, cutoff)
	if teamA == nil {
		return
	}
	teamB := fillSide(b.tickets, teamSize, used, cutoff)
	if teamB == nil {
		return
	}

	match := entities.Match{
		Id:        utils.GenerateUUID(),
		TeamSize:  teamSize,
		Region:    b.key.region,
		TeamA:     teamA,
		TeamB:     teamB,
		State:     entities.MatchForming,
		CreatedAt: time.Now(),
	}

	remaining := b.tickets[:0]
	for _, ts := range b.tickets {
		if !used[ts] {
			remaining = append(remaining, ts)
		}
	}
	b.tickets = remaining

	// Hand the match over before releasing the requesters, then mark
	// the consumed tickets matched.
	if q.onMatch != nil {
		q.onMatch(match)
	}

	q.mu.Lock()
	now := time.Now()
	for ts := range used {
		ts.status = entities.TicketMatched
		ts.matchId = match.Id
		ts.doneAt = now
		for _, id := range ts.ticket.RequesterIds {
			delete(q.requesters, id)
		}
	}
	q.mu.Unlock()

	logging.Info("match formed",
		zap.String("match_id", match.Id),
		zap.Int("team_size", teamSize),
		zap.String("region", b.key.region),
		zap.Strings("team_a", teamA),
		zap.Strings("team_b", teamB),
	)
}

// fillSide assigns whole tickets in FIFO order until the side holds
// exactly teamSize requesters, passing over tickets enqueued before
// the cutoff. Returns nil if the side cannot be filled from the unused
// tickets.
func fillSide(tickets []*ticketState, teamSize int, used map[*ticketState]bool, cutoff time.Time) []string {
	room := teamSize
	var side []string
	var taken []*ticketState
	for _, ts := range tickets {
		if used[ts] || ts.ticket.EnqueuedAt.Before(cutoff) {
			continue
		}
		n := len(ts.ticket.RequesterIds)
		if n > room {
			continue
		}
		side = append(side, ts.ticket.RequesterIds...)
		taken = append(taken, ts)
		used[ts] = true
		room -= n
		if room == 0 {
			return side
		}
	}
	for _, ts := range taken {
		delete(used, ts)
	}
	return nil
}

// sweep expires tickets that waited longer than the configured max.
func (q *Queue) sweep() {
	q.mu.Lock()
	buckets := make([]*bucket, 0, len(q.buckets))
	for _, b := range q.buckets {
		buckets = append(buckets, b)
	}
	q.mu.Unlock()

	cutoff := time.Now().Add(-q.cfg.MaxWait)
	for _, b := range buckets {
		b.mu.Lock()
		var expired []*ticketState
		for _, ts := range b.tickets {
			if ts.ticket.EnqueuedAt.Before(cutoff) {
				expired = append(expired, ts)
			}
		}
		if len(expired) > 0 {
			q.mu.Lock()
			now := time.Now()
			for _, ts := range expired {
				b.remove(ts)
				ts.status = entities.TicketTimedOut
				ts.doneAt = now
				for _, id := range ts.ticket.RequesterIds {
					delete(q.requesters, id)
				}
				logging.Info("ticket timed out", zap.String("ticket_id", ts.ticket.Id))
			}
			q.mu.Unlock()
		}
		b.mu.Unlock()
	}

	// Terminal tickets stay pollable for the grace period, then drop
	// out of the index.
	doneCutoff := time.Now().Add(-q.cfg.TerminalTTL)
	q.mu.Lock()
	for id, ts := range q.tickets {
		if ts.status != entities.TicketQueued && ts.doneAt.Before(doneCutoff) {
			delete(q.tickets, id)
		}
	}
	q.mu.Unlock()
}

func (b *bucket) remove(ts *ticketState) {
	for i, t := range b.tickets {
		if t == ts {
			b.tickets = append(b.tickets[:i], b.tickets[i+1:]...)
			return
		}
	}
}
