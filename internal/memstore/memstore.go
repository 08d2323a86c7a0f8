// Package memstore is an in-memory store used for local runs and
// package tests. The DynamoDB client in internal/aws/storage is the
// durable production counterpart.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/clash-vn/clasharena/internal/domains/entities"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type Store struct {
	mu          sync.Mutex
	wallets     map[string]entities.Wallet
	events      []entities.GiftEvent
	active      map[string]entities.Match
	archived    map[string]entities.Match
	feeRetained int64
}

func New() *Store {
	return &Store{
		wallets:  make(map[string]entities.Wallet),
		active:   make(map[string]entities.Match),
		archived: make(map[string]entities.Match),
	}
}

func (s *Store) GetWallet(ctx context.Context, userId string) (entities.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userId]
	if !ok {
		return entities.Wallet{UserId: userId}, nil
	}
	return w, nil
}

func (s *Store) CreditWallet(ctx context.Context, userId string, amount int64) (entities.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wallets[userId]
	w.UserId = userId
	w.Balance += amount
	w.UpdatedAt = time.Now()
	s.wallets[userId] = w
	return w, nil
}

func (s *Store) ApplyTransfer(
	ctx context.Context,
	senderId,
	receiverId string,
	debit,
	credit,
	fee int64,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sender := s.wallets[senderId]
	if sender.Balance < debit {
		return ErrInsufficientBalance
	}
	sender.UserId = senderId
	sender.Balance -= debit
	sender.TotalSpent += debit
	sender.UpdatedAt = time.Now()

	receiver := s.wallets[receiverId]
	receiver.UserId = receiverId
	receiver.Balance += credit
	receiver.TotalEarned += credit
	receiver.UpdatedAt = time.Now()

	s.wallets[senderId] = sender
	s.wallets[receiverId] = receiver
	s.feeRetained += fee
	return nil
}

func (s *Store) FeeRetained() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeRetained
}

// AppendGiftEvent stores the event keyed by its id; writing the same
// id again replaces the record, like a PutItem overwrite.
func (s *Store) AppendGiftEvent(ctx context.Context, event entities.GiftEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.events {
		if e.Id == event.Id {
			s.events[i] = event
			return nil
		}
	}
	s.events = append(s.events, event)
	return nil
}

func (s *Store) ListGiftEventsByMatch(ctx context.Context, matchId string) ([]entities.GiftEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []entities.GiftEvent
	for _, e := range s.events {
		if e.MatchId == matchId {
			events = append(events, e)
		}
	}
	return events, nil
}

func (s *Store) PutActiveMatch(ctx context.Context, match entities.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[match.Id] = match
	return nil
}

func (s *Store) DeleteActiveMatch(ctx context.Context, matchId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, matchId)
	return nil
}

func (s *Store) ListActiveMatches(ctx context.Context) ([]entities.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := make([]entities.Match, 0, len(s.active))
	for _, m := range s.active {
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *Store) ArchiveMatch(ctx context.Context, match entities.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived[match.Id] = match
	return nil
}

func (s *Store) GetArchivedMatch(ctx context.Context, matchId string) (entities.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.archived[matchId]
	if !ok {
		return entities.Match{}, ErrMatchNotFound
	}
	return m, nil
}
