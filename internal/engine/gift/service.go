package gift

import (
	"context"
	"fmt"

	"github.com/clash-vn/clasharena/internal/domains/entities"
	"github.com/clash-vn/clasharena/internal/engine/wallet"
	"github.com/clash-vn/clasharena/pkg/logging"
	"github.com/clash-vn/clasharena/pkg/utils"
	"go.uber.org/zap"
)

type Ledger interface {
	Transfer(ctx context.Context, senderId, receiverId string, amount int64, feeRate float64) (wallet.Receipt, error)
}

type EventStore interface {
	AppendGiftEvent(ctx context.Context, event entities.GiftEvent) error
}

// Scorer decides whether a gift counts toward a live battle and, if
// so, applies it to the running score.
type Scorer interface {
	Accepts(matchId, receiverId string) bool
	RecordGift(matchId, receiverId string, amount int64) bool
}

// Service settles one gift: ledger transfer first, then the durable
// event record, then score publication. Publication never happens
// without a committed transfer.
type Service struct {
	ledger  Ledger
	events  EventStore
	scorer  Scorer
	feeRate float64
}

func NewService(ledger Ledger, events EventStore, scorer Scorer, feeRate float64) *Service {
	return &Service{
		ledger:  ledger,
		events:  events,
		scorer:  scorer,
		feeRate: feeRate,
	}
}

// SendGift executes the transfer and records the gift. matchId is the
// caller-reported battle context; when it does not name a battle in
// progress with receiverId as a participant, the gift settles as an
// ordinary non-scoring gift rather than being rejected.
func (s *Service) SendGift(
	ctx context.Context,
	senderId,
	receiverId string,
	amount int64,
	matchId string,
) (entities.GiftEvent, error) {
	receipt, err := s.ledger.Transfer(ctx, senderId, receiverId, amount, s.feeRate)
	if err != nil {
		return entities.GiftEvent{}, err
	}

	scoring := matchId != "" && s.scorer.Accepts(matchId, receiverId)
	event := entities.GiftEvent{
		Id:         utils.GenerateUUID(),
		SenderId:   senderId,
		ReceiverId: receiverId,
		Amount:     amount,
		CreatedAt:  receipt.CreatedAt,
	}
	if scoring {
		event.MatchId = matchId
	}

	if err := s.events.AppendGiftEvent(ctx, event); err != nil {
		// The transfer is already committed; the event log write is
		// retried here once before surfacing, since scores replay from it.
		if retryErr := s.events.AppendGiftEvent(ctx, event); retryErr != nil {
			logging.Error("failed to append gift event",
				zap.String("gift_id", event.Id),
				zap.Error(retryErr),
			)
			return entities.GiftEvent{}, fmt.Errorf("failed to append gift event: %w", retryErr)
		}
	}

	if scoring {
		if !s.scorer.RecordGift(matchId, receiverId, amount) {
			// The battle froze between validation and publication. The
			// transfer stands; rewrite the stored event without its match
			// tag so a replay of the log agrees with the frozen totals.
			event.MatchId = ""
			if err := s.events.AppendGiftEvent(ctx, event); err != nil {
				logging.Error("failed to untag gift event",
					zap.String("gift_id", event.Id),
					zap.String("match_id", matchId),
					zap.Error(err),
				)
			}
			logging.Info("gift settled after score freeze",
				zap.String("gift_id", event.Id),
				zap.String("match_id", matchId),
			)
		}
	}

	logging.Info("gift settled",
		zap.String("gift_id", event.Id),
		zap.String("sender_id", senderId),
		zap.String("receiver_id", receiverId),
		zap.Int64("amount", amount),
		zap.String("match_id", event.MatchId),
		zap.Time("created_at", event.CreatedAt),
	)
	return event, nil
}
