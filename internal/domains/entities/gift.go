package entities

import "time"

// GiftEvent is the immutable record of one settled gift. MatchId is set
// only when the gift was attributable to a battle in progress at
// settlement time; the event log is the source of truth for scores.
type GiftEvent struct {
	Id         string    `dynamodbav:"GiftId" json:"giftId"`
	SenderId   string    `dynamodbav:"SenderId" json:"senderId"`
	ReceiverId string    `dynamodbav:"ReceiverId" json:"receiverId"`
	Amount     int64     `dynamodbav:"Amount" json:"amount"`
	MatchId    string    `dynamodbav:"MatchId,omitempty" json:"matchId,omitempty"`
	CreatedAt  time.Time `dynamodbav:"CreatedAt" json:"createdAt"`
}

// ScoreSnapshot is the per-team sum of attributed gift events for one
// match at a point in time. Recomputable from the event log.
type ScoreSnapshot struct {
	MatchId string    `dynamodbav:"MatchId" json:"matchId"`
	TeamA   int64     `dynamodbav:"TeamA" json:"teamA"`
	TeamB   int64     `dynamodbav:"TeamB" json:"teamB"`
	TakenAt time.Time `dynamodbav:"TakenAt" json:"takenAt"`
}
