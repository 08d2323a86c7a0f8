package entities

import "time"

type TicketStatus string

const (
	TicketQueued    TicketStatus = "queued"
	TicketMatched   TicketStatus = "matched"
	TicketTimedOut  TicketStatus = "timed_out"
	TicketWithdrawn TicketStatus = "withdrawn"
)

// Ticket is one matchmaking request, either a solo player or a
// pre-grouped party that must land on the same team.
type Ticket struct {
	Id           string    `dynamodbav:"TicketId" json:"ticketId"`
	RequesterIds []string  `dynamodbav:"RequesterIds" json:"requesterIds"`
	TeamSize     int       `dynamodbav:"TeamSize" json:"teamSize"`
	Region       string    `dynamodbav:"Region" json:"region"`
	EnqueuedAt   time.Time `dynamodbav:"EnqueuedAt" json:"enqueuedAt"`
}
