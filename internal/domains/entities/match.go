package entities

import "time"

type MatchState string

const (
	MatchForming       MatchState = "forming"
	MatchAwaitingReady MatchState = "awaiting_ready"
	MatchInProgress    MatchState = "in_progress"
	MatchSettling      MatchState = "settling"
	MatchCompleted     MatchState = "completed"
	MatchCancelled     MatchState = "cancelled"
)

type Winner string

const (
	WinnerTeamA Winner = "team_a"
	WinnerTeamB Winner = "team_b"
	WinnerTie   Winner = "tie"
)

// Match is one timed battle between two equally sized teams.
// Remaining battle time is always derived from StartedAt and Duration,
// never stored as a countdown.
type Match struct {
	Id        string        `dynamodbav:"MatchId" json:"matchId"`
	TeamSize  int           `dynamodbav:"TeamSize" json:"teamSize"`
	Region    string        `dynamodbav:"Region" json:"region"`
	TeamA     []string      `dynamodbav:"TeamA" json:"teamA"`
	TeamB     []string      `dynamodbav:"TeamB" json:"teamB"`
	State     MatchState    `dynamodbav:"State" json:"state"`
	Duration  time.Duration `dynamodbav:"Duration" json:"duration"`
	StartedAt time.Time     `dynamodbav:"StartedAt" json:"startedAt"`
	ScoreA    int64         `dynamodbav:"ScoreA" json:"scoreA"`
	ScoreB    int64         `dynamodbav:"ScoreB" json:"scoreB"`
	Winner    Winner        `dynamodbav:"Winner,omitempty" json:"winner,omitempty"`
	CreatedAt time.Time     `dynamodbav:"CreatedAt" json:"createdAt"`
}

func (m Match) Participants() []string {
	ids := make([]string, 0, len(m.TeamA)+len(m.TeamB))
	ids = append(ids, m.TeamA...)
	ids = append(ids, m.TeamB...)
	return ids
}

func (m Match) HasParticipant(userId string) bool {
	for _, id := range m.Participants() {
		if id == userId {
			return true
		}
	}
	return false
}

func (m Match) ExpiresAt() time.Time {
	return m.StartedAt.Add(m.Duration)
}
