package entities

import "time"

// Wallet holds a user balance in minor currency units. Balances are
// mutated only through the wallet ledger, never read-then-written by
// callers.
type Wallet struct {
	UserId      string    `dynamodbav:"UserId" json:"userId"`
	Balance     int64     `dynamodbav:"Balance" json:"balance"`
	TotalEarned int64     `dynamodbav:"TotalEarned" json:"totalEarned"`
	TotalSpent  int64     `dynamodbav:"TotalSpent" json:"totalSpent"`
	UpdatedAt   time.Time `dynamodbav:"UpdatedAt" json:"updatedAt"`
}
