package model

import "time"

type Reward struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Cost        int        `json:"cost"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Redemption spends Star Dollars on a reward. Description and cost are
// copied from the reward when redeemed and never recalculated.
type Redemption struct {
	ID                string    `json:"id"`
	RewardID          string    `json:"reward_id"`
	RewardDescription string    `json:"reward_description"`
	CostAtRedemption  int       `json:"cost"`
	RequestedBy       string    `json:"requested_by"`
	Note              string    `json:"note"`
	CreatedAt         time.Time `json:"created_at"`
}

// Balance is the household ledger: earnings across all children minus
// redemptions, floored at zero.
type Balance struct {
	EarnedByChild map[string]int `json:"earned_by_child"`
	TotalEarned   int            `json:"total_earned"`
	TotalSpent    int            `json:"total_spent"`
	Combined      int            `json:"combined"`
}
