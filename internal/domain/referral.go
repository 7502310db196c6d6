package domain

import "time"

// Referral links a participant to the participant who referred them.
type Referral struct {
	Participant Address   `json:"participant"`
	Referrer    Address   `json:"referrer"`
	CreatedAt   time.Time `json:"created_at"`
}

// Chain is a resolved two-level referral chain. Zero addresses mean the level is absent.
type Chain struct {
	Level1 Address `json:"level1,omitempty"`
	Level2 Address `json:"level2,omitempty"`
}
