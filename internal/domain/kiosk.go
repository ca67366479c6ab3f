package domain

import "time"

// KioskToken is a single-use credential issued by an operator after an
// in-person identity check. It is consumed together with the vote it
// authorizes.
type KioskToken struct {
	TokenID  string    `json:"token_id"`
	EventID  uint      `json:"event_id"`
	VoterID  string    `json:"voter_id"`
	IssuedAt time.Time `json:"issued_at"`
}
