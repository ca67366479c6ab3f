package response

import (
	"github.com/stuorg/portal/internal/domain"
)

type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type EligibilityResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type KioskTokenResponse struct {
	TokenID string `json:"token_id"`
}

type RedeemResponse struct {
	EventID uint   `json:"event_id"`
	VoterID string `json:"voter_id"`
}

type ApproveResponse struct {
	EventID uint `json:"event_id"`
}
