package request

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/stuorg/portal/internal/domain"
)

type CastVoteRequest struct {
	CandidateID uint `json:"candidate_id,omitempty"`
	Abstain     bool `json:"abstain,omitempty"`
}

func (req *CastVoteRequest) Validate() error {
	if req.Abstain && req.CandidateID != 0 {
		return errors.New("candidate_id and abstain are mutually exclusive")
	}
	if !req.Abstain && req.CandidateID == 0 {
		return errors.New("either candidate_id or abstain is required")
	}
	return nil
}

// Selection converts the wire payload into the tagged domain selection.
func (req *CastVoteRequest) Selection() domain.Selection {
	if req.Abstain {
		return domain.SelectAbstain()
	}
	return domain.SelectCandidate(req.CandidateID)
}

type KioskVoteRequest struct {
	TokenID string `json:"token_id" binding:"required"`
	CastVoteRequest
}

func (req *KioskVoteRequest) Validate() error {
	if err := validation.ValidateStruct(
		req,
		validation.Field(&req.TokenID, validation.Required, validation.Length(1, 64)),
	); err != nil {
		return err
	}
	return req.CastVoteRequest.Validate()
}

type AddCandidateRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Bio         string `json:"bio"`
	PhotoURL    string `json:"photo_url"`
	Position    int    `json:"position"`
}

func (req *AddCandidateRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.DisplayName, validation.Required, validation.Length(2, 100)),
		validation.Field(&req.Bio, validation.Length(0, 2000)),
		validation.Field(&req.Position, validation.Min(0)),
	)
}

type AmendRollRequest struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

func (req *AmendRollRequest) Validate() error {
	if len(req.Add) == 0 && len(req.Remove) == 0 {
		return errors.New("nothing to amend")
	}
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Add, validation.Each(validation.Required, validation.Length(1, 100))),
		validation.Field(&req.Remove, validation.Each(validation.Required, validation.Length(1, 100))),
	)
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (req *SetStatusRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Status, validation.Required, validation.In("setup", "upcoming", "active", "closed")),
	)
}

type UpdateSettingsRequest struct {
	StartAt        *time.Time `json:"start_at"`
	EndAt          *time.Time `json:"end_at"`
	AllowAbstain   *bool      `json:"allow_abstain"`
	PublishResults *bool      `json:"publish_results"`
	OfflineMode    *bool      `json:"offline_mode"`
}

func (req *UpdateSettingsRequest) Validate() error {
	if req.StartAt != nil && req.EndAt != nil && req.EndAt.Before(*req.StartAt) {
		return errors.New("end_at must not precede start_at")
	}
	return nil
}

type IssueTokenRequest struct {
	EventID uint   `json:"event_id" binding:"required"`
	VoterID string `json:"voter_id" binding:"required"`
}

func (req *IssueTokenRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.EventID, validation.Required, validation.Min(uint(1))),
		validation.Field(&req.VoterID, validation.Required, validation.Length(1, 100)),
	)
}

type SubmitRequestRequest struct {
	ProposedName string `json:"proposed_name" binding:"required"`
	DocumentURL  string `json:"document_url"`
}

func (req *SubmitRequestRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.ProposedName, validation.Required, validation.Length(2, 100)),
		validation.Field(&req.DocumentURL, validation.Length(0, 500)),
	)
}

type ApproveRequestRequest struct {
	OperatorID uint `json:"operator_id" binding:"required"`
}

func (req *ApproveRequestRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.OperatorID, validation.Required, validation.Min(uint(1))),
	)
}
