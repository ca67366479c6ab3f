package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stuorg/portal/internal/domain"
	"github.com/stuorg/portal/internal/repository"
)

var ErrTokenInvalidOrUsed = repository.ErrTokenInvalidOrUsed

type KioskTokenRepository interface {
	Create(ctx context.Context, token domain.KioskToken) (domain.KioskToken, error)
	FindByID(ctx context.Context, tokenID string) (domain.KioskToken, error)
	Consume(ctx context.Context, tokenID string) error
}

// KioskService bridges in-person voting stations. Operators issue
// single-use tokens after checking a voter's identity at the desk; the
// kiosk redeems the token to bootstrap a voting session without the
// voter holding durable credentials.
type KioskService struct {
	tokens    KioskTokenRepository
	elections *ElectionService
	audit     AuditSink
}

func NewKioskService(tokens KioskTokenRepository, elections *ElectionService, audit AuditSink) *KioskService {
	return &KioskService{
		tokens:    tokens,
		elections: elections,
		audit:     audit,
	}
}

// IssueToken mints a token for one voter of one event. Only the event's
// assigned operator may issue, and only for identities on the roll.
func (s *KioskService) IssueToken(ctx context.Context, operatorID uint, eventID uint, voterID string) (domain.KioskToken, error) {
	if err := s.elections.requireOperator(ctx, eventID, operatorID); err != nil {
		return domain.KioskToken{}, err
	}

	event, err := s.elections.GetEvent(ctx, eventID)
	if err != nil {
		return domain.KioskToken{}, err
	}
	if !event.InRoll(voterID) {
		return domain.KioskToken{}, ErrNotListed
	}

	token, err := s.tokens.Create(ctx, domain.KioskToken{
		TokenID:  uuid.NewString(),
		EventID:  eventID,
		VoterID:  voterID,
		IssuedAt: time.Now(),
	})
	if err != nil {
		return domain.KioskToken{}, fmt.Errorf("s.tokens.Create -> %w", err)
	}

	s.audit.Record(operatorActor(operatorID), fmt.Sprintf("issued kiosk token for voter %s in event %d", voterID, eventID))

	return token, nil
}

// RedeemToken resolves a token to its voter bootstrap. The token is not
// consumed here; it stays valid until the vote it authorizes commits.
func (s *KioskService) RedeemToken(ctx context.Context, tokenID string) (domain.KioskToken, error) {
	token, err := s.tokens.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ErrTokenInvalidOrUsed) {
			return domain.KioskToken{}, ErrTokenInvalidOrUsed
		}
		return domain.KioskToken{}, fmt.Errorf("s.tokens.FindByID -> %w", err)
	}

	return token, nil
}

// CastVote casts the ballot a token authorizes. The token is deleted
// only after the vote commits, never before, and its deletion failing
// does not undo the vote; the ballot is the source of truth.
func (s *KioskService) CastVote(ctx context.Context, tokenID string, selection domain.Selection) (VoteReceipt, error) {
	token, err := s.RedeemToken(ctx, tokenID)
	if err != nil {
		return VoteReceipt{}, err
	}

	receipt, err := s.elections.CastVote(ctx, token.EventID, token.VoterID, domain.ChannelKiosk, selection)
	if err != nil {
		return VoteReceipt{}, err
	}

	if err := s.tokens.Consume(ctx, tokenID); err != nil {
		zap.L().Warn("kiosk token not invalidated after committed vote",
			zap.String("token_id", tokenID),
			zap.Error(err))
	}

	return receipt, nil
}
