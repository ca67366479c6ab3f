package repository

import (
	"context"
	"fmt"

	"github.com/stuorg/portal/internal/domain"
	"github.com/stuorg/portal/internal/repository/dao"
)

var ErrTokenInvalidOrUsed = dao.ErrTokenInvalidOrUsed

type KioskTokenDAO interface {
	Insert(ctx context.Context, token dao.KioskToken) (dao.KioskToken, error)
	FindByID(ctx context.Context, tokenID string) (dao.KioskToken, error)
	Consume(ctx context.Context, tokenID string) error
}

type KioskTokenRepository struct {
	dao KioskTokenDAO
}

func NewKioskTokenRepository(dao KioskTokenDAO) *KioskTokenRepository {
	return &KioskTokenRepository{
		dao: dao,
	}
}

func (r *KioskTokenRepository) tokenDaoToDomain(t dao.KioskToken) domain.KioskToken {
	return domain.KioskToken{
		TokenID:  t.TokenID,
		EventID:  t.EventID,
		VoterID:  t.VoterID,
		IssuedAt: t.IssuedAt,
	}
}

func (r *KioskTokenRepository) Create(ctx context.Context, token domain.KioskToken) (domain.KioskToken, error) {
	created, err := r.dao.Insert(ctx, dao.KioskToken{
		TokenID:  token.TokenID,
		EventID:  token.EventID,
		VoterID:  token.VoterID,
		IssuedAt: token.IssuedAt,
	})
	if err != nil {
		return domain.KioskToken{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.tokenDaoToDomain(created), nil
}

func (r *KioskTokenRepository) FindByID(ctx context.Context, tokenID string) (domain.KioskToken, error) {
	found, err := r.dao.FindByID(ctx, tokenID)
	if err != nil {
		return domain.KioskToken{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.tokenDaoToDomain(found), nil
}

func (r *KioskTokenRepository) Consume(ctx context.Context, tokenID string) error {
	if err := r.dao.Consume(ctx, tokenID); err != nil {
		return fmt.Errorf("r.dao.Consume -> %w", err)
	}
	return nil
}
