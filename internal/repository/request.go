package repository

import (
	"context"
	"fmt"

	"github.com/stuorg/portal/internal/domain"
	"github.com/stuorg/portal/internal/repository/dao"
)

var ErrRequestAlreadyResolved = dao.ErrRequestAlreadyResolved

type ElectionRequestDAO interface {
	Insert(ctx context.Context, req dao.ElectionRequest) (dao.ElectionRequest, error)
	List(ctx context.Context) ([]dao.ElectionRequest, error)
	Approve(ctx context.Context, requestID, operatorID uint) (dao.ElectionEvent, error)
	Reject(ctx context.Context, requestID uint) error
}

type ElectionRequestRepository struct {
	dao       ElectionRequestDAO
	eventRepo *ElectionRepository
}

func NewElectionRequestRepository(dao ElectionRequestDAO, eventRepo *ElectionRepository) *ElectionRequestRepository {
	return &ElectionRequestRepository{
		dao:       dao,
		eventRepo: eventRepo,
	}
}

func (r *ElectionRequestRepository) requestDaoToDomain(req dao.ElectionRequest) domain.ElectionRequest {
	return domain.ElectionRequest{
		ID:           req.ID,
		Organizer:    req.Organizer,
		ProposedName: req.ProposedName,
		DocumentURL:  req.DocumentURL,
		CreatedAt:    req.CreatedAt,
	}
}

func (r *ElectionRequestRepository) Create(ctx context.Context, req domain.ElectionRequest) (domain.ElectionRequest, error) {
	created, err := r.dao.Insert(ctx, dao.ElectionRequest{
		Organizer:    req.Organizer,
		ProposedName: req.ProposedName,
		DocumentURL:  req.DocumentURL,
	})
	if err != nil {
		return domain.ElectionRequest{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.requestDaoToDomain(created), nil
}

func (r *ElectionRequestRepository) List(ctx context.Context) ([]domain.ElectionRequest, error) {
	found, err := r.dao.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.dao.List -> %w", err)
	}

	reqs := make([]domain.ElectionRequest, len(found))
	for i, req := range found {
		reqs[i] = r.requestDaoToDomain(req)
	}

	return reqs, nil
}

func (r *ElectionRequestRepository) Approve(ctx context.Context, requestID, operatorID uint) (domain.ElectionEvent, error) {
	event, err := r.dao.Approve(ctx, requestID, operatorID)
	if err != nil {
		return domain.ElectionEvent{}, fmt.Errorf("r.dao.Approve -> %w", err)
	}

	return r.eventRepo.eventDaoToDomain(event), nil
}

func (r *ElectionRequestRepository) Reject(ctx context.Context, requestID uint) error {
	if err := r.dao.Reject(ctx, requestID); err != nil {
		return fmt.Errorf("r.dao.Reject -> %w", err)
	}
	return nil
}
