package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stuorg/portal/internal/domain"
	"github.com/stuorg/portal/internal/repository"
)

var ErrRequestAlreadyResolved = repository.ErrRequestAlreadyResolved

type ElectionRequestRepository interface {
	Create(ctx context.Context, req domain.ElectionRequest) (domain.ElectionRequest, error)
	List(ctx context.Context) ([]domain.ElectionRequest, error)
	Approve(ctx context.Context, requestID, operatorID uint) (domain.ElectionEvent, error)
	Reject(ctx context.Context, requestID uint) error
}

// ProvisionService turns approved election requests into live events.
// Approval and rejection are terminal; the request record is consumed
// either way.
type ProvisionService struct {
	requests ElectionRequestRepository
	audit    AuditSink
}

func NewProvisionService(requests ElectionRequestRepository, audit AuditSink) *ProvisionService {
	return &ProvisionService{
		requests: requests,
		audit:    audit,
	}
}

func (s *ProvisionService) Submit(ctx context.Context, req domain.ElectionRequest) (domain.ElectionRequest, error) {
	created, err := s.requests.Create(ctx, req)
	if err != nil {
		return domain.ElectionRequest{}, fmt.Errorf("s.requests.Create -> %w", err)
	}

	s.audit.Record(req.Organizer, fmt.Sprintf("submitted election request %q", created.ProposedName))

	return created, nil
}

func (s *ProvisionService) List(ctx context.Context) ([]domain.ElectionRequest, error) {
	reqs, err := s.requests.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.requests.List -> %w", err)
	}

	return reqs, nil
}

// Approve creates exactly one event in setup and binds the operator to
// it; the request is deleted in the same transaction, so a second
// approval of the same request fails with ErrRequestAlreadyResolved.
func (s *ProvisionService) Approve(ctx context.Context, actor string, requestID, operatorID uint) (domain.ElectionEvent, error) {
	event, err := s.requests.Approve(ctx, requestID, operatorID)
	if err != nil {
		if errors.Is(err, ErrRequestAlreadyResolved) {
			return domain.ElectionEvent{}, ErrRequestAlreadyResolved
		}
		if errors.Is(err, ErrOperatorAssigned) {
			return domain.ElectionEvent{}, ErrOperatorAssigned
		}
		return domain.ElectionEvent{}, fmt.Errorf("s.requests.Approve -> %w", err)
	}

	s.audit.Record(actor, fmt.Sprintf("approved request %d, created event %d bound to operator %d", requestID, event.ID, operatorID))

	return event, nil
}

func (s *ProvisionService) Reject(ctx context.Context, actor string, requestID uint) error {
	if err := s.requests.Reject(ctx, requestID); err != nil {
		if errors.Is(err, ErrRequestAlreadyResolved) {
			return ErrRequestAlreadyResolved
		}
		return fmt.Errorf("s.requests.Reject -> %w", err)
	}

	s.audit.Record(actor, fmt.Sprintf("rejected request %d", requestID))

	return nil
}
