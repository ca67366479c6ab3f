package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/stuorg/portal/internal/domain"
	"github.com/stuorg/portal/internal/repository/dao"
)

var (
	ErrEventNotFound       = dao.ErrEventNotFound
	ErrCandidateNotFound   = dao.ErrCandidateNotFound
	ErrNotListed           = dao.ErrNotListed
	ErrAlreadyVoted        = dao.ErrAlreadyVoted
	ErrOfflineModeActive   = dao.ErrOfflineModeActive
	ErrVotingClosed        = dao.ErrVotingClosed
	ErrAbstainNotAllowed   = dao.ErrAbstainNotAllowed
	ErrVoterHasBallot      = dao.ErrVoterHasBallot
	ErrNotEventOperator    = dao.ErrNotEventOperator
	ErrOperatorAssigned    = dao.ErrOperatorAssigned
	ErrTransactionConflict = dao.ErrTransactionConflict
)

type ElectionDAO interface {
	Insert(ctx context.Context, event dao.ElectionEvent) (dao.ElectionEvent, error)
	FindByID(ctx context.Context, id uint) (dao.ElectionEvent, error)
	ListByManualStatuses(ctx context.Context, statuses []string) ([]dao.ElectionEvent, error)
	AddCandidate(ctx context.Context, candidate dao.Candidate) (dao.Candidate, error)
	AmendRoll(ctx context.Context, eventID uint, add, remove []string) error
	SetManualStatus(ctx context.Context, eventID uint, status string) error
	UpdateSettings(ctx context.Context, eventID uint, fields map[string]interface{}) error
	CastVote(ctx context.Context, eventID uint, voterID string, channel string, selection domain.Selection, now time.Time) (dao.VoteOutcome, error)
	IsEventOperator(ctx context.Context, eventID, operatorID uint) (bool, error)
	FindEventByOperator(ctx context.Context, operatorID uint) (dao.ElectionEvent, error)
}

type ElectionRepository struct {
	dao ElectionDAO
}

func NewElectionRepository(dao ElectionDAO) *ElectionRepository {
	return &ElectionRepository{
		dao: dao,
	}
}

// IsRetryableConflict reports whether the store rejected the operation
// with a transient conflict that the caller may retry.
func IsRetryableConflict(err error) bool {
	return dao.IsRetryable(err)
}

func (r *ElectionRepository) eventDaoToDomain(e dao.ElectionEvent) domain.ElectionEvent {
	candidates := make([]domain.Candidate, len(e.Candidates))
	for i, c := range e.Candidates {
		candidates[i] = domain.Candidate{
			ID:          c.ID,
			EventID:     c.EventID,
			DisplayName: c.DisplayName,
			Bio:         c.Bio,
			PhotoURL:    c.PhotoURL,
			VoteCount:   c.VoteCount,
			Position:    c.Position,
		}
	}

	roll := make([]string, len(e.RollEntries))
	for i, entry := range e.RollEntries {
		roll[i] = entry.VoterID
	}

	ballots := make(map[string]domain.Ballot, len(e.Ballots))
	for _, b := range e.Ballots {
		ballots[b.VoterID] = domain.Ballot{
			VoterID: b.VoterID,
			Channel: domain.VoteChannel(b.Channel),
			CastAt:  b.CastAt,
		}
	}

	return domain.ElectionEvent{
		ID:             e.ID,
		Name:           e.Name,
		Organizer:      e.Organizer,
		ManualStatus:   domain.EventStatus(e.ManualStatus),
		StartAt:        e.StartAt,
		EndAt:          e.EndAt,
		Candidates:     candidates,
		Roll:           roll,
		Ballots:        ballots,
		AllowAbstain:   e.AllowAbstain,
		PublishResults: e.PublishResults,
		OfflineMode:    e.OfflineMode,
		AbstainCount:   e.AbstainCount,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func (r *ElectionRepository) eventDomainToDao(e domain.ElectionEvent) dao.ElectionEvent {
	return dao.ElectionEvent{
		ID:             e.ID,
		Name:           e.Name,
		Organizer:      e.Organizer,
		ManualStatus:   string(e.ManualStatus),
		StartAt:        e.StartAt,
		EndAt:          e.EndAt,
		AllowAbstain:   e.AllowAbstain,
		PublishResults: e.PublishResults,
		OfflineMode:    e.OfflineMode,
		AbstainCount:   e.AbstainCount,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func (r *ElectionRepository) Create(ctx context.Context, event domain.ElectionEvent) (domain.ElectionEvent, error) {
	created, err := r.dao.Insert(ctx, r.eventDomainToDao(event))
	if err != nil {
		return domain.ElectionEvent{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.eventDaoToDomain(created), nil
}

func (r *ElectionRepository) FindByID(ctx context.Context, id uint) (domain.ElectionEvent, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.ElectionEvent{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.eventDaoToDomain(found), nil
}

func (r *ElectionRepository) ListByManualStatuses(ctx context.Context, statuses []domain.EventStatus) ([]domain.ElectionEvent, error) {
	raw := make([]string, len(statuses))
	for i, s := range statuses {
		raw[i] = string(s)
	}

	found, err := r.dao.ListByManualStatuses(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("r.dao.ListByManualStatuses -> %w", err)
	}

	events := make([]domain.ElectionEvent, len(found))
	for i, e := range found {
		events[i] = r.eventDaoToDomain(e)
	}

	return events, nil
}

func (r *ElectionRepository) AddCandidate(ctx context.Context, candidate domain.Candidate) (domain.Candidate, error) {
	created, err := r.dao.AddCandidate(ctx, dao.Candidate{
		EventID:     candidate.EventID,
		DisplayName: candidate.DisplayName,
		Bio:         candidate.Bio,
		PhotoURL:    candidate.PhotoURL,
		Position:    candidate.Position,
	})
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("r.dao.AddCandidate -> %w", err)
	}

	return domain.Candidate{
		ID:          created.ID,
		EventID:     created.EventID,
		DisplayName: created.DisplayName,
		Bio:         created.Bio,
		PhotoURL:    created.PhotoURL,
		VoteCount:   created.VoteCount,
		Position:    created.Position,
	}, nil
}

func (r *ElectionRepository) AmendRoll(ctx context.Context, eventID uint, add, remove []string) error {
	if err := r.dao.AmendRoll(ctx, eventID, add, remove); err != nil {
		return fmt.Errorf("r.dao.AmendRoll -> %w", err)
	}
	return nil
}

func (r *ElectionRepository) SetManualStatus(ctx context.Context, eventID uint, status domain.EventStatus) error {
	if err := r.dao.SetManualStatus(ctx, eventID, string(status)); err != nil {
		return fmt.Errorf("r.dao.SetManualStatus -> %w", err)
	}
	return nil
}

func (r *ElectionRepository) UpdateSettings(ctx context.Context, eventID uint, fields map[string]interface{}) error {
	if err := r.dao.UpdateSettings(ctx, eventID, fields); err != nil {
		return fmt.Errorf("r.dao.UpdateSettings -> %w", err)
	}
	return nil
}

type VoteOutcome struct {
	AlreadyRecorded bool
}

func (r *ElectionRepository) CastVote(ctx context.Context, eventID uint, voterID string, channel domain.VoteChannel, selection domain.Selection, now time.Time) (VoteOutcome, error) {
	outcome, err := r.dao.CastVote(ctx, eventID, voterID, string(channel), selection, now)
	if err != nil {
		return VoteOutcome{}, err
	}

	return VoteOutcome{AlreadyRecorded: outcome.AlreadyRecorded}, nil
}

func (r *ElectionRepository) IsEventOperator(ctx context.Context, eventID, operatorID uint) (bool, error) {
	ok, err := r.dao.IsEventOperator(ctx, eventID, operatorID)
	if err != nil {
		return false, fmt.Errorf("r.dao.IsEventOperator -> %w", err)
	}
	return ok, nil
}

func (r *ElectionRepository) FindEventByOperator(ctx context.Context, operatorID uint) (domain.ElectionEvent, error) {
	found, err := r.dao.FindEventByOperator(ctx, operatorID)
	if err != nil {
		return domain.ElectionEvent{}, fmt.Errorf("r.dao.FindEventByOperator -> %w", err)
	}
	return r.eventDaoToDomain(found), nil
}
