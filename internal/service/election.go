package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stuorg/portal/internal/domain"
	"github.com/stuorg/portal/internal/repository"
)

var (
	ErrEventNotFound       = repository.ErrEventNotFound
	ErrCandidateNotFound   = repository.ErrCandidateNotFound
	ErrNotListed           = repository.ErrNotListed
	ErrAlreadyVoted        = repository.ErrAlreadyVoted
	ErrOfflineModeActive   = repository.ErrOfflineModeActive
	ErrVotingClosed        = repository.ErrVotingClosed
	ErrAbstainNotAllowed   = repository.ErrAbstainNotAllowed
	ErrVoterHasBallot      = repository.ErrVoterHasBallot
	ErrNotEventOperator    = repository.ErrNotEventOperator
	ErrOperatorAssigned    = repository.ErrOperatorAssigned
	ErrTransactionConflict = repository.ErrTransactionConflict
	ErrInvalidSelection    = errors.New("selection names no candidate and is not an abstention")
)

// castVoteAttempts bounds the internal retry on store conflicts before
// the transient failure surfaces to the caller.
const castVoteAttempts = 3

type ElectionRepository interface {
	Create(ctx context.Context, event domain.ElectionEvent) (domain.ElectionEvent, error)
	FindByID(ctx context.Context, id uint) (domain.ElectionEvent, error)
	ListByManualStatuses(ctx context.Context, statuses []domain.EventStatus) ([]domain.ElectionEvent, error)
	AddCandidate(ctx context.Context, candidate domain.Candidate) (domain.Candidate, error)
	AmendRoll(ctx context.Context, eventID uint, add, remove []string) error
	SetManualStatus(ctx context.Context, eventID uint, status domain.EventStatus) error
	UpdateSettings(ctx context.Context, eventID uint, fields map[string]interface{}) error
	CastVote(ctx context.Context, eventID uint, voterID string, channel domain.VoteChannel, selection domain.Selection, now time.Time) (repository.VoteOutcome, error)
	IsEventOperator(ctx context.Context, eventID, operatorID uint) (bool, error)
	FindEventByOperator(ctx context.Context, operatorID uint) (domain.ElectionEvent, error)
}

// AuditSink receives one human-readable activity line per state-changing
// call. The core never reads it back.
type AuditSink interface {
	Record(actor, action string)
}

// SnapshotPublisher pushes the full event snapshot to live subscribers
// after every committed mutation.
type SnapshotPublisher interface {
	Publish(eventID uint, snapshot domain.ElectionSnapshot)
}

type VoteReceipt struct {
	Success         bool `json:"success"`
	AlreadyRecorded bool `json:"already_recorded"`
}

type ElectionService struct {
	repo      ElectionRepository
	audit     AuditSink
	publisher SnapshotPublisher
}

func NewElectionService(repo ElectionRepository, audit AuditSink, publisher SnapshotPublisher) *ElectionService {
	return &ElectionService{
		repo:      repo,
		audit:     audit,
		publisher: publisher,
	}
}

func (s *ElectionService) GetEvent(ctx context.Context, eventID uint) (domain.ElectionEvent, error) {
	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return domain.ElectionEvent{}, ErrEventNotFound
		}
		return domain.ElectionEvent{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return event, nil
}

// Snapshot builds the read model for an event, with the status derived
// through the single resolver.
func (s *ElectionService) Snapshot(event domain.ElectionEvent) domain.ElectionSnapshot {
	now := time.Now()
	return domain.ElectionSnapshot{
		Event:        event,
		Status:       domain.ResolveStatus(event, now),
		TotalBallots: event.BallotCount(),
		AsOf:         now,
	}
}

func (s *ElectionService) GetSnapshot(ctx context.Context, eventID uint) (domain.ElectionSnapshot, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return domain.ElectionSnapshot{}, err
	}

	return s.Snapshot(event), nil
}

// ListOpenEvents returns events whose manual status is setup or active,
// newest first, for the homepage banner.
func (s *ElectionService) ListOpenEvents(ctx context.Context) ([]domain.ElectionEvent, error) {
	events, err := s.repo.ListByManualStatuses(ctx, []domain.EventStatus{domain.StatusSetup, domain.StatusActive})
	if err != nil {
		return nil, fmt.Errorf("s.repo.ListByManualStatuses -> %w", err)
	}

	return events, nil
}

// CanVote is the advisory eligibility check for the voting UI. A nil
// error means the voter may cast a ballot right now. The same rules are
// re-validated inside the cast transaction, because time passes between
// check and act.
func (s *ElectionService) CanVote(ctx context.Context, eventID uint, voterID string, channel domain.VoteChannel) error {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	if !event.InRoll(voterID) {
		return ErrNotListed
	}
	if event.HasVoted(voterID) {
		return ErrAlreadyVoted
	}
	if event.OfflineMode && channel == domain.ChannelOnline {
		return ErrOfflineModeActive
	}
	if domain.ResolveStatus(event, time.Now()) != domain.StatusActive {
		return ErrVotingClosed
	}

	return nil
}

// CastVote records one ballot, exactly once per voter. The store
// transaction is retried a bounded number of times on conflicts; a voter
// who already has a ballot gets an idempotent success so a client retry
// after a lost response never double-counts.
func (s *ElectionService) CastVote(ctx context.Context, eventID uint, voterID string, channel domain.VoteChannel, selection domain.Selection) (VoteReceipt, error) {
	if !selection.IsValid() {
		return VoteReceipt{}, ErrInvalidSelection
	}

	var outcome repository.VoteOutcome
	var err error
	for attempt := 0; attempt < castVoteAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return VoteReceipt{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 25 * time.Millisecond):
			}
		}

		outcome, err = s.repo.CastVote(ctx, eventID, voterID, channel, selection, time.Now())
		if err == nil || !repository.IsRetryableConflict(err) {
			break
		}
		zap.L().Warn("retrying vote after store conflict",
			zap.Uint("event_id", eventID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	if err != nil {
		if repository.IsRetryableConflict(err) {
			return VoteReceipt{}, ErrTransactionConflict
		}
		return VoteReceipt{}, err
	}

	if outcome.AlreadyRecorded {
		// No state changed, so nothing to audit or publish.
		return VoteReceipt{Success: true, AlreadyRecorded: true}, nil
	}

	s.audit.Record(voterID, fmt.Sprintf("cast ballot in event %d via %s", eventID, channel))
	s.publishSnapshot(ctx, eventID)

	return VoteReceipt{Success: true}, nil
}

func (s *ElectionService) AddCandidate(ctx context.Context, operatorID uint, candidate domain.Candidate) (domain.Candidate, error) {
	if err := s.requireOperator(ctx, candidate.EventID, operatorID); err != nil {
		return domain.Candidate{}, err
	}

	created, err := s.repo.AddCandidate(ctx, candidate)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("s.repo.AddCandidate -> %w", err)
	}

	s.audit.Record(operatorActor(operatorID), fmt.Sprintf("added candidate %q to event %d", created.DisplayName, created.EventID))
	s.publishSnapshot(ctx, created.EventID)

	return created, nil
}

func (s *ElectionService) AmendRoll(ctx context.Context, operatorID uint, eventID uint, add, remove []string) error {
	if err := s.requireOperator(ctx, eventID, operatorID); err != nil {
		return err
	}

	if err := s.repo.AmendRoll(ctx, eventID, add, remove); err != nil {
		if errors.Is(err, ErrVoterHasBallot) {
			return ErrVoterHasBallot
		}
		return fmt.Errorf("s.repo.AmendRoll -> %w", err)
	}

	s.audit.Record(operatorActor(operatorID), fmt.Sprintf("amended roll of event %d (+%d/-%d)", eventID, len(add), len(remove)))
	s.publishSnapshot(ctx, eventID)

	return nil
}

func (s *ElectionService) SetManualStatus(ctx context.Context, operatorID uint, eventID uint, status domain.EventStatus) error {
	if err := s.requireOperator(ctx, eventID, operatorID); err != nil {
		return err
	}

	if err := s.repo.SetManualStatus(ctx, eventID, status); err != nil {
		return fmt.Errorf("s.repo.SetManualStatus -> %w", err)
	}

	s.audit.Record(operatorActor(operatorID), fmt.Sprintf("set event %d status to %s", eventID, status))
	s.publishSnapshot(ctx, eventID)

	return nil
}

// EventSettings is a partial update of the event flags and the voting
// window. A nil field is left unchanged; there is no way to clear a
// window back to unset, operators reschedule by moving it instead.
type EventSettings struct {
	StartAt        *time.Time
	EndAt          *time.Time
	AllowAbstain   *bool
	PublishResults *bool
	OfflineMode    *bool
}

func (s *ElectionService) UpdateEventSettings(ctx context.Context, operatorID uint, eventID uint, settings EventSettings) error {
	if err := s.requireOperator(ctx, eventID, operatorID); err != nil {
		return err
	}

	fields := map[string]interface{}{}
	if settings.StartAt != nil {
		fields["start_at"] = settings.StartAt
	}
	if settings.EndAt != nil {
		fields["end_at"] = settings.EndAt
	}
	if settings.AllowAbstain != nil {
		fields["allow_abstain"] = *settings.AllowAbstain
	}
	if settings.PublishResults != nil {
		fields["publish_results"] = *settings.PublishResults
	}
	if settings.OfflineMode != nil {
		fields["offline_mode"] = *settings.OfflineMode
	}

	if err := s.repo.UpdateSettings(ctx, eventID, fields); err != nil {
		return fmt.Errorf("s.repo.UpdateSettings -> %w", err)
	}

	s.audit.Record(operatorActor(operatorID), fmt.Sprintf("updated settings of event %d", eventID))
	s.publishSnapshot(ctx, eventID)

	return nil
}

func (s *ElectionService) FindEventByOperator(ctx context.Context, operatorID uint) (domain.ElectionEvent, error) {
	event, err := s.repo.FindEventByOperator(ctx, operatorID)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return domain.ElectionEvent{}, ErrEventNotFound
		}
		return domain.ElectionEvent{}, fmt.Errorf("s.repo.FindEventByOperator -> %w", err)
	}
	return event, nil
}

func (s *ElectionService) IsEventOperator(ctx context.Context, eventID, operatorID uint) (bool, error) {
	return s.repo.IsEventOperator(ctx, eventID, operatorID)
}

func (s *ElectionService) requireOperator(ctx context.Context, eventID, operatorID uint) error {
	ok, err := s.repo.IsEventOperator(ctx, eventID, operatorID)
	if err != nil {
		return fmt.Errorf("s.repo.IsEventOperator -> %w", err)
	}
	if !ok {
		return ErrNotEventOperator
	}
	return nil
}

func (s *ElectionService) publishSnapshot(ctx context.Context, eventID uint) {
	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		zap.L().Warn("snapshot publish skipped, reload failed",
			zap.Uint("event_id", eventID),
			zap.Error(err))
		return
	}
	s.publisher.Publish(eventID, s.Snapshot(event))
}

func operatorActor(operatorID uint) string {
	return fmt.Sprintf("operator:%d", operatorID)
}
