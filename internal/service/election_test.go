package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuorg/portal/internal/domain"
	"github.com/stuorg/portal/internal/repository"
	"github.com/stuorg/portal/internal/service"
)

type stubElectionRepo struct {
	findByIDFn       func(ctx context.Context, id uint) (domain.ElectionEvent, error)
	castVoteFn       func(ctx context.Context, eventID uint, voterID string, channel domain.VoteChannel, selection domain.Selection, now time.Time) (repository.VoteOutcome, error)
	isOperatorFn     func(ctx context.Context, eventID, operatorID uint) (bool, error)
	addCandidateFn   func(ctx context.Context, candidate domain.Candidate) (domain.Candidate, error)
	updateSettingsFn func(ctx context.Context, eventID uint, fields map[string]interface{}) error
}

func (s *stubElectionRepo) Create(_ context.Context, event domain.ElectionEvent) (domain.ElectionEvent, error) {
	return event, nil
}

func (s *stubElectionRepo) FindByID(ctx context.Context, id uint) (domain.ElectionEvent, error) {
	if s.findByIDFn == nil {
		return domain.ElectionEvent{ID: id}, nil
	}
	return s.findByIDFn(ctx, id)
}

func (s *stubElectionRepo) ListByManualStatuses(context.Context, []domain.EventStatus) ([]domain.ElectionEvent, error) {
	return nil, nil
}

func (s *stubElectionRepo) AddCandidate(ctx context.Context, candidate domain.Candidate) (domain.Candidate, error) {
	if s.addCandidateFn == nil {
		return candidate, nil
	}
	return s.addCandidateFn(ctx, candidate)
}

func (s *stubElectionRepo) AmendRoll(context.Context, uint, []string, []string) error {
	return nil
}

func (s *stubElectionRepo) SetManualStatus(context.Context, uint, domain.EventStatus) error {
	return nil
}

func (s *stubElectionRepo) UpdateSettings(ctx context.Context, eventID uint, fields map[string]interface{}) error {
	if s.updateSettingsFn == nil {
		return nil
	}
	return s.updateSettingsFn(ctx, eventID, fields)
}

func (s *stubElectionRepo) CastVote(ctx context.Context, eventID uint, voterID string, channel domain.VoteChannel, selection domain.Selection, now time.Time) (repository.VoteOutcome, error) {
	if s.castVoteFn == nil {
		return repository.VoteOutcome{}, nil
	}
	return s.castVoteFn(ctx, eventID, voterID, channel, selection, now)
}

func (s *stubElectionRepo) IsEventOperator(ctx context.Context, eventID, operatorID uint) (bool, error) {
	if s.isOperatorFn == nil {
		return true, nil
	}
	return s.isOperatorFn(ctx, eventID, operatorID)
}

func (s *stubElectionRepo) FindEventByOperator(ctx context.Context, operatorID uint) (domain.ElectionEvent, error) {
	return domain.ElectionEvent{}, repository.ErrEventNotFound
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []string
}

func (a *recordingAudit) Record(actor, action string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, actor+": "+action)
}

func (a *recordingAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []uint
}

func (p *recordingPublisher) Publish(eventID uint, _ domain.ElectionSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, eventID)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func activeEvent() domain.ElectionEvent {
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	return domain.ElectionEvent{
		ID:           1,
		Name:         "Spring Board Election",
		ManualStatus: domain.StatusSetup,
		StartAt:      &start,
		EndAt:        &end,
		Roll:         []string{"amy@club.org", "ben@club.org"},
		Candidates:   []domain.Candidate{{ID: 10, DisplayName: "Avery Chen"}},
		Ballots:      map[string]domain.Ballot{},
	}
}

// conflictErr matches the store's retryable conflict detection.
var conflictErr = errors.New("database is locked")

func TestElectionService_CastVote(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid selection is rejected before the store", func(t *testing.T) {
		calls := 0
		repo := &stubElectionRepo{
			castVoteFn: func(context.Context, uint, string, domain.VoteChannel, domain.Selection, time.Time) (repository.VoteOutcome, error) {
				calls++
				return repository.VoteOutcome{}, nil
			},
		}
		svc := service.NewElectionService(repo, &recordingAudit{}, &recordingPublisher{})

		var zero domain.Selection
		_, err := svc.CastVote(ctx, 1, "amy@club.org", domain.ChannelOnline, zero)
		assert.ErrorIs(t, err, service.ErrInvalidSelection)
		assert.Zero(t, calls)
	})

	t.Run("retries conflicts then succeeds", func(t *testing.T) {
		calls := 0
		repo := &stubElectionRepo{
			castVoteFn: func(context.Context, uint, string, domain.VoteChannel, domain.Selection, time.Time) (repository.VoteOutcome, error) {
				calls++
				if calls < 3 {
					return repository.VoteOutcome{}, conflictErr
				}
				return repository.VoteOutcome{}, nil
			},
		}
		audit := &recordingAudit{}
		publisher := &recordingPublisher{}
		svc := service.NewElectionService(repo, audit, publisher)

		receipt, err := svc.CastVote(ctx, 1, "amy@club.org", domain.ChannelOnline, domain.SelectCandidate(10))
		require.NoError(t, err)
		assert.True(t, receipt.Success)
		assert.False(t, receipt.AlreadyRecorded)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 1, audit.count())
		assert.Equal(t, 1, publisher.count())
	})

	t.Run("persistent conflict surfaces after bounded retries", func(t *testing.T) {
		calls := 0
		repo := &stubElectionRepo{
			castVoteFn: func(context.Context, uint, string, domain.VoteChannel, domain.Selection, time.Time) (repository.VoteOutcome, error) {
				calls++
				return repository.VoteOutcome{}, conflictErr
			},
		}
		svc := service.NewElectionService(repo, &recordingAudit{}, &recordingPublisher{})

		_, err := svc.CastVote(ctx, 1, "amy@club.org", domain.ChannelOnline, domain.SelectCandidate(10))
		assert.ErrorIs(t, err, service.ErrTransactionConflict)
		assert.Equal(t, 3, calls)
	})

	t.Run("terminal errors are not retried", func(t *testing.T) {
		calls := 0
		repo := &stubElectionRepo{
			castVoteFn: func(context.Context, uint, string, domain.VoteChannel, domain.Selection, time.Time) (repository.VoteOutcome, error) {
				calls++
				return repository.VoteOutcome{}, repository.ErrNotListed
			},
		}
		svc := service.NewElectionService(repo, &recordingAudit{}, &recordingPublisher{})

		_, err := svc.CastVote(ctx, 1, "amy@club.org", domain.ChannelOnline, domain.SelectCandidate(10))
		assert.ErrorIs(t, err, service.ErrNotListed)
		assert.Equal(t, 1, calls)
	})

	t.Run("idempotent acknowledgment publishes nothing", func(t *testing.T) {
		repo := &stubElectionRepo{
			castVoteFn: func(context.Context, uint, string, domain.VoteChannel, domain.Selection, time.Time) (repository.VoteOutcome, error) {
				return repository.VoteOutcome{AlreadyRecorded: true}, nil
			},
		}
		audit := &recordingAudit{}
		publisher := &recordingPublisher{}
		svc := service.NewElectionService(repo, audit, publisher)

		receipt, err := svc.CastVote(ctx, 1, "amy@club.org", domain.ChannelOnline, domain.SelectCandidate(10))
		require.NoError(t, err)
		assert.True(t, receipt.Success)
		assert.True(t, receipt.AlreadyRecorded)
		assert.Zero(t, audit.count())
		assert.Zero(t, publisher.count())
	})
}

func TestElectionService_CanVote(t *testing.T) {
	ctx := context.Background()

	newSvc := func(event domain.ElectionEvent) *service.ElectionService {
		repo := &stubElectionRepo{
			findByIDFn: func(context.Context, uint) (domain.ElectionEvent, error) {
				return event, nil
			},
		}
		return service.NewElectionService(repo, &recordingAudit{}, &recordingPublisher{})
	}

	t.Run("eligible voter", func(t *testing.T) {
		svc := newSvc(activeEvent())
		assert.NoError(t, svc.CanVote(ctx, 1, "amy@club.org", domain.ChannelOnline))
	})

	t.Run("not on the roll", func(t *testing.T) {
		svc := newSvc(activeEvent())
		err := svc.CanVote(ctx, 1, "stranger@club.org", domain.ChannelOnline)
		assert.ErrorIs(t, err, service.ErrNotListed)
	})

	t.Run("roll membership is checked before the ballot", func(t *testing.T) {
		event := activeEvent()
		event.Ballots["stranger@club.org"] = domain.Ballot{}
		svc := newSvc(event)
		err := svc.CanVote(ctx, 1, "stranger@club.org", domain.ChannelOnline)
		assert.ErrorIs(t, err, service.ErrNotListed)
	})

	t.Run("already voted", func(t *testing.T) {
		event := activeEvent()
		event.Ballots["amy@club.org"] = domain.Ballot{}
		svc := newSvc(event)
		err := svc.CanVote(ctx, 1, "amy@club.org", domain.ChannelOnline)
		assert.ErrorIs(t, err, service.ErrAlreadyVoted)
	})

	t.Run("offline mode blocks the online channel only", func(t *testing.T) {
		event := activeEvent()
		event.OfflineMode = true
		svc := newSvc(event)

		err := svc.CanVote(ctx, 1, "amy@club.org", domain.ChannelOnline)
		assert.ErrorIs(t, err, service.ErrOfflineModeActive)
		assert.NoError(t, svc.CanVote(ctx, 1, "amy@club.org", domain.ChannelKiosk))
	})

	t.Run("closed event", func(t *testing.T) {
		event := activeEvent()
		event.ManualStatus = domain.StatusClosed
		svc := newSvc(event)
		err := svc.CanVote(ctx, 1, "amy@club.org", domain.ChannelOnline)
		assert.ErrorIs(t, err, service.ErrVotingClosed)
	})
}

func TestElectionService_OperatorGuard(t *testing.T) {
	ctx := context.Background()

	repo := &stubElectionRepo{
		isOperatorFn: func(_ context.Context, _, operatorID uint) (bool, error) {
			return operatorID == 7, nil
		},
	}
	audit := &recordingAudit{}
	svc := service.NewElectionService(repo, audit, &recordingPublisher{})

	_, err := svc.AddCandidate(ctx, 8, domain.Candidate{EventID: 1, DisplayName: "Avery Chen"})
	assert.ErrorIs(t, err, service.ErrNotEventOperator)

	err = svc.SetManualStatus(ctx, 8, 1, domain.StatusActive)
	assert.ErrorIs(t, err, service.ErrNotEventOperator)

	err = svc.AmendRoll(ctx, 8, 1, []string{"amy@club.org"}, nil)
	assert.ErrorIs(t, err, service.ErrNotEventOperator)
	assert.Zero(t, audit.count())

	_, err = svc.AddCandidate(ctx, 7, domain.Candidate{EventID: 1, DisplayName: "Avery Chen"})
	require.NoError(t, err)
	assert.Equal(t, 1, audit.count())
}

func TestElectionService_UpdateEventSettings_NilFieldsUntouched(t *testing.T) {
	ctx := context.Background()

	var gotFields map[string]interface{}
	repo := &stubElectionRepo{
		updateSettingsFn: func(_ context.Context, _ uint, fields map[string]interface{}) error {
			gotFields = fields
			return nil
		},
	}
	svc := service.NewElectionService(repo, &recordingAudit{}, &recordingPublisher{})

	offline := true
	err := svc.UpdateEventSettings(ctx, 7, 1, service.EventSettings{OfflineMode: &offline})
	require.NoError(t, err)

	// Only the set field reaches the store; nil fields stay untouched.
	assert.Equal(t, map[string]interface{}{"offline_mode": true}, gotFields)

	err = svc.UpdateEventSettings(ctx, 7, 1, service.EventSettings{})
	require.NoError(t, err)
	assert.Empty(t, gotFields)
}
