package dao

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stuorg/portal/internal/domain"
)

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrCandidateNotFound   = errors.New("candidate not found")
	ErrNotListed           = errors.New("voter not in roll")
	ErrAlreadyVoted        = errors.New("voter already cast a ballot")
	ErrOfflineModeActive   = errors.New("online voting disabled for this event")
	ErrVotingClosed        = errors.New("event is not open for voting")
	ErrAbstainNotAllowed   = errors.New("abstention not offered for this event")
	ErrVoterHasBallot      = errors.New("roll entry has a recorded ballot")
	ErrNotEventOperator    = errors.New("user is not the event operator")
	ErrOperatorAssigned    = errors.New("event or operator already has an assignment")
	ErrTransactionConflict = errors.New("transaction conflict")
)

type ElectionEvent struct {
	ID             uint        `gorm:"primaryKey"`
	Name           string      `gorm:"not null"`
	Organizer      string      `gorm:"not null"`
	ManualStatus   string      `gorm:"not null;default:setup"`
	StartAt        *time.Time
	EndAt          *time.Time
	AllowAbstain   bool        `gorm:"not null;default:false"`
	PublishResults bool        `gorm:"not null;default:false"`
	OfflineMode    bool        `gorm:"not null;default:false"`
	AbstainCount   int         `gorm:"not null;default:0"`
	Candidates     []Candidate `gorm:"foreignKey:EventID"`
	RollEntries    []RollEntry `gorm:"foreignKey:EventID"`
	Ballots        []Ballot    `gorm:"foreignKey:EventID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Candidate struct {
	ID          uint   `gorm:"primaryKey"`
	EventID     uint   `gorm:"not null;index"`
	DisplayName string `gorm:"not null"`
	Bio         string
	PhotoURL    string
	VoteCount   int    `gorm:"not null;default:0"`
	Position    int    `gorm:"not null;default:0"`
}

type RollEntry struct {
	ID      uint   `gorm:"primaryKey"`
	EventID uint   `gorm:"not null;uniqueIndex:idx_roll_event_voter"`
	VoterID string `gorm:"not null;uniqueIndex:idx_roll_event_voter"`
}

// Ballot row existence is the has-voted marker. The unique index over
// (event_id, voter_id) is the storage-level backstop for the
// at-most-one-vote guarantee.
type Ballot struct {
	ID      uint   `gorm:"primaryKey"`
	EventID uint   `gorm:"not null;uniqueIndex:idx_ballot_event_voter"`
	VoterID string `gorm:"not null;uniqueIndex:idx_ballot_event_voter"`
	Channel string `gorm:"not null"`
	CastAt  time.Time
}

// EventOperator is the explicit event-ownership relation. Both columns
// are unique: an event has one operator and an operator manages exactly
// one event at a time.
type EventOperator struct {
	ID         uint `gorm:"primaryKey"`
	EventID    uint `gorm:"not null;uniqueIndex"`
	OperatorID uint `gorm:"not null;uniqueIndex"`
}

type ElectionDAO struct {
	db *gorm.DB
}

func NewElectionDAO(db *gorm.DB) *ElectionDAO {
	return &ElectionDAO{
		db: db,
	}
}

// IsRetryable reports whether an error is a store-level conflict the
// caller may retry, as opposed to a terminal validation failure.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected
	}
	// sqlite (tests) signals write contention through busy/locked errors.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return strings.Contains(strings.ToUpper(err.Error()), "UNIQUE")
}

// lockForUpdate row-locks the event aggregate on engines that support it.
// sqlite serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (d *ElectionDAO) Insert(ctx context.Context, event ElectionEvent) (ElectionEvent, error) {
	result := d.db.WithContext(ctx).Create(&event)
	if result.Error != nil {
		return ElectionEvent{}, result.Error
	}
	return event, nil
}

func (d *ElectionDAO) FindByID(ctx context.Context, id uint) (ElectionEvent, error) {
	var event ElectionEvent
	result := d.db.WithContext(ctx).
		Preload("Candidates", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("RollEntries").
		Preload("Ballots").
		First(&event, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ElectionEvent{}, ErrEventNotFound
		}
		return ElectionEvent{}, result.Error
	}
	return event, nil
}

func (d *ElectionDAO) ListByManualStatuses(ctx context.Context, statuses []string) ([]ElectionEvent, error) {
	var events []ElectionEvent
	result := d.db.WithContext(ctx).
		Preload("Candidates", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Where("manual_status IN ?", statuses).
		Order("created_at DESC").
		Find(&events)
	if result.Error != nil {
		return nil, result.Error
	}
	return events, nil
}

func (d *ElectionDAO) AddCandidate(ctx context.Context, candidate Candidate) (Candidate, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event ElectionEvent
		if err := tx.First(&event, candidate.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}
		return tx.Create(&candidate).Error
	})
	if err != nil {
		return Candidate{}, err
	}
	return candidate, nil
}

// AmendRoll adds and removes roll entries. Entries for identities that
// already cast a ballot cannot be removed.
func (d *ElectionDAO) AmendRoll(ctx context.Context, eventID uint, add, remove []string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event ElectionEvent
		if err := lockForUpdate(tx).First(&event, eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		for _, voterID := range add {
			entry := RollEntry{EventID: eventID, VoterID: voterID}
			if err := tx.Create(&entry).Error; err != nil {
				if isUniqueViolation(err) {
					continue // already registered
				}
				return err
			}
		}

		for _, voterID := range remove {
			var voted int64
			if err := tx.Model(&Ballot{}).
				Where("event_id = ? AND voter_id = ?", eventID, voterID).
				Count(&voted).Error; err != nil {
				return err
			}
			if voted > 0 {
				return ErrVoterHasBallot
			}
			if err := tx.Where("event_id = ? AND voter_id = ?", eventID, voterID).
				Delete(&RollEntry{}).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (d *ElectionDAO) SetManualStatus(ctx context.Context, eventID uint, status string) error {
	result := d.db.WithContext(ctx).Model(&ElectionEvent{}).
		Where("id = ?", eventID).
		Update("manual_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// UpdateSettings applies partial updates to the event flags and window.
func (d *ElectionDAO) UpdateSettings(ctx context.Context, eventID uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	result := d.db.WithContext(ctx).Model(&ElectionEvent{}).
		Where("id = ?", eventID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

type VoteOutcome struct {
	AlreadyRecorded bool
}

// CastVote runs the vote as a single transaction against the event
// aggregate. The event row is locked first so ballot check, tally
// increment and ballot insert are serialized per event. A voter with an
// existing ballot gets an idempotent success; every validation failure
// rolls back with no partial write.
func (d *ElectionDAO) CastVote(ctx context.Context, eventID uint, voterID string, channel string, selection domain.Selection, now time.Time) (VoteOutcome, error) {
	var outcome VoteOutcome

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event ElectionEvent
		if err := lockForUpdate(tx).First(&event, eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		var existing Ballot
		err := tx.Where("event_id = ? AND voter_id = ?", eventID, voterID).
			First(&existing).Error
		if err == nil {
			outcome.AlreadyRecorded = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var listed int64
		if err := tx.Model(&RollEntry{}).
			Where("event_id = ? AND voter_id = ?", eventID, voterID).
			Count(&listed).Error; err != nil {
			return err
		}
		if listed == 0 {
			return ErrNotListed
		}

		if event.OfflineMode && channel == string(domain.ChannelOnline) {
			return ErrOfflineModeActive
		}

		status := domain.ResolveStatus(domain.ElectionEvent{
			ManualStatus: domain.EventStatus(event.ManualStatus),
			StartAt:      event.StartAt,
			EndAt:        event.EndAt,
		}, now)
		if status != domain.StatusActive {
			return ErrVotingClosed
		}

		if candidateID, ok := selection.CandidateID(); ok {
			result := tx.Model(&Candidate{}).
				Where("id = ? AND event_id = ?", candidateID, eventID).
				Update("vote_count", gorm.Expr("vote_count + 1"))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrCandidateNotFound
			}
		} else {
			if !event.AllowAbstain {
				return ErrAbstainNotAllowed
			}
			result := tx.Model(&ElectionEvent{}).
				Where("id = ?", eventID).
				Update("abstain_count", gorm.Expr("abstain_count + 1"))
			if result.Error != nil {
				return result.Error
			}
		}

		ballot := Ballot{
			EventID: eventID,
			VoterID: voterID,
			Channel: channel,
			CastAt:  now,
		}
		if err := tx.Create(&ballot).Error; err != nil {
			if isUniqueViolation(err) {
				// A concurrent transaction won the race; roll back the
				// tally increment and report the earlier ballot.
				return ErrAlreadyVoted
			}
			return err
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyVoted) {
			return VoteOutcome{AlreadyRecorded: true}, nil
		}
		return VoteOutcome{}, err
	}

	return outcome, nil
}

func (d *ElectionDAO) AssignOperator(ctx context.Context, tx *gorm.DB, eventID, operatorID uint) error {
	if tx == nil {
		tx = d.db.WithContext(ctx)
	}
	assignment := EventOperator{EventID: eventID, OperatorID: operatorID}
	if err := tx.Create(&assignment).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrOperatorAssigned
		}
		return err
	}
	return nil
}

func (d *ElectionDAO) IsEventOperator(ctx context.Context, eventID, operatorID uint) (bool, error) {
	var count int64
	result := d.db.WithContext(ctx).Model(&EventOperator{}).
		Where("event_id = ? AND operator_id = ?", eventID, operatorID).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (d *ElectionDAO) FindEventByOperator(ctx context.Context, operatorID uint) (ElectionEvent, error) {
	var assignment EventOperator
	result := d.db.WithContext(ctx).
		Where("operator_id = ?", operatorID).
		First(&assignment)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ElectionEvent{}, ErrEventNotFound
		}
		return ElectionEvent{}, result.Error
	}
	return d.FindByID(ctx, assignment.EventID)
}
