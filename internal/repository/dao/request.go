package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrRequestAlreadyResolved = errors.New("election request already resolved")

type ElectionRequest struct {
	ID           uint   `gorm:"primaryKey"`
	Organizer    string `gorm:"not null"`
	ProposedName string `gorm:"not null"`
	DocumentURL  string
	CreatedAt    time.Time
}

type ElectionRequestDAO struct {
	db *gorm.DB
}

func NewElectionRequestDAO(db *gorm.DB) *ElectionRequestDAO {
	return &ElectionRequestDAO{
		db: db,
	}
}

func (d *ElectionRequestDAO) Insert(ctx context.Context, req ElectionRequest) (ElectionRequest, error) {
	result := d.db.WithContext(ctx).Create(&req)
	if result.Error != nil {
		return ElectionRequest{}, result.Error
	}
	return req, nil
}

func (d *ElectionRequestDAO) List(ctx context.Context) ([]ElectionRequest, error) {
	var reqs []ElectionRequest
	result := d.db.WithContext(ctx).Order("created_at DESC").Find(&reqs)
	if result.Error != nil {
		return nil, result.Error
	}
	return reqs, nil
}

// Approve consumes the request in one transaction: the event is created
// in setup with nothing attached, the operator assignment row is
// written, and the request row is deleted. Deleting zero rows means a
// concurrent approval or rejection already resolved it.
func (d *ElectionRequestDAO) Approve(ctx context.Context, requestID, operatorID uint) (ElectionEvent, error) {
	var event ElectionEvent

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req ElectionRequest
		if err := lockForUpdate(tx).First(&req, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestAlreadyResolved
			}
			return err
		}

		result := tx.Delete(&ElectionRequest{}, requestID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRequestAlreadyResolved
		}

		event = ElectionEvent{
			Name:         req.ProposedName,
			Organizer:    req.Organizer,
			ManualStatus: "setup",
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		assignment := EventOperator{EventID: event.ID, OperatorID: operatorID}
		if err := tx.Create(&assignment).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrOperatorAssigned
			}
			return err
		}
		return nil
	})
	if err != nil {
		return ElectionEvent{}, err
	}

	return event, nil
}

func (d *ElectionRequestDAO) Reject(ctx context.Context, requestID uint) error {
	result := d.db.WithContext(ctx).Delete(&ElectionRequest{}, requestID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRequestAlreadyResolved
	}
	return nil
}
