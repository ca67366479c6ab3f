package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrTokenInvalidOrUsed = errors.New("kiosk token invalid or already used")

type KioskToken struct {
	TokenID  string `gorm:"primaryKey"`
	EventID  uint   `gorm:"not null;index"`
	VoterID  string `gorm:"not null"`
	IssuedAt time.Time
}

type KioskTokenDAO struct {
	db *gorm.DB
}

func NewKioskTokenDAO(db *gorm.DB) *KioskTokenDAO {
	return &KioskTokenDAO{
		db: db,
	}
}

func (d *KioskTokenDAO) Insert(ctx context.Context, token KioskToken) (KioskToken, error) {
	result := d.db.WithContext(ctx).Create(&token)
	if result.Error != nil {
		return KioskToken{}, result.Error
	}
	return token, nil
}

func (d *KioskTokenDAO) FindByID(ctx context.Context, tokenID string) (KioskToken, error) {
	var token KioskToken
	result := d.db.WithContext(ctx).First(&token, "token_id = ?", tokenID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return KioskToken{}, ErrTokenInvalidOrUsed
		}
		return KioskToken{}, result.Error
	}
	return token, nil
}

// Consume deletes the token. Deleting an absent token reports
// ErrTokenInvalidOrUsed so a second redeem of the same token fails.
func (d *KioskTokenDAO) Consume(ctx context.Context, tokenID string) error {
	result := d.db.WithContext(ctx).Delete(&KioskToken{}, "token_id = ?", tokenID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenInvalidOrUsed
	}
	return nil
}
