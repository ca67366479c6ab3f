package dao

import "gorm.io/gorm"

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&ElectionEvent{},
		&Candidate{},
		&RollEntry{},
		&Ballot{},
		&EventOperator{},
		&KioskToken{},
		&ElectionRequest{},
	)
}
